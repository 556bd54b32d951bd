package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/oshokin/drowsiness-monitor/internal/domain/drowsiness"
)

// FileSource replays raw 8-bit gray frames stored back to back in a file.
type FileSource struct {
	// file is the open frames file.
	file *os.File
	// reader buffers the file.
	reader *bufio.Reader
	// width and height are the frame dimensions.
	width, height int
	// interval is the pause before every frame but the first.
	interval time.Duration
	// last is when the previous frame was returned.
	last time.Time
}

// FileOption configures a FileSource.
type FileOption func(*FileSource)

// WithFrameInterval paces replay; zero returns frames as fast as they are read.
func WithFrameInterval(interval time.Duration) FileOption {
	return func(s *FileSource) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// NewFileSource opens a frames file of width*height byte records.
func NewFileSource(path string, width, height int, opts ...FileOption) (*FileSource, error) {
	if width <= 0 || height <= 0 {
		return nil, errFrameSize
	}

	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("%w: open frames file: %w", ErrDevice, err)
	}

	s := &FileSource{
		file:   file,
		reader: bufio.NewReader(file),
		width:  width,
		height: height,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Read waits for the replay pace and returns the next frame.
// A trailing partial frame is treated as the end of the stream.
func (s *FileSource) Read(ctx context.Context) (*drowsiness.Frame, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	pixels := make([]byte, s.width*s.height)

	if _, err := io.ReadFull(s.reader, pixels); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrEndOfStream
		}

		return nil, fmt.Errorf("%w: read frame: %w", ErrDevice, err)
	}

	s.last = time.Now()

	return &drowsiness.Frame{
		Width:      s.width,
		Height:     s.height,
		Pixels:     pixels,
		CapturedAt: s.last,
	}, nil
}

// wait blocks until interval has passed since the previous frame.
func (s *FileSource) wait(ctx context.Context) error {
	if s.interval <= 0 || s.last.IsZero() {
		return ctx.Err()
	}

	delay := s.interval - time.Since(s.last)
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Close closes the file.
func (s *FileSource) Close() error {
	return s.file.Close()
}
