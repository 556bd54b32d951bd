package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/oshokin/drowsiness-monitor/internal/domain/drowsiness"
	"github.com/oshokin/drowsiness-monitor/internal/logger"
)

// FFmpegOptions describes the camera and the output frame size.
type FFmpegOptions struct {
	// Path is the ffmpeg executable.
	Path string
	// InputFormat is the demuxer (v4l2, dshow, avfoundation); empty lets ffmpeg guess.
	InputFormat string
	// Device is the camera name or path.
	Device string
	// Width is the output frame width.
	Width int
	// Height is the output frame height.
	Height int
}

// FFmpegSource reads scaled grayscale frames from an ffmpeg subprocess.
type FFmpegSource struct {
	// cmd is the running ffmpeg process.
	cmd *exec.Cmd
	// stdout delivers raw gray frames back to back.
	stdout io.ReadCloser
	// reader buffers stdout.
	reader *bufio.Reader
	// width and height are the frame dimensions.
	width, height int
	// closeOnce guards process teardown.
	closeOnce sync.Once
}

// NewFFmpegSource starts ffmpeg on the device. The process is killed when ctx is canceled.
func NewFFmpegSource(ctx context.Context, opts FFmpegOptions) (*FFmpegSource, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, errFrameSize
	}

	path := opts.Path
	if path == "" {
		path = "ffmpeg"
	}

	cmd := exec.CommandContext(ctx, path, opts.args()...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: open ffmpeg pipe: %w", ErrDevice, err)
	}

	if err = cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start ffmpeg: %w", ErrDevice, err)
	}

	logger.InfoKV(ctx, "Camera opened",
		"device", opts.Device,
		"input_format", opts.InputFormat,
		"width", opts.Width,
		"height", opts.Height)

	return &FFmpegSource{
		cmd:    cmd,
		stdout: stdout,
		reader: bufio.NewReaderSize(stdout, opts.Width*opts.Height),
		width:  opts.Width,
		height: opts.Height,
	}, nil
}

// args builds the ffmpeg command line.
func (o FFmpegOptions) args() []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-nostdin"}

	if o.InputFormat != "" {
		args = append(args, "-f", o.InputFormat)
	}

	scale := "scale=" + strconv.Itoa(o.Width) + ":" + strconv.Itoa(o.Height) + ",format=gray"

	return append(args,
		"-i", o.Device,
		"-vf", scale,
		"-f", "rawvideo",
		"-pix_fmt", "gray",
		"-",
	)
}

// Read returns the next frame; any failure, including the end of the stream, is a device error.
func (s *FFmpegSource) Read(ctx context.Context) (*drowsiness.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pixels := make([]byte, s.width*s.height)

	if _, err := io.ReadFull(s.reader, pixels); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		return nil, fmt.Errorf("%w: read frame: %w", ErrDevice, err)
	}

	return &drowsiness.Frame{
		Width:      s.width,
		Height:     s.height,
		Pixels:     pixels,
		CapturedAt: time.Now(),
	}, nil
}

// Close stops ffmpeg and reaps it.
func (s *FFmpegSource) Close() error {
	var err error

	s.closeOnce.Do(func() {
		_ = s.stdout.Close()

		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}

		waitErr := s.cmd.Wait()

		var exitErr *exec.ExitError
		if waitErr != nil && !errors.As(waitErr, &exitErr) && !errors.Is(waitErr, context.Canceled) {
			err = fmt.Errorf("wait for ffmpeg: %w", waitErr)
		}
	})

	return err
}
