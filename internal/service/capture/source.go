package capture

import (
	"context"
	"errors"

	"github.com/oshokin/drowsiness-monitor/internal/config"
	"github.com/oshokin/drowsiness-monitor/internal/domain/drowsiness"
)

var (
	// ErrDevice wraps every failure to open or read the camera; it is fatal to the primary loop.
	ErrDevice = errors.New("capture device failure")
	// ErrEndOfStream is returned when a replayed file has no more frames.
	ErrEndOfStream = errors.New("end of frame stream")
	// errFrameSize is returned for non-positive frame dimensions.
	errFrameSize = errors.New("frame size must be positive")
)

// Source yields frames of a fixed size.
type Source interface {
	// Read blocks until the next frame is available.
	Read(ctx context.Context) (*drowsiness.Frame, error)
	// Close releases the device or file.
	Close() error
}

// Open picks the file source when cfg.File is set and the camera otherwise.
func Open(ctx context.Context, cfg config.CaptureConfig) (Source, error) {
	if cfg.File != "" {
		return NewFileSource(cfg.File, cfg.Width, cfg.Height, WithFrameInterval(cfg.FrameInterval))
	}

	return NewFFmpegSource(ctx, FFmpegOptions{
		Path:        cfg.FFmpegPath,
		InputFormat: cfg.InputFormat,
		Device:      cfg.Device,
		Width:       cfg.Width,
		Height:      cfg.Height,
	})
}

// Normalize scales pixel values to [0, 1] and shapes them as the classifier input.
func Normalize(frame *drowsiness.Frame) drowsiness.Tensor {
	const maxPixel = 255

	data := make([]float32, len(frame.Pixels))
	for i, p := range frame.Pixels {
		data[i] = float32(p) / maxPixel
	}

	return drowsiness.Tensor{
		Width:  frame.Width,
		Height: frame.Height,
		Data:   data,
	}
}
