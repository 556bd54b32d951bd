//go:build !linux && !windows

package audio

import (
	"context"
	"fmt"
	"runtime"
	"time"
)

// Tone is not available on this platform.
type Tone struct{}

// NewTone always fails outside Linux and Windows.
func NewTone() (*Tone, error) {
	return nil, fmt.Errorf("tone generator on %s: %w", runtime.GOOS, ErrUnsupportedSink)
}

// Name implements Sink.
func (t *Tone) Name() string {
	return "tone"
}

// Pulse implements Sink.
func (t *Tone) Pulse(context.Context, int, time.Duration) error {
	return ErrUnsupportedSink
}

// Close implements io.Closer.
func (t *Tone) Close() error {
	return nil
}
