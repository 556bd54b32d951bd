//go:build windows

package audio

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sys/windows"
)

// Tone plays through kernel32!Beep.
type Tone struct {
	// beep is the lazily resolved kernel32 Beep procedure.
	beep *windows.LazyProc
}

// NewTone resolves kernel32!Beep.
func NewTone() (*Tone, error) {
	proc := windows.NewLazySystemDLL("kernel32.dll").NewProc("Beep")
	if err := proc.Find(); err != nil {
		return nil, fmt.Errorf("find kernel32 Beep: %w: %w", ErrUnsupportedSink, err)
	}

	return &Tone{beep: proc}, nil
}

// Name implements Sink.
func (t *Tone) Name() string {
	return "tone"
}

// Pulse implements Sink. Beep blocks for the whole duration and cannot be interrupted.
func (t *Tone) Pulse(ctx context.Context, frequency int, duration time.Duration) error {
	if ctx.Err() != nil {
		return nil
	}

	ok, _, err := t.beep.Call(uintptr(frequency), uintptr(duration.Milliseconds()))
	if ok == 0 {
		return fmt.Errorf("kernel32 Beep: %w", err)
	}

	return nil
}

// Close implements io.Closer.
func (t *Tone) Close() error {
	return nil
}
