//go:build linux

package audio

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

const (
	// kiocSound is the console ioctl that starts (or with 0 stops) the PC speaker.
	kiocSound = 0x4B2F
	// pitClockHz is the programmable interval timer frequency the divisor is based on.
	pitClockHz = 1193180
)

// consoleDevices are tried in order when opening the speaker.
var consoleDevices = []string{"/dev/console", "/dev/tty0"} //nolint:gochecknoglobals // Read-only list.

// Tone drives the PC speaker through the Linux console.
type Tone struct {
	// console is the open console device.
	console *os.File
}

// NewTone opens the console speaker. It fails without permission to the console
// or when the console has no speaker to drive.
func NewTone() (*Tone, error) {
	return openTone(consoleDevices)
}

// openTone returns the first device that accepts the speaker ioctl.
func openTone(devices []string) (*Tone, error) {
	var lastErr error

	for _, device := range devices {
		f, err := os.OpenFile(device, os.O_WRONLY, 0)
		if err != nil {
			lastErr = err

			continue
		}

		// Silencing is harmless and proves the ioctl works on this device.
		if err = unix.IoctlSetInt(int(f.Fd()), kiocSound, 0); err != nil { //nolint:gosec // File descriptors fit into int.
			_ = f.Close()
			lastErr = fmt.Errorf("%s: %w", device, err)

			continue
		}

		return &Tone{console: f}, nil
	}

	return nil, fmt.Errorf("open console speaker: %w: %w", ErrUnsupportedSink, lastErr)
}

// Name implements Sink.
func (t *Tone) Name() string {
	return "tone"
}

// Pulse implements Sink.
func (t *Tone) Pulse(ctx context.Context, frequency int, duration time.Duration) error {
	fd := int(t.console.Fd()) //nolint:gosec // File descriptors fit into int.

	if err := unix.IoctlSetInt(fd, kiocSound, pitClockHz/frequency); err != nil {
		return fmt.Errorf("start tone: %w", err)
	}

	holdErr := hold(ctx, duration)

	if err := unix.IoctlSetInt(fd, kiocSound, 0); err != nil {
		return fmt.Errorf("stop tone: %w", err)
	}

	return holdErr
}

// Close releases the console device.
func (t *Tone) Close() error {
	return t.console.Close()
}
