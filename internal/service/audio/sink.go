package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strconv"
	"sync"
	"time"
)

// Sink produces a single alarm pulse.
type Sink interface {
	// Pulse emits one pulse of the given pitch and length and returns when it is over.
	Pulse(ctx context.Context, frequency int, duration time.Duration) error
	// Name identifies the variant in logs.
	Name() string
}

// ErrUnsupportedSink is returned when a sink variant cannot work on this machine.
var ErrUnsupportedSink = errors.New("audio sink not supported")

// bellCharacter makes terminals beep or flash.
const bellCharacter = "\a"

// Bell writes the terminal bell and holds for the pulse duration.
type Bell struct {
	// out is the terminal the bell is written to.
	out io.Writer
	// mu serializes writes to out.
	mu sync.Mutex
}

// NewBell returns a bell sink writing to out.
func NewBell(out io.Writer) *Bell {
	return &Bell{out: out}
}

// Name implements Sink.
func (b *Bell) Name() string {
	return "bell"
}

// Pulse implements Sink.
func (b *Bell) Pulse(ctx context.Context, _ int, duration time.Duration) error {
	b.mu.Lock()
	_, err := io.WriteString(b.out, bellCharacter)
	b.mu.Unlock()

	if err != nil {
		return fmt.Errorf("write bell: %w", err)
	}

	return hold(ctx, duration)
}

// Process runs an external player for every pulse (sox `play` by default).
type Process struct {
	// path is the resolved player executable.
	path string
	// goos selects platform specific player arguments.
	goos string
}

// DefaultPlayer is the external tone player looked up on PATH.
const DefaultPlayer = "play"

// NewProcess returns a process sink running the player at path.
func NewProcess(path string) *Process {
	return &Process{
		path: path,
		goos: runtime.GOOS,
	}
}

// Name implements Sink.
func (p *Process) Name() string {
	return "process"
}

// Pulse implements Sink.
func (p *Process) Pulse(ctx context.Context, frequency int, duration time.Duration) error {
	//nolint:gosec // The player path comes from exec.LookPath, the arguments are numbers.
	cmd := exec.CommandContext(ctx, p.path, p.args(frequency, duration)...)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil
		}

		return fmt.Errorf("run %s: %w", p.path, err)
	}

	return nil
}

// args builds `play -nq [-t alsa] synth <seconds> sine <hz>`.
func (p *Process) args(frequency int, duration time.Duration) []string {
	args := []string{"-nq"}
	if p.goos == "linux" {
		args = append(args, "-t", "alsa")
	}

	return append(args,
		"synth", strconv.FormatFloat(duration.Seconds(), 'f', -1, 64),
		"sine", strconv.Itoa(frequency),
	)
}

// hold waits for d or until ctx is done.
func hold(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil
	case <-timer.C:
		return nil
	}
}
