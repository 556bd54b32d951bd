package audio

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/drowsiness-monitor/internal/config"
	"github.com/oshokin/drowsiness-monitor/internal/logger"
)

// soundServers are process names that mean an external player will be heard.
//
//nolint:gochecknoglobals // Read-only lookup table.
var soundServers = map[string]struct{}{
	"pulseaudio":     {},
	"pipewire":       {},
	"pipewire-pulse": {},
	"coreaudiod":     {},
	"jackd":          {},
}

// prober holds the platform hooks Select consults; tests replace them.
type prober struct {
	// goos is the platform being probed.
	goos string
	// out is where the bell sink writes.
	out io.Writer
	// lookPath resolves an executable on PATH.
	lookPath func(file string) (string, error)
	// processes lists running processes.
	processes func() ([]ps.Process, error)
	// newTone opens the platform tone generator.
	newTone func() (Sink, error)
}

// Select probes the platform once and returns the sink for kind
// (auto, tone, process or bell). The bell always works and is the last resort of auto.
func Select(ctx context.Context, kind string, out io.Writer) (Sink, error) {
	p := &prober{
		goos:      runtime.GOOS,
		out:       out,
		lookPath:  exec.LookPath,
		processes: ps.Processes,
		newTone: func() (Sink, error) {
			return NewTone()
		},
	}

	return p.selectSink(ctx, kind)
}

// selectSink resolves kind into a sink.
func (p *prober) selectSink(ctx context.Context, kind string) (Sink, error) {
	switch strings.ToLower(kind) {
	case config.SinkTone:
		return p.newTone()
	case config.SinkProcess:
		path, err := p.lookPath(DefaultPlayer)
		if err != nil {
			return nil, fmt.Errorf("find %s: %w: %w", DefaultPlayer, ErrUnsupportedSink, err)
		}

		return NewProcess(path), nil
	case config.SinkBell:
		return NewBell(p.out), nil
	case config.SinkAuto, "":
		return p.auto(ctx), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSink, kind)
	}
}

// auto prefers the native tone on Windows, a player when a sound server runs,
// then the console tone, then the bell.
func (p *prober) auto(ctx context.Context) Sink {
	if p.goos == "windows" {
		if sink, err := p.newTone(); err == nil {
			return sink
		}
	}

	if path, err := p.lookPath(DefaultPlayer); err == nil {
		if p.soundServerRunning(ctx) {
			return NewProcess(path)
		}

		logger.DebugKV(ctx, "Player found but no sound server is running", "player", path)
	}

	sink, err := p.newTone()
	if err == nil {
		return sink
	}

	logger.DebugKV(ctx, "Tone generator unavailable", "error", err)

	return NewBell(p.out)
}

// soundServerRunning scans the process table for a known sound server.
func (p *prober) soundServerRunning(ctx context.Context) bool {
	processes, err := p.processes()
	if err != nil {
		logger.WarnKV(ctx, "Unable to list processes", "error", err)

		return false
	}

	for _, process := range processes {
		name := strings.TrimSuffix(strings.ToLower(process.Executable()), ".exe")
		if _, ok := soundServers[name]; ok {
			return true
		}
	}

	return false
}
