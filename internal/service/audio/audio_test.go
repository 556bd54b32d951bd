package audio

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"testing/synctest"
	"time"

	"github.com/mitchellh/go-ps"
	"github.com/stretchr/testify/require"
)

var errNotFound = errors.New("not found")

// fakeProcess implements ps.Process for the probe tests.
type fakeProcess struct {
	// name is the executable name reported to the probe.
	name string
}

func (f fakeProcess) Pid() int           { return 1 }
func (f fakeProcess) PPid() int          { return 0 }
func (f fakeProcess) Executable() string { return f.name }

// silentSink stands in for the platform tone generator.
type silentSink struct{}

func (silentSink) Name() string                                    { return "tone" }
func (silentSink) Pulse(context.Context, int, time.Duration) error { return nil }

// newTestProber builds a prober with the given platform answers.
func newTestProber(player bool, servers []string, tone bool) *prober {
	return &prober{
		goos: "linux",
		out:  new(bytes.Buffer),
		lookPath: func(file string) (string, error) {
			if player {
				return "/usr/bin/" + file, nil
			}

			return "", errNotFound
		},
		processes: func() ([]ps.Process, error) {
			list := make([]ps.Process, 0, len(servers))
			for _, name := range servers {
				list = append(list, fakeProcess{name: name})
			}

			return list, nil
		},
		newTone: func() (Sink, error) {
			if tone {
				return silentSink{}, nil
			}

			return nil, ErrUnsupportedSink
		},
	}
}

// TestSelect_Auto walks the auto preference order.
func TestSelect_Auto(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	sink, err := newTestProber(true, []string{"bash", "pipewire"}, true).selectSink(ctx, "auto")
	require.NoError(t, err)
	require.Equal(t, "process", sink.Name())

	// Player without a sound server falls through to the tone.
	sink, err = newTestProber(true, []string{"bash"}, true).selectSink(ctx, "auto")
	require.NoError(t, err)
	require.Equal(t, "tone", sink.Name())

	// Nothing available ends with the bell.
	sink, err = newTestProber(false, nil, false).selectSink(ctx, "")
	require.NoError(t, err)
	require.Equal(t, "bell", sink.Name())
}

// TestSelect_Forced checks explicitly requested variants and their failures.
func TestSelect_Forced(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	_, err := newTestProber(false, nil, true).selectSink(ctx, "process")
	require.ErrorIs(t, err, ErrUnsupportedSink)

	_, err = newTestProber(true, nil, false).selectSink(ctx, "tone")
	require.ErrorIs(t, err, ErrUnsupportedSink)

	sink, err := newTestProber(false, nil, false).selectSink(ctx, "BELL")
	require.NoError(t, err)
	require.Equal(t, "bell", sink.Name())

	_, err = newTestProber(true, nil, true).selectSink(ctx, "kazoo")
	require.ErrorIs(t, err, ErrUnsupportedSink)
}

// TestBellPulse writes one bell character and holds for the pulse duration.
func TestBellPulse(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		var out bytes.Buffer

		bell := NewBell(&out)
		start := time.Now()

		require.NoError(t, bell.Pulse(context.Background(), 1000, 500*time.Millisecond))
		require.Equal(t, "\a", out.String())
		require.Equal(t, 500*time.Millisecond, time.Since(start))
	})
}

// TestBellPulse_Canceled returns as soon as the context is done.
func TestBellPulse_Canceled(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		start := time.Now()

		time.AfterFunc(100*time.Millisecond, cancel)

		require.NoError(t, NewBell(new(bytes.Buffer)).Pulse(ctx, 1000, time.Second))
		require.Equal(t, 100*time.Millisecond, time.Since(start))
	})
}

// TestProcessArgs verifies the player command line per platform.
func TestProcessArgs(t *testing.T) {
	t.Parallel()

	p := &Process{path: "/usr/bin/play", goos: "linux"}
	require.Equal(t,
		[]string{"-nq", "-t", "alsa", "synth", "0.5", "sine", "1000"},
		p.args(1000, 500*time.Millisecond))

	p.goos = "darwin"
	require.Equal(t,
		[]string{"-nq", "synth", "1.25", "sine", "440"},
		p.args(440, 1250*time.Millisecond))
}
