package alarm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"
)

var errSpeaker = errors.New("speaker unplugged")

// recordingSink counts pulses and remembers when each one started.
type recordingSink struct {
	// mu protects starts.
	mu sync.Mutex
	// starts holds the start time of every pulse.
	starts []time.Time
	// err is returned from every pulse when set.
	err error
}

func (r *recordingSink) Name() string { return "recording" }

// Pulse records the pulse and holds for its duration unless canceled.
func (r *recordingSink) Pulse(ctx context.Context, _ int, duration time.Duration) error {
	r.mu.Lock()
	r.starts = append(r.starts, time.Now())
	r.mu.Unlock()

	select {
	case <-ctx.Done():
	case <-time.After(duration):
	}

	return r.err
}

// count returns how many pulses started so far.
func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.starts)
}

// testSettings mirrors the defaults: 500ms pulse, 500ms pause.
func testSettings() Settings {
	return Settings{
		Frequency:     1000,
		PulseDuration: 500 * time.Millisecond,
		Interval:      500 * time.Millisecond,
	}
}

// TestController_PulsesPeriodically checks the pulse cadence and that Start is idempotent.
func TestController_PulsesPeriodically(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		sink := new(recordingSink)
		c := NewController(sink, testSettings())

		require.True(t, c.Start(context.Background()))
		require.False(t, c.Start(context.Background()))
		require.True(t, c.IsRunning())

		// Pulses start at 0s, 1s and 2s.
		time.Sleep(2500 * time.Millisecond)
		synctest.Wait()
		require.Equal(t, 3, sink.count())

		c.Stop()
		require.False(t, c.IsRunning())
		require.EqualValues(t, 3, c.Pulses())
	})
}

// TestController_NoPulseAfterStop verifies silence once Stop returns, including back-to-back cycles.
func TestController_NoPulseAfterStop(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		sink := new(recordingSink)
		c := NewController(sink, testSettings())
		ctx := context.Background()

		for range 2 {
			require.True(t, c.Start(ctx))
			c.Stop()
			require.False(t, c.IsRunning())

			stoppedAt := time.Now()
			stoppedCount := sink.count()

			time.Sleep(10 * time.Second)
			synctest.Wait()

			require.Equal(t, stoppedCount, sink.count())

			for _, start := range sink.starts {
				require.False(t, start.After(stoppedAt))
			}
		}
	})
}

// TestController_StopInterruptsPulse ensures Stop does not wait for a long pulse to finish.
func TestController_StopInterruptsPulse(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		settings := testSettings()
		settings.PulseDuration = time.Minute

		c := NewController(new(recordingSink), settings)
		require.True(t, c.Start(context.Background()))

		time.Sleep(100 * time.Millisecond)

		start := time.Now()
		c.Stop()
		require.Zero(t, time.Since(start))
	})
}

// TestController_StopWhenIdle checks that Stop and Close are safe without Start.
func TestController_StopWhenIdle(t *testing.T) {
	t.Parallel()

	c := NewController(new(recordingSink), testSettings())
	c.Stop()
	require.NoError(t, c.Close())
	require.False(t, c.IsRunning())
}

// TestController_SinkErrorsKeepPulsing verifies that a failing sink does not end the alarm.
func TestController_SinkErrorsKeepPulsing(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		sink := &recordingSink{err: errSpeaker}
		c := NewController(sink, testSettings())

		require.True(t, c.Start(context.Background()))

		time.Sleep(3500 * time.Millisecond)
		synctest.Wait()

		require.NoError(t, c.Close())
		require.Equal(t, 4, sink.count())
	})
}

// TestController_OutlivesCallerContext ensures only Stop ends the worker.
func TestController_OutlivesCallerContext(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		sink := new(recordingSink)
		c := NewController(sink, testSettings())

		require.True(t, c.Start(ctx))
		cancel()

		time.Sleep(1500 * time.Millisecond)
		synctest.Wait()

		require.True(t, c.IsRunning())
		require.Equal(t, 2, sink.count())

		c.Stop()
	})
}
