package alarm

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oshokin/drowsiness-monitor/internal/logger"
	"github.com/oshokin/drowsiness-monitor/internal/service/audio"
)

// Settings is the shape of the alarm signal.
type Settings struct {
	// Frequency is the pulse pitch in Hz.
	Frequency int
	// PulseDuration is how long one pulse lasts.
	PulseDuration time.Duration
	// Interval is the silence between two pulses.
	Interval time.Duration
}

// Controller owns one audio sink and at most one pulse worker.
type Controller struct {
	// sink produces the pulses.
	sink audio.Sink
	// settings is the pulse shape.
	settings Settings

	// mu serializes Start and Stop.
	mu sync.Mutex
	// stopping is the stop flag shared with the worker.
	stopping atomic.Bool
	// running is true between a successful Start and the matching Stop.
	running atomic.Bool
	// wake interrupts the worker's wait between pulses.
	wake chan struct{}
	// cancel aborts a pulse in progress.
	cancel context.CancelFunc
	// done is closed by the worker when it exits.
	done chan struct{}

	// pulses counts pulses produced over the controller lifetime.
	pulses atomic.Uint64
}

// NewController creates a stopped controller for sink.
func NewController(sink audio.Sink, settings Settings) *Controller {
	return &Controller{
		sink:     sink,
		settings: settings,
	}
}

// Start launches the pulse worker. It returns false when the alarm is already running.
func (c *Controller) Start(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running.Load() {
		return false
	}

	// The worker outlives the caller's context; only Stop ends it.
	workerCtx, cancel := context.WithCancel(context.WithoutCancel(logger.WithName(ctx, "alarm")))

	c.stopping.Store(false)
	c.wake = make(chan struct{})
	c.done = make(chan struct{})
	c.cancel = cancel
	c.running.Store(true)

	go c.work(workerCtx, c.wake, c.done)

	logger.InfoKV(ctx, "Alarm started", "sink", c.sink.Name(), "frequency_hz", c.settings.Frequency)

	return true
}

// Stop signals the worker and waits for it to exit. It is a no-op when the alarm is not running.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running.Load() {
		return
	}

	c.stopping.Store(true)
	close(c.wake)
	c.cancel()
	<-c.done

	c.running.Store(false)
}

// IsRunning reports whether the pulse worker is active.
func (c *Controller) IsRunning() bool {
	return c.running.Load()
}

// Pulses returns how many pulses the controller has produced.
func (c *Controller) Pulses() uint64 {
	return c.pulses.Load()
}

// Close stops the worker and releases the sink when it holds a device.
func (c *Controller) Close() error {
	c.Stop()

	if closer, ok := c.sink.(io.Closer); ok {
		return closer.Close()
	}

	return nil
}

// work pulses the sink until the stop flag is raised.
func (c *Controller) work(ctx context.Context, wake <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	var failures int

	for !c.stopping.Load() {
		if err := c.sink.Pulse(ctx, c.settings.Frequency, c.settings.PulseDuration); err != nil {
			failures++
			if failures == 1 {
				logger.WarnKV(ctx, "Alarm pulse failed", "sink", c.sink.Name(), "error", err)
			}
		} else {
			failures = 0
		}

		c.pulses.Add(1)

		if !c.pause(wake) {
			return
		}
	}
}

// pause waits for the inter-pulse interval; it returns false when woken by Stop.
func (c *Controller) pause(wake <-chan struct{}) bool {
	if c.settings.Interval <= 0 {
		select {
		case <-wake:
			return false
		default:
			return true
		}
	}

	timer := time.NewTimer(c.settings.Interval)
	defer timer.Stop()

	select {
	case <-wake:
		return false
	case <-timer.C:
		return true
	}
}
