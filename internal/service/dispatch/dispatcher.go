package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oshokin/drowsiness-monitor/internal/config"
	"github.com/oshokin/drowsiness-monitor/internal/domain/drowsiness"
	"github.com/oshokin/drowsiness-monitor/internal/logger"
	"github.com/oshokin/drowsiness-monitor/internal/service/location"
	"github.com/oshokin/drowsiness-monitor/internal/service/notify"
)

// errUnknownEvent is reported for events with an unsupported kind.
var errUnknownEvent = errors.New("unknown event kind")

// Journal is the subset of the episode journal the dispatcher writes to.
type Journal interface {
	Append(ctx context.Context, record *drowsiness.EpisodeRecord) error
}

// Stats are counters over the dispatcher lifetime.
type Stats struct {
	// Queued counts events accepted by Dispatch.
	Queued uint64
	// Dropped counts events rejected because the queue was full or closed.
	Dropped uint64
	// Sent counts events delivered by their route.
	Sent uint64
	// Failed counts events whose route returned an error.
	Failed uint64
	// Skipped counts events whose route is not configured.
	Skipped uint64
}

// Dispatcher is a single-worker notification queue.
type Dispatcher struct {
	// push receives alarm events.
	push notify.Notifier
	// messaging receives escalation events.
	messaging notify.Notifier
	// resolver locates the vehicle for escalations.
	resolver location.Resolver
	// journal receives resolved episodes.
	journal Journal
	// actor is appended to messages and journal records.
	actor *drowsiness.Actor
	// results receives one Delivery per handled event.
	results chan<- drowsiness.Delivery

	// sendTimeout bounds one notifier call or journal write.
	sendTimeout time.Duration
	// locationTimeout bounds the location lookup of an escalation.
	locationTimeout time.Duration
	// queueSize is the queue capacity.
	queueSize int

	// mu guards queue against sends after Close.
	mu sync.RWMutex
	// queue holds pending events.
	queue chan drowsiness.NotificationEvent
	// closed is set by Close.
	closed bool
	// started is set by Start.
	started bool
	// cancel aborts the worker context.
	cancel context.CancelFunc
	// done is closed when the worker exits.
	done chan struct{}

	queued, dropped, sent, failed, skipped atomic.Uint64
}

// Option configures the dispatcher.
type Option func(*Dispatcher)

// WithQueueSize sets the queue capacity.
func WithQueueSize(size int) Option {
	return func(d *Dispatcher) {
		if size > 0 {
			d.queueSize = size
		}
	}
}

// WithSendTimeout bounds each notifier call.
func WithSendTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.sendTimeout = timeout
		}
	}
}

// WithLocationTimeout bounds the location lookup of an escalation.
func WithLocationTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.locationTimeout = timeout
		}
	}
}

// WithJournal records resolved episodes.
func WithJournal(journal Journal) Option {
	return func(d *Dispatcher) {
		d.journal = journal
	}
}

// WithActor attaches host and user to messages and records.
func WithActor(actor *drowsiness.Actor) Option {
	return func(d *Dispatcher) {
		d.actor = actor.Clone()
	}
}

// WithDeliveries reports every handled event on results. Sends never block the worker.
func WithDeliveries(results chan<- drowsiness.Delivery) Option {
	return func(d *Dispatcher) {
		d.results = results
	}
}

// New creates a dispatcher. Nil notifiers or a nil resolver disable their routes.
func New(push, messaging notify.Notifier, resolver location.Resolver, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		push:            push,
		messaging:       messaging,
		resolver:        resolver,
		sendTimeout:     config.DefaultSendTimeout,
		locationTimeout: config.DefaultLocationTimeout,
		queueSize:       config.DefaultQueueSize,
		done:            make(chan struct{}),
	}

	for _, opt := range opts {
		opt(d)
	}

	d.queue = make(chan drowsiness.NotificationEvent, d.queueSize)

	return d
}

// Start launches the worker. Calling it more than once has no effect.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started || d.closed {
		return
	}

	// The worker drains the queue until Close, independently of the caller's context.
	workerCtx, cancel := context.WithCancel(context.WithoutCancel(logger.WithName(ctx, "dispatcher")))

	d.started = true
	d.cancel = cancel

	go d.work(workerCtx)
}

// Dispatch enqueues the event without blocking. It returns false when the event was dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, event drowsiness.NotificationEvent) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.dropped.Add(1)
		logger.WarnKV(ctx, "Notification dropped, dispatcher closed",
			"kind", event.Kind.String(), "episode", event.EpisodeID)

		return false
	}

	select {
	case d.queue <- event:
		d.queued.Add(1)

		return true
	default:
		d.dropped.Add(1)
		logger.WarnKV(ctx, "Notification dropped, queue full",
			"kind", event.Kind.String(), "episode", event.EpisodeID, "queue_size", d.queueSize)

		return false
	}
}

// Close stops accepting events and waits for the queue to drain.
// When ctx ends first, sends in flight are aborted and ctx's error is returned once the worker exits.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()

	if d.closed {
		d.mu.Unlock()

		return nil
	}

	d.closed = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if !started {
		return nil
	}

	select {
	case <-d.done:
		d.cancel()

		return nil
	case <-ctx.Done():
		d.cancel()
		<-d.done

		return fmt.Errorf("drain notification queue: %w", ctx.Err())
	}
}

// Stats returns a snapshot of the counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Queued:  d.queued.Load(),
		Dropped: d.dropped.Load(),
		Sent:    d.sent.Load(),
		Failed:  d.failed.Load(),
		Skipped: d.skipped.Load(),
	}
}

// work handles events in order until the queue is closed and empty.
func (d *Dispatcher) work(ctx context.Context) {
	defer close(d.done)

	for event := range d.queue {
		d.handle(ctx, event)
	}
}

// handle routes one event and reports the outcome.
func (d *Dispatcher) handle(ctx context.Context, event drowsiness.NotificationEvent) {
	ctx = logger.WithKV(ctx, "kind", event.Kind.String(), "episode", event.EpisodeID)

	delivered, err := d.route(ctx, event)

	switch {
	case err != nil:
		d.failed.Add(1)
		logger.ErrorKV(ctx, "Notification failed", "error", err)
	case !delivered:
		d.skipped.Add(1)
		logger.DebugKV(ctx, "Notification route not configured")
	default:
		d.sent.Add(1)
		logger.InfoKV(ctx, "Notification delivered")
	}

	d.report(ctx, drowsiness.Delivery{EpisodeID: event.EpisodeID, Kind: event.Kind, Err: err})
}

// route sends the event to its destination. delivered is false when the route is disabled.
func (d *Dispatcher) route(ctx context.Context, event drowsiness.NotificationEvent) (bool, error) {
	switch event.Kind {
	case drowsiness.EventAlarm:
		if d.push == nil {
			return false, nil
		}

		return true, d.send(ctx, d.push, notify.FormatAlarm(event.EpisodeDuration, d.actor))
	case drowsiness.EventEscalation:
		if d.messaging == nil {
			return false, nil
		}

		if event.Location == "" {
			event.Location = d.locate(ctx)
		}

		return true, d.send(ctx, d.messaging, notify.FormatEscalation(event.EpisodeDuration, event.Location, d.actor))
	case drowsiness.EventResolved:
		if d.journal == nil || event.Record == nil {
			return false, nil
		}

		return true, d.record(ctx, event.Record)
	default:
		return false, fmt.Errorf("%w: %d", errUnknownEvent, event.Kind)
	}
}

// locate resolves the location within locationTimeout, falling back to the sentinel.
func (d *Dispatcher) locate(ctx context.Context) string {
	if d.resolver == nil {
		return location.Unknown
	}

	lookupCtx, cancel := context.WithTimeout(ctx, d.locationTimeout)
	defer cancel()

	return d.resolver.Resolve(lookupCtx)
}

// send calls one notifier within sendTimeout.
func (d *Dispatcher) send(ctx context.Context, notifier notify.Notifier, message notify.Message) error {
	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	if err := notifier.Notify(sendCtx, message); err != nil {
		return fmt.Errorf("%s: %w", notifier.Name(), err)
	}

	return nil
}

// record appends a finished episode to the journal within sendTimeout.
func (d *Dispatcher) record(ctx context.Context, record *drowsiness.EpisodeRecord) error {
	if record.Actor == nil && d.actor != nil {
		copied := *record
		copied.Actor = d.actor.Clone()
		record = &copied
	}

	writeCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	if err := d.journal.Append(writeCtx, record); err != nil {
		return fmt.Errorf("journal: %w", err)
	}

	return nil
}

// report publishes the delivery without ever blocking the worker.
func (d *Dispatcher) report(ctx context.Context, delivery drowsiness.Delivery) {
	if d.results == nil {
		return
	}

	select {
	case d.results <- delivery:
	default:
		logger.WarnKV(ctx, "Delivery report dropped, results channel full")
	}
}
