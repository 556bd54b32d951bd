package monitor

import (
	"context"
	"time"

	"github.com/oshokin/drowsiness-monitor/internal/domain/drowsiness"
	"github.com/oshokin/drowsiness-monitor/internal/logger"
)

// Alarm is the local alarm the machine starts and stops.
type Alarm interface {
	// Start begins pulsing; it must return promptly and be idempotent.
	Start(ctx context.Context) bool
	// Stop silences the alarm and returns only once no further pulse can occur.
	Stop()
	// IsRunning reports whether the alarm is pulsing.
	IsRunning() bool
}

// Dispatcher accepts notification events without blocking.
type Dispatcher interface {
	Dispatch(ctx context.Context, event drowsiness.NotificationEvent) bool
}

// Machine is the drowsiness state machine. It is not safe for concurrent use:
// only the primary loop may call its methods.
type Machine struct {
	// thresholds are the alarm and escalation durations.
	thresholds drowsiness.Thresholds
	// alarm is the local alarm.
	alarm Alarm
	// dispatcher delivers notification events.
	dispatcher Dispatcher

	// deliveries carries send outcomes back from the dispatcher.
	deliveries <-chan drowsiness.Delivery
	// retryFailed resends a failed alarm push or escalation of the open episode.
	retryFailed bool
	// resendAlarm and resendEscalation mark failed sends waiting for the next drowsy sample.
	// The episode flags stay set: they record that the side effect fired.
	resendAlarm, resendEscalation bool

	// state is the current machine position.
	state drowsiness.State
	// episode is the open episode, nil while idle.
	episode *drowsiness.Episode
	// lastEpisodeID numbers episodes.
	lastEpisodeID uint64
	// lastSample is the timestamp of the latest ingested sample.
	lastSample drowsiness.Sample
}

// Option configures the machine.
type Option func(*Machine)

// WithDeliveries lets the machine read send outcomes reported by the dispatcher.
func WithDeliveries(deliveries <-chan drowsiness.Delivery) Option {
	return func(m *Machine) {
		m.deliveries = deliveries
	}
}

// WithRetryFailed makes a failed alarm push or escalation fire again on the next
// drowsy sample of the same episode. Without it failures are only logged.
func WithRetryFailed(retry bool) Option {
	return func(m *Machine) {
		m.retryFailed = retry
	}
}

// NewMachine creates an idle machine.
func NewMachine(thresholds drowsiness.Thresholds, alarm Alarm, dispatcher Dispatcher, opts ...Option) *Machine {
	m := &Machine{
		thresholds: thresholds,
		alarm:      alarm,
		dispatcher: dispatcher,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// State returns the current position.
func (m *Machine) State() drowsiness.State {
	return m.state
}

// Episode returns a copy of the open episode, nil while idle.
func (m *Machine) Episode() *drowsiness.Episode {
	return m.episode.Clone()
}

// Level grades the open episode at now for display.
// Display thresholds are strict: a run exactly at a threshold still shows the lower level.
func (m *Machine) Level(now time.Time) drowsiness.Level {
	if m.episode == nil {
		return drowsiness.LevelNormal
	}

	elapsed := now.Sub(m.episode.StartTime)

	switch {
	case elapsed > m.thresholds.Call:
		return drowsiness.LevelCritical
	case elapsed > m.thresholds.Alert:
		return drowsiness.LevelWarning
	default:
		return drowsiness.LevelDrowsy
	}
}

// Status snapshots the machine as of the latest sample.
func (m *Machine) Status() drowsiness.Status {
	status := drowsiness.Status{
		State:     m.state,
		Level:     m.Level(m.lastSample.Timestamp),
		UpdatedAt: m.lastSample.Timestamp,
	}

	if m.episode != nil {
		status.EpisodeID = m.episode.ID
		status.EpisodeDuration = m.episode.Duration()
		status.AlertFired = m.episode.AlertFired
		status.EscalationFired = m.episode.EscalationFired
	}

	return status
}

// Ingest applies one sample and returns the resulting state.
// Side effects are started or queued, never awaited, except stopping the alarm,
// which completes before Ingest returns.
func (m *Machine) Ingest(ctx context.Context, sample drowsiness.Sample) drowsiness.State {
	m.drainDeliveries(ctx)

	m.lastSample = sample

	if !sample.Drowsy() {
		m.endEpisode(ctx, sample.Timestamp)

		return m.state
	}

	if m.episode == nil {
		m.lastEpisodeID++
		m.episode = &drowsiness.Episode{
			ID:           m.lastEpisodeID,
			StartTime:    sample.Timestamp,
			LastSeenTime: sample.Timestamp,
		}
		m.state = drowsiness.StateDrowsy

		logger.DebugKV(ctx, "Drowsy episode started", "episode", m.episode.ID)
	}

	if sample.Timestamp.After(m.episode.LastSeenTime) {
		m.episode.LastSeenTime = sample.Timestamp
	}

	duration := m.episode.Duration()

	// Both checks run on every sample, alarm first. With an inverted
	// configuration the escalation can fire before, or on the same sample as, the alarm.
	if !m.episode.AlertFired && duration >= m.thresholds.Alert {
		m.fireAlarm(ctx, duration)
	}

	if !m.episode.EscalationFired && duration >= m.thresholds.Call {
		m.fireEscalation(ctx, duration)
	}

	m.resend(ctx, duration)

	return m.state
}

// Reset closes the open episode as if a normal sample arrived at its last drowsy timestamp.
func (m *Machine) Reset(ctx context.Context) {
	m.drainDeliveries(ctx)

	if m.episode == nil {
		m.stopAlarm()

		return
	}

	m.endEpisode(ctx, m.episode.LastSeenTime)
}

// fireAlarm starts the local alarm and queues the push.
func (m *Machine) fireAlarm(ctx context.Context, duration time.Duration) {
	m.episode.AlertFired = true

	if m.state != drowsiness.StateEscalated {
		m.state = drowsiness.StateAlertActive
	}

	m.alarm.Start(ctx)

	logger.WarnKV(ctx, "Drowsiness alarm triggered",
		"episode", m.episode.ID, "duration", duration)

	m.notify(ctx, drowsiness.EventAlarm, duration)
}

// fireEscalation queues the remote escalation.
func (m *Machine) fireEscalation(ctx context.Context, duration time.Duration) {
	m.episode.EscalationFired = true
	m.state = drowsiness.StateEscalated

	logger.WarnKV(ctx, "Drowsiness escalation triggered",
		"episode", m.episode.ID, "duration", duration, "alarm_fired", m.episode.AlertFired)

	m.notify(ctx, drowsiness.EventEscalation, duration)
}

// resend queues the notifications whose previous send failed.
func (m *Machine) resend(ctx context.Context, duration time.Duration) {
	if m.resendAlarm {
		m.resendAlarm = false

		logger.InfoKV(ctx, "Resending alarm push", "episode", m.episode.ID, "duration", duration)
		m.notify(ctx, drowsiness.EventAlarm, duration)
	}

	if m.resendEscalation {
		m.resendEscalation = false

		logger.InfoKV(ctx, "Resending escalation", "episode", m.episode.ID, "duration", duration)
		m.notify(ctx, drowsiness.EventEscalation, duration)
	}
}

// notify queues an event of the open episode.
func (m *Machine) notify(ctx context.Context, kind drowsiness.EventKind, duration time.Duration) {
	m.dispatcher.Dispatch(ctx, drowsiness.NotificationEvent{
		Kind:            kind,
		EpisodeID:       m.episode.ID,
		EpisodeDuration: duration,
	})
}

// endEpisode silences the alarm, journals an alerting episode and returns to idle.
func (m *Machine) endEpisode(ctx context.Context, end time.Time) {
	m.stopAlarm()

	episode := m.episode
	m.episode = nil
	m.state = drowsiness.StateIdle
	m.resendAlarm, m.resendEscalation = false, false

	if episode == nil {
		return
	}

	logger.DebugKV(ctx, "Drowsy episode ended",
		"episode", episode.ID, "duration", episode.Duration())

	if !episode.AlertFired && !episode.EscalationFired {
		return
	}

	m.dispatcher.Dispatch(ctx, drowsiness.NotificationEvent{
		Kind:            drowsiness.EventResolved,
		EpisodeID:       episode.ID,
		EpisodeDuration: episode.Duration(),
		Record: &drowsiness.EpisodeRecord{
			EpisodeID:       episode.ID,
			StartTime:       episode.StartTime,
			EndTime:         end,
			Duration:        episode.Duration(),
			AlertFired:      episode.AlertFired,
			EscalationFired: episode.EscalationFired,
		},
	})
}

// stopAlarm blocks until the alarm is silent.
func (m *Machine) stopAlarm() {
	if m.alarm.IsRunning() {
		m.alarm.Stop()
	}
}

// drainDeliveries consumes pending send outcomes without blocking.
func (m *Machine) drainDeliveries(ctx context.Context) {
	if m.deliveries == nil {
		return
	}

	for {
		select {
		case delivery, ok := <-m.deliveries:
			if !ok {
				m.deliveries = nil

				return
			}

			m.applyDelivery(ctx, delivery)
		default:
			return
		}
	}
}

// applyDelivery schedules a resend for a failed send of the open episode when retries are enabled.
func (m *Machine) applyDelivery(ctx context.Context, delivery drowsiness.Delivery) {
	if delivery.Err == nil || !m.retryFailed {
		return
	}

	if m.episode == nil || m.episode.ID != delivery.EpisodeID {
		logger.DebugKV(ctx, "Failed notification belongs to a closed episode, not retrying",
			"episode", delivery.EpisodeID, "kind", delivery.Kind.String())

		return
	}

	switch delivery.Kind {
	case drowsiness.EventAlarm:
		m.resendAlarm = true
	case drowsiness.EventEscalation:
		m.resendEscalation = true
	default:
		return
	}

	logger.InfoKV(ctx, "Notification will be retried on the next drowsy sample",
		"episode", delivery.EpisodeID, "kind", delivery.Kind.String())
}
