package drowsiness

import "time"

// EventKind selects how the dispatcher routes a notification event.
type EventKind uint8

const (
	// EventAlarm is emitted when the local alarm fires; it goes to the push notifier.
	EventAlarm EventKind = iota + 1
	// EventEscalation is emitted when the escalation fires; it goes to the messaging
	// notifier together with the resolved location.
	EventEscalation
	// EventResolved is emitted when an episode that fired the alarm ends; it goes to the journal.
	EventResolved
)

// String implements fmt.Stringer.
func (k EventKind) String() string {
	switch k {
	case EventAlarm:
		return "alarm"
	case EventEscalation:
		return "escalation"
	case EventResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// NotificationEvent is built by the state machine and consumed by the dispatcher.
type NotificationEvent struct {
	// Kind selects the route.
	Kind EventKind
	// EpisodeID is the episode that produced the event.
	EpisodeID uint64
	// Location is filled by the dispatcher for escalations.
	Location string
	// EpisodeDuration is how long the subject had been drowsy when the event was built.
	EpisodeDuration time.Duration
	// Record is set for EventResolved only.
	Record *EpisodeRecord
}

// Delivery reports the outcome of one dispatched event back to the state machine.
type Delivery struct {
	// EpisodeID is the episode of the delivered event.
	EpisodeID uint64
	// Kind is the kind of the delivered event.
	Kind EventKind
	// Err is nil when every notifier on the route accepted the message.
	Err error
}

// Actor identifies the machine and account the monitor runs under.
type Actor struct {
	// Hostname is the machine name.
	Hostname string
	// Username is the system user running the monitor.
	Username string
}

// String renders the actor as user@host.
func (a *Actor) String() string {
	if a == nil {
		return "<unknown>"
	}

	return a.Username + "@" + a.Hostname
}

// Clone returns a deep copy of the actor.
func (a *Actor) Clone() *Actor {
	if a == nil {
		return nil
	}

	cloned := *a

	return &cloned
}

// EpisodeRecord is the journal entry written when an alerting episode ends.
type EpisodeRecord struct {
	// EpisodeID is the episode sequence number within the run.
	EpisodeID uint64
	// StartTime is when the subject became drowsy.
	StartTime time.Time
	// EndTime is when the first normal sample arrived.
	EndTime time.Time
	// Duration is the drowsy time up to the last drowsy sample.
	Duration time.Duration
	// AlertFired tells whether the local alarm fired.
	AlertFired bool
	// EscalationFired tells whether the remote escalation fired.
	EscalationFired bool
	// Actor is the host/user the monitor runs on.
	Actor *Actor
}
