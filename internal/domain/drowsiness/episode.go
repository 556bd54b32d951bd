package drowsiness

import "time"

// State is the position of the alert state machine.
type State uint8

const (
	// StateIdle means no episode is open.
	StateIdle State = iota
	// StateDrowsy means an episode is accumulating below the alert threshold.
	StateDrowsy
	// StateAlertActive means the local alarm has fired for the open episode.
	StateAlertActive
	// StateEscalated means the remote escalation has fired for the open episode.
	StateEscalated
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateDrowsy:
		return "drowsy"
	case StateAlertActive:
		return "alert_active"
	case StateEscalated:
		return "escalated"
	default:
		return "idle"
	}
}

// Level is the display severity of the current classification.
type Level uint8

const (
	// LevelNormal is shown while the subject is alert.
	LevelNormal Level = iota
	// LevelDrowsy is shown for a drowsy run shorter than the alert threshold.
	LevelDrowsy
	// LevelWarning is shown once the run exceeds the alert threshold.
	LevelWarning
	// LevelCritical is shown once the run exceeds the call threshold.
	LevelCritical
)

// String implements fmt.Stringer.
func (l Level) String() string {
	switch l {
	case LevelDrowsy:
		return "drowsy"
	case LevelWarning:
		return "warning"
	case LevelCritical:
		return "critical"
	default:
		return "normal"
	}
}

// Thresholds are the episode durations that trigger the alarm and the escalation.
// CallThreshold is expected, but not required, to be at least AlertThreshold.
type Thresholds struct {
	// Alert is the minimum episode duration before the local alarm fires.
	Alert time.Duration
	// Call is the minimum episode duration before the remote escalation fires.
	Call time.Duration
}

// Inverted reports whether the escalation can fire before the alarm.
func (t Thresholds) Inverted() bool {
	return t.Call < t.Alert
}

// Episode is the record of a contiguous run of drowsy samples.
// It is owned by the state machine and must only be touched by the primary loop.
type Episode struct {
	// ID numbers episodes from 1 within a process run.
	ID uint64
	// StartTime is the timestamp of the first drowsy sample of the run.
	StartTime time.Time
	// LastSeenTime is the timestamp of the latest drowsy sample of the run.
	LastSeenTime time.Time
	// AlertFired is set once the local alarm has been triggered.
	AlertFired bool
	// EscalationFired is set once the remote escalation has been triggered.
	EscalationFired bool
}

// Duration is how long the subject has been continuously drowsy.
func (e *Episode) Duration() time.Duration {
	if e == nil {
		return 0
	}

	return e.LastSeenTime.Sub(e.StartTime)
}

// Clone returns a copy of the episode so callers cannot mutate the machine's record.
func (e *Episode) Clone() *Episode {
	if e == nil {
		return nil
	}

	cloned := *e

	return &cloned
}
