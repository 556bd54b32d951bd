package drowsiness

import "time"

// Status is a point-in-time snapshot of the monitor published for health queries.
type Status struct {
	// State is the state machine position.
	State State
	// Level is the display severity.
	Level Level
	// EpisodeID is the open episode, zero when idle.
	EpisodeID uint64
	// EpisodeDuration is the drowsy time of the open episode.
	EpisodeDuration time.Duration
	// AlertFired mirrors the open episode flag.
	AlertFired bool
	// EscalationFired mirrors the open episode flag.
	EscalationFired bool
	// UpdatedAt is the timestamp of the sample that produced the snapshot.
	UpdatedAt time.Time
}

// ParseState is the inverse of State.String; unknown names map to StateIdle.
func ParseState(name string) State {
	for _, s := range []State{StateDrowsy, StateAlertActive, StateEscalated} {
		if s.String() == name {
			return s
		}
	}

	return StateIdle
}

// ParseLevel is the inverse of Level.String; unknown names map to LevelNormal.
func ParseLevel(name string) Level {
	for _, l := range []Level{LevelDrowsy, LevelWarning, LevelCritical} {
		if l.String() == name {
			return l
		}
	}

	return LevelNormal
}
