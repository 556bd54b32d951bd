package drowsiness

import "time"

// Label is the classifier verdict for a single frame.
type Label uint8

const (
	// LabelNormal means the subject looks alert.
	LabelNormal Label = iota
	// LabelDrowsy means the subject looks drowsy (classifier class 1).
	LabelDrowsy
)

// String implements fmt.Stringer.
func (l Label) String() string {
	if l == LabelDrowsy {
		return "drowsy"
	}

	return "normal"
}

// Sample is one classification result. Timestamps must come from a monotonic clock.
type Sample struct {
	// Timestamp is when the frame was classified.
	Timestamp time.Time
	// Label is the verdict for the frame.
	Label Label
}

// Drowsy reports whether the sample carries the drowsy label.
func (s Sample) Drowsy() bool {
	return s.Label == LabelDrowsy
}
