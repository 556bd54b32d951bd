// Package monitor turns classification samples into alarm and notification side effects.
//
// Machine is the drowsiness state machine. It is driven by a single primary
// loop (Run) and owns the open episode exclusively; the alarm controller and
// the dispatcher only receive commands from it. Run wires the frame source,
// the classifier, the machine and the side-effect services together.
package monitor
