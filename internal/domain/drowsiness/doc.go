// Package drowsiness contains the core domain types of the monitor.
//
// It defines classification samples, the drowsy episode record, the states and
// display levels of the alert state machine, and the notification events the
// machine hands to the dispatcher. Nothing here performs I/O.
package drowsiness
