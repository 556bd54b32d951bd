// Package alarm runs the local alarm: a background worker that keeps pulsing an
// audio sink until it is told to stop.
//
// Start is idempotent and never blocks on audio; Stop joins the worker, so once
// it returns no further pulse can be produced.
package alarm
