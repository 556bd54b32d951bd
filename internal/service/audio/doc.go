// Package audio implements the alarm sinks: the capability to produce one
// audible (or at least visible) pulse.
//
// Three variants exist: a tone generator driven directly through the OS, an
// external player process, and the terminal bell. Select probes the platform
// once at startup and returns the variant to use for the whole run.
package audio
