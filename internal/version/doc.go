// Package version exposes build metadata of the drowsiness monitor.
//
// Version, Commit and BuildTime are injected through ldflags; the defaults are
// what a local `go build` reports.
package version
