// Package logger wraps zap for the drowsiness monitor:
//   - a global sugared logger with a console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing and runtime level changes,
//   - leveled helpers (Infof, WarnKV, ErrorKV, ...).
//
// Services accept a context and pull the logger out of it, so a component name
// set once at the top of a run follows every message that run produces.
package logger
