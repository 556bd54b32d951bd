// Package config defines the monitor settings and helpers to load, validate and
// save them as YAML.
//
// LoadOrCreate is what the process uses at startup: a missing file is written
// with defaults, and a broken file is reported and replaced by defaults in
// memory so a configuration problem never stops the monitor. Notifier secrets
// can also come from a .env file or the environment (see ApplyEnv).
package config
