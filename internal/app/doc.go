// Package app wires the experiment framework into a runnable application:
// configuration, logger construction, experiment registration, and the
// top-level operations the CLI exposes (run, map, hash, runs).
package app
