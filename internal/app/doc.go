// Package app wires the application together: it configures logging, loads
// the patch description, compiles it into a scheduler queue and drives the
// tick benchmark loop, reporting per-tick wall-time statistics at the end.
package app
