package sched

import (
	_ "unsafe" // for go:linkname
)

// runtime_procyield executes n CPU pause instructions without entering the Go
// scheduler, keeping a polling thread off the runqueue entirely. This is the
// primitive behind the pause back-off strategy and the calibrated lockup
// watchdog.
//
//go:linkname runtime_procyield runtime.procyield
func runtime_procyield(cycles uint32)
