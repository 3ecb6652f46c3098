package app

import (
	"math"
	"sync/atomic"

	"github.com/vk/dspgridgo/internal/patch"
	"github.com/vk/dspgridgo/internal/sched"
)

// kernelItersPerMicro is the approximate number of oscillator iterations that
// burn one microsecond of CPU. The simulated load only needs to be in the
// right ballpark.
const kernelItersPerMicro = 40

// kernelSink absorbs every kernel's output so the synthetic math cannot be
// optimized away.
var kernelSink atomic.Uint64

// synthKernel builds a job that renders a synthetic oscillator block sized to
// roughly the node's declared work_us of CPU time.
func synthKernel(def *patch.NodeDef) sched.Job {
	iterations := int(def.WorkMicros * kernelItersPerMicro)
	gain := def.Gain

	return func(threadIndex uint8) {
		phase := float64(threadIndex)
		acc := 0.0
		for i := 0; i != iterations; i++ {
			phase += 0.01
			acc += gain * math.Sin(phase)
		}
		kernelSink.Store(math.Float64bits(acc))
	}
}
