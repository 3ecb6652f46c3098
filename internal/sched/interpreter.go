package sched

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/petermattis/goid"

	"github.com/vk/dspgridgo/internal/ctxlog"
)

// MaxThreadCount is the upper bound on the configured worker-pool size,
// driver included.
const MaxThreadCount = 254

// itemState is the outcome of one runNextItem call.
type itemState int

const (
	noRemainingItems itemState = iota // this thread consumed the last node of the tick
	fifoEmpty                         // the runnable pool was empty
	remainingItems                    // nodes were run, more remain
)

// Interpreter schedules one DSP queue per tick across the driver thread and a
// pool of helper threads. It must be driven by exactly one InitTick/TickMain
// pair per tick on the driver; helpers cooperate through Tick. Ticks are
// serialized by the embedder.
type Interpreter struct {
	queue *Queue

	runnableItems nodeStack
	sem           *semaphore

	// nodeCount is the number of nodes still to process in the current tick.
	// It is zero between ticks.
	nodeCount atomic.Int32

	threadCount       uint8
	usedHelperThreads uint8
	strategy          Strategy

	watchdogIterations int

	logger *slog.Logger

	// driverGoroutine is the goroutine that last called InitTick; TickMain
	// verifies it when debug checks are enabled.
	driverGoroutine atomic.Int64
	debugChecks     bool
}

// NewInterpreter constructs a scheduler for the given worker-pool size and
// back-off strategy. The strategy is fixed for the interpreter's lifetime.
// Construction calibrates the lockup watchdog and is therefore not cheap; it
// must happen before playback starts, never on the audio thread.
func NewInterpreter(ctx context.Context, threadCount uint8, strategy Strategy) *Interpreter {
	logger := ctxlog.FromContext(ctx)

	in := &Interpreter{
		// Room for one post per pool slot plus termination posts for every
		// possible thread.
		sem:      newSemaphore(poolCapacity + MaxThreadCount),
		strategy: strategy,
		logger:   logger,
	}

	if !in.runnableItems.lockFree() {
		logger.Warn("Scheduler runnable pool is not lock-free on this platform.")
	}

	in.watchdogIterations = calibrateBackoff(defaultWatchdogTimeout)
	logger.Debug("Back-off calibration complete.", "watchdog_iterations", in.watchdogIterations)

	in.SetThreadCount(threadCount)
	return in
}

// SetDebugChecks toggles the goroutine-affinity assertion on TickMain.
func (in *Interpreter) SetDebugChecks(enabled bool) { in.debugChecks = enabled }

// SetThreadCount configures the worker-pool size, clamped to [1, MaxThreadCount].
// Takes effect for the next ResetQueue.
func (in *Interpreter) SetThreadCount(count uint8) {
	if count < 1 {
		count = 1
	}
	if count > MaxThreadCount {
		count = MaxThreadCount
	}
	in.threadCount = count
}

// ThreadCount reports the configured worker-pool size, driver included.
func (in *Interpreter) ThreadCount() uint8 { return in.threadCount }

// UsedHelperThreads reports how many helper threads participate in ticks of
// the currently installed queue.
func (in *Interpreter) UsedHelperThreads() uint8 { return in.usedHelperThreads }

// Strategy reports the back-off strategy fixed at construction.
func (in *Interpreter) Strategy() Strategy { return in.strategy }

// ResetQueue installs a new queue between ticks and returns the old one so
// the caller can destroy it off the audio thread. The new queue's activation
// counts are re-armed and the helper-thread budget is recomputed.
func (in *Interpreter) ResetQueue(newQueue *Queue) *Queue {
	old := in.queue
	in.queue = newQueue
	if in.queue == nil {
		in.usedHelperThreads = 0
		return old
	}

	in.queue.ResetActivationCounts()

	if in.queue.HasParallelism() && !in.queue.Empty() {
		threads := in.queue.TotalNodeCount()
		if threads > int(in.threadCount) {
			threads = int(in.threadCount)
		}
		in.usedHelperThreads = uint8(threads - 1) // the driver is one of the workers
	} else {
		in.usedHelperThreads = 0
	}
	return old
}

// ReleaseQueue hands the current queue back to the caller. The interpreter
// must be quiescent (between ticks); releasing across an in-flight tick is
// undefined.
func (in *Interpreter) ReleaseQueue() *Queue {
	old := in.queue
	in.queue = nil
	in.usedHelperThreads = 0
	return old
}

// InitTick prepares the interpreter for one tick: it stores the total node
// count, seeds the runnable pool with the initially-runnable nodes and, under
// the wait strategy, posts the semaphore once per seed so parked helpers wake.
//
// Returns false, with no state change, when no queue is installed or the
// queue is empty — a normal no-op tick, not an error.
func (in *Interpreter) InitTick() bool {
	if in.queue == nil || in.queue.Empty() {
		return false
	}

	if c := in.nodeCount.Load(); c != 0 {
		panic(fmt.Sprintf("sched: InitTick with %d nodes still outstanding", c))
	}
	if !in.runnableItems.empty() {
		panic("sched: InitTick with non-empty runnable pool")
	}

	in.driverGoroutine.Store(goid.Get())
	in.nodeCount.Store(int32(in.queue.TotalNodeCount()))

	for _, item := range in.queue.initiallyRunnable {
		in.markAsRunnable(item)
		if in.strategy == StrategyWait {
			in.sem.post()
		}
	}
	return true
}

// Tick is the helper-thread entry point; threadIndex identifies the helper in
// [1, UsedHelperThreads]. It returns when the current tick has fully drained.
func (in *Interpreter) Tick(threadIndex uint8) {
	switch in.strategy {
	case StrategyPause:
		runItem(in, newPauseBackoff(minBackoffLoops, maxBackoffLoops), threadIndex)
	case StrategyYield:
		runItem(in, yieldBackoff{}, threadIndex)
	case StrategyWait:
		runItem(in, &waitBackoff{sem: in.sem, spinCount: waitSpinCount}, threadIndex)
	}
}

// TickMain is the driver-thread entry point. It works through the graph as
// thread 0 and then drains: a helper may still be inside a node's job after
// the driver found the pool empty, so the driver polls the remaining-node
// counter before returning to the audio callback.
func (in *Interpreter) TickMain() {
	if in.debugChecks {
		if g := in.driverGoroutine.Load(); g != 0 && g != goid.Get() {
			panic("sched: TickMain called from a different goroutine than InitTick")
		}
	}

	switch in.strategy {
	case StrategyPause:
		runItem(in, newPauseBackoff(minBackoffLoops, maxBackoffLoops), 0)
		waitForEnd(in, newPauseBackoff(minBackoffLoops, maxBackoffLoops))
	case StrategyYield:
		runItem(in, yieldBackoff{}, 0)
		waitForEnd(in, yieldBackoff{})
	case StrategyWait:
		runItem(in, &waitBackoff{sem: in.sem, spinCount: waitSpinCount}, 0)
		waitForEnd(in, &waitBackoff{sem: in.sem, spinCount: waitSpinCount})
	}

	if !in.runnableItems.empty() {
		panic("sched: runnable pool not empty after tick")
	}
}

// runItem is the worker loop, monomorphized per back-off policy so the poll
// path pays no dispatch cost.
func runItem[B backoffPolicy](in *Interpreter, b B, index uint8) {
	strategy := in.strategy
	pollCounts := 0

	for {
		if in.nodeCount.Load() == 0 {
			return
		}

		switch in.runNextItem(index) {
		case noRemainingItems:
			if strategy == StrategyWait {
				// Release the siblings from their final waits.
				for i := uint8(0); i != in.usedHelperThreads; i++ {
					in.sem.post()
				}
			}
			return
		case fifoEmpty:
			b.run()
			pollCounts++
		case remainingItems:
			b.reset()
			pollCounts = 0
		}

		if strategy == StrategyPause && pollCounts == in.watchdogIterations {
			if index == 0 {
				in.logger.Error("Possible lockup detected in main audio thread.")
				os.Exit(1)
			}
			in.logger.Error("Possible lockup detected in dsp helper thread.", "thread_index", index)
			return
		}
	}
}

// waitForEnd busy-waits for the remaining-node counter to hit zero after the
// driver's own work is done. Under the pause strategy it warns, without
// aborting, after twice the watchdog bound.
func waitForEnd[B backoffPolicy](in *Interpreter, b B) {
	iterations := in.watchdogIterations * 2
	count := 0
	for in.nodeCount.Load() != 0 {
		b.run()
		count++
		if in.strategy == StrategyPause && count == iterations {
			in.logger.Warn("Possible lockup detected while draining tick.")
		}
	}
}

// runNextItem pops one node and follows its chain: each completed node hands
// the thread its first newly-ready successor directly, so the chain touches
// the pool only for the surplus successors. The remaining-node counter is
// decremented once for the whole chain.
func (in *Interpreter) runNextItem(index uint8) itemState {
	item := in.runnableItems.pop()
	if item == nil {
		return fifoEmpty
	}

	var consumed int32
	for item != nil {
		var pushed int32
		item, pushed = item.run(in, index)
		consumed++
		if in.strategy == StrategyWait {
			for i := int32(0); i != pushed; i++ {
				in.sem.post()
			}
		}
	}

	remaining := in.nodeCount.Add(-consumed)
	if remaining < 0 {
		panic("sched: node count underflow")
	}
	if remaining == 0 {
		return noRemainingItems
	}
	return remainingItems
}

// markAsRunnable hands a ready node to the pool.
func (in *Interpreter) markAsRunnable(item *Node) {
	in.runnableItems.push(item)
}
