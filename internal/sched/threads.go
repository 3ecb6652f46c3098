package sched

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// ThreadGroup owns the long-lived helper threads of an interpreter and
// serializes ticks for it. Helpers park on per-thread semaphores between
// ticks; RunTick wakes exactly the helpers the current queue uses, runs the
// driver's share on the calling goroutine and joins the helpers before
// returning, so consecutive ticks never overlap.
type ThreadGroup struct {
	in *Interpreter

	wake    []*semaphore
	helpers errgroup.Group

	stopping atomic.Bool
	tickDone sync.WaitGroup
	started  bool
}

// NewThreadGroup prepares helper bookkeeping for every thread the
// interpreter's configured pool size allows. Call Start before the first
// RunTick.
func NewThreadGroup(in *Interpreter) *ThreadGroup {
	helperCount := int(in.ThreadCount()) - 1
	wake := make([]*semaphore, helperCount)
	for i := range wake {
		wake[i] = newSemaphore(1)
	}
	return &ThreadGroup{in: in, wake: wake}
}

// Start launches the helper goroutines. They live until Stop.
func (g *ThreadGroup) Start() {
	if g.started {
		panic("sched: ThreadGroup started twice")
	}
	g.started = true

	for i := range g.wake {
		index := uint8(i + 1)
		sem := g.wake[i]
		g.helpers.Go(func() error {
			for {
				sem.wait()
				if g.stopping.Load() {
					return nil
				}
				g.in.Tick(index)
				g.tickDone.Done()
			}
		})
	}
}

// RunTick executes one full tick: seed, wake the used helpers, run the driver
// loop, join. Returns false for a no-op tick (no queue or empty queue).
func (g *ThreadGroup) RunTick() bool {
	if !g.in.InitTick() {
		return false
	}

	used := int(g.in.UsedHelperThreads())
	if used > len(g.wake) {
		panic("sched: interpreter uses more helper threads than the group owns")
	}
	g.tickDone.Add(used)
	for i := 0; i != used; i++ {
		g.wake[i].post()
	}

	g.in.TickMain()
	g.tickDone.Wait()
	return true
}

// Stop wakes every helper with the stop flag set and joins them. The
// interpreter is quiescent once Stop returns; only then may the embedder
// release the queue and tear the interpreter down.
func (g *ThreadGroup) Stop() {
	if g.stopping.Swap(true) {
		return
	}
	for _, sem := range g.wake {
		sem.post()
	}
	_ = g.helpers.Wait()
}
