package sched

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/dspgridgo/internal/ctxlog"
)

func testContext() context.Context {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return ctxlog.WithLogger(context.Background(), logger)
}

func TestNewInterpreter(t *testing.T) {
	in := NewInterpreter(testContext(), 4, StrategyWait)

	assert.Equal(t, uint8(4), in.ThreadCount())
	assert.Equal(t, StrategyWait, in.Strategy())
	assert.Positive(t, in.watchdogIterations)
	assert.Zero(t, in.UsedHelperThreads())
}

func TestSetThreadCountClamps(t *testing.T) {
	in := newTestInterpreter(4, StrategyPause)

	in.SetThreadCount(0)
	assert.Equal(t, uint8(1), in.ThreadCount())

	in.SetThreadCount(255)
	assert.Equal(t, uint8(MaxThreadCount), in.ThreadCount())
}

func TestInitTickWithoutQueue(t *testing.T) {
	in := newTestInterpreter(2, StrategyPause)
	assert.False(t, in.InitTick())

	in.ResetQueue(NewQueue(4, true))
	assert.False(t, in.InitTick(), "empty queue is a no-op tick")
}

func TestTickMainWithoutInitIsNoOp(t *testing.T) {
	in := newTestInterpreter(1, StrategyPause)
	in.TickMain() // node_count == 0, returns immediately
}

func TestResetQueueComputesHelperThreads(t *testing.T) {
	rec := &recorder{}

	t.Run("no parallelism", func(t *testing.T) {
		in := newTestInterpreter(8, StrategyPause)
		in.ResetQueue(buildDiamond(rec, false))
		assert.Zero(t, in.UsedHelperThreads())
	})

	t.Run("clamped by node count", func(t *testing.T) {
		in := newTestInterpreter(8, StrategyPause)
		in.ResetQueue(buildDiamond(rec, true))
		assert.Equal(t, uint8(3), in.UsedHelperThreads(), "min(4 nodes, 8 threads) - 1")
	})

	t.Run("clamped by thread count", func(t *testing.T) {
		in := newTestInterpreter(2, StrategyPause)
		in.ResetQueue(buildDiamond(rec, true))
		assert.Equal(t, uint8(1), in.UsedHelperThreads())
	})

	t.Run("single node graph uses no helpers", func(t *testing.T) {
		in := newTestInterpreter(8, StrategyPause)
		q := NewQueue(1, true)
		q.AddInitiallyRunnable(q.AllocateNode(rec.job("only"), nil, 0))
		in.ResetQueue(q)
		assert.Zero(t, in.UsedHelperThreads())
	})
}

func TestResetQueueRestoresActivationCounts(t *testing.T) {
	rec := &recorder{}
	in := newTestInterpreter(1, StrategyPause)
	q := buildDiamond(rec, false)

	in.ResetQueue(q)
	require.True(t, in.InitTick())
	in.TickMain()

	// Run drained the graph; install again and verify all counts are back at
	// their limits.
	in.ResetQueue(in.ReleaseQueue())
	limits := []int32{0, 1, 1, 2}
	for i := range q.items {
		assert.Equal(t, limits[i], q.items[i].activationCount.Load())
	}
}

func TestResetAndReleaseQueueRoundTrip(t *testing.T) {
	rec := &recorder{}
	in := newTestInterpreter(2, StrategyPause)
	q1 := buildDiamond(rec, true)
	q2 := buildDiamond(rec, true)

	assert.Nil(t, in.ResetQueue(q1))
	assert.Same(t, q1, in.ResetQueue(q2), "previous queue is handed back")
	assert.Same(t, q2, in.ReleaseQueue())
	assert.Nil(t, in.ReleaseQueue())
	assert.False(t, in.InitTick())
}

// S1: the diamond runs each job once, sources before sinks, on a single
// driver thread.
func TestDiamondDriverOnly(t *testing.T) {
	rec := &recorder{}
	in := newTestInterpreter(1, StrategyPause)
	in.ResetQueue(buildDiamond(rec, false))

	require.True(t, in.InitTick())
	in.TickMain()

	counts := rec.counts()
	assert.Equal(t, map[string]int{"A": 1, "B": 1, "C": 1, "D": 1}, counts)

	posA, posB, posC, posD := rec.position("A"), rec.position("B"), rec.position("C"), rec.position("D")
	assert.Less(t, posA, posB)
	assert.Less(t, posA, posC)
	assert.Less(t, posB, posD)
	assert.Less(t, posC, posD)

	assert.Zero(t, in.nodeCount.Load())
	assert.True(t, in.runnableItems.empty())
}

// Consecutive ticks are idempotent: N ticks yield exactly N invocations per
// node and leave the interpreter idle in between.
func TestRepeatedTicks(t *testing.T) {
	rec := &recorder{}
	in := newTestInterpreter(1, StrategyYield)
	in.ResetQueue(buildDiamond(rec, false))

	const ticks = 10
	for i := 0; i != ticks; i++ {
		require.True(t, in.InitTick())
		in.TickMain()
		assert.Zero(t, in.nodeCount.Load())
		assert.True(t, in.runnableItems.empty())
	}

	for node, count := range rec.counts() {
		assert.Equal(t, ticks, count, "node %s", node)
	}
}

// S2: wide fan-out on the driver alone. The source runs first, its first
// child is stolen, and the remaining children drain from the pool in LIFO
// order.
func TestWideFanOutDriverOnly(t *testing.T) {
	const children = 1000

	rec := &recorder{}
	in := newTestInterpreter(4, StrategyPause)

	q := NewQueue(children+1, false)
	succ := make(SuccessorList, children)
	source := q.AllocateNode(rec.job("src"), succ, 0)
	for i := 0; i != children; i++ {
		succ[i] = q.AllocateNode(rec.job(fmt.Sprintf("c%d", i)), nil, 1)
	}
	q.AddInitiallyRunnable(source)

	in.ResetQueue(q)
	assert.Zero(t, in.UsedHelperThreads())

	require.True(t, in.InitTick())
	in.TickMain()

	trace := rec.trace()
	require.Len(t, trace, children+1)

	expected := []string{"src", "c0"}
	for i := children - 1; i >= 1; i-- {
		expected = append(expected, fmt.Sprintf("c%d", i))
	}
	for i, e := range trace {
		assert.Equal(t, expected[i], e.nodeID, "position %d", i)
		assert.Zero(t, e.threadIndex, "everything runs on the driver")
	}
}

// A linear chain follows the steal-one path end to end: topological order on
// one thread, no pool traffic after the seed.
func TestLinearChain(t *testing.T) {
	ids := make([]string, 64)
	for i := range ids {
		ids[i] = fmt.Sprintf("n%02d", i)
	}

	for _, strategy := range []Strategy{StrategyPause, StrategyYield, StrategyWait} {
		t.Run(strategy.String(), func(t *testing.T) {
			rec := &recorder{}
			in := newTestInterpreter(4, strategy)
			in.ResetQueue(buildChain(rec, ids))

			require.True(t, in.InitTick())
			in.TickMain()

			trace := rec.trace()
			require.Len(t, trace, len(ids))
			for i, e := range trace {
				assert.Equal(t, ids[i], e.nodeID)
			}
		})
	}
}

func TestDebugChecksCatchDriverMigration(t *testing.T) {
	rec := &recorder{}
	in := newTestInterpreter(1, StrategyPause)
	in.SetDebugChecks(true)
	in.ResetQueue(buildDiamond(rec, false))

	require.True(t, in.InitTick())

	panicked := make(chan any, 1)
	go func() {
		defer func() { panicked <- recover() }()
		in.TickMain()
	}()

	select {
	case r := <-panicked:
		require.NotNil(t, r, "TickMain on a foreign goroutine must panic")
	case <-time.After(time.Second):
		t.Fatal("TickMain did not return")
	}

	// Drain the seeded tick on the goroutine that called InitTick.
	in.TickMain()
	assert.Zero(t, in.nodeCount.Load())
}

// S6: the watchdog guards the pool-polling loop, not job execution. A slow
// job on a driver-only graph must not trip it even with a tiny bound.
func TestSlowJobIsNotMistakenForLockup(t *testing.T) {
	ran := false
	in := newTestInterpreter(1, StrategyPause)
	in.watchdogIterations = 2

	q := NewQueue(1, false)
	q.AddInitiallyRunnable(q.AllocateNode(func(uint8) {
		time.Sleep(30 * time.Millisecond)
		ran = true
	}, nil, 0))
	in.ResetQueue(q)

	require.True(t, in.InitTick())
	in.TickMain()

	assert.True(t, ran)
	assert.Zero(t, in.nodeCount.Load())
}

// A helper that exhausts the watchdog exits its loop instead of aborting the
// process; the driver then finishes the work.
func TestHelperWatchdogExitsHelper(t *testing.T) {
	rec := &recorder{}
	in := newTestInterpreter(2, StrategyPause)
	in.watchdogIterations = 4

	// Helper starts before any node is runnable: it polls an empty pool
	// until the watchdog bound and returns.
	done := make(chan struct{})
	in.nodeCount.Store(1) // keep the helper polling
	go func() {
		in.Tick(1)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("helper did not exit after watchdog bound")
	}

	in.nodeCount.Store(0)
	in.ResetQueue(buildDiamond(rec, false))
	require.True(t, in.InitTick())
	in.TickMain()
	assert.Equal(t, map[string]int{"A": 1, "B": 1, "C": 1, "D": 1}, rec.counts())
}
