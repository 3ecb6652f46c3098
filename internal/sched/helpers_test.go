package sched

import (
	"io"
	"log/slog"
	"sync"
)

// newTestInterpreter builds an interpreter without paying for watchdog
// calibration on every test. The watchdog bound is set high enough that only
// tests which lower it explicitly ever reach it.
func newTestInterpreter(threadCount uint8, strategy Strategy) *Interpreter {
	in := &Interpreter{
		sem:                newSemaphore(poolCapacity + MaxThreadCount),
		strategy:           strategy,
		logger:             slog.New(slog.NewTextHandler(io.Discard, nil)),
		watchdogIterations: 1 << 30,
	}
	in.SetThreadCount(threadCount)
	return in
}

// recorder captures job invocations in execution order. The lock order of
// append respects the scheduler's happens-before edges, so trace positions
// are valid evidence for ordering assertions.
type recorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	threadIndex uint8
	nodeID      string
}

func (r *recorder) job(id string) Job {
	return func(threadIndex uint8) {
		r.mu.Lock()
		r.events = append(r.events, recordedEvent{threadIndex: threadIndex, nodeID: id})
		r.mu.Unlock()
	}
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

func (r *recorder) trace() []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]recordedEvent, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorder) counts() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int)
	for _, e := range r.events {
		counts[e.nodeID]++
	}
	return counts
}

func (r *recorder) position(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.events {
		if e.nodeID == id {
			return i
		}
	}
	return -1
}

// buildDiamond constructs the four-node diamond A→{B,C}→D.
func buildDiamond(rec *recorder, hasParallelism bool) *Queue {
	q := NewQueue(4, hasParallelism)

	succA := make(SuccessorList, 2)
	succB := make(SuccessorList, 1)
	succC := make(SuccessorList, 1)

	a := q.AllocateNode(rec.job("A"), succA, 0)
	b := q.AllocateNode(rec.job("B"), succB, 1)
	c := q.AllocateNode(rec.job("C"), succC, 1)
	d := q.AllocateNode(rec.job("D"), nil, 2)

	succA[0], succA[1] = b, c
	succB[0] = d
	succC[0] = d

	q.AddInitiallyRunnable(a)
	return q
}

// buildChain constructs a linear chain of length k.
func buildChain(rec *recorder, ids []string) *Queue {
	q := NewQueue(len(ids), false)

	nodes := make([]*Node, len(ids))
	succs := make([]SuccessorList, len(ids))
	for i := range ids {
		if i < len(ids)-1 {
			succs[i] = make(SuccessorList, 1)
		}
		limit := uint16(1)
		if i == 0 {
			limit = 0
		}
		nodes[i] = q.AllocateNode(rec.job(ids[i]), succs[i], limit)
	}
	for i := 0; i < len(ids)-1; i++ {
		succs[i][0] = nodes[i+1]
	}

	q.AddInitiallyRunnable(nodes[0])
	return q
}
