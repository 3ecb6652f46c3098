package testutil

import (
	"sync"

	"github.com/vk/dspgridgo/internal/sched"
)

// TraceEvent is one recorded job invocation.
type TraceEvent struct {
	ThreadIndex uint8
	NodeID      string
}

// Recorder captures the order, thread placement and multiplicity of job
// invocations across ticks. Safe for concurrent use by scheduler threads.
type Recorder struct {
	mu     sync.Mutex
	events []TraceEvent
}

// Job returns a sched.Job that records its invocations under the given id.
func (r *Recorder) Job(id string) sched.Job {
	return func(threadIndex uint8) {
		r.mu.Lock()
		r.events = append(r.events, TraceEvent{ThreadIndex: threadIndex, NodeID: id})
		r.mu.Unlock()
	}
}

// Events returns a copy of the recorded trace in execution order.
func (r *Recorder) Events() []TraceEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TraceEvent, len(r.events))
	copy(out, r.events)
	return out
}

// Reset clears the trace.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// CountByNode returns how many times each node's job ran.
func (r *Recorder) CountByNode() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int)
	for _, e := range r.events {
		counts[e.NodeID]++
	}
	return counts
}

// Position returns the index of the first invocation of the given node, or
// -1 if it never ran.
func (r *Recorder) Position(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.events {
		if e.NodeID == id {
			return i
		}
	}
	return -1
}
