package sched

import "fmt"

// Queue is the immutable-per-tick container of DSP nodes produced by the
// patch builder. It owns the node arena, records the initially-runnable nodes
// and carries the builder's verdict on whether the graph has exploitable
// parallelism.
//
// Construction is single-threaded and fully precedes the first tick; the
// queue is never mutated while installed on a ticking interpreter.
type Queue struct {
	initiallyRunnable []*Node
	hasParallelism    bool

	// items is the node arena. Its capacity is fixed at construction so that
	// node pointers handed out by AllocateNode stay valid for the lifetime of
	// the queue.
	items []Node
}

// NewQueue preallocates an arena for capacity nodes.
func NewQueue(capacity int, hasParallelism bool) *Queue {
	return &Queue{
		initiallyRunnable: make([]*Node, 0, capacity),
		hasParallelism:    hasParallelism,
		items:             make([]Node, 0, capacity),
	}
}

// AllocateNode constructs a node in place inside the arena and returns it.
// Allocating beyond the queue's capacity is a programmer error.
func (q *Queue) AllocateNode(job Job, successors SuccessorList, activationLimit uint16) *Node {
	if len(q.items) == cap(q.items) {
		panic(fmt.Sprintf("sched: queue node arena exhausted (capacity %d)", cap(q.items)))
	}

	q.items = append(q.items, Node{
		job:             job,
		successors:      successors,
		activationLimit: int32(activationLimit),
	})
	return &q.items[len(q.items)-1]
}

// AddInitiallyRunnable records a node with no predecessors. These nodes seed
// the runnable pool at the start of every tick.
func (q *Queue) AddInitiallyRunnable(n *Node) {
	q.initiallyRunnable = append(q.initiallyRunnable, n)
}

// ResetActivationCounts stores every node's activation limit into its
// activation count. Called when the queue is installed on an interpreter.
func (q *Queue) ResetActivationCounts() {
	for i := range q.items {
		q.items[i].resetActivationCount()
	}
}

// TotalNodeCount reports the number of allocated nodes.
func (q *Queue) TotalNodeCount() int { return len(q.items) }

// Empty reports whether no nodes have been allocated.
func (q *Queue) Empty() bool { return len(q.items) == 0 }

// HasParallelism reports whether the builder found independent nodes worth
// distributing across helper threads.
func (q *Queue) HasParallelism() bool { return q.hasParallelism }
