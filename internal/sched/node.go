package sched

import (
	"fmt"
	"sync/atomic"
)

// MaxActivationLimit is the largest supported predecessor count for a single
// node.
const MaxActivationLimit = 65535

// Job is the DSP computation attached to a node. It receives the index of the
// thread it runs on: 0 is the driver (audio) thread, 1..N are helper threads.
type Job func(threadIndex uint8)

// SuccessorList is an ordered sequence of node references. Lists are carved
// out of a single backing array owned by the builder, so graph fragments share
// storage instead of fragmenting the heap with per-node allocations. An empty
// list marks a terminal node.
type SuccessorList []*Node

// Node is a single vertex of the DSP graph. The job, successor list and
// activation limit are immutable once the queue is built; only the activation
// count mutates during a tick.
type Node struct {
	// activationCount is initialized to activationLimit before every tick and
	// decremented once by each completing predecessor. The node becomes
	// runnable when it reaches zero, which happens exactly once per tick on
	// exactly one thread.
	activationCount atomic.Int32

	// poolNext is the intrusive link used while the node sits in the runnable
	// pool. A node is pushed at most once per tick, so the link is free for
	// reuse every period.
	poolNext atomic.Pointer[Node]

	job             Job
	successors      SuccessorList
	activationLimit int32
}

// run executes the node's job on the given thread, marks newly-ready
// successors as runnable and re-arms the node for the next tick.
//
// The first successor whose activation count drops to zero is returned instead
// of being pushed, so the calling thread can execute it directly; pushed is
// the number of further successors handed to the runnable pool.
func (n *Node) run(in *Interpreter, threadIndex uint8) (next *Node, pushed int32) {
	if c := n.activationCount.Load(); c != 0 {
		panic(fmt.Sprintf("sched: node ran with activation count %d", c))
	}

	n.job(threadIndex)

	next, pushed = n.updateDependencies(in)
	n.resetActivationCount()
	return next, pushed
}

// resetActivationCount re-arms the node. Called from run, or once per node
// when a queue is installed on the interpreter.
func (n *Node) resetActivationCount() {
	n.activationCount.Store(n.activationLimit)
}

// updateDependencies walks the successor list in order, decrementing each
// activation count. The first successor that becomes ready is kept back as the
// next node for the current thread; the rest go to the runnable pool.
func (n *Node) updateDependencies(in *Interpreter) (*Node, int32) {
	var next *Node
	i := 0
	for ; i < len(n.successors); i++ {
		if ready := n.successors[i].decrementActivationCount(); ready != nil {
			next = ready
			i++
			break
		}
	}

	var pushed int32
	for ; i < len(n.successors); i++ {
		if ready := n.successors[i].decrementActivationCount(); ready != nil {
			in.markAsRunnable(ready)
			pushed++
		}
	}

	return next, pushed
}

// decrementActivationCount returns the node itself if the decrement made it
// runnable, nil otherwise. Exactly one predecessor observes the transition to
// zero.
func (n *Node) decrementActivationCount() *Node {
	current := n.activationCount.Add(-1)
	if current < 0 {
		panic("sched: node activation count underflow")
	}
	if current == 0 {
		return n
	}
	return nil
}
