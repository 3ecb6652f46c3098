// Package sched is the per-tick DSP task-graph scheduler at the heart of the
// audio engine. Once per audio period the driver thread evaluates a directed
// acyclic graph of signal-processing nodes; independent nodes are distributed
// across a pool of helper threads while the partial order implied by the
// graph's edges is preserved.
//
// # Layers
//
// The package is built from three layers, leaves first:
//
//   - Node: a unit of work with a predecessor count (the activation limit), an
//     ordered successor list, and a job callable. Carries the per-tick atomic
//     activation count.
//   - Queue: an immutable-per-tick container of nodes built by the patch
//     builder. Owns the node arena, lists the initially-runnable nodes, and
//     declares whether the graph has exploitable parallelism.
//   - Interpreter: the scheduler proper. Owns the current queue, the lock-free
//     runnable pool, the wake-up semaphore, and the per-tick counters, and
//     exposes the tick entry points.
//
// # Tick protocol
//
// The driver calls InitTick followed by TickMain; helper threads sit in Tick
// loops (see ThreadGroup). Every thread repeatedly pops a node from the
// runnable pool, runs its job, decrements the activation counts of its
// successors, pushes newly-ready successors back, and exits once the global
// remaining-node counter reaches zero. A thread finishing a node executes the
// first successor that became ready itself, without a round trip through the
// pool, so a linear chain causes no pool traffic at all.
//
// # Real-time safety
//
// Under the pause strategy the tick path never allocates, never takes a lock,
// and never enters the Go scheduler: polling threads back off with CPU pause
// instructions only. The yield strategy trades latency for cooperative
// scheduling; the wait strategy parks polling threads on a counting semaphore
// and is the right choice when burning cycles is not acceptable.
package sched
