// Package builder compiles a loaded patch model into the scheduler's queue
// form: it validates the dependency structure (unknown references,
// self-loops, cycles), derives each node's activation limit and successor
// list, seeds the initially-runnable set and decides whether the graph has
// exploitable parallelism.
//
// Successor lists for the whole graph are carved out of one shared backing
// array, so compiled graphs add a single allocation regardless of edge count.
package builder
