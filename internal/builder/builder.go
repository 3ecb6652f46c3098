package builder

import (
	"context"
	"fmt"

	"github.com/vk/dspgridgo/internal/ctxlog"
	"github.com/vk/dspgridgo/internal/patch"
	"github.com/vk/dspgridgo/internal/sched"
)

// JobFactory produces the job callable for one node definition. The app
// supplies simulated DSP kernels; tests supply recorders.
type JobFactory func(def *patch.NodeDef) sched.Job

// Build compiles the model into a ready-to-install scheduler queue.
func Build(ctx context.Context, model *patch.Model, jobs JobFactory) (*sched.Queue, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Building DSP queue from patch model...", "nodes", len(model.Nodes))

	index := make(map[string]int, len(model.Nodes))
	for i, def := range model.Nodes {
		index[def.Name] = i
	}

	// successors[i] lists, in declaration order, the nodes that wait on node
	// i. This order is the scan order of the steal-one optimization.
	successors := make([][]int, len(model.Nodes))
	totalEdges := 0
	for i, def := range model.Nodes {
		if len(def.After) > sched.MaxActivationLimit {
			return nil, fmt.Errorf("node %q has %d predecessors, limit is %d", def.Name, len(def.After), sched.MaxActivationLimit)
		}
		seen := make(map[string]struct{}, len(def.After))
		for _, pred := range def.After {
			if pred == def.Name {
				return nil, fmt.Errorf("node %q depends on itself", def.Name)
			}
			if _, ok := seen[pred]; ok {
				return nil, fmt.Errorf("node %q lists predecessor %q twice", def.Name, pred)
			}
			seen[pred] = struct{}{}

			p, ok := index[pred]
			if !ok {
				return nil, fmt.Errorf("node %q depends on unknown node %q", def.Name, pred)
			}
			successors[p] = append(successors[p], i)
			totalEdges++
		}
	}

	if err := detectCycles(model, successors); err != nil {
		return nil, err
	}

	hasParallelism := inferParallelism(model, successors)
	if model.Settings.Parallelism != nil {
		hasParallelism = *model.Settings.Parallelism
	}

	queue := sched.NewQueue(len(model.Nodes), hasParallelism)

	// One backing array for every successor list in the graph. The windows
	// are handed to the nodes now and filled once all nodes exist.
	arena := make(sched.SuccessorList, totalEdges)
	windows := make([]sched.SuccessorList, len(model.Nodes))
	offset := 0
	for i := range model.Nodes {
		windows[i] = arena[offset : offset+len(successors[i])]
		offset += len(successors[i])
	}

	nodes := make([]*sched.Node, len(model.Nodes))
	for i, def := range model.Nodes {
		nodes[i] = queue.AllocateNode(jobs(def), windows[i], uint16(len(def.After)))
		if len(def.After) == 0 {
			queue.AddInitiallyRunnable(nodes[i])
		}
	}

	for i, succs := range successors {
		for j, s := range succs {
			windows[i][j] = nodes[s]
		}
	}

	logger.Debug("DSP queue built.", "nodes", queue.TotalNodeCount(), "edges", totalEdges, "has_parallelism", hasParallelism)
	return queue, nil
}

// detectCycles runs a three-color depth-first search over the successor
// relation and reports the first back edge found.
func detectCycles(model *patch.Model, successors [][]int) error {
	const (
		white = iota // unvisited
		gray         // on the current DFS path
		black        // fully explored
	)
	colors := make([]int, len(model.Nodes))

	var visit func(int) error
	visit = func(n int) error {
		colors[n] = gray
		for _, s := range successors[n] {
			switch colors[s] {
			case gray:
				return fmt.Errorf("cycle detected involving nodes %q and %q", model.Nodes[n].Name, model.Nodes[s].Name)
			case white:
				if err := visit(s); err != nil {
					return err
				}
			}
		}
		colors[n] = black
		return nil
	}

	for n := range model.Nodes {
		if colors[n] == white {
			if err := visit(n); err != nil {
				return err
			}
		}
	}
	return nil
}

// inferParallelism reports whether any two nodes can run concurrently: true
// iff the longest dependency chain is shorter than the node count.
func inferParallelism(model *patch.Model, successors [][]int) bool {
	if len(model.Nodes) < 2 {
		return false
	}

	depth := make([]int, len(model.Nodes))
	for i := range depth {
		depth[i] = -1
	}

	var longest func(int) int
	longest = func(n int) int {
		if depth[n] >= 0 {
			return depth[n]
		}
		best := 0
		for _, s := range successors[n] {
			if d := longest(s) + 1; d > best {
				best = d
			}
		}
		depth[n] = best
		return best
	}

	criticalPath := 0
	for n := range model.Nodes {
		if d := longest(n) + 1; d > criticalPath {
			criticalPath = d
		}
	}
	return criticalPath < len(model.Nodes)
}
