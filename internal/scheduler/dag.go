package scheduler

import (
	"fmt"

	"github.com/gammazero/toposort"
)

// detectCycle reports whether adding edges depID -> taskID for every dep in
// deps would introduce a cycle into the graph described by successors
// (taskID -> []successorID). It runs gammazero/toposort's cycle detector
// instead of a hand-rolled DFS colour-marking pass, per the teacher's
// internal/scheduler/dag.go Validate.
func detectCycle(successors map[string][]string, newTaskID string, deps []string) error {
	edges := make([]toposort.Edge, 0, len(deps)+8)

	for from, tos := range successors {
		for _, to := range tos {
			edges = append(edges, toposort.Edge{from, to})
		}
	}

	if len(deps) == 0 {
		edges = append(edges, toposort.Edge{nil, newTaskID})
	}
	for _, dep := range deps {
		edges = append(edges, toposort.Edge{dep, newTaskID})
	}

	if _, err := toposort.Toposort(edges); err != nil {
		return fmt.Errorf("submitting task %q would introduce a cycle: %w", newTaskID, err)
	}
	return nil
}
