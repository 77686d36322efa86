package graph

import (
	"fmt"
	"sort"
	"strings"
)

// CycleError reports a dependency cycle. Path lists the task ids along the
// cycle, ending with a repeat of the first so the loop is readable.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected: %s", strings.Join(e.Path, " -> "))
}

// detectCycles checks for circular dependencies using DFS. On failure the
// returned error identifies the full offending cycle, not just one member.
func (g *Graph) detectCycles() error {
	visiting := make(map[string]bool)
	visited := make(map[string]bool)
	var stack []string

	var visit func(n *TaskNode) error
	visit = func(n *TaskNode) error {
		visiting[n.ID] = true
		stack = append(stack, n.ID)

		for _, dep := range sortedDeps(n) {
			if visiting[dep.ID] {
				return &CycleError{Path: cyclePath(stack, dep.ID)}
			}
			if !visited[dep.ID] {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}

		stack = stack[:len(stack)-1]
		delete(visiting, n.ID)
		visited[n.ID] = true
		return nil
	}

	for _, n := range g.TaskList() {
		if !visited[n.ID] {
			if err := visit(n); err != nil {
				return err
			}
		}
	}
	return nil
}

// cyclePath trims the DFS stack down to the loop itself and closes it.
func cyclePath(stack []string, repeat string) []string {
	start := 0
	for i, id := range stack {
		if id == repeat {
			start = i
			break
		}
	}
	path := append([]string{}, stack[start:]...)
	return append(path, repeat)
}

// sortedDeps returns a node's dependencies in stable order so the reported
// cycle is deterministic.
func sortedDeps(n *TaskNode) []*TaskNode {
	deps := make([]*TaskNode, 0, len(n.Deps))
	for _, d := range n.Deps {
		deps = append(deps, d)
	}
	sort.Slice(deps, func(i, j int) bool { return deps[i].ID < deps[j].ID })
	return deps
}
