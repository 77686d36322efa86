package graph

import (
	"fmt"
	"sort"
)

// Restrict prunes the graph to the tasks with the given names (in any
// package) plus their transitive dependencies. Used by the CLI's task
// filter. Counters are re-seeded for the surviving subgraph.
func (g *Graph) Restrict(taskNames ...string) error {
	if len(taskNames) == 0 {
		return nil
	}

	wanted := make(map[string]struct{}, len(taskNames))
	for _, name := range taskNames {
		wanted[name] = struct{}{}
	}

	keep := make(map[string]*TaskNode)
	var mark func(n *TaskNode)
	mark = func(n *TaskNode) {
		if _, ok := keep[n.ID]; ok {
			return
		}
		keep[n.ID] = n
		for _, dep := range n.Deps {
			mark(dep)
		}
	}

	matched := false
	for _, n := range g.Tasks {
		if _, ok := wanted[n.Rule.Name]; ok {
			matched = true
			mark(n)
		}
	}
	if !matched {
		sorted := append([]string{}, taskNames...)
		sort.Strings(sorted)
		return fmt.Errorf("no package declares any of the requested tasks: %v", sorted)
	}

	g.Tasks = keep
	for _, n := range g.Tasks {
		for id, dep := range n.Dependents {
			if _, ok := keep[dep.ID]; !ok {
				delete(n.Dependents, id)
			}
		}
		n.initCounters()
	}
	for _, pn := range g.Packages {
		tasks := pn.Tasks[:0]
		for _, tn := range pn.Tasks {
			if _, ok := keep[tn.ID]; ok {
				tasks = append(tasks, tn)
			}
		}
		pn.Tasks = tasks
	}
	return nil
}
