package scheduler

import (
	"context"

	"github.com/vk/monogrid/internal/ctxlog"
	"github.com/vk/monogrid/internal/graph"
)

// PlannedAction is what a dry run predicts for one task.
type PlannedAction struct {
	ID string
	// Run is true when the task would execute; false when its done-file
	// still matches.
	Run bool
	// Err records a staleness-check failure; such a task is treated as
	// stale and would run.
	Err error
}

// Plan evaluates every task's up-to-date state without executing anything
// and without writing done-files. Tasks downstream of a stale task are
// reported as runs even when their own snapshot matches, because their
// inputs are expected to change.
func Plan(ctx context.Context, g *graph.Graph) []PlannedAction {
	logger := ctxlog.FromContext(ctx)
	memo := make(map[string]PlannedAction)

	var eval func(n *graph.TaskNode) PlannedAction
	eval = func(n *graph.TaskNode) PlannedAction {
		if a, ok := memo[n.ID]; ok {
			return a
		}
		action := PlannedAction{ID: n.ID}
		upstreamStale := false
		for _, dep := range n.Deps {
			if eval(dep).Run {
				upstreamStale = true
				break
			}
		}
		if upstreamStale {
			action.Run = true
		} else {
			upToDate, err := n.Leaf.IsUpToDate(ctx)
			if err != nil {
				logger.Warn("Staleness check failed during dry run.", "task", n.ID, "error", err)
				action.Err = err
			}
			action.Run = !upToDate || err != nil
		}
		memo[n.ID] = action
		return action
	}

	actions := make([]PlannedAction, 0, len(g.Tasks))
	for _, n := range g.TaskList() {
		actions = append(actions, eval(n))
	}
	return actions
}
