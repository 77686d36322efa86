package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vk/monogrid/internal/graph"
)

// Result is one task's terminal outcome.
type Result struct {
	ID       string
	State    graph.State
	Duration time.Duration
	Err      error
}

// Summary aggregates a session's outcomes in stable task order.
type Summary struct {
	Results  []Result
	Executed int
	UpToDate int
	Failed   int
	Skipped  int
}

func (e *Executor) summarize() *Summary {
	s := &Summary{}
	for _, n := range e.g.TaskList() {
		state := n.State()
		s.Results = append(s.Results, Result{ID: n.ID, State: state, Duration: n.Duration, Err: n.Err})
		switch state {
		case graph.Done:
			s.Executed++
		case graph.UpToDate:
			s.UpToDate++
		case graph.Failed:
			s.Failed++
		case graph.Skipped:
			s.Skipped++
		}
	}
	return s
}

// rootCause returns the first real task failure, wrapping it with the list
// of failed task ids. Skips are symptoms, not causes, and cancellation is
// not a task failure.
func (s *Summary) rootCause() error {
	var failed []string
	var cause error
	for _, r := range s.Results {
		if r.State != graph.Failed {
			continue
		}
		if r.Err == nil || errors.Is(r.Err, context.Canceled) {
			continue
		}
		failed = append(failed, r.ID)
		if cause == nil {
			cause = r.Err
		}
	}
	if cause == nil {
		return nil
	}
	return fmt.Errorf("execution failed for %s: %w", strings.Join(failed, ", "), cause)
}

// String renders a one-line-per-task report.
func (s *Summary) String() string {
	var sb strings.Builder
	for _, r := range s.Results {
		if r.Duration > 0 {
			fmt.Fprintf(&sb, "%-12s %-40s %s\n", r.State, r.ID, r.Duration.Round(time.Millisecond))
		} else {
			fmt.Fprintf(&sb, "%-12s %s\n", r.State, r.ID)
		}
	}
	fmt.Fprintf(&sb, "executed %d, up-to-date %d, failed %d, skipped %d\n",
		s.Executed, s.UpToDate, s.Failed, s.Skipped)
	return sb.String()
}
