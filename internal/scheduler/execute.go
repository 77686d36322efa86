package scheduler

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/google/shlex"

	"github.com/vk/monogrid/internal/ctxlog"
	"github.com/vk/monogrid/internal/graph"
)

// subprocessWaitDelay bounds how long a cancelled subprocess may linger
// between SIGTERM and SIGKILL. The pool slot is not released until the
// process is gone.
const subprocessWaitDelay = 10 * time.Second

// execute runs the node's command under its execution strategy, holding
// pool weight for the duration.
func (e *Executor) execute(ctx context.Context, node *graph.TaskNode) error {
	leaf := node.Leaf

	weight := leaf.Weight
	if weight > e.maxWeight {
		weight = e.maxWeight
	}
	if weight > 0 {
		if err := e.weights.Acquire(ctx, weight); err != nil {
			return err
		}
		defer e.weights.Release(weight)
	}

	node.SetState(graph.Running)

	if e.runsInProcess(node) {
		ctxlog.FromContext(ctx).Debug("Running task in-process.")
		return leaf.Def.Execute(ctx)
	}
	return e.runSubprocess(ctx, node)
}

// runsInProcess decides the execution strategy. The exception table is
// keyed by exact command string: specific tool invocations are known to
// misbehave on a shared worker, and the rule is preserved per command
// shape rather than generalized.
func (e *Executor) runsInProcess(node *graph.TaskNode) bool {
	if _, forced := e.exceptions[node.Leaf.Command]; forced {
		return false
	}
	return node.Leaf.InProcess && node.Leaf.Def.Execute != nil
}

// runSubprocess spawns the task's command in its package directory. Output
// is captured and surfaced only on failure or at debug level.
func (e *Executor) runSubprocess(ctx context.Context, node *graph.TaskNode) error {
	leaf := node.Leaf
	if strings.TrimSpace(leaf.Command) == "" {
		return nil
	}

	argv, err := shlex.Split(leaf.Command)
	if err != nil {
		return fmt.Errorf("parsing command for %s: %w", leaf.Name(), err)
	}
	if len(argv) == 0 {
		return nil
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = leaf.PackageDir
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	// Ask nicely first so watch-mode tools can release their resources.
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = subprocessWaitDelay

	logger := ctxlog.FromContext(ctx)
	logger.Debug("Spawning subprocess.", "argv0", argv[0], "dir", leaf.PackageDir)
	start := time.Now()
	err = cmd.Run()
	logger.Debug("Subprocess finished.", "duration", time.Since(start), "error", err)

	if err != nil {
		return fmt.Errorf("command %q failed: %w\n%s", leaf.Command, err, tail(output.String(), 4096))
	}
	if output.Len() > 0 {
		logger.Debug("Subprocess output.", "output", tail(output.String(), 4096))
	}
	return nil
}

// tail returns at most n trailing bytes of s, for error messages that
// include tool output without flooding the log.
func tail(s string, n int) string {
	if len(s) <= n {
		return strings.TrimSpace(s)
	}
	return "..." + strings.TrimSpace(s[len(s)-n:])
}
