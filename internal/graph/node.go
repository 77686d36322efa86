// Package graph builds the session's task graph: every workspace package,
// the leaf tasks the pipeline rules give it, and the dependency edges
// between tasks. The graph is constructed once per session and read-only
// afterwards; the mutable per-task scheduling state lives in small atomics
// on each task node.
package graph

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/vk/monogrid/internal/config"
	"github.com/vk/monogrid/internal/pkgmanifest"
	"github.com/vk/monogrid/internal/task"
)

// BuildContext is the shared, read-only session state every node sees.
type BuildContext struct {
	// RepoRoot is the workspace root directory.
	RepoRoot string
	// VCSRoot is the version-control root, "" when not in a repository.
	VCSRoot string
	// LockFingerprint is the digest of the dependency lock file, used as
	// the fallback tool-version string.
	LockFingerprint string
	// Pool carries the worker-pool sizing configuration through to the
	// scheduler.
	Pool config.Pool
}

// State is a task node's position in its lifecycle. Stored in an atomic
// int32 on the node, written by the scheduler.
type State int32

const (
	Pending State = iota
	Running
	// UpToDate means the staleness check passed; the task was skipped as
	// confirmed current, which is a terminal success.
	UpToDate
	// Done means the command executed and succeeded.
	Done
	Failed
	// Skipped means an upstream dependency failed; the task never ran.
	Skipped
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case UpToDate:
		return "up-to-date"
	case Done:
		return "done"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state counts as settled for dependents.
func (s State) Terminal() bool {
	return s == UpToDate || s == Done || s == Failed || s == Skipped
}

// Success reports whether dependents may proceed past this state.
func (s State) Success() bool {
	return s == UpToDate || s == Done
}

// PackageNode wraps one workspace package with the shared build context.
type PackageNode struct {
	Pkg   *pkgmanifest.Package
	Ctx   *BuildContext
	Tasks []*TaskNode
}

// TaskNode is one leaf task plus its graph
// edges and scheduling state.
type TaskNode struct {
	ID   string
	Leaf *task.Leaf
	Rule *config.TaskRule
	Pkg  *PackageNode

	Deps       map[string]*TaskNode
	Dependents map[string]*TaskNode

	// depCount is decremented as dependencies settle; the node becomes
	// runnable at zero.
	depCount atomic.Int32
	state    atomic.Int32
	// Err holds the failure (or skip reason) once state is Failed/Skipped.
	Err error
	// Duration is the wall-clock time spent checking and executing the
	// task. Written by the owning worker before the node settles.
	Duration time.Duration
	skipOnce sync.Once
}

// State returns the node's current lifecycle state.
func (n *TaskNode) State() State { return State(n.state.Load()) }

// SetState records a lifecycle transition.
func (n *TaskNode) SetState(s State) { n.state.Store(int32(s)) }

// DecrementDeps marks one dependency settled and reports whether the node
// became runnable.
func (n *TaskNode) DecrementDeps() bool { return n.depCount.Add(-1) == 0 }

// PendingDeps returns the number of unsettled dependencies.
func (n *TaskNode) PendingDeps() int32 { return n.depCount.Load() }

// SkipOnce runs fn at most once, regardless of how many failing upstream
// paths reach the node.
func (n *TaskNode) SkipOnce(fn func()) { n.skipOnce.Do(fn) }

// initCounters seeds the dependency counter after edges are final.
func (n *TaskNode) initCounters() { n.depCount.Store(int32(len(n.Deps))) }
