// Package scheduler walks the task graph in dependency order and runs
// stale tasks on a bounded worker pool. A task occupies pool capacity in
// proportion to its declared weight, so light tasks keep flowing while a
// heavy compile is in flight. A failure marks the task's transitive
// dependents skipped; independent branches of the graph run to completion.
package scheduler

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/vk/monogrid/internal/config"
	"github.com/vk/monogrid/internal/ctxlog"
	"github.com/vk/monogrid/internal/graph"
)

// Executor runs one session's graph. Construct with New; an Executor is
// single-use.
type Executor struct {
	g          *graph.Graph
	exceptions map[string]struct{}
	workers    int
	maxWeight  int64
	weights    *semaphore.Weighted
	wg         sync.WaitGroup
}

// New sizes the pool from config. Zero workers means available
// parallelism; zero max weight derives a cap from the worker count.
func New(g *graph.Graph, pool config.Pool, exceptions map[string]struct{}) *Executor {
	workers := pool.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	maxWeight := pool.MaxWeight
	if maxWeight <= 0 {
		maxWeight = int64(workers) * 2
	}
	if exceptions == nil {
		exceptions = map[string]struct{}{}
	}
	return &Executor{
		g:          g,
		exceptions: exceptions,
		workers:    workers,
		maxWeight:  maxWeight,
		weights:    semaphore.NewWeighted(maxWeight),
	}
}

// Run executes the graph and returns the per-task outcomes. The returned
// error is the first root-cause task failure, if any; scheduling itself
// only fails on a cancelled context.
func (e *Executor) Run(ctx context.Context) (*Summary, error) {
	logger := ctxlog.FromContext(ctx)

	readyChan := make(chan *graph.TaskNode, len(e.g.Tasks))

	logger.Debug("Initializing scheduler, finding root tasks...")
	roots := 0
	for _, n := range e.g.TaskList() {
		if n.PendingDeps() == 0 {
			logger.Debug("Found root task.", "task", n.ID)
			readyChan <- n
			roots++
		}
	}
	logger.Debug("Found all root tasks.", "count", roots)

	e.wg.Add(len(e.g.Tasks))

	logger.Debug("Starting worker pool.", "workers", e.workers, "max_weight", e.maxWeight)
	for i := 0; i < e.workers; i++ {
		go e.worker(ctx, readyChan, i)
	}

	logger.Info("Waiting for all tasks to settle...")
	e.wg.Wait()
	close(readyChan)
	logger.Info("All tasks settled.")

	summary := e.summarize()
	return summary, summary.rootCause()
}

// worker is the processing loop for one pool slot.
func (e *Executor) worker(ctx context.Context, readyChan chan *graph.TaskNode, workerID int) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Worker started.", "workerID", workerID)

	for node := range readyChan {
		taskCtx := ctxlog.With(ctx, "workerID", workerID, "task", node.ID)
		workerLogger := ctxlog.FromContext(taskCtx)

		if ctx.Err() != nil {
			e.settleSkipped(taskCtx, node, ctx.Err())
			continue
		}

		workerLogger.Debug("Worker picked up task.")
		start := time.Now()
		upToDate, err := e.checkUpToDate(taskCtx, node)
		if err != nil {
			// Resolution failure: fatal to this task and its dependents,
			// not to sibling branches.
			workerLogger.Error("Staleness check failed.", "error", err)
			node.Duration = time.Since(start)
			e.settleFailed(taskCtx, node, err, readyChan)
			continue
		}
		if upToDate {
			workerLogger.Info("Task is up to date, skipping execution.")
			node.Duration = time.Since(start)
			node.SetState(graph.UpToDate)
			e.settleSuccess(taskCtx, node, readyChan)
			continue
		}

		if err := e.execute(taskCtx, node); err != nil {
			workerLogger.Error("Task execution failed.", "error", err)
			node.Duration = time.Since(start)
			e.settleFailed(taskCtx, node, err, readyChan)
			continue
		}

		if err := node.Leaf.MarkDone(taskCtx); err != nil {
			workerLogger.Error("Persisting done-file failed.", "error", err)
			node.Duration = time.Since(start)
			e.settleFailed(taskCtx, node, err, readyChan)
			continue
		}

		workerLogger.Debug("Task execution succeeded.")
		node.Duration = time.Since(start)
		node.SetState(graph.Done)
		e.settleSuccess(taskCtx, node, readyChan)
	}
	logger.Debug("Worker finished.", "workerID", workerID)
}

// checkUpToDate applies the staleness algorithm appropriate to the node's
// position. When every dependency settled without executing, the persisted
// done-file is authoritative. Once a dependency has actually run, only
// kinds that permit the cheap recheck may still short-circuit; kinds that
// forbid it are unconditionally stale.
func (e *Executor) checkUpToDate(ctx context.Context, node *graph.TaskNode) (bool, error) {
	depExecuted := false
	for _, dep := range node.Deps {
		if dep.State() == graph.Done {
			depExecuted = true
			break
		}
	}
	if !depExecuted {
		return node.Leaf.IsUpToDate(ctx)
	}
	if node.Rule != nil && node.Rule.ForbidRecheck {
		return false, nil
	}
	return node.Leaf.RecheckUpToDate(ctx)
}

// settleSuccess marks the node terminal and unlocks dependents whose last
// unsettled dependency this was.
func (e *Executor) settleSuccess(ctx context.Context, node *graph.TaskNode, readyChan chan *graph.TaskNode) {
	logger := ctxlog.FromContext(ctx)
	for _, dependent := range node.Dependents {
		if dependent.DecrementDeps() {
			logger.Debug("Unlocking dependent task.", "dependent", dependent.ID)
			readyChan <- dependent
		}
	}
	e.wg.Done()
}

// settleFailed marks the node failed and all transitive dependents skipped.
// No done-file is written, so the next session retries the task.
func (e *Executor) settleFailed(ctx context.Context, node *graph.TaskNode, err error, readyChan chan *graph.TaskNode) {
	node.SetState(graph.Failed)
	node.Err = err
	e.skipDependents(ctx, node)
	e.wg.Done()
}

// settleSkipped handles a node drained from the ready channel after
// session cancellation.
func (e *Executor) settleSkipped(ctx context.Context, node *graph.TaskNode, err error) {
	node.SkipOnce(func() {
		ctxlog.FromContext(ctx).Warn("Session cancelled, skipping task.")
		node.SetState(graph.Skipped)
		node.Err = err
		e.skipDependents(ctx, node)
		e.wg.Done()
	})
}

// skipDependents recursively marks downstream tasks skipped. Each node
// settles exactly once no matter how many failing paths reach it.
func (e *Executor) skipDependents(ctx context.Context, node *graph.TaskNode) {
	logger := ctxlog.FromContext(ctx)
	for _, dependent := range node.Dependents {
		dependent.SkipOnce(func() {
			logger.Warn("Skipping dependent task due to upstream failure.", "task", dependent.ID, "dependency", node.ID)
			dependent.SetState(graph.Skipped)
			dependent.Err = fmt.Errorf("skipped due to upstream failure of '%s'", node.ID)
			e.wg.Done()
			e.skipDependents(ctx, dependent)
		})
	}
}
