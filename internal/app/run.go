package app

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"

	"github.com/vk/monogrid/internal/ctxlog"
	"github.com/vk/monogrid/internal/graph"
	"github.com/vk/monogrid/internal/hashing"
	"github.com/vk/monogrid/internal/scheduler"
	"github.com/vk/monogrid/internal/vcs"
)

// Run executes one build session: graph construction, scheduling and the
// final report. On SIGINT/SIGTERM the session drains without rolling back
// already-persisted done-files.
func (a *App) Run(ctx context.Context) error {
	sessionID := uuid.NewString()
	logger := a.logger.With("session", sessionID)
	ctx = ctxlog.WithLogger(ctx, logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bctx, err := a.buildContext(ctx)
	if err != nil {
		return err
	}

	g, err := graph.Build(ctx, a.model, a.packages, bctx)
	if err != nil {
		return err
	}
	if len(a.cfg.TaskFilter) > 0 {
		if err := g.Restrict(a.cfg.TaskFilter...); err != nil {
			return err
		}
	}
	logger.Info("Task graph ready.", "tasks", len(g.Tasks))

	if a.cfg.DryRun {
		return a.printPlan(ctx, g)
	}

	exec := scheduler.New(g, bctx.Pool, a.model.SubprocessExceptions)
	summary, runErr := exec.Run(ctx)
	fmt.Fprint(a.outW, summary.String())
	return runErr
}

// buildContext assembles the shared session state: repo root, VCS root and
// the dependency-lock fingerprint used as the fallback version string.
func (a *App) buildContext(ctx context.Context) (*graph.BuildContext, error) {
	logger := ctxlog.FromContext(ctx)

	vcsRoot, err := vcs.Root(a.cfg.RepoRoot)
	if err != nil {
		return nil, fmt.Errorf("locating VCS root: %w", err)
	}

	lockFingerprint := ""
	if a.model.Workspace.LockFile != "" {
		lockPath := filepath.Join(a.cfg.RepoRoot, a.model.Workspace.LockFile)
		lockFingerprint, err = hashing.HashFileOrMissing(lockPath)
		if err != nil {
			return nil, fmt.Errorf("fingerprinting lock file: %w", err)
		}
		if lockFingerprint == hashing.MissingHash {
			logger.Warn("Dependency lock file not found; fallback version is the missing sentinel.", "path", lockPath)
		}
	}

	return &graph.BuildContext{
		RepoRoot:        a.cfg.RepoRoot,
		VCSRoot:         vcsRoot,
		LockFingerprint: lockFingerprint,
		Pool:            a.model.Pool,
	}, nil
}

func (a *App) printPlan(ctx context.Context, g *graph.Graph) error {
	actions := scheduler.Plan(ctx, g)
	runs := 0
	for _, action := range actions {
		verb := "skip"
		if action.Run {
			verb = "run"
			runs++
		}
		fmt.Fprintf(a.outW, "%-5s %s\n", verb, action.ID)
	}
	fmt.Fprintf(a.outW, "%d of %d task(s) would run\n", runs, len(actions))
	return nil
}
