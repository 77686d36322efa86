// Package app is the composition root: it wires the pipeline config, the
// workspace scan, the build context and the scheduler into one session.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/monogrid/internal/config"
	"github.com/vk/monogrid/internal/ctxlog"
	"github.com/vk/monogrid/internal/pkgmanifest"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	cfg      *Config
	model    *config.Model
	packages []*pkgmanifest.Package
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger, the pipeline
// model loaded and the workspace scanned. A failure to load configuration
// is a fatal startup error and panics; the entrypoint recovers.
func NewApp(outW io.Writer, appConfig *Config) *App {
	logger := newLogger(appConfig, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	model, err := config.Load(ctx, appConfig.PipelinePath, appConfig.RepoRoot)
	if err != nil {
		panic(fmt.Errorf("failed to load pipeline configuration: %w", err))
	}
	logger.Debug("Pipeline configuration loaded.")

	if appConfig.WorkerCount > 0 {
		model.Pool.Workers = appConfig.WorkerCount
	}

	packages, err := pkgmanifest.Discover(appConfig.RepoRoot)
	if err != nil {
		panic(fmt.Errorf("failed to scan workspace: %w", err))
	}
	if len(packages) == 0 {
		panic(fmt.Errorf("no package manifests found under %s", appConfig.RepoRoot))
	}
	logger.Debug("Workspace scanned.", "packages", len(packages))

	return &App{
		outW:     outW,
		logger:   logger,
		cfg:      appConfig,
		model:    model,
		packages: packages,
	}
}

// Model returns the loaded pipeline model. This is primarily for testing.
func (a *App) Model() *config.Model {
	return a.model
}

// Packages returns the scanned workspace packages. This is primarily for testing.
func (a *App) Packages() []*pkgmanifest.Package {
	return a.packages
}
