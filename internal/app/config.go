package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// RepoRoot is the workspace root to scan for packages.
	RepoRoot string
	// PipelinePath is the repo-level pipeline file (HCL).
	PipelinePath string

	LogFormat string
	LogLevel  string

	// WorkerCount overrides the pipeline's pool sizing when non-zero.
	WorkerCount int
	// TaskFilter limits the session to these task names plus their
	// transitive dependencies. Empty means the whole graph.
	TaskFilter []string
	// DryRun evaluates staleness and prints the plan without executing.
	DryRun bool
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.RepoRoot == "" {
		return nil, errors.New("RepoRoot is a required configuration field and cannot be empty")
	}
	if cfg.PipelinePath == "" {
		return nil, errors.New("PipelinePath is a required configuration field and cannot be empty")
	}
	return &cfg, nil
}
