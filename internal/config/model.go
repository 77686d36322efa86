// Package config loads the repo-level pipeline file. The file declares the
// task kinds the orchestrator schedules, their dependency rules and the
// worker-pool settings; per-package commands stay in the package manifests.
package config

// Model is the validated, format-agnostic pipeline configuration.
type Model struct {
	Workspace Workspace
	Pool      Pool
	// Tasks is keyed by task name; iteration order is handled by callers.
	Tasks map[string]*TaskRule
	// SubprocessExceptions lists exact command strings that must never run
	// on a shared in-process worker, regardless of their task kind. The
	// rule set is per exact command shape, observed behavior of specific
	// tool invocations, not a general principle.
	SubprocessExceptions map[string]struct{}
}

// Workspace describes where packages and shared repo state live.
type Workspace struct {
	// IgnoreFile is the name of the ignore-pattern file consulted by glob
	// resolutions, relative to each package directory.
	IgnoreFile string
	// LockFile is the dependency lock file whose digest becomes the
	// fallback tool-version fingerprint.
	LockFile string
}

// Pool configures the shared worker pool.
type Pool struct {
	// Workers is the slot count; 0 means available parallelism.
	Workers int
	// MaxWeight caps the summed weight of concurrently running tasks;
	// 0 derives a cap from the worker count.
	MaxWeight int64
}

// TaskKind selects the construction path for a task rule.
type TaskKind string

const (
	// KindExec runs the package's script as a subprocess, with optional
	// declared input/output globs for staleness.
	KindExec TaskKind = "exec"
	// KindDeclarative is a pure glob-defined task: inputs, outputs and the
	// generic up-to-date algorithm, nothing bespoke.
	KindDeclarative TaskKind = "declarative"
	// KindCopy parses the script as a copy command and remaps paths.
	KindCopy TaskKind = "copy"
	// KindNoop performs no work; an anchor for dependents.
	KindNoop TaskKind = "noop"
)

// IgnoreScopeName is the config-file spelling of the resolver ignore scope.
type IgnoreScopeName string

const (
	ScopeNone    IgnoreScopeName = "none"
	ScopeInputs  IgnoreScopeName = "inputs"
	ScopeOutputs IgnoreScopeName = "outputs"
	ScopeBoth    IgnoreScopeName = "both"
)

// TaskRule is one pipeline entry. Every package whose manifest declares a
// script with this name exposes the task.
type TaskRule struct {
	Name string
	Kind TaskKind
	// DependsOn lists task names this task waits for. A "^" prefix means
	// the task of that name in every dependency package; no prefix means
	// the task in the same package.
	DependsOn []string
	// Weight is the relative execution cost. Defaults to 1 (0 for noop).
	Weight int64
	// ConfigFiles are tool configuration paths, relative to the package
	// dir, tracked for staleness alongside inputs.
	ConfigFiles []string
	// InProcess requests the shared in-process worker for exec tasks whose
	// handler is registered; ignored for kinds with a fixed strategy.
	InProcess bool
	// ForbidRecheck marks the kind's staleness recheck as a programming
	// error.
	ForbidRecheck bool
	// TrackGitState appends commit id and working-tree hash to the
	// done-file.
	TrackGitState bool
	InputGlobs    []string
	OutputGlobs   []string
	IgnoreScope   IgnoreScopeName
}
