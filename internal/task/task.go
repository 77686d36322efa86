// Package task defines the leaf task contract: the smallest schedulable
// unit of build work for one package, together with the default staleness
// algorithm every task kind shares.
//
// Concrete tool integrations do not subclass anything. A task kind is a
// Definition value holding a handful of callbacks; the Leaf struct supplies
// memoized resolution, done-file computation and the up-to-date check on
// top of them.
package task

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vk/monogrid/internal/ctxlog"
	"github.com/vk/monogrid/internal/donefile"
	"github.com/vk/monogrid/internal/fsutil"
	"github.com/vk/monogrid/internal/hashing"
)

// ErrNotCacheable signals that a done-file snapshot cannot be computed for
// this task (missing tool, missing required config). It is an expected
// outcome, not a failure: the task simply always runs.
var ErrNotCacheable = errors.New("task is not cacheable")

// Definition holds the per-kind callbacks a task kind provides. Only
// InputFiles and OutputFiles are mandatory.
type Definition struct {
	// InputFiles resolves the declared input set. Called at most once per
	// Leaf instance.
	InputFiles func(ctx context.Context) ([]string, error)
	// OutputFiles resolves the declared output set. Called at most once per
	// Leaf instance.
	OutputFiles func(ctx context.Context) ([]string, error)
	// ToolVersion introspects the wrapped tool's version string. When nil,
	// the session's fallback fingerprint is used. Return ErrNotCacheable
	// when the tool cannot be found.
	ToolVersion func(ctx context.Context) (string, error)
	// Augment lets a kind append extra state to the snapshot (incremental
	// build metadata, commit ids). Optional.
	Augment func(ctx context.Context, content *donefile.Content) error
	// Execute runs the task in-process when the kind is side-effect
	// isolated enough for a shared worker. When nil, the scheduler spawns
	// the command as a subprocess.
	Execute func(ctx context.Context) error
	// ForbidRecheck marks kinds for which the cheap post-dependency
	// recheck is a programming error rather than an optimization.
	ForbidRecheck bool
}

// Leaf is one named, package-scoped operation. Instances are created at
// graph-construction time and are not shared across sessions.
type Leaf struct {
	PackageName string
	TaskName    string
	PackageDir  string
	// Command is the shell-like command string as a human would type it.
	// Empty for no-op tasks.
	Command string
	// Weight is the relative execution cost used by the scheduler; 0 for
	// no-op tasks.
	Weight int64
	// InProcess marks the task as safe to run on a shared in-process
	// worker instead of a spawned subprocess.
	InProcess bool
	// ConfigFiles are declared configuration paths that participate in
	// staleness checks alongside ordinary inputs.
	ConfigFiles []string
	// FallbackVersion is the dependency-lock fingerprint used when the
	// kind cannot introspect its tool's version.
	FallbackVersion string

	Store *donefile.Store
	Def   Definition

	inputsOnce  sync.Once
	inputs      []string
	inputsErr   error
	outputsOnce sync.Once
	outputs     []string
	outputsErr  error
}

// Name returns the session-unique task identity "<package>#<task>".
func (l *Leaf) Name() string {
	return l.PackageName + "#" + l.TaskName
}

// CacheInputFiles resolves the declared inputs once and replays the result
// (or the failure) on every later call.
func (l *Leaf) CacheInputFiles(ctx context.Context) ([]string, error) {
	l.inputsOnce.Do(func() {
		if l.Def.InputFiles == nil {
			return
		}
		l.inputs, l.inputsErr = l.Def.InputFiles(ctx)
	})
	return l.inputs, l.inputsErr
}

// CacheOutputFiles resolves the declared outputs once and replays the
// result (or the failure) on every later call.
func (l *Leaf) CacheOutputFiles(ctx context.Context) ([]string, error) {
	l.outputsOnce.Do(func() {
		if l.Def.OutputFiles == nil {
			return
		}
		l.outputs, l.outputsErr = l.Def.OutputFiles(ctx)
	})
	return l.outputs, l.outputsErr
}

// DoneFileContent computes the current snapshot. A nil content with a nil
// error means the task cannot be cached and must always run. Outputs that
// do not exist yet are recorded with the missing sentinel, never as errors.
func (l *Leaf) DoneFileContent(ctx context.Context) (*donefile.Content, error) {
	version := l.FallbackVersion
	if l.Def.ToolVersion != nil {
		v, err := l.Def.ToolVersion(ctx)
		if errors.Is(err, ErrNotCacheable) {
			ctxlog.FromContext(ctx).Debug("Task is not cacheable.", "task", l.Name(), "reason", err)
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("tool version for %s: %w", l.Name(), err)
		}
		version = v
	}

	inputs, err := l.CacheInputFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving inputs for %s: %w", l.Name(), err)
	}
	outputs, err := l.CacheOutputFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving outputs for %s: %w", l.Name(), err)
	}

	rel := func(p string) string { return fsutil.RelOrSelf(l.PackageDir, p) }

	// Declared config files count as inputs for staleness purposes. A
	// missing config file makes the task uncacheable rather than failing.
	srcPaths := make([]string, 0, len(l.ConfigFiles)+len(inputs))
	for _, cf := range l.ConfigFiles {
		hash, err := hashing.HashFileOrMissing(cf)
		if err != nil {
			return nil, err
		}
		if hash == hashing.MissingHash {
			ctxlog.FromContext(ctx).Debug("Config file missing, task is not cacheable.", "task", l.Name(), "config", cf)
			return nil, nil
		}
		srcPaths = append(srcPaths, cf)
	}
	srcPaths = append(srcPaths, inputs...)

	srcHashes, err := hashing.HashFiles(srcPaths, rel)
	if err != nil {
		return nil, fmt.Errorf("hashing inputs for %s: %w", l.Name(), err)
	}
	dstHashes, err := hashing.HashFiles(outputs, rel)
	if err != nil {
		return nil, fmt.Errorf("hashing outputs for %s: %w", l.Name(), err)
	}

	content := &donefile.Content{
		SrcHashes:   srcHashes,
		DstHashes:   dstHashes,
		ToolVersion: version,
	}
	if l.Def.Augment != nil {
		if err := l.Def.Augment(ctx, content); err != nil {
			if errors.Is(err, ErrNotCacheable) {
				return nil, nil
			}
			return nil, fmt.Errorf("augmenting done-file for %s: %w", l.Name(), err)
		}
	}
	return content, nil
}

// IsUpToDate implements the default staleness algorithm: compute the
// current snapshot and compare it against the persisted one. An
// uncacheable task is never up to date.
func (l *Leaf) IsUpToDate(ctx context.Context) (bool, error) {
	current, err := l.DoneFileContent(ctx)
	if err != nil {
		return false, err
	}
	if current == nil {
		return false, nil
	}
	prior := l.Store.Load(l.TaskName)
	if prior == nil {
		return false, nil
	}
	return donefile.Equal(current, prior), nil
}

// RecheckUpToDate is the cheap staleness recheck the scheduler performs
// after a task's dependencies settle. Some kinds forbid it; calling it on
// such a kind is a programming error and panics rather than silently
// misbehaving.
func (l *Leaf) RecheckUpToDate(ctx context.Context) (bool, error) {
	if l.Def.ForbidRecheck {
		panic(fmt.Sprintf("task %s forbids up-to-date rechecking", l.Name()))
	}
	return l.IsUpToDate(ctx)
}

// MarkDone recomputes the snapshot now that the command has run and
// persists it. An uncacheable task persists nothing; its done-file, if one
// is left over from an older session, is removed so it cannot go stale.
func (l *Leaf) MarkDone(ctx context.Context) error {
	l.resetResolution()
	content, err := l.DoneFileContent(ctx)
	if err != nil {
		return err
	}
	if content == nil {
		return l.Store.Remove(l.TaskName)
	}
	return l.Store.Save(l.TaskName, content)
}

// resetResolution drops the memoized file sets so MarkDone observes the
// files that exist after execution, not the pre-run resolution.
func (l *Leaf) resetResolution() {
	l.inputsOnce = sync.Once{}
	l.outputsOnce = sync.Once{}
	l.inputs, l.inputsErr = nil, nil
	l.outputs, l.outputsErr = nil, nil
}
