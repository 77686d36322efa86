package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/monogrid/internal/ctxlog"
)

// fileRoot decodes the top-level blocks of a pipeline file.
type fileRoot struct {
	Workspace *workspaceBlock `hcl:"workspace,block"`
	Pool      *poolBlock      `hcl:"pool,block"`
	Tasks     []*taskBlock    `hcl:"task,block"`
	Remain    hcl.Body        `hcl:",remain"`
}

type workspaceBlock struct {
	IgnoreFile           *string  `hcl:"ignore_file,optional"`
	LockFile             *string  `hcl:"lock_file,optional"`
	SubprocessExceptions []string `hcl:"subprocess_exceptions,optional"`
}

type poolBlock struct {
	Workers   *int   `hcl:"workers,optional"`
	MaxWeight *int64 `hcl:"max_weight,optional"`
}

type taskBlock struct {
	Name          string   `hcl:"name,label"`
	Kind          *string  `hcl:"kind,optional"`
	DependsOn     []string `hcl:"depends_on,optional"`
	Weight        *int64   `hcl:"weight,optional"`
	ConfigFiles   []string `hcl:"config_files,optional"`
	InProcess     *bool    `hcl:"in_process,optional"`
	ForbidRecheck *bool    `hcl:"forbid_recheck,optional"`
	TrackGitState *bool    `hcl:"track_git_state,optional"`
	InputGlobs    []string `hcl:"input_globs,optional"`
	OutputGlobs   []string `hcl:"output_globs,optional"`
	IgnoreScope   *string  `hcl:"ignore_scope,optional"`
}

// Load parses and validates the pipeline file at path. Attribute
// expressions may reference the workspace root as `root` and environment
// variables through the `env` object.
func Load(ctx context.Context, path, repoRoot string) (*Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Pipeline config loader started.", "path", path)

	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse pipeline file %s: %w", path, diags)
	}

	var root fileRoot
	if diags := gohcl.DecodeBody(hclFile.Body, evalContext(repoRoot), &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode pipeline file %s: %w", path, diags)
	}

	model := &Model{
		Workspace: Workspace{
			IgnoreFile: ".monogridignore",
		},
		Pool:                 Pool{},
		Tasks:                make(map[string]*TaskRule),
		SubprocessExceptions: make(map[string]struct{}),
	}

	if ws := root.Workspace; ws != nil {
		if ws.IgnoreFile != nil {
			model.Workspace.IgnoreFile = *ws.IgnoreFile
		}
		if ws.LockFile != nil {
			model.Workspace.LockFile = *ws.LockFile
		}
		for _, cmd := range ws.SubprocessExceptions {
			model.SubprocessExceptions[cmd] = struct{}{}
		}
	}
	if p := root.Pool; p != nil {
		if p.Workers != nil {
			if *p.Workers < 0 {
				return nil, fmt.Errorf("pool.workers must not be negative, got %d", *p.Workers)
			}
			model.Pool.Workers = *p.Workers
		}
		if p.MaxWeight != nil {
			if *p.MaxWeight < 0 {
				return nil, fmt.Errorf("pool.max_weight must not be negative, got %d", *p.MaxWeight)
			}
			model.Pool.MaxWeight = *p.MaxWeight
		}
	}

	for _, tb := range root.Tasks {
		rule, err := translateTaskBlock(tb)
		if err != nil {
			return nil, err
		}
		if _, dup := model.Tasks[rule.Name]; dup {
			return nil, fmt.Errorf("duplicate task rule %q in %s", rule.Name, path)
		}
		model.Tasks[rule.Name] = rule
	}

	if len(model.Tasks) == 0 {
		return nil, fmt.Errorf("pipeline file %s declares no task blocks", path)
	}

	logger.Debug("Pipeline config loaded.", "tasks", len(model.Tasks))
	return model, nil
}

// evalContext exposes the workspace root and the process environment to
// pipeline expressions.
func evalContext(repoRoot string) *hcl.EvalContext {
	abs, err := filepath.Abs(repoRoot)
	if err != nil {
		abs = repoRoot
	}

	env := make(map[string]cty.Value)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			env[k] = cty.StringVal(v)
		}
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"root": cty.StringVal(abs),
			"env":  cty.ObjectVal(env),
		},
	}
}

func translateTaskBlock(tb *taskBlock) (*TaskRule, error) {
	rule := &TaskRule{
		Name:        tb.Name,
		Kind:        KindExec,
		DependsOn:   tb.DependsOn,
		Weight:      1,
		ConfigFiles: tb.ConfigFiles,
		InputGlobs:  tb.InputGlobs,
		OutputGlobs: tb.OutputGlobs,
		IgnoreScope: ScopeNone,
	}

	if tb.Kind != nil {
		switch TaskKind(*tb.Kind) {
		case KindExec, KindDeclarative, KindCopy, KindNoop:
			rule.Kind = TaskKind(*tb.Kind)
		default:
			return nil, fmt.Errorf("task %q: unknown kind %q", tb.Name, *tb.Kind)
		}
	}
	if rule.Kind == KindNoop {
		rule.Weight = 0
	}
	if tb.Weight != nil {
		if *tb.Weight < 0 {
			return nil, fmt.Errorf("task %q: weight must not be negative, got %d", tb.Name, *tb.Weight)
		}
		rule.Weight = *tb.Weight
	}
	if tb.InProcess != nil {
		rule.InProcess = *tb.InProcess
	}
	if tb.ForbidRecheck != nil {
		rule.ForbidRecheck = *tb.ForbidRecheck
	}
	if tb.TrackGitState != nil {
		rule.TrackGitState = *tb.TrackGitState
	}
	if tb.IgnoreScope != nil {
		switch IgnoreScopeName(*tb.IgnoreScope) {
		case ScopeNone, ScopeInputs, ScopeOutputs, ScopeBoth:
			rule.IgnoreScope = IgnoreScopeName(*tb.IgnoreScope)
		default:
			return nil, fmt.Errorf("task %q: unknown ignore_scope %q", tb.Name, *tb.IgnoreScope)
		}
	}
	return rule, nil
}
