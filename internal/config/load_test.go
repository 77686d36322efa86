package config

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/monogrid/internal/ctxlog"
)

func testCtx() context.Context {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return ctxlog.WithLogger(context.Background(), logger)
}

func loadString(t *testing.T, hclSource string) (*Model, error) {
	t.Helper()
	root := t.TempDir()
	path := filepath.Join(root, "monogrid.hcl")
	require.NoError(t, os.WriteFile(path, []byte(hclSource), 0o644))
	return Load(testCtx(), path, root)
}

func TestLoadFullPipeline(t *testing.T) {
	model, err := loadString(t, `
workspace {
  ignore_file           = ".buildignore"
  lock_file             = "pnpm-lock.yaml"
  subprocess_exceptions = ["tsc -b --force"]
}

pool {
  workers    = 4
  max_weight = 12
}

task "build" {
  depends_on   = ["^build"]
  weight       = 3
  config_files = ["tsconfig.json"]
  input_globs  = ["src/**/*.ts"]
  output_globs = ["dist/**/*"]
  ignore_scope = "inputs"
}

task "copy:assets" {
  kind       = "copy"
  depends_on = ["build"]
}

task "all" {
  kind       = "noop"
  depends_on = ["build", "copy:assets"]
}
`)
	require.NoError(t, err)

	assert.Equal(t, ".buildignore", model.Workspace.IgnoreFile)
	assert.Equal(t, "pnpm-lock.yaml", model.Workspace.LockFile)
	assert.Contains(t, model.SubprocessExceptions, "tsc -b --force")
	assert.Equal(t, 4, model.Pool.Workers)
	assert.Equal(t, int64(12), model.Pool.MaxWeight)

	require.Len(t, model.Tasks, 3)
	build := model.Tasks["build"]
	require.NotNil(t, build)
	assert.Equal(t, KindExec, build.Kind, "kind defaults to exec")
	assert.Equal(t, []string{"^build"}, build.DependsOn)
	assert.Equal(t, int64(3), build.Weight)
	assert.Equal(t, ScopeInputs, build.IgnoreScope)

	assert.Equal(t, KindCopy, model.Tasks["copy:assets"].Kind)
	assert.Equal(t, int64(1), model.Tasks["copy:assets"].Weight, "weight defaults to 1")

	all := model.Tasks["all"]
	assert.Equal(t, KindNoop, all.Kind)
	assert.Equal(t, int64(0), all.Weight, "noop tasks default to zero weight")
}

func TestLoadDefaults(t *testing.T) {
	model, err := loadString(t, `
task "build" {}
`)
	require.NoError(t, err)
	assert.Equal(t, ".monogridignore", model.Workspace.IgnoreFile)
	assert.Empty(t, model.Workspace.LockFile)
	assert.Zero(t, model.Pool.Workers)
	assert.Equal(t, ScopeNone, model.Tasks["build"].IgnoreScope)
	assert.False(t, model.Tasks["build"].TrackGitState)
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name    string
		source  string
		wantErr string
	}{
		{
			name:    "unknown kind",
			source:  `task "x" { kind = "teleport" }`,
			wantErr: `unknown kind "teleport"`,
		},
		{
			name:    "unknown ignore scope",
			source:  `task "x" { ignore_scope = "everything" }`,
			wantErr: `unknown ignore_scope "everything"`,
		},
		{
			name:    "negative weight",
			source:  `task "x" { weight = -2 }`,
			wantErr: "weight must not be negative",
		},
		{
			name: "negative workers",
			source: `pool { workers = -1 }
task "x" {}`,
			wantErr: "pool.workers must not be negative",
		},
		{
			name: "duplicate task",
			source: `task "x" {}
task "x" {}`,
			wantErr: `duplicate task rule "x"`,
		},
		{
			name:    "no tasks",
			source:  `pool { workers = 2 }`,
			wantErr: "declares no task blocks",
		},
		{
			name:    "syntax error",
			source:  `task "x" {`,
			wantErr: "failed to parse",
		},
		{
			name:    "unknown attribute",
			source:  `task "x" { color = "blue" }`,
			wantErr: "failed to decode",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := loadString(t, tc.source)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoadExpressions(t *testing.T) {
	t.Setenv("MONOGRID_TEST_LOCK", "custom.lock")
	model, err := loadString(t, `
workspace {
  ignore_file = "${root}/.sharedignore"
  lock_file   = env.MONOGRID_TEST_LOCK
}

task "build" {}
`)
	require.NoError(t, err)
	assert.Equal(t, "custom.lock", model.Workspace.LockFile)
	assert.True(t, filepath.IsAbs(model.Workspace.IgnoreFile), "the root variable expands to the workspace root")
	assert.Contains(t, model.Workspace.IgnoreFile, ".sharedignore")
}

func TestLoadMissingFile(t *testing.T) {
	root := t.TempDir()
	_, err := Load(testCtx(), filepath.Join(root, "absent.hcl"), root)
	assert.Error(t, err)
}
