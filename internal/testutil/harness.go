// Package testutil provides the shared integration-test harness: a
// scratch workspace built from literal file contents, run through the full
// app, with captured log output.
package testutil

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/monogrid/internal/app"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	Output string
	Err    error
	Root   string
}

// WriteWorkspace materializes the given relative path -> content map under
// a fresh temp directory and returns its root.
func WriteWorkspace(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

// RunSession builds a workspace from files and runs a full session against
// it using a default background context.
func RunSession(t *testing.T, files map[string]string, opts ...func(*app.Config)) *HarnessResult {
	t.Helper()
	return RunSessionWithContext(context.Background(), t, files, opts...)
}

// RunSessionWithContext is RunSession with a caller-provided context, for
// cancellation tests.
func RunSessionWithContext(ctx context.Context, t *testing.T, files map[string]string, opts ...func(*app.Config)) *HarnessResult {
	t.Helper()
	return runAt(ctx, t, WriteWorkspace(t, files), opts...)
}

// RunExisting runs a session against a previously materialized workspace,
// for multi-session staleness tests.
func RunExisting(t *testing.T, root string, opts ...func(*app.Config)) *HarnessResult {
	t.Helper()
	return runAt(context.Background(), t, root, opts...)
}

func runAt(ctx context.Context, t *testing.T, root string, opts ...func(*app.Config)) *HarnessResult {
	t.Helper()
	buf := &SafeBuffer{}

	cfg, err := app.NewConfig(app.Config{
		RepoRoot:     root,
		PipelinePath: filepath.Join(root, "monogrid.hcl"),
		LogFormat:    "text",
		LogLevel:     "debug",
	})
	require.NoError(t, err)
	for _, opt := range opts {
		opt(cfg)
	}

	var session *app.App
	var panicErr any
	func() {
		defer func() {
			if r := recover(); r != nil {
				panicErr = r
			}
		}()
		session = app.NewApp(buf, cfg)
	}()
	if panicErr != nil {
		return &HarnessResult{
			Output: buf.String(),
			Err:    fmt.Errorf("application startup panicked | %v", panicErr),
			Root:   root,
		}
	}

	runErr := session.Run(ctx)
	return &HarnessResult{Output: buf.String(), Err: runErr, Root: root}
}
