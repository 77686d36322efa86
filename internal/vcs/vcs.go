// Package vcs exposes the little version-control state the orchestrator
// consumes: the repository root, the current commit and a digest of
// working-tree modifications. Tasks whose validity is tied to git state
// record these in their done-files.
package vcs

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/vk/monogrid/internal/fsutil"
)

// Root returns the version-control root at or above dir, or "" when dir is
// not inside a repository.
func Root(dir string) (string, error) {
	return fsutil.FindUp(dir, ".git")
}

// Head returns the current commit id.
func Head(ctx context.Context, dir string) (string, error) {
	out, err := run(ctx, dir, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// WorkingTreeHash digests the porcelain status output, so any staged or
// unstaged modification changes the fingerprint.
func WorkingTreeHash(ctx context.Context, dir string) (string, error) {
	out, err := run(ctx, dir, "status", "--porcelain")
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256([]byte(out))
	return fmt.Sprintf("%x", sum[:]), nil
}

func run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
