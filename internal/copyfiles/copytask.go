package copyfiles

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/vk/monogrid/internal/ctxlog"
	"github.com/vk/monogrid/internal/globs"
	"github.com/vk/monogrid/internal/task"
)

// NewTask completes a copy-style leaf task from its command string. Inputs
// are the resolved source globs; outputs are the remapped destinations, so
// the default staleness algorithm detects both changed sources and deleted
// copies. Copying is side-effect isolated, so the task runs in-process.
func NewTask(leaf *task.Leaf, matcher *ignore.GitIgnore) (*task.Leaf, error) {
	spec, err := ParseCommand(leaf.Command)
	if err != nil {
		return nil, err
	}

	resolver := &globs.Resolver{
		Base: leaf.PackageDir,
		Options: globs.Options{
			IncludeDotfiles:  spec.IncludeDotfiles,
			NoFollowSymlinks: !spec.FollowSymlinks,
			Ignore:           matcher,
			Exclude:          spec.Excludes,
		},
	}

	leaf.InProcess = true
	leaf.Def = task.Definition{
		InputFiles: func(ctx context.Context) ([]string, error) {
			return resolver.Resolve(spec.SourceGlobs...)
		},
		OutputFiles: func(ctx context.Context) ([]string, error) {
			srcs, err := leaf.CacheInputFiles(ctx)
			if err != nil {
				return nil, err
			}
			mappings, err := spec.Map(leaf.PackageDir, srcs)
			if err != nil {
				return nil, err
			}
			dsts := make([]string, len(mappings))
			for i, m := range mappings {
				dsts[i] = m.Dst
			}
			return dsts, nil
		},
		Execute: func(ctx context.Context) error {
			return runCopy(ctx, leaf, spec)
		},
	}
	return leaf, nil
}

// runCopy performs the actual file copies. The source set is re-resolved
// through the memoized accessor, so it is the same set the staleness check
// hashed.
func runCopy(ctx context.Context, l *task.Leaf, spec *Spec) error {
	srcs, err := l.CacheInputFiles(ctx)
	if err != nil {
		return err
	}
	mappings, err := spec.Map(l.PackageDir, srcs)
	if err != nil {
		return err
	}
	logger := ctxlog.FromContext(ctx)
	for _, m := range mappings {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := copyFile(m.Src, m.Dst); err != nil {
			return fmt.Errorf("copy %s -> %s: %w", m.Src, m.Dst, err)
		}
	}
	logger.Debug("Copy task finished.", "task", l.Name(), "files", len(mappings))
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
