// Package globs resolves task input and output file sets from glob
// patterns. Patterns use doublestar syntax, so "**" crosses directory
// boundaries the way build-tool configs expect.
package globs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"
)

// Options controls a single resolution pass. The zero value resolves files
// only, skips dotfiles, follows symlinks, and applies no ignore rules.
type Options struct {
	// IncludeDirs keeps matched directories in the result instead of
	// restricting it to regular files.
	IncludeDirs bool
	// IncludeDotfiles keeps entries whose path contains a dot-prefixed
	// segment. They are dropped otherwise, matching shell expectations.
	IncludeDotfiles bool
	// NoFollowSymlinks stops "**" expansion from descending through
	// symlinked directories.
	NoFollowSymlinks bool
	// Ignore filters out matches per version-control ignore rules. A task
	// sets this independently for its input and output resolutions.
	Ignore *ignore.GitIgnore
	// Exclude removes matches of these extra patterns from the result.
	Exclude []string
}

// Resolver resolves patterns relative to a base directory. Resolvers are
// cheap values; tasks hold one per scope (inputs, outputs).
type Resolver struct {
	Base    string
	Options Options
}

// Resolve expands every pattern under the base directory and returns an
// absolute, deduplicated, sorted path list. Filesystem errors during the
// walk propagate; callers decide whether to degrade.
func (r *Resolver) Resolve(patterns ...string) ([]string, error) {
	base, err := filepath.Abs(r.Base)
	if err != nil {
		return nil, fmt.Errorf("resolving glob base %q: %w", r.Base, err)
	}

	opts := []doublestar.GlobOption{doublestar.WithFailOnIOErrors()}
	if !r.Options.IncludeDirs {
		opts = append(opts, doublestar.WithFilesOnly())
	}
	if r.Options.NoFollowSymlinks {
		opts = append(opts, doublestar.WithNoFollow())
	}

	fsys := os.DirFS(base)
	seen := make(map[string]struct{})
	var out []string
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid glob pattern %q", pattern)
		}
		matches, err := doublestar.Glob(fsys, filepath.ToSlash(pattern), opts...)
		if err != nil {
			return nil, fmt.Errorf("resolving glob %q under %s: %w", pattern, base, err)
		}
		for _, m := range matches {
			if !r.keep(m) {
				continue
			}
			abs := filepath.Join(base, filepath.FromSlash(m))
			if _, dup := seen[abs]; dup {
				continue
			}
			seen[abs] = struct{}{}
			out = append(out, abs)
		}
	}
	sort.Strings(out)
	return out, nil
}

// keep applies the dotfile, ignore and exclude filters to one slash-separated
// relative match.
func (r *Resolver) keep(rel string) bool {
	if !r.Options.IncludeDotfiles && hasDotSegment(rel) {
		return false
	}
	if r.Options.Ignore != nil && r.Options.Ignore.MatchesPath(rel) {
		return false
	}
	for _, ex := range r.Options.Exclude {
		if ok, _ := doublestar.Match(ex, rel); ok {
			return false
		}
	}
	return true
}

func hasDotSegment(rel string) bool {
	for _, seg := range strings.Split(rel, "/") {
		if strings.HasPrefix(seg, ".") && seg != "." && seg != ".." {
			return true
		}
	}
	return false
}

// LoadIgnoreFile compiles the ignore-pattern file at path. The format is the
// usual line-oriented one: '#' comments, blank lines skipped, trailing slash
// marks a directory rule. A missing file is not an error and yields nil.
func LoadIgnoreFile(path string) (*ignore.GitIgnore, error) {
	matcher, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading ignore file %s: %w", path, err)
	}
	return matcher, nil
}
