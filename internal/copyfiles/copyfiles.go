// Package copyfiles implements the copy-semantics path remapping used by
// file-copy-style tasks: given source globs and a destination directory,
// compute where every matched file lands, with directory up-leveling,
// flattening and exclusion.
package copyfiles

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/shlex"
)

// Spec is the structured, validated form of a copy command string. The
// command is parsed once; nothing downstream re-reads the raw string.
type Spec struct {
	// SourceGlobs are the patterns to resolve under the task's base
	// directory.
	SourceGlobs []string
	// DestDir is the destination directory, relative to the base unless
	// absolute.
	DestDir string
	// UpLevel strips the first N leading path segments of each match
	// before remapping (-u N).
	UpLevel int
	// Flatten discards all directory segments, placing every match
	// directly under DestDir (-f).
	Flatten bool
	// IncludeDotfiles includes dotfiles during resolution (-a).
	IncludeDotfiles bool
	// FollowSymlinks follows symlinks during resolution (-F).
	FollowSymlinks bool
	// Excludes removes matches of these patterns from resolution (-e).
	Excludes []string
}

// ParseCommand decomposes a shell-like copy command ("copy -u 1 src/**/*.ts
// dist") into a Spec. The leading tool token is discarded. Unknown flags
// are ignored to stay forward-compatible; a malformed argument list
// (insufficient positional arguments, bad -u value) fails fast instead of
// running with guessed defaults.
func ParseCommand(command string) (*Spec, error) {
	args, err := shlex.Split(command)
	if err != nil {
		return nil, fmt.Errorf("parsing copy command %q: %w", command, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("parsing copy command: empty command string")
	}
	return ParseArgs(args[1:])
}

// ParseArgs parses the argument list following the tool name.
func ParseArgs(args []string) (*Spec, error) {
	spec := &Spec{}
	var positional []string

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "-u":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("copy: -u requires a value")
			}
			i++
			n, err := strconv.Atoi(args[i])
			if err != nil || n < 0 {
				return nil, fmt.Errorf("copy: invalid -u value %q", args[i])
			}
			spec.UpLevel = n
		case arg == "-f":
			spec.Flatten = true
		case arg == "-a":
			spec.IncludeDotfiles = true
		case arg == "-F":
			spec.FollowSymlinks = true
		case arg == "-e":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("copy: -e requires a pattern")
			}
			i++
			spec.Excludes = append(spec.Excludes, args[i])
		case strings.HasPrefix(arg, "-"):
			// Unknown flag: the wrapped tool's CLI may grow options we do
			// not track. Skipped, not rejected.
		default:
			positional = append(positional, arg)
		}
	}

	if len(positional) < 2 {
		return nil, fmt.Errorf("copy: expected at least one source glob and a destination directory, got %d argument(s)", len(positional))
	}
	spec.SourceGlobs = positional[:len(positional)-1]
	spec.DestDir = positional[len(positional)-1]
	return spec, nil
}

// DestPath computes the destination for one matched source path. base is
// the resolution base directory; match is the absolute matched file.
func (s *Spec) DestPath(base, match string) (string, error) {
	rel, err := filepath.Rel(base, match)
	if err != nil {
		return "", fmt.Errorf("copy: %s is not under %s: %w", match, base, err)
	}
	rel = filepath.ToSlash(rel)

	destRoot := s.DestDir
	if !filepath.IsAbs(destRoot) {
		destRoot = filepath.Join(base, destRoot)
	}

	if s.Flatten {
		return filepath.Join(destRoot, filepath.Base(rel)), nil
	}

	segments := strings.Split(rel, "/")
	if s.UpLevel >= len(segments) {
		return "", fmt.Errorf("Cannot go up that far (-u %d) for %q", s.UpLevel, rel)
	}
	remaining := segments[s.UpLevel:]
	return filepath.Join(append([]string{destRoot}, remaining...)...), nil
}

// Mapping pairs a source file with its computed destination.
type Mapping struct {
	Src string
	Dst string
}

// Map computes the full source-to-destination mapping for the matched
// files. Any single file that cannot be remapped fails the whole mapping;
// no partial output list is produced.
func (s *Spec) Map(base string, matches []string) ([]Mapping, error) {
	mappings := make([]Mapping, 0, len(matches))
	for _, m := range matches {
		dst, err := s.DestPath(base, m)
		if err != nil {
			return nil, err
		}
		mappings = append(mappings, Mapping{Src: m, Dst: dst})
	}
	return mappings, nil
}
