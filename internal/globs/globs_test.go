package globs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func TestResolveDoubleStar(t *testing.T) {
	root := writeTree(t, map[string]string{
		"src/a.ts":       "",
		"src/sub/b.ts":   "",
		"src/sub/c.json": "",
	})

	r := &Resolver{Base: root}
	got, err := r.Resolve("src/**/*.ts")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "src/a.ts"),
		filepath.Join(root, "src/sub/b.ts"),
	}, got)
}

func TestResolveSkipsDotfilesByDefault(t *testing.T) {
	root := writeTree(t, map[string]string{
		"src/a.ts":        "",
		"src/.hidden.ts":  "",
		".cache/deep.ts":  "",
		"src/.dir/in.ts":  "",
		"src/visible.ts":  "",
	})

	r := &Resolver{Base: root}
	got, err := r.Resolve("**/*.ts")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "src/a.ts"),
		filepath.Join(root, "src/visible.ts"),
	}, got)

	r.Options.IncludeDotfiles = true
	all, err := r.Resolve("**/*.ts")
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestResolveAppliesIgnoreRules(t *testing.T) {
	root := writeTree(t, map[string]string{
		"src/tracked.ts": "",
		"src/gener.ts":   "",
		"ignorefile":     "src/gener.ts\n# comment\n",
	})

	matcher, err := LoadIgnoreFile(filepath.Join(root, "ignorefile"))
	require.NoError(t, err)
	require.NotNil(t, matcher)

	r := &Resolver{Base: root, Options: Options{Ignore: matcher}}
	got, err := r.Resolve("src/**/*.ts")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "src/tracked.ts")}, got)
}

func TestResolveExcludePatterns(t *testing.T) {
	root := writeTree(t, map[string]string{
		"src/keep.ts":      "",
		"src/skip.spec.ts": "",
	})

	r := &Resolver{Base: root, Options: Options{Exclude: []string{"**/*.spec.ts"}}}
	got, err := r.Resolve("src/**/*.ts")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "src/keep.ts")}, got)
}

func TestResolveDeduplicatesAcrossPatterns(t *testing.T) {
	root := writeTree(t, map[string]string{"src/a.ts": ""})

	r := &Resolver{Base: root}
	got, err := r.Resolve("src/*.ts", "src/**/*.ts")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestResolveDirectoriesOnlyWhenAsked(t *testing.T) {
	root := writeTree(t, map[string]string{"out/sub/file.js": ""})

	r := &Resolver{Base: root}
	filesOnly, err := r.Resolve("out/*")
	require.NoError(t, err)
	assert.Empty(t, filesOnly, "out/ contains only a directory")

	r.Options.IncludeDirs = true
	withDirs, err := r.Resolve("out/*")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "out/sub")}, withDirs)
}

func TestResolveInvalidPattern(t *testing.T) {
	r := &Resolver{Base: t.TempDir()}
	_, err := r.Resolve("src/[")
	require.Error(t, err)
}

func TestLoadIgnoreFileAbsent(t *testing.T) {
	matcher, err := LoadIgnoreFile(filepath.Join(t.TempDir(), "no-such-file"))
	require.NoError(t, err)
	assert.Nil(t, matcher)
}
