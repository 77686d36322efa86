package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestFindFilesByName(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a", "package.json"))
	touch(t, filepath.Join(root, "a", "deep", "package.json"))
	touch(t, filepath.Join(root, "a", "node_modules", "dep", "package.json"))
	touch(t, filepath.Join(root, "b", "other.json"))

	files, err := FindFilesByName(root, "package.json", "node_modules")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(root, "a", "package.json"),
		filepath.Join(root, "a", "deep", "package.json"),
	}, files)
}

func TestFindFilesByNamePanicsOnEmptyName(t *testing.T) {
	assert.Panics(t, func() {
		_, _ = FindFilesByName(t.TempDir(), "")
	})
}

func TestFindUp(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))
	start := filepath.Join(root, "packages", "web", "src")
	require.NoError(t, os.MkdirAll(start, 0o755))

	found, err := FindUp(start, ".git")
	require.NoError(t, err)
	// TempDir may sit behind a symlink; compare resolved paths.
	wantRoot, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	gotRoot, err := filepath.EvalSymlinks(found)
	require.NoError(t, err)
	assert.Equal(t, wantRoot, gotRoot)

	found, err = FindUp(start, "definitely-not-present-marker")
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "state.json")

	require.NoError(t, WriteFileAtomic(path, []byte("v1"), 0o644))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(data))

	require.NoError(t, WriteFileAtomic(path, []byte("v2"), 0o600))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files survive a successful write")
}

func TestRelOrSelf(t *testing.T) {
	assert.Equal(t, "src/a.ts", RelOrSelf("/repo/pkg", "/repo/pkg/src/a.ts"))
	assert.Equal(t, "/elsewhere/a.ts", RelOrSelf("/repo/pkg", "/elsewhere/a.ts"), "paths outside the base stay absolute")
}
