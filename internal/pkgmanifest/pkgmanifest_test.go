package pkgmanifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFileName), []byte(content), 0o644))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `{
		"name": "pkg-a",
		"version": "1.2.3",
		"private": true,
		"scripts": {"build": "tsc -b", "test": "vitest run"},
		"dependencies": {"pkg-b": "workspace:*"},
		"devDependencies": {"pkg-c": "workspace:*"}
	}`)

	pkg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "pkg-a", pkg.Name)
	assert.True(t, filepath.IsAbs(pkg.Dir))
	assert.True(t, pkg.Manifest.Private)

	cmd, ok := pkg.Script("build")
	assert.True(t, ok)
	assert.Equal(t, "tsc -b", cmd)
	_, ok = pkg.Script("lint")
	assert.False(t, ok)

	assert.True(t, pkg.DependsOn("pkg-b"))
	assert.True(t, pkg.DependsOn("pkg-c"), "dev dependencies count")
	assert.False(t, pkg.DependsOn("pkg-z"))
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(t.TempDir())
	assert.ErrorContains(t, err, "reading manifest")

	dir := t.TempDir()
	writeManifest(t, dir, "{broken")
	_, err = Load(dir)
	assert.ErrorContains(t, err, "parsing manifest")

	dir = t.TempDir()
	writeManifest(t, dir, `{"version": "0.0.1"}`)
	_, err = Load(dir)
	assert.ErrorContains(t, err, "has no name")
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, filepath.Join(root, "packages", "zeta"), `{"name": "zeta"}`)
	writeManifest(t, filepath.Join(root, "packages", "alpha"), `{"name": "alpha"}`)
	// Installed dependency trees must not surface as workspace packages.
	writeManifest(t, filepath.Join(root, "packages", "alpha", "node_modules", "leftpad"), `{"name": "leftpad"}`)

	packages, err := Discover(root)
	require.NoError(t, err)
	require.Len(t, packages, 2)
	assert.Equal(t, "alpha", packages[0].Name, "discovery order is name-sorted")
	assert.Equal(t, "zeta", packages[1].Name)
}

func TestDiscoverRejectsDuplicateNames(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, filepath.Join(root, "a"), `{"name": "same"}`)
	writeManifest(t, filepath.Join(root, "b"), `{"name": "same"}`)

	_, err := Discover(root)
	assert.ErrorContains(t, err, "duplicate package name")
}
