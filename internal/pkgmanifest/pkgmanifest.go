// Package pkgmanifest loads workspace package manifests. A manifest is the
// package.json-style document at a package root: name, scripts and declared
// dependencies. Packages are immutable once loaded for the duration of a
// build session.
package pkgmanifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/vk/monogrid/internal/fsutil"
)

// ManifestFileName is the per-package manifest document.
const ManifestFileName = "package.json"

// Manifest mirrors the fields of the manifest document the orchestrator
// cares about. Tool-specific fields are ignored.
type Manifest struct {
	Name            string            `json:"name"`
	Version         string            `json:"version"`
	Private         bool              `json:"private"`
	Scripts         map[string]string `json:"scripts"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

// Package is one workspace package: identity, root directory and parsed
// manifest.
type Package struct {
	Name     string
	Dir      string
	Manifest Manifest
}

// Script returns the command string for a named script, with a flag for
// whether the script is declared at all.
func (p *Package) Script(name string) (string, bool) {
	cmd, ok := p.Manifest.Scripts[name]
	return cmd, ok
}

// DependsOn reports whether the package declares a dependency (regular or
// dev) on the named package.
func (p *Package) DependsOn(name string) bool {
	if _, ok := p.Manifest.Dependencies[name]; ok {
		return true
	}
	_, ok := p.Manifest.DevDependencies[name]
	return ok
}

// Load reads and parses the manifest in dir.
func Load(dir string) (*Package, error) {
	path := filepath.Join(dir, ManifestFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	if m.Name == "" {
		return nil, fmt.Errorf("manifest %s has no name", path)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return &Package{Name: m.Name, Dir: abs, Manifest: m}, nil
}

// Discover walks the repository root for package manifests and loads each
// one. Dependency install trees and VCS metadata are not descended into.
// Duplicate package names fail discovery: task identities would collide.
func Discover(root string) ([]*Package, error) {
	manifests, err := fsutil.FindFilesByName(root, ManifestFileName, "node_modules", ".git", ".monogrid")
	if err != nil {
		return nil, fmt.Errorf("scanning %s for manifests: %w", root, err)
	}

	byName := make(map[string]string)
	var packages []*Package
	for _, path := range manifests {
		pkg, err := Load(filepath.Dir(path))
		if err != nil {
			return nil, err
		}
		if prev, dup := byName[pkg.Name]; dup {
			return nil, fmt.Errorf("duplicate package name %q in %s and %s", pkg.Name, prev, pkg.Dir)
		}
		byName[pkg.Name] = pkg.Dir
		packages = append(packages, pkg)
	}

	sort.Slice(packages, func(i, j int) bool { return packages[i].Name < packages[j].Name })
	return packages, nil
}
