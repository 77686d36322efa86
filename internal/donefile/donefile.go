// Package donefile persists the per-task staleness snapshot. One JSON
// document per task records the hashes of everything the task read and
// wrote; the next session compares a fresh snapshot against it to decide
// whether the task may be skipped.
package donefile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/monogrid/internal/fsutil"
	"github.com/vk/monogrid/internal/hashing"
)

// Content is the serialized snapshot. Task kinds append whatever extra
// state they need through Extra; anything that differs between the stored
// and the fresh snapshot makes the task stale.
type Content struct {
	SrcHashes   []hashing.FileHash `json:"srcHashes"`
	DstHashes   []hashing.FileHash `json:"dstHashes"`
	ToolVersion string             `json:"toolVersion"`
	Extra       map[string]string  `json:"extra,omitempty"`
}

// Equal reports whether two snapshots are byte-identical once serialized.
// Comparing through the wire form keeps the rule honest: if it would be
// written differently, it is different.
func Equal(a, b *Content) bool {
	if a == nil || b == nil {
		return a == b
	}
	aj, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bj, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(aj, bj)
}

// Store reads and writes done-files under a package's output directory.
type Store struct {
	// Dir is the directory holding the done-files, conventionally
	// <package>/.monogrid.
	Dir string
}

// NewStore returns a store rooted at the package directory's done-file
// subdirectory.
func NewStore(packageDir string) *Store {
	return &Store{Dir: filepath.Join(packageDir, ".monogrid")}
}

// Path returns the on-disk location for a task's done-file.
func (s *Store) Path(taskName string) string {
	return filepath.Join(s.Dir, sanitize(taskName)+".done.json")
}

// Load returns the previously persisted snapshot for the task, or nil when
// there is none. A missing or unparsable file means "no prior state" and
// forces a run; it is never an error.
func (s *Store) Load(taskName string) *Content {
	data, err := os.ReadFile(s.Path(taskName))
	if err != nil {
		return nil
	}
	var content Content
	if err := json.Unmarshal(data, &content); err != nil {
		return nil
	}
	return &content
}

// Save persists the snapshot atomically (write-temp-then-rename), so a
// crash mid-write cannot leave a corrupt done-file behind.
func (s *Store) Save(taskName string, content *Content) error {
	data, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal done-file for %s: %w", taskName, err)
	}
	if err := fsutil.WriteFileAtomic(s.Path(taskName), data, 0o644); err != nil {
		return fmt.Errorf("write done-file for %s: %w", taskName, err)
	}
	return nil
}

// Remove deletes the task's done-file. Called when a run fails so the next
// session cannot mistake stale outputs for valid ones.
func (s *Store) Remove(taskName string) error {
	err := os.Remove(s.Path(taskName))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// sanitize maps a task name to a safe file stem. Script names routinely
// contain ':' and '/'.
func sanitize(name string) string {
	r := strings.NewReplacer(":", "_", "/", "_", "\\", "_", "#", "_", " ", "_")
	return r.Replace(name)
}
