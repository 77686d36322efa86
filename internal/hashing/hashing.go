// Package hashing computes the content fingerprints the staleness machinery
// compares. All digests are BLAKE3, hex encoded.
package hashing

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/zeebo/blake3"
)

// MissingHash is the sentinel recorded for a declared output that does not
// exist yet. Clean and first builds stay representable this way: the next
// comparison sees the sentinel differ from the real hash and reruns the task.
const MissingHash = "<missing>"

// FileHash pairs a file's name (relative to whatever base the task chose)
// with the digest of its bytes.
type FileHash struct {
	Name string `json:"name"`
	Hash string `json:"hash"`
}

// HashFile streams the file at path through BLAKE3 and returns the hex
// digest. The file is never loaded whole, so large build outputs do not
// balloon memory.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// HashFileOrMissing is HashFile with the missing-output fallback: a file
// that does not exist hashes to MissingHash instead of failing.
func HashFileOrMissing(path string) (string, error) {
	hash, err := HashFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return MissingHash, nil
		}
		return "", err
	}
	return hash, nil
}

// HashFiles hashes every path in resolution order, naming each entry with
// the function's rel mapping (identity when rel is nil). Missing files are
// recorded with MissingHash; any other failure aborts.
func HashFiles(paths []string, rel func(string) string) ([]FileHash, error) {
	hashes := make([]FileHash, 0, len(paths))
	for _, p := range paths {
		hash, err := HashFileOrMissing(p)
		if err != nil {
			return nil, err
		}
		name := p
		if rel != nil {
			name = rel(p)
		}
		hashes = append(hashes, FileHash{Name: name, Hash: hash})
	}
	return hashes, nil
}

// Combine folds an ordered list of FileHash pairs into a single digest.
// Order is significant: callers that want order-insensitivity sort first
// (see CombineSorted). Fields are length-prefixed so adjacent entries
// cannot alias.
func Combine(hashes []FileHash) string {
	h := blake3.New()
	var lenBuf [8]byte
	writeField := func(s string) {
		n := uint64(len(s))
		for i := 0; i < 8; i++ {
			lenBuf[i] = byte(n >> (56 - 8*i))
		}
		h.Write(lenBuf[:])
		h.Write([]byte(s))
	}
	for _, fh := range hashes {
		writeField(fh.Name)
		writeField(fh.Hash)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// CombineSorted is Combine over a name-sorted copy, for task kinds whose
// contract says input order does not matter.
func CombineSorted(hashes []FileHash) string {
	sorted := make([]FileHash, len(hashes))
	copy(sorted, hashes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	return Combine(sorted)
}

// HashValue fingerprints any JSON-serializable value. Map keys are sorted
// by encoding/json, so equal values always produce equal digests.
func HashValue(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("hashing value: %w", err)
	}
	sum := blake3.Sum256(data)
	return fmt.Sprintf("%x", sum[:]), nil
}
