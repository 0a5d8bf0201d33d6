// Package blobstore persists large template bodies outside the database.
// Email bodies are written here at intake and read back at delivery time, so
// the messages table only carries a storage-relative path.
package blobstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store is a blob store rooted at a single local directory.
type Store struct {
	root string
}

// NewStore roots the store at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("NewStore: empty root directory")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("NewStore: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("NewStore: %w", err)
	}
	return &Store{root: abs}, nil
}

// Put writes content under the given relative path and returns the normalized
// storage-relative path.
func (s *Store) Put(path string, content []byte) (string, error) {
	rel, err := s.normalize(path)
	if err != nil {
		return "", fmt.Errorf("Put: %w", err)
	}
	full := filepath.Join(s.root, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("Put: %w", err)
	}
	if err := os.WriteFile(full, content, 0o644); err != nil {
		return "", fmt.Errorf("Put: %w", err)
	}
	return rel, nil
}

// Get reads the blob at the given path. The path may be storage-relative or an
// absolute path inside the store root; both resolve to the same blob.
func (s *Store) Get(path string) ([]byte, error) {
	rel, err := s.normalize(path)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	content, err := os.ReadFile(filepath.Join(s.root, rel))
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return content, nil
}

// normalize converts path into a clean storage-relative path. Absolute paths
// under the store root are stripped to their relative form; traversal outside
// the root is rejected.
func (s *Store) normalize(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty path")
	}
	if filepath.IsAbs(path) {
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return "", err
		}
		path = rel
	}
	path = filepath.Clean(path)
	if path == "." || strings.HasPrefix(path, "..") {
		return "", fmt.Errorf("path %q escapes the store root", path)
	}
	return path, nil
}
