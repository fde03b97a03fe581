package store

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/oxolearn/oxo/movetree"
)

// ErrTreeNotFound is returned by Load for a name that was never saved.
var ErrTreeNotFound = errors.New("store: tree not found")

// TreeStore keeps one binary tree file per name under a data directory.
type TreeStore struct {
	dir string
}

// NewTreeStore creates the data directory if needed.
func NewTreeStore(dir string) (*TreeStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("store: data dir is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create tree dir: %w", err)
	}
	return &TreeStore{dir: abs}, nil
}

// Path returns the file backing the named tree.
func (s *TreeStore) Path(name string) string {
	return filepath.Join(s.dir, name+".tree")
}

// Exists reports whether the named tree has been saved.
func (s *TreeStore) Exists(name string) bool {
	_, err := os.Stat(s.Path(name))
	return err == nil
}

// Save writes the tree to a temp file and renames it into place, so a
// crash mid-write never leaves a truncated tree behind.
func (s *TreeStore) Save(name string, root *movetree.MoveNode) error {
	outPath := s.Path(name)
	tmpPath := outPath + ".tmp"
	_ = os.Remove(tmpPath)

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open tmp tree: %w", err)
	}

	w := bufio.NewWriter(f)
	if err := EncodeTree(w, root); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("encode tree: %w", err)
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("flush tree: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("sync tree: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close tmp tree: %w", err)
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("finalize tree: %w", err)
	}
	return nil
}

// Load reads the named tree back. ErrTreeNotFound distinguishes a missing
// file from a corrupt one.
func (s *TreeStore) Load(name string) (*movetree.MoveNode, error) {
	f, err := os.Open(s.Path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrTreeNotFound, name)
		}
		return nil, fmt.Errorf("open tree: %w", err)
	}
	defer f.Close()

	root, err := DecodeTree(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.Path(name), err)
	}
	return root, nil
}

// Remove deletes the named tree. Removing a tree that does not exist is
// not an error.
func (s *TreeStore) Remove(name string) error {
	err := os.Remove(s.Path(name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove tree: %w", err)
	}
	return nil
}
