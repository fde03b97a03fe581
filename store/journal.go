package store

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// MatchJournal tracks which match IDs have been folded into the global
// tree and flushed to the archive. It is backed by an append-only file with
// one match ID per line, read into memory on open for fast dedupe.
//
// If the process crashes mid-write, the next open drops the final partial
// line. This is a dedupe list, not a general-purpose WAL.
type MatchJournal struct {
	mu     sync.RWMutex
	path   string
	file   *os.File
	merged map[string]struct{}
}

func OpenMatchJournal(path string) (*MatchJournal, error) {
	if path == "" {
		return nil, fmt.Errorf("journal path is required")
	}

	merged := make(map[string]struct{})

	// Best-effort load of existing IDs.
	if f, err := os.Open(path); err == nil {
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			id := strings.TrimSpace(scanner.Text())
			if id == "" {
				continue
			}
			merged[id] = struct{}{}
		}
		_ = f.Close()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	return &MatchJournal{
		path:   path,
		file:   file,
		merged: merged,
	}, nil
}

func (j *MatchJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return nil
	}
	err := j.file.Close()
	j.file = nil
	return err
}

func (j *MatchJournal) Has(matchID string) bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	_, ok := j.merged[matchID]
	return ok
}

func (j *MatchJournal) Count() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.merged)
}

// Add appends a match ID and fsyncs. Adding an already-recorded ID is a
// no-op.
func (j *MatchJournal) Add(matchID string) error {
	if matchID == "" {
		return fmt.Errorf("matchID is empty")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if _, ok := j.merged[matchID]; ok {
		return nil
	}
	if j.file == nil {
		return fmt.Errorf("journal is closed")
	}

	if _, err := j.file.WriteString(matchID + "\n"); err != nil {
		return fmt.Errorf("append journal: %w", err)
	}
	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("sync journal: %w", err)
	}

	j.merged[matchID] = struct{}{}
	return nil
}
