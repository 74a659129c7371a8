// Package fingerprint tracks per-file content fingerprints between
// indexing runs. A file whose fingerprint matches the committed state
// is skipped during incremental runs.
//
// Fingerprints are committed one file at a time, only after the file's
// chunks are durably stored. A crash mid-run therefore leaves files
// either fully indexed and committed, or uncommitted and re-processed
// on the next run.
package fingerprint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	ierr "github.com/designtools/libindex/internal/errors"
)

const (
	stateFileName = "fingerprints.json"
	lockFileName  = ".fingerprints.lock"
)

// Tracker maps relative file paths to content fingerprints.
// All methods are safe for concurrent use.
type Tracker struct {
	stateDir string

	mu    sync.RWMutex
	state map[string]string
	lock  *FileLock
}

// NewTracker creates a tracker persisting under stateDir.
func NewTracker(stateDir string) *Tracker {
	return &Tracker{
		stateDir: stateDir,
		state:    make(map[string]string),
		lock:     NewFileLock(filepath.Join(stateDir, lockFileName)),
	}
}

// Load reads the persisted fingerprint state and acquires the state
// lock. A missing state file yields an empty tracker. A corrupt state
// file is a fatal error: proceeding would silently re-embed or, worse,
// silently skip files.
func (t *Tracker) Load() error {
	acquired, err := t.lock.TryLock()
	if err != nil {
		return ierr.New(ierr.ErrCodeStateLocked, "failed to acquire state lock", err)
	}
	if !acquired {
		return ierr.New(ierr.ErrCodeStateLocked,
			fmt.Sprintf("state directory %s is locked by another indexer process", t.stateDir), nil)
	}

	path := filepath.Join(t.stateDir, stateFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return ierr.New(ierr.ErrCodeStateCorrupt,
			fmt.Sprintf("failed to read fingerprint state %s", path), err)
	}

	var state map[string]string
	if err := json.Unmarshal(data, &state); err != nil {
		return ierr.New(ierr.ErrCodeStateCorrupt,
			fmt.Sprintf("fingerprint state %s is corrupt", path), err)
	}

	t.mu.Lock()
	t.state = state
	if t.state == nil {
		t.state = make(map[string]string)
	}
	t.mu.Unlock()
	return nil
}

// Close releases the state lock.
func (t *Tracker) Close() error {
	return t.lock.Unlock()
}

// ShouldProcess reports whether a file with the given fingerprint
// needs indexing. Unknown paths and changed fingerprints both return
// true.
func (t *Tracker) ShouldProcess(path, fingerprint string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	prev, ok := t.state[path]
	return !ok || prev != fingerprint
}

// Commit records a fingerprint for a fully indexed file.
func (t *Tracker) Commit(path, fingerprint string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state[path] = fingerprint
}

// Forget removes a path from the tracked state.
func (t *Tracker) Forget(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.state, path)
}

// Paths returns all tracked paths in sorted order.
func (t *Tracker) Paths() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	paths := make([]string, 0, len(t.state))
	for p := range t.state {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Len returns the number of tracked files.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.state)
}

// Stale returns tracked paths that are absent from seen, i.e. files
// that existed on a previous run but are gone now.
func (t *Tracker) Stale(seen map[string]bool) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var stale []string
	for p := range t.state {
		if !seen[p] {
			stale = append(stale, p)
		}
	}
	sort.Strings(stale)
	return stale
}

// Save atomically persists the fingerprint state. It writes to a
// temporary file in the same directory and renames it over the state
// file, so a crash during save never corrupts the previous state.
func (t *Tracker) Save() error {
	t.mu.RLock()
	data, err := json.MarshalIndent(t.state, "", "  ")
	t.mu.RUnlock()
	if err != nil {
		return ierr.New(ierr.ErrCodeInternal, "failed to marshal fingerprint state", err)
	}

	if err := os.MkdirAll(t.stateDir, 0o755); err != nil {
		return ierr.New(ierr.ErrCodeStoreWrite, "failed to create state directory", err)
	}

	path := filepath.Join(t.stateDir, stateFileName)
	tmp, err := os.CreateTemp(t.stateDir, stateFileName+".tmp-*")
	if err != nil {
		return ierr.New(ierr.ErrCodeStoreWrite, "failed to create temp state file", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return ierr.New(ierr.ErrCodeStoreWrite, "failed to write fingerprint state", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return ierr.New(ierr.ErrCodeStoreWrite, "failed to sync fingerprint state", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return ierr.New(ierr.ErrCodeStoreWrite, "failed to close temp state file", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return ierr.New(ierr.ErrCodeStoreWrite, "failed to replace fingerprint state", err)
	}
	return nil
}
