// Package watchhistory keeps a bounded, local-only record of completed
// views, independent of Simkl's own remote history. It is a supplemented
// feature (spec.md's distillation dropped it; the original
// watch_history_manager.py keeps one). The tracker appends an entry after
// each successful history sync; Recent and Contains are read accessors
// that no other package in this module calls.
package watchhistory

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"simklscrobbler/internal/storage"
	"simklscrobbler/models"
)

const historyFile = "watch_history.json"

// MaxEntries bounds the local history length, per spec.md §6.3.
const MaxEntries = 500

// History is the bounded, most-recent-first local watch history.
type History struct {
	mu      sync.RWMutex
	fs      afero.Fs
	path    string
	entries []models.WatchHistoryEntry
}

// New loads (or creates) watch_history.json under appDataDir.
func New(fs afero.Fs, appDataDir string) (*History, error) {
	h := &History{
		fs:   fs,
		path: filepath.Join(appDataDir, historyFile),
	}

	if err := h.load(); err != nil {
		return nil, err
	}

	return h, nil
}

func (h *History) load() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var onDisk []models.WatchHistoryEntry
	ok, err := storage.ReadJSON(h.fs, h.path, &onDisk)
	if err != nil {
		return err
	}
	if !ok {
		h.entries = nil
		return h.saveLocked()
	}

	h.entries = onDisk
	return nil
}

func (h *History) saveLocked() error {
	if err := storage.WriteJSON(h.fs, h.path, h.entries); err != nil {
		return fmt.Errorf("save watch history: %w", err)
	}
	return nil
}

// Append adds entry to the front of the history, trimming to MaxEntries.
func (h *History) Append(entry models.WatchHistoryEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append([]models.WatchHistoryEntry{entry}, h.entries...)
	if len(h.entries) > MaxEntries {
		h.entries = h.entries[:MaxEntries]
	}

	return h.saveLocked()
}

// Recent returns up to n of the most recently appended entries.
func (h *History) Recent(n int) []models.WatchHistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n > len(h.entries) {
		n = len(h.entries)
	}
	out := make([]models.WatchHistoryEntry, n)
	copy(out, h.entries[:n])
	return out
}

// Contains reports whether simklID already appears anywhere in the
// recorded history (used as a session-local "already recorded" hint).
func (h *History) Contains(simklID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, e := range h.entries {
		if e.SimklID == simklID {
			return true
		}
	}
	return false
}
