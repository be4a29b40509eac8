// Package backlog implements the Backlog Store (spec component C2): a
// durable, deduplicated queue of completed-but-unsynced views. The
// canonical on-disk form is a JSON object keyed by identifier; a legacy
// JSON array (the original Python project's first schema) is detected and
// migrated on load, per spec.md §9's Open Question.
package backlog

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"simklscrobbler/internal/storage"
	"simklscrobbler/models"
)

const backlogFile = "backlog.json"

// Store is the single-writer, shared-read Backlog Store.
type Store struct {
	mu      sync.RWMutex
	fs      afero.Fs
	path    string
	entries map[string]models.BacklogEntry
}

// New loads (or creates) backlog.json under appDataDir, migrating a legacy
// list-form file to the canonical map form.
func New(fs afero.Fs, appDataDir string) (*Store, error) {
	path := filepath.Join(appDataDir, backlogFile)

	s := &Store{
		fs:      fs,
		path:    path,
		entries: make(map[string]models.BacklogEntry),
	}

	if err := s.load(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var asMap map[string]models.BacklogEntry
	if ok, err := storage.ReadJSON(s.fs, s.path, &asMap); err == nil && ok {
		s.entries = asMap
		return nil
	}

	// Either absent/malformed, or a legacy list-form file. Try the list
	// form before giving up and starting empty.
	var asList []models.BacklogEntry
	if ok, err := storage.ReadJSON(s.fs, s.path, &asList); err == nil && ok {
		s.entries = make(map[string]models.BacklogEntry, len(asList))
		for _, entry := range asList {
			key := entry.Key
			if key == "" {
				key = entry.SimklID
			}
			if key == "" {
				continue
			}
			s.entries[key] = entry
		}
		// Persist the migrated map form immediately so future loads skip
		// the list-detection branch.
		return s.saveLocked()
	}

	s.entries = make(map[string]models.BacklogEntry)
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	if err := storage.WriteJSON(s.fs, s.path, s.entries); err != nil {
		return fmt.Errorf("save backlog: %w", err)
	}
	return nil
}

// Add upserts entry under key. A later add for the same key updates the
// entry in place but preserves the earliest EnqueuedAt, matching the
// spec's "preserves earliest enqueued_at" invariant.
func (s *Store) Add(key string, entry models.BacklogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[key]; ok && !existing.EnqueuedAt.IsZero() {
		if entry.EnqueuedAt.IsZero() || existing.EnqueuedAt.Before(entry.EnqueuedAt) {
			entry.EnqueuedAt = existing.EnqueuedAt
		}
	}

	entry.Key = key
	s.entries[key] = entry
	return s.saveLocked()
}

// GetAll returns a copy of every pending backlog entry, keyed by identifier.
func (s *Store) GetAll() map[string]models.BacklogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]models.BacklogEntry, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}

// Get returns a single entry by key.
func (s *Store) Get(key string) (models.BacklogEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key]
	return entry, ok
}

// Remove deletes key from the backlog. This is the only path (besides
// Clear) by which an entry leaves the store — a successful remote sync.
func (s *Store) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; !ok {
		return nil
	}
	delete(s.entries, key)
	return s.saveLocked()
}

// Clear empties the backlog entirely.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]models.BacklogEntry)
	return s.saveLocked()
}

// Len reports the number of pending entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}
