// Package mediacache implements the Media Cache (spec component C1): a
// persistent mapping from normalized string keys (filename or parsed window
// title) to a CacheEntry, backed by a single atomically-saved JSON file.
package mediacache

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"

	"simklscrobbler/internal/storage"
	"simklscrobbler/models"
)

const cacheFile = "media_cache.json"

// Cache is the single-writer, shared-read Media Cache.
type Cache struct {
	mu      sync.RWMutex
	fs      afero.Fs
	path    string
	entries map[string]models.CacheEntry
}

// New loads (or creates) media_cache.json under appDataDir.
func New(fs afero.Fs, appDataDir string) (*Cache, error) {
	path := filepath.Join(appDataDir, cacheFile)

	c := &Cache{
		fs:      fs,
		path:    path,
		entries: make(map[string]models.CacheEntry),
	}

	if err := c.load(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Cache) load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var onDisk map[string]models.CacheEntry
	ok, err := storage.ReadJSON(c.fs, c.path, &onDisk)
	if err != nil {
		return err
	}
	if !ok {
		// Malformed, empty, or absent: start empty and lay down a fresh file.
		c.entries = make(map[string]models.CacheEntry)
		return c.saveLocked()
	}

	c.entries = onDisk
	return nil
}

func (c *Cache) saveLocked() error {
	if err := storage.WriteJSON(c.fs, c.path, c.entries); err != nil {
		return fmt.Errorf("save media cache: %w", err)
	}
	return nil
}

// Get returns the cache entry for key, normalizing it first. Testable
// property 6 (cache.get(K) == cache.get(K.lower())) follows directly from
// both Get and Set normalizing through NormalizeKey.
func (c *Cache) Get(key string) (models.CacheEntry, bool) {
	norm := NormalizeKey(key)

	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[norm]
	return entry, ok
}

// Set stores entry under key's normalized form and persists immediately.
func (c *Cache) Set(key string, entry models.CacheEntry) error {
	norm := NormalizeKey(key)
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = time.Now().UTC()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[norm] = entry
	return c.saveLocked()
}

// Update shallow-merges patch fields onto the existing entry for key,
// inserting a new entry if absent. Zero-value fields in patch do not
// overwrite non-zero fields already present.
func (c *Cache) Update(key string, patch models.CacheEntry) error {
	norm := NormalizeKey(key)

	c.mu.Lock()
	defer c.mu.Unlock()

	existing, ok := c.entries[norm]
	if !ok {
		existing = patch
	} else {
		existing = mergeEntry(existing, patch)
	}
	existing.UpdatedAt = time.Now().UTC()

	c.entries[norm] = existing
	return c.saveLocked()
}

func mergeEntry(existing, patch models.CacheEntry) models.CacheEntry {
	merged := existing

	if patch.Identity.SimklID != "" {
		merged.Identity.SimklID = patch.Identity.SimklID
	}
	if patch.Identity.Kind != "" {
		merged.Identity.Kind = patch.Identity.Kind
	}
	if patch.Identity.DisplayTitle != "" {
		merged.Identity.DisplayTitle = patch.Identity.DisplayTitle
	}
	if patch.Identity.Year != 0 {
		merged.Identity.Year = patch.Identity.Year
	}
	if patch.Identity.Season != 0 {
		merged.Identity.Season = patch.Identity.Season
	}
	if patch.Identity.Episode != 0 {
		merged.Identity.Episode = patch.Identity.Episode
	}
	if patch.Identity.RuntimeSeconds != 0 {
		merged.Identity.RuntimeSeconds = patch.Identity.RuntimeSeconds
	}
	if patch.Identity.SourceTag != "" {
		merged.Identity.SourceTag = patch.Identity.SourceTag
	}
	if patch.Identity.OriginalFilepath != "" {
		merged.Identity.OriginalFilepath = patch.Identity.OriginalFilepath
	}
	if patch.PosterURL != "" {
		merged.PosterURL = patch.PosterURL
	}
	if patch.DurationSeconds != 0 {
		merged.DurationSeconds = patch.DurationSeconds
	}

	return merged
}

// Remove deletes the entry for key, if present.
func (c *Cache) Remove(key string) error {
	norm := NormalizeKey(key)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[norm]; !ok {
		return nil
	}
	delete(c.entries, norm)
	return c.saveLocked()
}

// FindBySimklID returns the (key, entry) pair whose identity carries the
// given real Simkl ID, if any.
func (c *Cache) FindBySimklID(simklID string) (string, models.CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for key, entry := range c.entries {
		if entry.Identity.SimklID == simklID {
			return key, entry, true
		}
	}
	return "", models.CacheEntry{}, false
}

// EntriesOfKind returns a copy of every cached entry whose identity matches
// kind, keyed by normalized cache key.
func (c *Cache) EntriesOfKind(kind models.Kind) map[string]models.CacheEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]models.CacheEntry)
	for key, entry := range c.entries {
		if entry.Identity.Kind == kind {
			out[key] = entry
		}
	}
	return out
}
