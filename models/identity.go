// Package models holds the data types shared across the scrobbling engine:
// resolved media identities, cache/backlog entries, and the playback session
// the tracker mutates on every poll tick.
package models

import (
	"fmt"
	"strconv"
	"time"
)

// Kind is the catalog kind of a MediaIdentity.
type Kind string

const (
	KindMovie Kind = "movie"
	KindShow  Kind = "show"
	KindAnime Kind = "anime"
)

// SourceTag records how a MediaIdentity was obtained.
type SourceTag string

const (
	SourceSimklFileSearch  SourceTag = "simkl_file_search"
	SourceSimklTitleSearch SourceTag = "simkl_title_search"
	SourceGuessitFallback  SourceTag = "guessit_fallback"
	SourceUserCache        SourceTag = "user_cache"
)

// MediaIdentity is the resolved catalog entity for a file or title.
//
// SimklID carries either a real numeric Simkl ID (as a decimal string) or a
// temporary opaque key ("temp:<uuid>" / "guessit:<hash>") when unresolved.
// Once a real ID is set it is immutable; Kind never changes once set.
type MediaIdentity struct {
	SimklID          string    `json:"simkl_id"`
	Kind             Kind      `json:"kind"`
	DisplayTitle     string    `json:"display_title"`
	Year             int       `json:"year,omitempty"`
	Season           int       `json:"season,omitempty"`
	Episode          int       `json:"episode,omitempty"`
	RuntimeSeconds   float64   `json:"runtime_seconds,omitempty"`
	SourceTag        SourceTag `json:"source_tag"`
	OriginalFilepath string    `json:"original_filepath,omitempty"`
}

// IsTemporary reports whether SimklID is a placeholder rather than a real
// catalog ID.
func (m MediaIdentity) IsTemporary() bool {
	return hasPrefix(m.SimklID, "temp:") || hasPrefix(m.SimklID, "guessit:")
}

// HasEpisodeInfo reports whether the season/episode coordinates required by
// kind are present. Shows require both season and episode; anime requires
// only the episode number.
func (m MediaIdentity) HasEpisodeInfo() bool {
	switch m.Kind {
	case KindShow:
		return m.Season > 0 && m.Episode > 0
	case KindAnime:
		return m.Episode > 0
	default:
		return true
	}
}

// Complete reports whether the identity carries enough information to be
// synced to the remote catalog: a non-temporary ID, and episode coordinates
// when the kind requires them.
func (m MediaIdentity) Complete() bool {
	return m.SimklID != "" && !m.IsTemporary() && m.HasEpisodeInfo()
}

// SimklIDInt parses SimklID as a real numeric catalog ID. It fails for
// temporary identities (temp:/guessit: keys) — callers must resolve those
// before syncing to the remote API.
func (m MediaIdentity) SimklIDInt() (int, error) {
	if m.IsTemporary() || m.SimklID == "" {
		return 0, fmt.Errorf("identity %q has no numeric simkl id", m.DisplayTitle)
	}
	id, err := strconv.Atoi(m.SimklID)
	if err != nil {
		return 0, fmt.Errorf("parse simkl id %q: %w", m.SimklID, err)
	}
	return id, nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// CacheEntry is the Media Cache's persisted value: a MediaIdentity plus
// presentation fields cached alongside it.
type CacheEntry struct {
	Identity        MediaIdentity `json:"identity"`
	PosterURL       string        `json:"poster_url,omitempty"`
	DurationSeconds float64       `json:"duration_seconds,omitempty"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// BacklogEntry is a completed view awaiting remote recording.
type BacklogEntry struct {
	Key              string    `json:"key"`
	SimklID          string    `json:"simkl_id"`
	DisplayTitle     string    `json:"display_title"`
	Kind             Kind      `json:"kind"`
	Season           int       `json:"season,omitempty"`
	Episode          int       `json:"episode,omitempty"`
	OriginalFilepath string    `json:"original_filepath,omitempty"`
	EnqueuedAt       time.Time `json:"enqueued_at"`
}

// WatchHistoryEntry is a completed, successfully-synced view recorded in the
// bounded local history file.
type WatchHistoryEntry struct {
	SimklID      string    `json:"simkl_id"`
	DisplayTitle string    `json:"display_title"`
	Kind         Kind      `json:"kind"`
	Season       int       `json:"season,omitempty"`
	Episode      int       `json:"episode,omitempty"`
	WatchedAt    time.Time `json:"watched_at"`
}
