// Package config persists the engine's settings.json: the completion
// threshold, poll/sync intervals, player probe ports, and the Simkl client
// identifier. Credentials (tokens) are handled separately by
// internal/credentials since they need at-rest encryption.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"simklscrobbler/internal/storage"
)

const settingsFile = "settings.json"

const (
	DefaultCompletionThreshold = 80
	DefaultPollInterval        = 10 * time.Second
	DefaultSyncInterval        = 120 * time.Second
	DefaultBacklogCooldown     = 5 * time.Minute
)

var ErrAppDataDirRequired = errors.New("app data directory not provided")

// PlayerPorts lists the loopback ports a probe family tries, in order.
type PlayerPorts struct {
	MPCHC []int `json:"mpc_hc"`
	VLC   []int `json:"vlc"`
}

func defaultPlayerPorts() PlayerPorts {
	return PlayerPorts{
		MPCHC: []int{13579, 13580, 13581, 13582},
		VLC:   []int{8080},
	}
}

// Settings is the JSON document persisted to settings.json.
type Settings struct {
	WatchCompletionThreshold int           `json:"watch_completion_threshold"`
	PollIntervalSeconds      int           `json:"poll_interval_seconds"`
	SyncIntervalSeconds      int           `json:"sync_interval_seconds"`
	BacklogCooldownSeconds   int           `json:"backlog_cooldown_seconds"`
	SimklClientID            string        `json:"simkl_client_id"`
	PlayerPorts              PlayerPorts   `json:"player_ports"`
}

// DefaultSettings returns the settings.json contents written for a fresh
// app data directory.
func DefaultSettings() Settings {
	return Settings{
		WatchCompletionThreshold: DefaultCompletionThreshold,
		PollIntervalSeconds:      int(DefaultPollInterval / time.Second),
		SyncIntervalSeconds:      int(DefaultSyncInterval / time.Second),
		BacklogCooldownSeconds:   int(DefaultBacklogCooldown / time.Second),
		PlayerPorts:              defaultPlayerPorts(),
	}
}

// Threshold returns the configured completion threshold. A value outside
// the valid range of 1..100 yields DefaultCompletionThreshold.
func (s Settings) Threshold() int {
	if s.WatchCompletionThreshold < 1 || s.WatchCompletionThreshold > 100 {
		return DefaultCompletionThreshold
	}
	return s.WatchCompletionThreshold
}

func (s Settings) PollInterval() time.Duration {
	if s.PollIntervalSeconds <= 0 {
		return DefaultPollInterval
	}
	return time.Duration(s.PollIntervalSeconds) * time.Second
}

func (s Settings) SyncInterval() time.Duration {
	if s.SyncIntervalSeconds <= 0 {
		return DefaultSyncInterval
	}
	return time.Duration(s.SyncIntervalSeconds) * time.Second
}

func (s Settings) BacklogCooldown() time.Duration {
	if s.BacklogCooldownSeconds <= 0 {
		return DefaultBacklogCooldown
	}
	return time.Duration(s.BacklogCooldownSeconds) * time.Second
}

// Manager loads and atomically saves Settings under an app data directory.
type Manager struct {
	mu   sync.RWMutex
	fs   afero.Fs
	path string
}

// NewManager creates a Manager rooted at appDataDir/settings.json. The
// directory is created if missing and a default settings.json is written
// when none exists yet.
func NewManager(fs afero.Fs, appDataDir string) (*Manager, error) {
	if strings.TrimSpace(appDataDir) == "" {
		return nil, ErrAppDataDirRequired
	}

	if err := fs.MkdirAll(appDataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create app data dir: %w", err)
	}

	m := &Manager{
		fs:   fs,
		path: filepath.Join(appDataDir, settingsFile),
	}

	if exists, err := afero.Exists(fs, m.path); err != nil {
		return nil, fmt.Errorf("stat settings file: %w", err)
	} else if !exists {
		if err := m.Save(DefaultSettings()); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Load reads settings.json. A malformed or missing file yields
// DefaultSettings rather than an error, matching the Media Cache/Backlog
// Store's "tolerate a torn file" contract.
func (m *Manager) Load() (Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var settings Settings
	if ok, err := storage.ReadJSON(m.fs, m.path, &settings); err != nil || !ok {
		return DefaultSettings(), nil
	}

	if settings.PlayerPorts.MPCHC == nil && settings.PlayerPorts.VLC == nil {
		settings.PlayerPorts = defaultPlayerPorts()
	}

	return settings, nil
}

// Save atomically replaces settings.json (write-to-temp-then-rename).
func (m *Manager) Save(settings Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return storage.WriteJSON(m.fs, m.path, settings)
}
