package config

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestNewManager_WritesDefaults(t *testing.T) {
	fs := afero.NewMemMapFs()

	m, err := NewManager(fs, "/data")
	require.NoError(t, err)

	settings, err := m.Load()
	require.NoError(t, err)
	require.Equal(t, DefaultCompletionThreshold, settings.Threshold())
	require.Equal(t, DefaultPollInterval, settings.PollInterval())

	exists, err := afero.Exists(fs, "/data/settings.json")
	require.NoError(t, err)
	require.True(t, exists)
}

func TestManager_SaveLoadRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	m, err := NewManager(fs, "/data")
	require.NoError(t, err)

	settings := DefaultSettings()
	settings.WatchCompletionThreshold = 90
	settings.SimklClientID = "abc123"
	require.NoError(t, m.Save(settings))

	loaded, err := m.Load()
	require.NoError(t, err)
	require.Equal(t, 90, loaded.Threshold())
	require.Equal(t, "abc123", loaded.SimklClientID)
}

func TestManager_MalformedFileYieldsDefaults(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/data", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/data/settings.json", []byte("{not json"), 0o644))

	m, err := NewManager(fs, "/data")
	require.NoError(t, err)

	settings, err := m.Load()
	require.NoError(t, err)
	require.Equal(t, DefaultCompletionThreshold, settings.Threshold())
}

func TestNewManager_RequiresAppDataDir(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := NewManager(fs, "")
	require.ErrorIs(t, err, ErrAppDataDirRequired)
}

func TestThreshold_OutOfRangeFallsBackToDefault(t *testing.T) {
	s := Settings{WatchCompletionThreshold: 0}
	require.Equal(t, DefaultCompletionThreshold, s.Threshold())

	s = Settings{WatchCompletionThreshold: 101}
	require.Equal(t, DefaultCompletionThreshold, s.Threshold())

	s = Settings{WatchCompletionThreshold: 55}
	require.Equal(t, 55, s.Threshold())
}
