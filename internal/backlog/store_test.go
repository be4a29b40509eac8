package backlog

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"simklscrobbler/models"
)

func newTestStore(t *testing.T) (*Store, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	s, err := New(fs, "/data")
	require.NoError(t, err)
	return s, fs
}

func TestStore_AddGetRemove(t *testing.T) {
	s, _ := newTestStore(t)

	entry := models.BacklogEntry{SimklID: "635", DisplayTitle: "Inception", Kind: models.KindMovie, EnqueuedAt: time.Now()}
	require.NoError(t, s.Add("635", entry))

	got, ok := s.Get("635")
	require.True(t, ok)
	require.Equal(t, "Inception", got.DisplayTitle)

	require.NoError(t, s.Remove("635"))
	_, ok = s.Get("635")
	require.False(t, ok)
}

func TestStore_DedupByKey(t *testing.T) {
	s, _ := newTestStore(t)

	first := time.Now().Add(-time.Hour)
	require.NoError(t, s.Add("k1", models.BacklogEntry{DisplayTitle: "A", EnqueuedAt: first}))
	require.NoError(t, s.Add("k1", models.BacklogEntry{DisplayTitle: "A updated", EnqueuedAt: time.Now()}))

	require.Len(t, s.GetAll(), 1)
	got, ok := s.Get("k1")
	require.True(t, ok)
	require.Equal(t, "A updated", got.DisplayTitle)
	require.WithinDuration(t, first, got.EnqueuedAt, time.Second)
}

func TestStore_Clear(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Add("a", models.BacklogEntry{}))
	require.NoError(t, s.Add("b", models.BacklogEntry{}))
	require.NoError(t, s.Clear())
	require.Equal(t, 0, s.Len())
}

func TestStore_MigratesLegacyListForm(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/data", 0o755))

	legacy := []models.BacklogEntry{
		{SimklID: "1", DisplayTitle: "Old Movie"},
		{Key: "temp:abc", DisplayTitle: "Unresolved"},
	}
	raw, err := json.Marshal(legacy)
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, "/data/backlog.json", raw, 0o644))

	s, err := New(fs, "/data")
	require.NoError(t, err)

	all := s.GetAll()
	require.Len(t, all, 2)
	require.Contains(t, all, "1")
	require.Contains(t, all, "temp:abc")

	// Re-loading from disk should now see the migrated map form.
	reloaded, err := New(fs, "/data")
	require.NoError(t, err)
	require.Len(t, reloaded.GetAll(), 2)
}

func TestStore_MalformedFileStartsEmpty(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/data", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/data/backlog.json", []byte("garbage"), 0o644))

	s, err := New(fs, "/data")
	require.NoError(t, err)
	require.Equal(t, 0, s.Len())
}
