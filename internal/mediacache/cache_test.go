package mediacache

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"simklscrobbler/models"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	fs := afero.NewMemMapFs()
	c, err := New(fs, "/data")
	require.NoError(t, err)
	return c
}

func TestCache_SetGet(t *testing.T) {
	c := newTestCache(t)

	entry := models.CacheEntry{Identity: models.MediaIdentity{
		SimklID:      "635",
		Kind:         models.KindMovie,
		DisplayTitle: "Inception",
	}}
	require.NoError(t, c.Set("Inception.2010.mkv", entry))

	got, ok := c.Get("inception.2010.mkv")
	require.True(t, ok)
	require.Equal(t, "635", got.Identity.SimklID)
}

func TestCache_KeyNormalization(t *testing.T) {
	c := newTestCache(t)
	entry := models.CacheEntry{Identity: models.MediaIdentity{SimklID: "1", Kind: models.KindMovie}}
	require.NoError(t, c.Set("Amélie.mkv", entry))

	got1, ok1 := c.Get("Amélie.mkv")
	got2, ok2 := c.Get("AMELIE.MKV")
	require.True(t, ok1)
	require.True(t, ok2)
	require.Equal(t, got1, got2)
}

func TestCache_UpdateMergesShallow(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, c.Set("show.s01e01.mkv", models.CacheEntry{Identity: models.MediaIdentity{
		Kind: models.KindShow, DisplayTitle: "Show", Season: 1, Episode: 1,
	}}))

	require.NoError(t, c.Update("show.s01e01.mkv", models.CacheEntry{Identity: models.MediaIdentity{
		SimklID: "999",
	}}))

	got, ok := c.Get("show.s01e01.mkv")
	require.True(t, ok)
	require.Equal(t, "999", got.Identity.SimklID)
	require.Equal(t, "Show", got.Identity.DisplayTitle)
	require.Equal(t, 1, got.Identity.Season)
}

func TestCache_UpdateInsertsWhenAbsent(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, c.Update("new.mkv", models.CacheEntry{Identity: models.MediaIdentity{SimklID: "42"}}))

	got, ok := c.Get("new.mkv")
	require.True(t, ok)
	require.Equal(t, "42", got.Identity.SimklID)
}

func TestCache_Remove(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, c.Set("a.mkv", models.CacheEntry{}))
	require.NoError(t, c.Remove("a.mkv"))

	_, ok := c.Get("a.mkv")
	require.False(t, ok)
}

func TestCache_FindBySimklID(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, c.Set("movie.mkv", models.CacheEntry{Identity: models.MediaIdentity{SimklID: "635"}}))

	key, entry, ok := c.FindBySimklID("635")
	require.True(t, ok)
	require.Equal(t, "movie.mkv", key)
	require.Equal(t, "635", entry.Identity.SimklID)

	_, _, ok = c.FindBySimklID("unknown")
	require.False(t, ok)
}

func TestCache_EntriesOfKind(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, c.Set("movie.mkv", models.CacheEntry{Identity: models.MediaIdentity{Kind: models.KindMovie}}))
	require.NoError(t, c.Set("show.mkv", models.CacheEntry{Identity: models.MediaIdentity{Kind: models.KindShow}}))

	movies := c.EntriesOfKind(models.KindMovie)
	require.Len(t, movies, 1)
	require.Contains(t, movies, "movie.mkv")
}

func TestCache_MalformedFileYieldsEmptyMap(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/data", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/data/media_cache.json", []byte("not json"), 0o644))

	c, err := New(fs, "/data")
	require.NoError(t, err)

	_, ok := c.Get("anything")
	require.False(t, ok)
}

func TestCache_JSONRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	c, err := New(fs, "/data")
	require.NoError(t, err)

	require.NoError(t, c.Set("a.mkv", models.CacheEntry{Identity: models.MediaIdentity{
		SimklID: "1", Kind: models.KindMovie, DisplayTitle: "A",
	}}))

	reloaded, err := New(fs, "/data")
	require.NoError(t, err)

	got, ok := reloaded.Get("a.mkv")
	require.True(t, ok)
	require.Equal(t, "1", got.Identity.SimklID)
}
