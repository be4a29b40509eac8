package resolver

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"simklscrobbler/internal/mediacache"
	"simklscrobbler/internal/simklapi"
	"simklscrobbler/models"
)

type fakeConnectivity struct{ online bool }

func (f fakeConnectivity) Probe(ctx context.Context) bool { return f.online }

type fakeCatalog struct {
	fileResp  *simklapi.FileSearchResponse
	fileErr   error
	movies    []simklapi.MovieResult
	movieErr  error
	fileCalls int
}

func (f *fakeCatalog) SearchFile(ctx context.Context, accessToken, absolutePath string) (*simklapi.FileSearchResponse, error) {
	f.fileCalls++
	return f.fileResp, f.fileErr
}

func (f *fakeCatalog) SearchMovie(ctx context.Context, accessToken, title string) ([]simklapi.MovieResult, error) {
	return f.movies, f.movieErr
}

func newTestResolver(t *testing.T, client CatalogClient, online bool) *Resolver {
	t.Helper()
	cache, err := mediacache.New(afero.NewMemMapFs(), "/data")
	require.NoError(t, err)

	r, err := New(cache, client, fakeConnectivity{online: online}, func() string { return "token" })
	require.NoError(t, err)
	return r
}

func TestResolve_CacheHitShortCircuits(t *testing.T) {
	cache, err := mediacache.New(afero.NewMemMapFs(), "/data")
	require.NoError(t, err)
	require.NoError(t, cache.Set("inception", models.CacheEntry{Identity: models.MediaIdentity{SimklID: "635", Kind: models.KindMovie}}))

	r, err := New(cache, &fakeCatalog{}, fakeConnectivity{online: true}, func() string { return "token" })
	require.NoError(t, err)

	identity, ok := r.Resolve(context.Background(), "", "Inception")
	require.True(t, ok)
	require.Equal(t, "635", identity.SimklID)
}

func TestResolve_FileSearchMovie(t *testing.T) {
	client := &fakeCatalog{fileResp: &simklapi.FileSearchResponse{
		Movie: &simklapi.FileSearchMovie{IDs: simklapi.IDs{Simkl: 635}, Title: "Inception", Year: 2010, Runtime: 148},
	}}
	r := newTestResolver(t, client, true)

	identity, ok := r.Resolve(context.Background(), "/m/Inception.2010.mkv", "")
	require.True(t, ok)
	require.Equal(t, "635", identity.SimklID)
	require.Equal(t, models.KindMovie, identity.Kind)
	require.Equal(t, models.SourceSimklFileSearch, identity.SourceTag)
}

func TestResolve_FileSearchShowWithEpisode(t *testing.T) {
	client := &fakeCatalog{fileResp: &simklapi.FileSearchResponse{
		Show:    &simklapi.FileSearchShow{IDs: simklapi.IDs{Simkl: 999}, Title: "Show", Type: "show"},
		Episode: &simklapi.FileSearchEpisode{Season: 2, Episode: 5},
	}}
	r := newTestResolver(t, client, true)

	identity, ok := r.Resolve(context.Background(), "/m/Show.S02E05.mkv", "")
	require.True(t, ok)
	require.Equal(t, "999", identity.SimklID)
	require.Equal(t, models.KindShow, identity.Kind)
	require.Equal(t, 2, identity.Season)
	require.Equal(t, 5, identity.Episode)
}

func TestResolve_TitleSearchWhenNoFilepath(t *testing.T) {
	client := &fakeCatalog{movies: []simklapi.MovieResult{
		{Title: "Inception", Year: 2010, Runtime: 148, IDs: simklapi.IDs{Simkl: 635}},
	}}
	r := newTestResolver(t, client, true)

	identity, ok := r.Resolve(context.Background(), "", "Inception (2010)")
	require.True(t, ok)
	require.Equal(t, "635", identity.SimklID)
	require.Equal(t, models.SourceSimklTitleSearch, identity.SourceTag)
}

func TestResolve_GuessitFallbackWhenOffline(t *testing.T) {
	r := newTestResolver(t, &fakeCatalog{}, false)

	identity, ok := r.Resolve(context.Background(), "/m/Unknown.Film.2024.mkv", "")
	require.True(t, ok)
	require.Contains(t, identity.SimklID, "guessit:")
	require.Equal(t, models.KindMovie, identity.Kind)
	require.Equal(t, "Unknown Film", identity.DisplayTitle)
	require.Equal(t, 2024, identity.Year)
	require.Equal(t, models.SourceGuessitFallback, identity.SourceTag)
}

func TestResolve_NoFilepathOfflineNoSubjectFails(t *testing.T) {
	r := newTestResolver(t, &fakeCatalog{}, false)

	_, ok := r.Resolve(context.Background(), "", "")
	require.False(t, ok)
}

func TestResolve_RepeatedUnresolvableResolveStaysUnresolved(t *testing.T) {
	client := &fakeCatalog{fileErr: nil, fileResp: nil}
	r := newTestResolver(t, client, true)

	_, ok := r.Resolve(context.Background(), "", "")
	require.False(t, ok)

	// The same observation again (no filepath, no subject) is answered
	// from the negative cache entry the first call recorded; this
	// exercises that repeated identical failing resolves don't panic or
	// loop.
	_, ok = r.Resolve(context.Background(), "", "")
	require.False(t, ok)
}

func TestBackfillEpisode_ExtractsFromFilename(t *testing.T) {
	cache, err := mediacache.New(afero.NewMemMapFs(), "/data")
	require.NoError(t, err)
	r, err := New(cache, &fakeCatalog{}, fakeConnectivity{}, func() string { return "" })
	require.NoError(t, err)

	identity := models.MediaIdentity{
		SimklID:          "999",
		Kind:             models.KindShow,
		OriginalFilepath: "/m/Show.S02E05.mkv",
	}
	backfilled := r.BackfillEpisode("show", identity)
	require.Equal(t, 2, backfilled.Season)
	require.Equal(t, 5, backfilled.Episode)
}

func TestReconcileRuntime_PrefersProbeThenAPIThenCache(t *testing.T) {
	require.Equal(t, 100.0, ReconcileRuntime(100, 200, 300))
	require.Equal(t, 200.0, ReconcileRuntime(0, 200, 300))
	require.Equal(t, 300.0, ReconcileRuntime(0, 0, 300))
}

func TestGuessFromFilepath_EpisodePattern(t *testing.T) {
	g := GuessFromFilepath("/m/Show.S02E05.mkv")
	require.Equal(t, models.KindShow, g.Kind)
	require.Equal(t, 2, g.Season)
	require.Equal(t, 5, g.Episode)
	require.Equal(t, "Show", g.Title)
}

func TestGuessFromFilepath_MoviePatternWithYear(t *testing.T) {
	g := GuessFromFilepath("/m/Unknown.Film.2024.mkv")
	require.Equal(t, models.KindMovie, g.Kind)
	require.Equal(t, 2024, g.Year)
	require.Equal(t, "Unknown Film", g.Title)
}
