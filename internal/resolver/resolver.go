// Package resolver implements the Identification Resolver (C5): cache
// lookup, remote file/title search, and guessit-style filename fallback,
// in the precedence order spec.md §4.5 defines. Grounded on the teacher's
// services/trakt call shape, transposed onto the Simkl endpoints, with
// avast/retry-go bounding transient remote failures and a golang-lru
// negative cache keeping a flaky connection from re-querying the same
// unresolved subject every poll tick.
package resolver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	lru "github.com/hashicorp/golang-lru/v2"

	"simklscrobbler/internal/mediacache"
	"simklscrobbler/internal/simklapi"
	"simklscrobbler/internal/window"
	"simklscrobbler/models"
)

// CatalogClient is the subset of simklapi.Client the resolver calls,
// narrowed to an interface so tests can substitute a fake instead of
// hitting the real Simkl API.
type CatalogClient interface {
	SearchFile(ctx context.Context, accessToken, absolutePath string) (*simklapi.FileSearchResponse, error)
	SearchMovie(ctx context.Context, accessToken, title string) ([]simklapi.MovieResult, error)
}

const (
	negativeCacheSize = 256
	negativeCacheTTL  = 30 * time.Second

	retryAttempts = 2
	retryDelay    = 200 * time.Millisecond
)

// ConnectivityProbe reports whether the remote API is presently reachable.
// Matches simklapi.Client's Probe method; expressed as an interface so the
// resolver is testable without a real network.
type ConnectivityProbe interface {
	Probe(ctx context.Context) bool
}

// Resolver assigns a MediaIdentity to an observed filepath/subject pair.
type Resolver struct {
	cache        *mediacache.Cache
	client       CatalogClient
	connectivity ConnectivityProbe
	accessToken  func() string

	mu       sync.Mutex
	negative *lru.Cache[string, time.Time]
}

// New builds a Resolver. accessToken is called fresh on every remote call
// so a token refreshed mid-run is picked up without reconstructing the
// Resolver.
func New(cache *mediacache.Cache, client CatalogClient, connectivity ConnectivityProbe, accessToken func() string) (*Resolver, error) {
	neg, err := lru.New[string, time.Time](negativeCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create resolver negative cache: %w", err)
	}
	return &Resolver{
		cache:        cache,
		client:       client,
		connectivity: connectivity,
		accessToken:  accessToken,
		negative:     neg,
	}, nil
}

// CacheKeyFor derives the Media Cache lookup key for an observation,
// preferring the filepath-derived subject per the Window Source's
// best_subject precedence.
func CacheKeyFor(filepath, subject string) string {
	best := window.BestSubject(models.Window{Title: subject}, filepath)
	return mediacache.NormalizeKey(best)
}

// Resolve assigns an identity for the given filepath/subject observation,
// in the order: cache lookup, remote file search, remote title search,
// guessit fallback. The returned bool is false only when nothing --
// cache, remote, or guessit -- could produce an identity (no filepath and
// offline, typically).
func (r *Resolver) Resolve(ctx context.Context, filepath, subject string) (models.MediaIdentity, bool) {
	key := CacheKeyFor(filepath, subject)

	if entry, ok := r.cache.Get(key); ok {
		return entry.Identity, true
	}

	if r.recentlyFailed(key) {
		return models.MediaIdentity{}, false
	}

	online := r.connectivity != nil && r.connectivity.Probe(ctx)

	if online && filepath != "" {
		if identity, ok := r.resolveByFileSearch(ctx, filepath); ok {
			r.cache.Set(key, models.CacheEntry{Identity: identity})
			return identity, true
		}
	}

	if online && looksLikeMovieSubject(subject) {
		if identity, ok := r.resolveByTitleSearch(ctx, subject); ok {
			r.cache.Set(key, models.CacheEntry{Identity: identity})
			return identity, true
		}
	}

	if filepath != "" {
		identity := GuessFromFilepath(filepath).ToMediaIdentity(filepath)
		r.cache.Set(key, models.CacheEntry{Identity: identity})
		return identity, true
	}

	r.markFailed(key)
	return models.MediaIdentity{}, false
}

// BackfillEpisode attempts to extract season/episode from the filename for
// an identity that is otherwise resolved but missing episode coordinates,
// updating the cache on success, per spec.md §4.5's "on-demand" rule.
func (r *Resolver) BackfillEpisode(key string, identity models.MediaIdentity) models.MediaIdentity {
	if identity.HasEpisodeInfo() || identity.OriginalFilepath == "" {
		return identity
	}

	guess := GuessFromFilepath(identity.OriginalFilepath)
	if guess.Season == 0 || guess.Episode == 0 {
		return identity
	}

	identity.Season = guess.Season
	identity.Episode = guess.Episode
	_ = r.cache.Update(key, models.CacheEntry{Identity: identity})
	return identity
}

// ReconcileRuntime applies spec.md §4.5's runtime precedence: probe
// duration > API runtime > cached duration. It writes the resolved value
// back to the cache once known.
func ReconcileRuntime(probeDuration, apiRuntimeSeconds, cachedDuration float64) float64 {
	if probeDuration > 0 {
		return probeDuration
	}
	if apiRuntimeSeconds > 0 {
		return apiRuntimeSeconds
	}
	return cachedDuration
}

func (r *Resolver) resolveByFileSearch(ctx context.Context, filepath string) (models.MediaIdentity, bool) {
	var result *simklapi.FileSearchResponse
	err := retry.Do(func() error {
		var callErr error
		result, callErr = r.client.SearchFile(ctx, r.accessToken(), filepath)
		return callErr
	}, retry.Attempts(retryAttempts), retry.Delay(retryDelay), retry.Context(ctx))
	if err != nil || result == nil {
		return models.MediaIdentity{}, false
	}

	switch {
	case result.Movie != nil:
		return models.MediaIdentity{
			SimklID:          fmt.Sprintf("%d", result.Movie.IDs.Simkl),
			Kind:             models.KindMovie,
			DisplayTitle:     result.Movie.Title,
			Year:             result.Movie.Year,
			RuntimeSeconds:   float64(result.Movie.Runtime) * 60,
			SourceTag:        models.SourceSimklFileSearch,
			OriginalFilepath: filepath,
		}, true
	case result.Show != nil:
		kind := models.KindShow
		if result.Show.Type == "anime" {
			kind = models.KindAnime
		}
		identity := models.MediaIdentity{
			SimklID:          fmt.Sprintf("%d", result.Show.IDs.Simkl),
			Kind:             kind,
			DisplayTitle:     result.Show.Title,
			SourceTag:        models.SourceSimklFileSearch,
			OriginalFilepath: filepath,
		}
		if result.Episode != nil {
			identity.Season = result.Episode.Season
			identity.Episode = result.Episode.Episode
			identity.RuntimeSeconds = float64(result.Episode.Runtime) * 60
		}
		return identity, true
	default:
		return models.MediaIdentity{}, false
	}
}

func (r *Resolver) resolveByTitleSearch(ctx context.Context, subject string) (models.MediaIdentity, bool) {
	var results []simklapi.MovieResult
	err := retry.Do(func() error {
		var callErr error
		results, callErr = r.client.SearchMovie(ctx, r.accessToken(), subject)
		return callErr
	}, retry.Attempts(retryAttempts), retry.Delay(retryDelay), retry.Context(ctx))
	if err != nil || len(results) == 0 {
		return models.MediaIdentity{}, false
	}

	first := results[0]
	return models.MediaIdentity{
		SimklID:        fmt.Sprintf("%d", first.IDs.Simkl),
		Kind:           models.KindMovie,
		DisplayTitle:   first.Title,
		Year:           first.Year,
		RuntimeSeconds: float64(first.Runtime) * 60,
		SourceTag:      models.SourceSimklTitleSearch,
	}, true
}

func (r *Resolver) recentlyFailed(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	failedAt, ok := r.negative.Get(key)
	return ok && time.Since(failedAt) < negativeCacheTTL
}

func (r *Resolver) markFailed(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.negative.Add(key, time.Now())
}

// looksLikeMovieSubject reports whether subject shows no episode markers,
// the gate spec.md §4.5 step 3 applies before a title search.
func looksLikeMovieSubject(subject string) bool {
	if subject == "" {
		return false
	}
	return !sxxexxRE.MatchString(subject) && !nxnnRE.MatchString(subject) &&
		!seasonKwRE.MatchString(subject) && !episodeKwRE.MatchString(subject)
}
