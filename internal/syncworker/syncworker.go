// Package syncworker implements the Sync Worker (C7): a ticker-driven task
// that periodically drains the Backlog Store when the Simkl API is
// reachable, resolving temp:/guessit: placeholder keys along the way.
// Grounded on the teacher's services/scheduler/service.go ticker-plus-
// WaitGroup loop shape, adapted from "run due tasks" to "drain one
// backlog" since there is a single recurring job rather than a task list.
package syncworker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/hashicorp/go-multierror"

	"simklscrobbler/internal/backlog"
	"simklscrobbler/internal/resolver"
	"simklscrobbler/internal/simklapi"
	"simklscrobbler/models"
)

// DefaultInterval is the "wake every 120s" cadence spec.md §4.7 specifies.
const DefaultInterval = 120 * time.Second

const (
	retryAttempts = 2
	retryDelay    = 200 * time.Millisecond
)

// HistorySyncClient is the subset of simklapi.Client the worker calls.
type HistorySyncClient interface {
	SearchFile(ctx context.Context, accessToken, absolutePath string) (*simklapi.FileSearchResponse, error)
	SearchMovie(ctx context.Context, accessToken, title string) ([]simklapi.MovieResult, error)
	SyncHistory(ctx context.Context, accessToken string, identity models.MediaIdentity) error
}

// Worker drains the Backlog Store on a fixed interval while the Simkl API
// is reachable.
type Worker struct {
	backlogs     *backlog.Store
	client       HistorySyncClient
	connectivity resolver.ConnectivityProbe
	accessToken  func() string
	interval     time.Duration
	log          *log.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New builds a Worker. A zero interval falls back to DefaultInterval.
func New(
	backlogs *backlog.Store,
	client HistorySyncClient,
	connectivity resolver.ConnectivityProbe,
	accessToken func() string,
	interval time.Duration,
	logger *log.Logger,
) *Worker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Worker{
		backlogs:     backlogs,
		client:       client,
		connectivity: connectivity,
		accessToken:  accessToken,
		interval:     interval,
		log:          logger,
	}
}

// Start begins the background drain loop. It is a no-op if already running.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true

	w.wg.Add(1)
	go w.loop(runCtx)
}

// Stop cancels the drain loop and waits for the current drain, if any, to
// finish.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	w.running = false
	w.mu.Unlock()

	cancel()
	w.wg.Wait()
}

func (w *Worker) loop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.DrainOnce(ctx)
		}
	}
}

// DrainOnce runs a single drain pass: if offline, it sleeps without
// draining per spec.md §4.7. It is exported so the Scrobble Engine (or a
// test) can trigger an out-of-band drain without waiting for the ticker.
func (w *Worker) DrainOnce(ctx context.Context) error {
	if w.connectivity != nil && !w.connectivity.Probe(ctx) {
		w.log.Printf("[syncworker] offline, skipping drain")
		return nil
	}

	entries := w.backlogs.GetAll()
	if len(entries) == 0 {
		return nil
	}

	var errs *multierror.Error
	for key, entry := range entries {
		if err := w.drainEntry(ctx, key, entry); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("entry %s: %w", key, err))
		}
	}

	if errs != nil {
		w.log.Printf("[syncworker] drain completed with errors: %v", errs)
		return errs
	}
	return nil
}

// drainEntry attempts to resolve (if temporary) and sync a single backlog
// entry, removing it from the store only on a successful remote add.
func (w *Worker) drainEntry(ctx context.Context, key string, entry models.BacklogEntry) error {
	identity := entryIdentity(entry)

	if identity.IsTemporary() {
		resolved, ok := w.resolveEntry(ctx, entry)
		if !ok {
			return nil // leave it; try again next drain
		}
		identity = resolved
	}

	if !identity.Complete() {
		return nil // still missing required fields; leave it
	}

	if err := w.client.SyncHistory(ctx, w.accessToken(), identity); err != nil {
		return err
	}

	return w.backlogs.Remove(key)
}

// resolveEntry attempts to replace a temp:/guessit: key with a real Simkl
// ID, preferring POST /search/file via the stored original filepath, then
// GET /search/movie on the stored title, per spec.md §4.7 step 1.
func (w *Worker) resolveEntry(ctx context.Context, entry models.BacklogEntry) (models.MediaIdentity, bool) {
	if entry.OriginalFilepath != "" {
		var result *simklapi.FileSearchResponse
		err := retry.Do(func() error {
			var callErr error
			result, callErr = w.client.SearchFile(ctx, w.accessToken(), entry.OriginalFilepath)
			return callErr
		}, retry.Attempts(retryAttempts), retry.Delay(retryDelay), retry.Context(ctx))

		if err == nil && result != nil {
			if identity, ok := identityFromFileSearch(result, entry); ok {
				return identity, true
			}
		}
	}

	if entry.DisplayTitle == "" {
		return models.MediaIdentity{}, false
	}

	var results []simklapi.MovieResult
	err := retry.Do(func() error {
		var callErr error
		results, callErr = w.client.SearchMovie(ctx, w.accessToken(), entry.DisplayTitle)
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

func identityFromFileSearch(result *simklapi.FileSearchResponse, entry models.BacklogEntry) (models.MediaIdentity, bool) {
	switch {
	case result.Movie != nil:
		return models.MediaIdentity{
			SimklID:          fmt.Sprintf("%d", result.Movie.IDs.Simkl),
			Kind:             models.KindMovie,
			DisplayTitle:     result.Movie.Title,
			Year:             result.Movie.Year,
			RuntimeSeconds:   float64(result.Movie.Runtime) * 60,
			SourceTag:        models.SourceSimklFileSearch,
			OriginalFilepath: entry.OriginalFilepath,
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
			OriginalFilepath: entry.OriginalFilepath,
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

// entryIdentity rebuilds the MediaIdentity an entry represents. A backlog
// entry enqueued with no resolved identity at all carries its placeholder
// only in Key (SimklID left blank by the tracker), so Key is the fallback.
func entryIdentity(entry models.BacklogEntry) models.MediaIdentity {
	id := entry.SimklID
	if id == "" {
		id = entry.Key
	}
	return models.MediaIdentity{
		SimklID:          id,
		Kind:             entry.Kind,
		DisplayTitle:     entry.DisplayTitle,
		Season:           entry.Season,
		Episode:          entry.Episode,
		OriginalFilepath: entry.OriginalFilepath,
	}
}
