// Package tracker implements the Playback Tracker (C6): the state machine
// that turns a stream of {window, probe} observations into at most one
// completion event per session, per spec.md §4.6. Grounded on the
// teacher's services/trakt/scrobble_state.go for the state-enum shape and
// ticker-driven session bookkeeping idiom, with the percentage/accumulator
// algorithm itself specified directly by spec.md §4.6.
package tracker

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"simklscrobbler/internal/backlog"
	"simklscrobbler/internal/mediacache"
	"simklscrobbler/internal/resolver"
	"simklscrobbler/internal/watchhistory"
	"simklscrobbler/internal/window"
	"simklscrobbler/models"
)

// completionCheckInterval is the "every 5s of wall time" cadence spec.md
// §4.6 step 4 gates the percentage/completion check behind.
const completionCheckInterval = 5 * time.Second

// resolveTimeout bounds the synchronous resolution attempt the completion
// path may make, per spec.md §4.6 step 3's "short timeout".
const resolveTimeout = 3 * time.Second

// HistorySyncer is the subset of simklapi.Client the completion path calls.
type HistorySyncer interface {
	SyncHistory(ctx context.Context, accessToken string, identity models.MediaIdentity) error
}

// EventRecorder receives the playback_log.jsonl event stream (§6.3). Nil is
// a valid no-op sink.
type EventRecorder interface {
	Record(event string, fields map[string]interface{})
}

// Notifier receives the tray notification events of §7. Nil is a valid
// no-op sink.
type Notifier interface {
	Notify(event, details string)
}

// Tracker owns the single current PlaybackSession and the mutations spec.md
// §5 assigns exclusively to the poll task.
type Tracker struct {
	mu sync.Mutex

	cache       *mediacache.Cache
	backlogs    *backlog.Store
	history     *watchhistory.History
	resolver     *resolver.Resolver
	syncClient   HistorySyncer
	connectivity resolver.ConnectivityProbe
	accessToken  func() string

	threshold int
	cooldown  time.Duration

	events   EventRecorder
	notifier Notifier

	session *models.PlaybackSession
}

// New builds a Tracker. threshold is the completion percentage (1..100);
// cooldown is the per-identity backlog re-enqueue cooldown.
func New(
	cache *mediacache.Cache,
	backlogs *backlog.Store,
	history *watchhistory.History,
	res *resolver.Resolver,
	syncClient HistorySyncer,
	connectivity resolver.ConnectivityProbe,
	accessToken func() string,
	threshold int,
	cooldown time.Duration,
	events EventRecorder,
	notifier Notifier,
) *Tracker {
	return &Tracker{
		cache:        cache,
		backlogs:     backlogs,
		history:      history,
		resolver:     res,
		syncClient:   syncClient,
		connectivity: connectivity,
		accessToken:  accessToken,
		threshold:    threshold,
		cooldown:     cooldown,
		events:       events,
		notifier:    notifier,
	}
}

// Session returns a copy of the current session, or false if stopped.
func (t *Tracker) Session() (models.PlaybackSession, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session == nil {
		return models.PlaybackSession{}, false
	}
	return *t.session, true
}

// Tick feeds one observation into the tracker. w is nil when no player
// window is currently present; probe is nil when the matching Player
// Probe returned nothing.
func (t *Tracker) Tick(ctx context.Context, w *models.Window, probe *models.ProbeResult, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if w == nil || !window.IsVideoPlayer(*w) {
		t.teardownLocked()
		return
	}

	subject := window.BestSubject(*w, probeFilepath(probe))
	if subject == "" {
		t.teardownLocked()
		return
	}

	if t.session != nil && t.subjectChangedLocked(subject, probe) {
		t.teardownLocked()
	}

	if t.session == nil {
		t.startSessionLocked(subject, probe, now)
		return
	}

	t.updateFromProbeLocked(probe, now)
	t.updateStateLocked(w, probe)
	t.accumulateLocked(now)

	if t.session.LastCompletionCheckAt.IsZero() || now.Sub(t.session.LastCompletionCheckAt) >= completionCheckInterval {
		t.session.LastCompletionCheckAt = now
		t.checkCompletionLocked(ctx, now)
	}

	t.session.LastTickAt = now
}

func (t *Tracker) subjectChangedLocked(subject string, probe *models.ProbeResult) bool {
	if probe != nil && probe.Filepath != "" && t.session.Filepath != "" {
		return probe.Filepath != t.session.Filepath
	}
	return subject != t.session.RawTitle
}

func (t *Tracker) startSessionLocked(subject string, probe *models.ProbeResult, now time.Time) {
	session := &models.PlaybackSession{
		RawTitle:   subject,
		StartedAt:  now,
		LastTickAt: now,
		State:      models.StatePlaying,
	}
	if probe != nil {
		session.Filepath = probe.Filepath
		session.PositionSeconds = probe.PositionSeconds
		session.DurationSeconds = probe.DurationSeconds
		if probe.HasPlayState {
			session.State = probe.PlayState
		}
	}
	t.session = session

	t.recordEvent("start_tracking", map[string]interface{}{"subject": subject, "filepath": session.Filepath})
	t.notify("tracking_started", subject)
}

func (t *Tracker) updateFromProbeLocked(probe *models.ProbeResult, now time.Time) {
	if probe == nil {
		return
	}

	if probe.Filepath != "" {
		t.session.Filepath = probe.Filepath
	}

	if probe.DurationSeconds > 0 {
		if t.session.DurationSeconds == 0 || absFloat(probe.DurationSeconds-t.session.DurationSeconds) > 1 {
			t.session.DurationSeconds = probe.DurationSeconds
		}
	}

	if t.session.State == models.StatePlaying && !t.session.LastTickAt.IsZero() {
		elapsed := now.Sub(t.session.LastTickAt).Seconds()
		delta := probe.PositionSeconds - t.session.PositionSeconds
		if delta < elapsed-2 || delta > elapsed+2 {
			t.recordEvent("seek", map[string]interface{}{
				"from_position": t.session.PositionSeconds,
				"to_position":   probe.PositionSeconds,
			})
		}
	}

	t.session.PositionSeconds = probe.PositionSeconds
}

func (t *Tracker) updateStateLocked(w *models.Window, probe *models.ProbeResult) {
	previous := t.session.State

	switch {
	case probe != nil && probe.HasPlayState:
		t.session.State = probe.PlayState
	case strings.Contains(strings.ToLower(w.Title), "paused"):
		t.session.State = models.StatePaused
	default:
		t.session.State = models.StatePlaying
	}

	if t.session.State != previous {
		t.recordEvent("state_change", map[string]interface{}{"from": previous, "to": t.session.State})
	}
}

func (t *Tracker) accumulateLocked(now time.Time) {
	if t.session.State != models.StatePlaying {
		return
	}

	delta := now.Sub(t.session.LastTickAt).Seconds()
	if delta < 0 {
		delta = 0
	}
	if delta > 60 {
		delta = 60
	}
	t.session.AccumulatedPlaySeconds += delta
}

func (t *Tracker) checkCompletionLocked(ctx context.Context, now time.Time) {
	if t.session.DurationSeconds <= 0 {
		return
	}

	percent := t.percentLocked()
	t.recordEvent("progress_update", map[string]interface{}{"percent": percent})

	if percent >= float64(t.threshold) {
		t.recordEvent("completion_threshold_reached", map[string]interface{}{"percent": percent})
		t.completeLocked(ctx, now)
	}
}

// percentLocked computes the completion percentage, preferring
// position-based over accumulated-time-based per spec.md §4.6's
// percentage rule.
func (t *Tracker) percentLocked() float64 {
	d := t.session.DurationSeconds
	if t.session.PositionSeconds > 0 {
		return (t.session.PositionSeconds / d) * 100
	}
	return (t.session.AccumulatedPlaySeconds / d) * 100
}

func (t *Tracker) completeLocked(ctx context.Context, now time.Time) {
	if t.session.CompletionFlag {
		return
	}

	if !t.session.LastEnqueueAt.IsZero() && now.Sub(t.session.LastEnqueueAt) < t.cooldown {
		t.session.CompletionFlag = true
		return
	}

	key := resolver.CacheKeyFor(t.session.Filepath, t.session.RawTitle)

	identity := t.session.Identity
	if identity.SimklID == "" {
		if entry, ok := t.cache.Get(key); ok {
			identity = entry.Identity
		}
	}
	if identity.SimklID == "" {
		resolveCtx, cancel := context.WithTimeout(ctx, resolveTimeout)
		resolved, ok := t.resolver.Resolve(resolveCtx, t.session.Filepath, t.session.RawTitle)
		cancel()
		if ok {
			identity = resolved
		}
	}
	t.session.Identity = identity

	// Per-identity cooldown: an identity still waiting in the backlog from
	// an enqueue within the cooldown window is not re-added or re-synced.
	if identity.SimklID != "" {
		if pending, ok := t.backlogs.Get(identity.SimklID); ok && now.Sub(pending.EnqueuedAt) < t.cooldown {
			t.session.CompletionFlag = true
			return
		}
	}

	online := t.connectivity == nil || t.connectivity.Probe(ctx)

	if online && identity.Complete() {
		if err := t.syncClient.SyncHistory(ctx, t.accessToken(), identity); err == nil {
			t.session.CompletionFlag = true
			t.session.LastEnqueueAt = time.Time{}
			_ = t.history.Append(models.WatchHistoryEntry{
				SimklID:      identity.SimklID,
				DisplayTitle: identity.DisplayTitle,
				Kind:         identity.Kind,
				Season:       identity.Season,
				Episode:      identity.Episode,
				WatchedAt:    now,
			})
			t.recordEvent("added_to_history_success", map[string]interface{}{"simkl_id": identity.SimklID})
			t.notify("synced_to_history", identity.DisplayTitle)
			return
		}
	}

	t.enqueueBacklogLocked(identity, now)
}

func (t *Tracker) enqueueBacklogLocked(identity models.MediaIdentity, now time.Time) {
	backlogKey := identity.SimklID
	if backlogKey == "" {
		backlogKey = "temp:" + uuid.NewString()
	}

	_ = t.backlogs.Add(backlogKey, models.BacklogEntry{
		Key:              backlogKey,
		SimklID:          identity.SimklID,
		DisplayTitle:     identity.DisplayTitle,
		Kind:             identity.Kind,
		Season:           identity.Season,
		Episode:          identity.Episode,
		OriginalFilepath: identity.OriginalFilepath,
		EnqueuedAt:       now,
	})

	t.session.CompletionFlag = true
	t.session.LastEnqueueAt = now
	t.recordEvent("added_to_backlog", map[string]interface{}{"key": backlogKey})
	t.notify("added_to_backlog", identity.DisplayTitle)
}

func (t *Tracker) teardownLocked() {
	if t.session == nil {
		return
	}

	percent := 0.0
	if t.session.DurationSeconds > 0 {
		percent = t.percentLocked()
	}

	t.recordEvent("stop_tracking", map[string]interface{}{
		"position_seconds":         t.session.PositionSeconds,
		"accumulated_play_seconds": t.session.AccumulatedPlaySeconds,
		"percent":                  percent,
	})

	t.session = nil
}

func (t *Tracker) recordEvent(name string, fields map[string]interface{}) {
	if t.events == nil {
		return
	}
	t.events.Record(name, fields)
}

func (t *Tracker) notify(event, details string) {
	if t.notifier == nil {
		return
	}
	t.notifier.Notify(event, details)
}

func probeFilepath(probe *models.ProbeResult) string {
	if probe == nil {
		return ""
	}
	return probe.Filepath
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
