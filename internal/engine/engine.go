// Package engine implements the Scrobble Engine (C8): the poll loop that
// wires the Window Source, Player Probes, Identification Resolver, and
// Playback Tracker together, plus the Sync Worker as a second background
// task. Grounded on the teacher's services/scheduler/service.go Start/Stop
// (context + WaitGroup + ticker) shape, generalized from one task to two,
// and on services/trakt/scrobble_state.go's goroutine-with-ticker pattern
// for the second task.
package engine

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"simklscrobbler/internal/probes"
	"simklscrobbler/internal/syncworker"
	"simklscrobbler/internal/tracker"
	"simklscrobbler/internal/window"
	"simklscrobbler/models"
)

// WindowEnumerator is the external OS window-enumeration collaborator
// (spec.md §1's "out of scope" list): it reports the foreground window,
// or nil when nothing is foregrounded.
type WindowEnumerator interface {
	ActiveWindow(ctx context.Context) (*models.Window, error)
}

// DefaultPollInterval is the default poll-loop cadence: one window/probe
// observation per interval.
const DefaultPollInterval = 10 * time.Second

// Engine owns the poll loop and the Sync Worker's lifecycle.
type Engine struct {
	windows  WindowEnumerator
	probes   *probes.Registry
	tracker  *tracker.Tracker
	sync     *syncworker.Worker
	interval time.Duration
	log      *log.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      *conc.WaitGroup
}

// New builds an Engine. A zero interval falls back to DefaultPollInterval.
func New(
	windows WindowEnumerator,
	probeRegistry *probes.Registry,
	trk *tracker.Tracker,
	syncWorker *syncworker.Worker,
	interval time.Duration,
	logger *log.Logger,
) *Engine {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		windows:  windows,
		probes:   probeRegistry,
		tracker:  trk,
		sync:     syncWorker,
		interval: interval,
		log:      logger,
	}
}

// Run starts the poll loop and the sync worker, blocking until ctx is
// canceled (typically by an os/signal.NotifyContext caller on
// SIGINT/SIGTERM), then tears down the current session and stops both
// tasks before returning.
func (e *Engine) Run(ctx context.Context) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.running = true
	e.wg = conc.NewWaitGroup()
	e.mu.Unlock()

	e.sync.Start(runCtx)

	e.wg.Go(func() { e.pollLoop(runCtx) })

	<-runCtx.Done()
	e.wg.Wait()

	// Final teardown: a nil window observation flushes any in-flight
	// session and emits its closing stop_tracking record.
	e.tracker.Tick(context.Background(), nil, nil, time.Now())

	e.sync.Stop()

	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
}

// Stop cancels the running poll loop; Run returns once teardown completes.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (e *Engine) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

// tick is one poll cycle: window -> matching probe -> tracker. Any probe
// or enumeration error degrades to "no observation this tick" rather than
// aborting the loop, since a single flaky read must not kill tracking.
func (e *Engine) tick(ctx context.Context) {
	now := time.Now()

	w, err := e.windows.ActiveWindow(ctx)
	if err != nil {
		e.log.Printf("[engine] window enumeration error: %v", err)
		w = nil
	}

	if w == nil || !window.IsVideoPlayer(*w) {
		e.tracker.Tick(ctx, w, nil, now)
		return
	}

	probe, err := e.probes.ProbeWindow(ctx, w.ProcessName)
	if err != nil {
		e.log.Printf("[engine] probe error for %s: %v", w.ProcessName, err)
		probe = nil
	}
	if probe != nil && probe.Filepath != "" && !window.ProbablyVideoFile(probe.Filepath) {
		e.log.Printf("[engine] probe-reported path %q does not look like a video file, ignoring it", probe.Filepath)
		probe.Filepath = ""
	}

	e.tracker.Tick(ctx, w, probe, now)
}
