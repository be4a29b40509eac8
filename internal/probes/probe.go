// Package probes implements the per-player-family probes (C3): short,
// local calls (loopback HTTP/JSON for VLC, HTTP/HTML for MPC, the IPC
// socket for MPV) that translate a player's native status endpoint into a
// models.ProbeResult. Modeled on the
// teacher's services/trakt.Client's plain net/http + fmt.Errorf style,
// scaled down to the probe's hard sub-second timeout.
package probes

import (
	"context"
	"log"
	"sync"
	"time"

	"simklscrobbler/models"
)

// Probe is one player family's status-endpoint integration.
type Probe interface {
	// Matches reports whether processName belongs to this probe's family.
	Matches(processName string) bool
	// Probe queries the player's status endpoint. A nil result with a nil
	// error means the player process matched but reported nothing usable
	// (e.g. no file loaded); a non-nil error means the endpoint could not
	// be reached at all.
	Probe(ctx context.Context, processName string) (*models.ProbeResult, error)
}

const probeTimeout = 1 * time.Second

// throttledLogger logs connection failures at most once per minute per
// process name, per spec.md §4.3's error-throttling rule.
type throttledLogger struct {
	mu       sync.Mutex
	lastLoggedAt map[string]time.Time
	logger   *log.Logger
}

func newThrottledLogger(logger *log.Logger) *throttledLogger {
	return &throttledLogger{
		lastLoggedAt: make(map[string]time.Time),
		logger:       logger,
	}
}

func (t *throttledLogger) logf(processName, format string, args ...interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if last, ok := t.lastLoggedAt[processName]; ok && time.Since(last) < time.Minute {
		return
	}
	t.lastLoggedAt[processName] = time.Now()
	t.logger.Printf(format, args...)
}

// Registry holds the configured probes in priority order and dispatches a
// probe request to the first one whose Matches returns true.
type Registry struct {
	probes []Probe
}

// NewRegistry builds the standard probe set: VLC, MPC-HC/BE, and MPV (plus
// its protocol-compatible wrappers).
func NewRegistry(logger *log.Logger, vlcPorts, mpcPorts []int, mpvSocketPath string) *Registry {
	if logger == nil {
		logger = log.Default()
	}
	tl := newThrottledLogger(logger)

	return &Registry{
		probes: []Probe{
			newVLCProbe(vlcPorts, tl),
			newMPCProbe(mpcPorts, tl),
			newMPVProbe(mpvSocketPath, tl),
		},
	}
}

// ProbeWindow runs the matching probe for window.ProcessName, if any.
func (r *Registry) ProbeWindow(ctx context.Context, processName string) (*models.ProbeResult, error) {
	for _, p := range r.probes {
		if p.Matches(processName) {
			ctx, cancel := context.WithTimeout(ctx, probeTimeout)
			defer cancel()
			return p.Probe(ctx, processName)
		}
	}
	return nil, nil
}
