package probes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"simklscrobbler/models"
)

var vlcProcessNames = []string{"vlc", "vlc.exe"}

// vlcStatus mirrors the subset of VLC's requests/status.json that the
// probe needs. VLC reports time/length in whole seconds.
type vlcStatus struct {
	Time        float64 `json:"time"`
	Length      float64 `json:"length"`
	State       string  `json:"state"`
	Information struct {
		Category struct {
			Meta struct {
				Filename string `json:"filename"`
			} `json:"meta"`
		} `json:"category"`
	} `json:"information"`
}

type vlcProbe struct {
	ports  []int
	client *http.Client
	log    *throttledLogger
}

func newVLCProbe(ports []int, log *throttledLogger) *vlcProbe {
	return &vlcProbe{
		ports:  ports,
		client: &http.Client{Timeout: probeTimeout},
		log:    log,
	}
}

func (p *vlcProbe) Matches(processName string) bool {
	return containsAnyFold(processName, vlcProcessNames)
}

func (p *vlcProbe) Probe(ctx context.Context, processName string) (*models.ProbeResult, error) {
	var lastErr error
	for _, port := range p.ports {
		url := fmt.Sprintf("http://localhost:%d/requests/status.json", port)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			lastErr = err
			continue
		}

		resp, err := p.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		var status vlcStatus
		decodeErr := json.NewDecoder(resp.Body).Decode(&status)
		resp.Body.Close()
		if decodeErr != nil {
			lastErr = fmt.Errorf("decode vlc status on port %d: %w", port, decodeErr)
			continue
		}

		return &models.ProbeResult{
			PositionSeconds: status.Time,
			DurationSeconds: status.Length,
			PlayState:       vlcPlayState(status.State),
			HasPlayState:    status.State != "",
			Filepath:        status.Information.Category.Meta.Filename,
		}, nil
	}

	if lastErr != nil {
		p.log.logf(processName, "vlc probe: no reachable status endpoint for %s: %v", processName, lastErr)
	}
	return nil, lastErr
}

func vlcPlayState(state string) models.PlayState {
	switch strings.ToLower(state) {
	case "playing":
		return models.StatePlaying
	case "paused":
		return models.StatePaused
	default:
		return models.StateStopped
	}
}

func containsAnyFold(processName string, candidates []string) bool {
	for _, c := range candidates {
		if strings.EqualFold(processName, c) {
			return true
		}
	}
	return false
}
