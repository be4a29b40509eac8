// Package statusserver implements the local, read-only status HTTP
// surface the (out-of-scope) tray UI or log viewer would consume: current
// PlaybackSession summary and backlog depth as JSON. Grounded on the
// teacher's utils/router.go (mux.NewRouter, /health handler shape) and
// handlers/startup.go's response-encoding idiom, scoped down to a
// loopback-only, no-mutation surface per spec.md's "[ADD] local status
// endpoint" domain-stack entry.
package statusserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"simklscrobbler/internal/backlog"
	"simklscrobbler/internal/tracker"
)

// StatusResponse is the JSON body GET /status returns.
type StatusResponse struct {
	Tracking    bool      `json:"tracking"`
	Subject     string    `json:"subject,omitempty"`
	State       string    `json:"state,omitempty"`
	Position    float64   `json:"position_seconds,omitempty"`
	Duration    float64   `json:"duration_seconds,omitempty"`
	Percent     float64   `json:"percent,omitempty"`
	BacklogSize int       `json:"backlog_size"`
	Timestamp   time.Time `json:"timestamp"`
}

// Server is the loopback-only read-only status endpoint.
type Server struct {
	tracker  *tracker.Tracker
	backlogs *backlog.Store
	httpSrv  *http.Server
}

// New builds a Server bound to addr (expected to be a loopback address,
// e.g. "127.0.0.1:0"); it does not start listening until ListenAndServe
// is called.
func New(addr string, trk *tracker.Tracker, backlogs *backlog.Store) *Server {
	s := &Server{tracker: trk, backlogs: backlogs}

	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)

	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	return s
}

// ListenAndServe blocks serving requests until the server is shut down.
// Callers typically run it in its own goroutine.
func (s *Server) ListenAndServe() error {
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Close shuts the server down.
func (s *Server) Close() error {
	return s.httpSrv.Close()
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		BacklogSize: s.backlogs.Len(),
		Timestamp:   time.Now().UTC(),
	}

	if session, ok := s.tracker.Session(); ok {
		resp.Tracking = true
		resp.Subject = session.RawTitle
		resp.State = string(session.State)
		resp.Position = session.PositionSeconds
		resp.Duration = session.DurationSeconds
		if session.DurationSeconds > 0 {
			percent := session.PositionSeconds
			if percent <= 0 {
				percent = session.AccumulatedPlaySeconds
			}
			resp.Percent = (percent / session.DurationSeconds) * 100
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
