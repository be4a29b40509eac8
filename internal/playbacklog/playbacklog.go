// Package playbacklog implements the structured event sink spec.md §6.3
// and §9 call for: a newline-delimited JSON file, rotated at 5 MiB × 3,
// distinct from the human-facing line logger. Per §9's re-architecture
// note ("represent this as two explicit collaborators... inject them into
// the Scrobble Engine rather than looking them up by name"), this is a
// concrete tracker.EventRecorder implementation, not a global.
package playbacklog

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	maxSizeMB  = 5
	maxBackups = 3
)

// record is one line of playback_log.jsonl.
type record struct {
	Timestamp time.Time              `json:"timestamp"`
	Event     string                 `json:"event"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Recorder writes one JSON record per line to a rotated log file. It
// satisfies tracker.EventRecorder.
type Recorder struct {
	mu  sync.Mutex
	out io.WriteCloser
	enc *json.Encoder
}

// New opens (or creates) playback_log.jsonl under path, rotating at
// maxSizeMB with maxBackups old files retained.
func New(path string) *Recorder {
	logger := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		Compress:   false,
	}
	return &Recorder{
		out: logger,
		enc: json.NewEncoder(logger),
	}
}

// Record appends one event line. Write failures are swallowed (a logging
// fault must never interrupt playback tracking), matching §7's
// "Persistence failure" handling.
func (r *Recorder) Record(event string, fields map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_ = r.enc.Encode(record{
		Timestamp: time.Now().UTC(),
		Event:     event,
		Fields:    fields,
	})
}

// Close flushes and closes the underlying rotated file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.out.Close()
}
