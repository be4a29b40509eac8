// Package storage provides the atomic write-to-temp-then-rename helper
// shared by every JSON-backed persistence component (Media Cache, Backlog
// Store, watch history, credential store, settings). Centralizing it keeps
// the "never leave a torn file on disk" guarantee in one place instead of
// re-implemented per component, the way the teacher's
// services/accounts/service.go inlined it for a single store.
package storage

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/afero"
)

// WriteJSON marshals v as indented JSON and atomically replaces path:
// write to path+".tmp", then rename over path. A failed write leaves the
// previous contents of path untouched.
func WriteJSON(fs afero.Fs, path string, v interface{}) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	return WriteBytes(fs, path, raw, 0o644)
}

// WriteBytes atomically replaces path with raw, via the same
// write-to-temp-then-rename sequence as WriteJSON. Used for non-JSON
// payloads such as encrypted credential blobs.
func WriteBytes(fs afero.Fs, path string, raw []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	if err := afero.WriteFile(fs, tmp, raw, perm); err != nil {
		return fmt.Errorf("write temp file %s: %w", tmp, err)
	}

	if err := fs.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}

	return nil
}

// ReadJSON reads path and unmarshals it into v. It reports ok=false (with a
// nil error) when the file does not exist, is empty, or fails to decode —
// callers treat all three as "start from an empty/default value" per the
// spec's "malformed or empty file yields an empty map" invariant.
func ReadJSON(fs afero.Fs, path string, v interface{}) (ok bool, err error) {
	raw, readErr := afero.ReadFile(fs, path)
	if readErr != nil {
		return false, nil
	}

	trimmed := trimSpace(raw)
	if len(trimmed) == 0 {
		return false, nil
	}

	if decodeErr := json.Unmarshal(trimmed, v); decodeErr != nil {
		return false, nil
	}

	return true, nil
}

func trimSpace(b []byte) []byte {
	start, end := 0, len(b)
	for start < end && isSpace(b[start]) {
		start++
	}
	for end > start && isSpace(b[end-1]) {
		end--
	}
	return b[start:end]
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
