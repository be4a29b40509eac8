// Package window implements the Window Source (C4): title/filepath parsing
// over windows reported by an external OS enumeration collaborator. Window
// enumeration itself (walking the OS's window list) is platform-specific
// and lives outside the core per spec.md §4.4 — this package owns the
// player-detection and subject-parsing logic applied to whatever the
// enumerator returns.
package window

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/mozillazg/go-unidecode"

	"simklscrobbler/models"
)

// knownPlayerExecutables is the process-name allowlist is_video_player
// checks against. It mirrors the probe families in internal/probes plus
// players that have no probe (no status endpoint) but are still a valid
// playback subject source via window title alone.
var knownPlayerExecutables = []string{
	"vlc", "vlc.exe",
	"mpc-hc", "mpc-hc64", "mpc-be", "mpc-be64",
	"mpv", "mpv.exe", "celluloid", "mpv.net", "mpvnet", "smplayer",
	"wmplayer", "wmplayer.exe",
	"mpc-qt",
}

// knownPlayerTitleSuffixes strips trailing " - <Player Name>" decorations
// that players commonly append to their window title.
var knownPlayerTitleSuffixes = []string{
	" - VLC media player",
	" - MPC-HC",
	" - MPC-BE",
	" - mpv",
	" - Celluloid",
	" - SMPlayer",
	" - Windows Media Player",
}

// genericSubjects are residues that carry no identifying information and
// must be treated as "no subject", not a literal title to resolve.
var genericSubjects = map[string]bool{
	"":         true,
	"audio":    true,
	"no file":  true,
	"no media": true,
	"untitled": true,
}

var separatorRE = regexp.MustCompile(`[._]+`)
var spaceRE = regexp.MustCompile(`\s+`)

// IsVideoPlayer reports whether window.ProcessName matches the known
// player executable set. A title-only match is deliberately not supported:
// it would false-positive on browsers playing video in a tab or editors
// with "Play" in their title.
func IsVideoPlayer(w models.Window) bool {
	name := strings.ToLower(strings.TrimSuffix(w.ProcessName, ".exe"))
	for _, known := range knownPlayerExecutables {
		if strings.ToLower(strings.TrimSuffix(known, ".exe")) == name {
			return true
		}
	}
	return false
}

// ParseSubjectFromTitle strips the first matching known player suffix from
// title and returns the remaining human subject, or "" if the residue is
// empty or one of the generic placeholders players show with nothing
// loaded. Player-name prefixes are not stripped.
func ParseSubjectFromTitle(title string) string {
	residue := strings.TrimSpace(title)
	for _, suffix := range knownPlayerTitleSuffixes {
		if strings.HasSuffix(residue, suffix) {
			residue = strings.TrimSpace(strings.TrimSuffix(residue, suffix))
			break
		}
	}

	if genericSubjects[strings.ToLower(residue)] {
		return ""
	}
	return residue
}

// ParseSubjectFromFilepath extracts the basename, drops the extension, and
// normalizes separators to spaces for display.
func ParseSubjectFromFilepath(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = separatorRE.ReplaceAllString(base, " ")
	base = spaceRE.ReplaceAllString(base, " ")
	return strings.TrimSpace(base)
}

// BestSubject prefers the filename-derived subject when a filepath is
// known, since player probes are the authoritative source of paths; it
// falls back to the window title otherwise.
func BestSubject(w models.Window, filepath string) string {
	if filepath != "" {
		if subject := ParseSubjectFromFilepath(filepath); subject != "" {
			return subject
		}
	}
	return ParseSubjectFromTitle(w.Title)
}

// ProbablyVideoFile sanity-checks that path's on-disk content is actually a
// video container before a caller trusts it as a playback subject source.
// Probes occasionally report a stale or mismatched path (e.g. mid-playlist
// transition); a non-video match there is reason to fall back to the window
// title instead. A read failure (file locked, path not yet flushed, removed
// media) is not reason to reject the path — it fails open.
func ProbablyVideoFile(path string) bool {
	if path == "" {
		return false
	}
	mime, err := mimetype.DetectFile(path)
	if err != nil {
		return true
	}
	return strings.HasPrefix(mime.String(), "video/")
}

// Transliterate folds accented characters in a subject to their ASCII
// equivalents. mediacache.NormalizeKey applies the same transliteration
// itself, so cache keys do not depend on this helper.
func Transliterate(subject string) string {
	return unidecode.Unidecode(subject)
}
