package models

import "time"

// PlayState is the Playback Tracker's notion of a player's transport state.
type PlayState string

const (
	StateStopped PlayState = "STOPPED"
	StatePlaying PlayState = "PLAYING"
	StatePaused  PlayState = "PAUSED"
)

// Window is a single observed player window, as reported by the (external)
// OS window source.
type Window struct {
	Title       string
	ProcessName string
	AppName     string
	HWND        uintptr
}

// ProbeResult is what a Player Probe reports for one process on one tick.
// Any field may be the zero value when the player didn't report it.
type ProbeResult struct {
	PositionSeconds float64
	DurationSeconds float64
	PlayState       PlayState
	Filepath        string
	HasPlayState    bool
}

// PlaybackSession is the Tracker's working state for at most one current
// playback. It is owned exclusively by the poll task; access from other
// goroutines must go through the tracker's mutex.
type PlaybackSession struct {
	RawTitle     string
	Identity     MediaIdentity
	Filepath     string
	StartedAt    time.Time
	LastTickAt   time.Time
	AccumulatedPlaySeconds float64
	PositionSeconds        float64
	DurationSeconds        float64
	State                  PlayState
	CompletionFlag         bool
	LastCompletionCheckAt  time.Time
	LastEnqueueAt          time.Time // debounce for the 5-minute cooldown
}

// PlaybackProgressUpdate describes one tick's observed state in a
// consumer-neutral shape. No package in this module builds or reads it;
// the event log, status server and sync worker use their own types.
type PlaybackProgressUpdate struct {
	MediaType     Kind
	ItemID        string
	MovieName     string
	SeriesName    string
	SeriesID      string
	SeasonNumber  int
	EpisodeNumber int
	ExternalIDs   map[string]string
	IsPaused      bool
	PositionSecs  float64
	DurationSecs  float64
}
