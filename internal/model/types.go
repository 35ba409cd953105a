// Package model defines shared data structures.
package model

import (
	"strings"
	"time"
)

// GameState is the discrete client state reported by tosu.
type GameState string

// Known game states. Anything else decodes to StateUnknown.
const (
	StateUnknown       GameState = "Unknown"
	StateMenu          GameState = "Menu"
	StateSongSelect    GameState = "SongSelect"
	StatePlaying       GameState = "Playing"
	StateResultsScreen GameState = "ResultsScreen"
	StateEditing       GameState = "Editing"
	StateWatching      GameState = "Watching"
)

// ParseGameState maps a telemetry state name to a GameState.
func ParseGameState(name string) GameState {
	switch GameState(name) {
	case StateMenu, StateSongSelect, StatePlaying, StateResultsScreen, StateEditing, StateWatching:
		return GameState(name)
	default:
		return StateUnknown
	}
}

// AutoModFlag is the bit of the mod mask for the auto-play assist.
const AutoModFlag = 8192

// Mods is the active mod set of a run.
type Mods struct {
	Number int    `json:"number"`
	Name   string `json:"name"`
}

// IsAssisted reports whether the mod set makes the game play itself.
// Both the mask and the display name are checked since encodings are not consistent.
func (m *Mods) IsAssisted() bool {
	if m == nil {
		return false
	}
	return m.Number&AutoModFlag != 0 || strings.Contains(strings.ToLower(m.Name), "auto")
}

// Baseline is the authoritative completion count from the remote source.
type Baseline struct {
	Completed  int     `json:"completed"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// BeatmapInfo is the displayed part of the active map.
type BeatmapInfo struct {
	ID      int     `json:"id"`
	Title   string  `json:"title"`
	Artist  string  `json:"artist"`
	Mapper  string  `json:"mapper"`
	Version string  `json:"version"`
	Stars   float64 `json:"stars"`
}

// PlayInfo is the displayed part of the active run.
type PlayInfo struct {
	Accuracy float64 `json:"accuracy"`
	Score    int64   `json:"score"`
	Combo    int     `json:"combo"`
	Rank     string  `json:"rank"`
}

// ProfileInfo is the displayed part of the logged in player.
type ProfileInfo struct {
	Name       string  `json:"name"`
	PP         float64 `json:"pp"`
	Accuracy   float64 `json:"accuracy"`
	GlobalRank int     `json:"globalRank"`
}

// SimplifiedState is the UI-facing projection of one telemetry tick.
type SimplifiedState struct {
	GameState       GameState    `json:"gameState"`
	IsPlaying       bool         `json:"isPlaying"`
	IsResultsScreen bool         `json:"isResultsScreen"`
	Beatmap         *BeatmapInfo `json:"currentBeatmap,omitempty"`
	Play            *PlayInfo    `json:"currentPlay,omitempty"`
	Profile         *ProfileInfo `json:"profile,omitempty"`
}

// Progress is the displayed completion triple plus bookkeeping.
type Progress struct {
	Ready      bool      `json:"ready"`
	Completed  int       `json:"completed"`
	Total      int       `json:"total"`
	Percentage float64   `json:"percentage"`
	Delta      int       `json:"delta"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// OverlayState is everything the presentation layer renders.
type OverlayState struct {
	Progress  Progress        `json:"completion"`
	Connected bool            `json:"connected"`
	State     SimplifiedState `json:"state"`
	Recent    []RunRecord     `json:"recentRuns"`
}

// RunOutcome describes how a finished run was classified.
type RunOutcome string

// Classification outcomes.
const (
	OutcomeCounted       RunOutcome = "counted"
	OutcomeAssisted      RunOutcome = "assisted"
	OutcomeAlreadyScored RunOutcome = "already-scored"
	OutcomeLookupFailed  RunOutcome = "lookup-failed"
	OutcomeIgnored       RunOutcome = "ignored"
)

// RunRecord is one classified run-finished event.
type RunRecord struct {
	ID         string     `json:"id"`
	SessionID  string     `json:"sessionId"`
	BeatmapID  int        `json:"beatmapId"`
	Outcome    RunOutcome `json:"outcome"`
	FinishedAt time.Time  `json:"finishedAt"`
}

// Config defines tracker settings after flags, file, and env are merged.
type Config struct {
	TosuURL           string
	AutoReconnect     bool
	ReconnectInterval time.Duration
	PlayerID          string
	ClientID          string
	ClientSecret      string
	APIURL            string
	TokenURL          string
	MirrorURL         string
	RefreshInterval   time.Duration
	LookupTimeout     time.Duration
	Listen            string
	Headless          bool
	Brokers           []string
	Topic             string
}
