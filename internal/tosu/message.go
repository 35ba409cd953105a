// Package tosu consumes the tosu websocket v2 feed.
package tosu

import (
	"encoding/json"
	"fmt"

	"github.com/verte-zerg/osutrack/internal/model"
)

// DefaultURL is where a local tosu instance serves the v2 feed.
const DefaultURL = "ws://127.0.0.1:24050/websocket/v2"

// Message is the subset of a tosu v2 tick this tracker reads.
// Optional sections stay nil when absent from the payload.
type Message struct {
	State   stateMsg    `json:"state"`
	Beatmap *beatmapMsg `json:"beatmap"`
	Play    *playMsg    `json:"play"`
	Profile *profileMsg `json:"profile"`
}

type stateMsg struct {
	Number int    `json:"number"`
	Name   string `json:"name"`
}

type beatmapMsg struct {
	ID      int    `json:"id"`
	Artist  string `json:"artist"`
	Title   string `json:"title"`
	Mapper  string `json:"mapper"`
	Version string `json:"version"`
	Stats   *struct {
		Stars *struct {
			Total float64 `json:"total"`
		} `json:"stars"`
	} `json:"stats"`
}

type playMsg struct {
	PlayerName string      `json:"playerName"`
	Score      int64       `json:"score"`
	Accuracy   float64     `json:"accuracy"`
	Mods       *model.Mods `json:"mods"`
	Combo      struct {
		Current int `json:"current"`
	} `json:"combo"`
	Rank struct {
		Current string `json:"current"`
	} `json:"rank"`
}

type profileMsg struct {
	Name       string  `json:"name"`
	PP         float64 `json:"pp"`
	Accuracy   float64 `json:"accuracy"`
	GlobalRank int     `json:"globalRank"`
}

// DecodeMessage parses one raw websocket frame.
func DecodeMessage(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("failed to decode tosu message: %w", err)
	}
	return msg, nil
}

// GameState returns the decoded discrete state.
func (m Message) GameState() model.GameState {
	return model.ParseGameState(m.State.Name)
}

// BeatmapID returns the active map id, or 0 when no map is loaded.
func (m Message) BeatmapID() int {
	if m.Beatmap == nil || m.Beatmap.ID < 0 {
		return 0
	}
	return m.Beatmap.ID
}

// Mods returns the active mod set, or nil when the payload has none.
func (m Message) Mods() *model.Mods {
	if m.Play == nil || m.Play.Mods == nil {
		return nil
	}
	mods := *m.Play.Mods
	return &mods
}

// Simplify builds the UI-facing projection of the tick.
func (m Message) Simplify() model.SimplifiedState {
	state := m.GameState()
	out := model.SimplifiedState{
		GameState:       state,
		IsPlaying:       state == model.StatePlaying,
		IsResultsScreen: state == model.StateResultsScreen,
	}
	if m.Beatmap != nil && m.Beatmap.Title != "" {
		info := &model.BeatmapInfo{
			ID:      m.BeatmapID(),
			Title:   m.Beatmap.Title,
			Artist:  m.Beatmap.Artist,
			Mapper:  m.Beatmap.Mapper,
			Version: m.Beatmap.Version,
		}
		if m.Beatmap.Stats != nil && m.Beatmap.Stats.Stars != nil {
			info.Stars = m.Beatmap.Stats.Stars.Total
		}
		out.Beatmap = info
	}
	if m.Play != nil && m.Play.PlayerName != "" {
		out.Play = &model.PlayInfo{
			Accuracy: m.Play.Accuracy,
			Score:    m.Play.Score,
			Combo:    m.Play.Combo.Current,
			Rank:     m.Play.Rank.Current,
		}
	}
	if m.Profile != nil && m.Profile.Name != "" {
		out.Profile = &model.ProfileInfo{
			Name:       m.Profile.Name,
			PP:         m.Profile.PP,
			Accuracy:   m.Profile.Accuracy,
			GlobalRank: m.Profile.GlobalRank,
		}
	}
	return out
}
