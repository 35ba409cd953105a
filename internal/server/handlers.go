package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/verte-zerg/osutrack/internal/completion"
	"github.com/verte-zerg/osutrack/internal/osuapi"
)

const (
	defaultRunLimit = 20
	maxRunLimit     = 200
	writeWait       = 10 * time.Second
	pingPeriod      = 30 * time.Second
)

// Handlers holds API handler dependencies.
type Handlers struct {
	source        StateSource
	runs          RunLister
	checker       completion.ScoreChecker
	eventsEnabled bool
	logger        *log.Logger
	upgrader      websocket.Upgrader
}

// RegisterRoutes registers API routes.
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Get("/overlay", h.GetOverlay)
	r.Get("/runs", h.GetRuns)
	r.Get("/beatmap/{id}/score", h.GetBeatmapScore)
	r.Get("/status", h.GetStatus)
}

// GetOverlay returns the completion triple, connection flag, and game projection.
func (h *Handlers) GetOverlay(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, h.source.Snapshot())
}

// GetRuns returns recent classified runs and outcome totals.
func (h *Handlers) GetRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		respondError(w, http.StatusServiceUnavailable, "run journal unavailable")
		return
	}
	limit := defaultRunLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxRunLimit)
	}
	ctx := r.Context()
	runs, err := h.runs.ListRuns(ctx, limit)
	if err != nil {
		h.logger.Printf("server: list runs: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	totals, err := h.runs.CountOutcomes(ctx, r.URL.Query().Get("session"))
	if err != nil {
		h.logger.Printf("server: count outcomes: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to count runs")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"runs":   runs,
		"totals": totals,
	})
}

// GetBeatmapScore reports whether the player has a score on a beatmap.
func (h *Handlers) GetBeatmapScore(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid beatmap id")
		return
	}
	if h.checker == nil {
		respondError(w, http.StatusServiceUnavailable, "score lookup unavailable")
		return
	}
	exists, err := h.checker.ScoreExists(r.Context(), id)
	if err != nil {
		if errors.Is(err, osuapi.ErrInvalidMapID) {
			respondError(w, http.StatusBadRequest, "invalid beatmap id")
			return
		}
		h.logger.Printf("server: score lookup for map %d: %v", id, err)
		respondError(w, http.StatusBadGateway, "score lookup failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"beatmapId": id,
		"hasScore":  exists,
	})
}

// GetStatus returns tracker status.
func (h *Handlers) GetStatus(w http.ResponseWriter, _ *http.Request) {
	state := h.source.Snapshot()
	respondJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"connected":     state.Connected,
		"ready":         state.Progress.Ready,
		"eventsEnabled": h.eventsEnabled,
	})
}

// StreamOverlay pushes every published overlay state over a websocket.
func (h *Handlers) StreamOverlay(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("server: websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	states, cancel := h.source.Subscribe()
	defer cancel()

	// Reads only detect the peer going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case state, ok := <-states:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(state); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// respondJSON writes a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
