package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/mfield4/skirmish/internal/models"
	"github.com/rs/zerolog/log"
)

// PositionWriter persists a participant's reported position.
type PositionWriter interface {
	UpsertPosition(ctx context.Context, sample models.PositionSample) error
}

// Handler serves the WebSocket upgrade, the state bootstrap endpoint and
// the position write path.
type Handler struct {
	hub            *Hub
	state          *StateManager
	writer         PositionWriter
	activityWindow time.Duration
}

// NewHandler creates the gateway HTTP handler.
func NewHandler(hub *Hub, state *StateManager, writer PositionWriter, activityWindow time.Duration) *Handler {
	return &Handler{
		hub:            hub,
		state:          state,
		writer:         writer,
		activityWindow: activityWindow,
	}
}

// HandleFeedConnection handles WebSocket connections for the change feed.
// participant_id identifies the caller so their own position echoes are
// filtered out of the fanout.
func (h *Handler) HandleFeedConnection(w http.ResponseWriter, r *http.Request) {
	participantID := r.URL.Query().Get("participant_id")

	if err := h.hub.Upgrade(w, r, participantID); err != nil {
		log.Error().
			Err(err).
			Str("participant_id", participantID).
			Msg("failed to upgrade WebSocket connection")
		http.Error(w, "failed to upgrade connection", http.StatusInternalServerError)
		return
	}
}

// HandleState handles GET /state: the bootstrap snapshot for new clients.
func (h *Handler) HandleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap := h.state.Snapshot(h.activityWindow)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		log.Error().Err(err).Msg("failed to encode state response")
	}
}

// HandlePosition handles POST /position: a participant reporting its own
// location. The row write fans back out to every other client through the
// change feed.
func (h *Handler) HandlePosition(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var sample models.PositionSample
	if err := json.NewDecoder(r.Body).Decode(&sample); err != nil {
		http.Error(w, "invalid position payload", http.StatusBadRequest)
		return
	}
	if sample.ParticipantID == "" {
		http.Error(w, "participant_id is required", http.StatusBadRequest)
		return
	}
	if sample.ObservedAt.IsZero() {
		sample.ObservedAt = time.Now()
	}

	if err := h.writer.UpsertPosition(r.Context(), sample); err != nil {
		log.Error().
			Err(err).
			Str("participant_id", sample.ParticipantID).
			Msg("failed to persist position")
		http.Error(w, "failed to persist position", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// HandleStats returns connection statistics.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]int{
		"total_connections": h.hub.ConnectionCount(),
	}); err != nil {
		log.Error().Err(err).Msg("failed to encode stats response")
	}
}

// RegisterRoutes registers gateway routes with an HTTP mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/feed", h.HandleFeedConnection)
	mux.HandleFunc("/state", h.HandleState)
	mux.HandleFunc("/position", h.HandlePosition)
	mux.HandleFunc("/stats", h.HandleStats)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
}
