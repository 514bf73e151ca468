package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/mfield4/skirmish/internal/models"
	"github.com/mfield4/skirmish/internal/round"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// VictoryApp defines what the trigger API needs for the win-condition path
// and the round archive. Ended sessions are never deleted, so the listing
// doubles as round history.
type VictoryApp interface {
	SignalVictory(ctx context.Context) (*models.Session, error)
	ListRecentSessions(ctx context.Context, limit int32) ([]models.Session, error)
}

// Handler exposes the scheduler over HTTP for external periodic triggers.
type Handler struct {
	scheduler *Scheduler
	victory   VictoryApp
}

// NewHandler creates the trigger HTTP handler.
func NewHandler(scheduler *Scheduler, victory VictoryApp) *Handler {
	return &Handler{scheduler: scheduler, victory: victory}
}

// HandleTick handles POST /tick. The response body is always a TickResult;
// a store failure is a 500 with success=false, distinct from a 200 no-op.
func (h *Handler) HandleTick(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	result, err := h.scheduler.Tick(r.Context())
	status := http.StatusOK
	if err != nil {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, result)
}

// HandleVictory handles POST /victory, the externally delivered win
// condition. It lands through the same patch path the timers use; the next
// tick advances victory into cooldown.
func (h *Handler) HandleVictory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	session, err := h.victory.SignalVictory(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, round.ErrSessionConflict) || errors.Is(err, round.ErrNoActiveSession) {
			status = http.StatusConflict
		}
		writeJSON(w, status, &TickResult{
			Success: false,
			Message: "failed to signal victory",
			Error:   err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, &TickResult{
		Success: true,
		Message: "victory signalled",
		Session: session,
	})
}

// HandleSessions handles GET /sessions, returning recent rounds newest
// first. An optional limit query parameter caps the result, defaulting
// to 20.
func (h *Handler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := int32(20)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || parsed < 1 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = int32(parsed)
	}

	sessions, err := h.victory.ListRecentSessions(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to list sessions")
		http.Error(w, "failed to list sessions", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

// RegisterRoutes registers the trigger routes on the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/tick", h.HandleTick)
	mux.HandleFunc("/victory", h.HandleVictory)
	mux.HandleFunc("/sessions", h.HandleSessions)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
}

// NewServer wraps the handler in a CORS-enabled h2c server on the port.
func NewServer(h *Handler, port string) *http.Server {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodHead, http.MethodGet, http.MethodPost},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	return &http.Server{
		Addr:    fmt.Sprintf(":%s", port),
		Handler: h2c.NewHandler(c.Handler(mux), &http2.Server{}),
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
