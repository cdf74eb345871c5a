// Package api provides the HTTP handlers served next to the bot: health,
// application statistics and the keep-alive page.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fencing-federation/intake-bot/internal/config"
	"github.com/fencing-federation/intake-bot/internal/store"
)

// SessionCounter reports how many intakes are in progress.
type SessionCounter interface {
	Len() int
}

// Handler serves the read-only HTTP surface.
type Handler struct {
	repo     store.Repository
	sessions SessionCounter
	cfg      *config.Config
}

// NewHandler creates a Handler. cfg may be nil, in which case defaults apply.
func NewHandler(repo store.Repository, sessions SessionCounter, cfg *config.Config) *Handler {
	return &Handler{repo: repo, sessions: sessions, cfg: cfg}
}

// RegisterRoutes mounts the API routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.Health)
	r.Get("/api/stats", h.Stats)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
