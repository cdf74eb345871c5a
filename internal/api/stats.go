package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/fencing-federation/intake-bot/internal/domain"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 100
)

// StatsResponse is the body of GET /api/stats.
type StatsResponse struct {
	Organization   string              `json:"organization"`
	Total          int64               `json:"total"`
	ActiveSessions int                 `json:"active_sessions"`
	Recent         []RecentApplication `json:"recent"`
}

// RecentApplication is the public view of a saved application. Contact
// details stay with the operator.
type RecentApplication struct {
	ID              int64     `json:"id"`
	FullName        string    `json:"full_name"`
	Age             int       `json:"age"`
	ExperienceLevel string    `json:"experience_level"`
	CreatedAt       time.Time `json:"created_at"`
}

func recentFrom(app *domain.Application) RecentApplication {
	return RecentApplication{
		ID:              app.ID,
		FullName:        app.FullName,
		Age:             app.Age,
		ExperienceLevel: app.ExperienceLevel,
		CreatedAt:       app.CreatedAt,
	}
}

// Stats returns the application count and the most recent applications.
// The optional "limit" query parameter bounds the recent list.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxRecentLimit)
	}

	timeout := 5 * time.Second
	if h.cfg != nil && h.cfg.Timeout.Store > 0 {
		timeout = h.cfg.Timeout.Store
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	total, err := h.repo.CountApplications(ctx)
	if err != nil {
		slog.Error("Failed to count applications", "error", err)
		Error(w, http.StatusInternalServerError, "failed to load statistics")
		return
	}

	apps, err := h.repo.ListApplications(ctx, limit)
	if err != nil {
		slog.Error("Failed to list applications", "error", err)
		Error(w, http.StatusInternalServerError, "failed to load statistics")
		return
	}
	recent := make([]RecentApplication, 0, len(apps))
	for _, app := range apps {
		recent = append(recent, recentFrom(app))
	}

	resp := StatsResponse{
		Total:  total,
		Recent: recent,
	}
	if h.cfg != nil {
		resp.Organization = h.cfg.OrgName
	}
	if h.sessions != nil {
		resp.ActiveSessions = h.sessions.Len()
	}

	JSON(w, http.StatusOK, resp)
}
