package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Health returns the health status of the service and its database.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	healthCheckTimeout := 5 * time.Second
	if h.cfg != nil && h.cfg.Timeout.HealthCheck > 0 {
		healthCheckTimeout = h.cfg.Timeout.HealthCheck
	}
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]interface{}{
		"status": "healthy",
		"checks": checks,
	}
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status["status"] = "degraded"
		checks["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	JSON(w, statusCode, status)
}
