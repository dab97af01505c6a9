package handler

import (
	"context"
	"net/http"
	"time"
)

const serviceName = "board-game-suggestor"

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Service  string `json:"service"`
	Status   string `json:"status"`
	Version  string `json:"version"`
	Database string `json:"database"`
	Catalog  string `json:"catalogBreaker,omitempty"`
}

// Health handles GET /health. It answers 503 when the database ping fails.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{
		Service:  serviceName,
		Status:   "ok",
		Version:  h.version,
		Database: "ok",
	}
	if h.breaker != nil {
		resp.Catalog = h.breaker.BreakerState()
	}

	status := http.StatusOK
	if h.db != nil {
		if err := h.db.HealthCheck(ctx); err != nil {
			resp.Status = "degraded"
			resp.Database = err.Error()
			status = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, status, resp)
}
