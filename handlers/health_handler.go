package handlers

import (
	"context"
	"net/http"

	"github.com/upb/llm-gateway/utils"
	"go.uber.org/zap"
)

// Pinger reports whether a backing store is reachable
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler exposes liveness and readiness probes
type HealthHandler struct {
	db     Pinger
	logger *zap.Logger
}

// NewHealthHandler creates a health handler. db may be nil when the gateway
// runs without document storage.
func NewHealthHandler(db Pinger, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{db: db, logger: logger}
}

// HandleLiveness handles GET /healthz. The relay path has no dependencies
// beyond the routing table, so liveness never consults the database.
func (h *HealthHandler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleReadiness handles GET /readyz
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok"}

	if h.db != nil {
		if err := h.db.HealthCheck(r.Context()); err != nil {
			h.logger.Warn("readiness check failed", zap.Error(err))
			status["status"] = "degraded"
			status["database"] = "unavailable"
			utils.WriteJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		status["database"] = "ok"
	}

	utils.WriteJSON(w, http.StatusOK, status)
}
