package api

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/rehostd/rehostd/internal/api/shared"
)

// healthCheckTimeout bounds the database ping so a wedged pool cannot hang
// the health endpoint.
const healthCheckTimeout = 2 * time.Second

// HealthHandler serves the liveness endpoint backed by a database ping.
type HealthHandler struct {
	db *sql.DB
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(db *sql.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// Health handles GET /healthz.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusServiceUnavailable, "database unavailable", err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
