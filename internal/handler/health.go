package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zapdeck/session-server/internal/config"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler reports liveness plus database reachability.
type HealthHandler struct {
	db Pinger
}

func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

// GET /health
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), config.DBPingTimeout)
	defer cancel()

	status, code, database := "ok", http.StatusOK, "ok"
	if err := h.db.PingContext(ctx); err != nil {
		log.Warn().Err(err).Msg("health check: database unreachable")
		status, code, database = "degraded", http.StatusServiceUnavailable, "unreachable"
	}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"database":  database,
		"timestamp": time.Now().UnixMilli(),
	})
}
