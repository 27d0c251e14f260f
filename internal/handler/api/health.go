package api

import (
	"context"
	"net/http"
	"time"

	"github.com/dukerupert/quartermaster/internal/domain"
	"github.com/dukerupert/quartermaster/internal/handler"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports whether the API can reach its database.
type HealthHandler struct {
	db Pinger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

// Check handles GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		handler.ErrorResponse(w, r, domain.WrapError(err, domain.EUPSTREAM, "health.check", "Database unavailable"))
		return
	}

	handler.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
