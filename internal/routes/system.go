package routes

import (
	"net/http"

	"github.com/dukerupert/quartermaster/internal/handler"
	"github.com/dukerupert/quartermaster/internal/handler/api"
	"github.com/dukerupert/quartermaster/internal/router"
)

// SystemDeps contains dependencies for operational routes
type SystemDeps struct {
	HealthHandler *api.HealthHandler

	// Metrics serves the Prometheus exposition format. It should be
	// protected by the firewall in production.
	Metrics http.Handler
}

// RegisterSystemRoutes registers health, metrics and the JSON 404 fallback.
func RegisterSystemRoutes(r *router.Router, deps SystemDeps) {
	r.Get("/health", deps.HealthHandler.Check)
	r.Handle(http.MethodGet, "/metrics", deps.Metrics)

	r.NotFound(handler.NotFoundResponse)
}
