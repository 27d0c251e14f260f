package routes

import (
	"github.com/dukerupert/quartermaster/internal/middleware"
	"github.com/dukerupert/quartermaster/internal/router"
)

// RegisterAdminRoutes registers the inventory management API.
// All routes are protected by the admin API key.
//
// These routes are served at /api/admin/* and share the same
// domain/port as the storefront API.
func RegisterAdminRoutes(r *router.Router, deps AdminDeps) {
	admin := r.Route("/api/admin", middleware.RequireAPIKey(deps.APIKey))

	// Inventory
	admin.Get("/inventory", deps.InventoryHandler.List)
	admin.Post("/inventory", deps.InventoryHandler.Adjust)
	admin.Get("/inventory/{variantId}/movements", deps.InventoryHandler.Movements)
}
