package routes

import (
	"github.com/dukerupert/quartermaster/internal/router"
)

// RegisterAPIRoutes registers the public storefront API.
// These routes do not require authentication.
func RegisterAPIRoutes(r *router.Router, deps APIDeps) {
	api := r.Route("/api")

	// Checkout
	api.Post("/checkout", deps.CheckoutHandler.Create)
	api.Post("/checkout/enhanced", deps.CheckoutHandler.CreateEnhanced)

	// Catalog
	api.Get("/categories", deps.CatalogHandler.ListCategories)
	api.Get("/products", deps.CatalogHandler.ListProducts)
	api.Get("/products/{slug}", deps.CatalogHandler.GetProduct)

	// Order status for the confirmation page
	api.Get("/orders/{orderNumber}", deps.OrderHandler.Get)
}
