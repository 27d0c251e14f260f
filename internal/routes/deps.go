package routes

import (
	"net/http"

	"github.com/dukerupert/quartermaster/internal/handler/api"
)

// APIDeps contains dependencies for the public storefront API
type APIDeps struct {
	CheckoutHandler *api.CheckoutHandler
	CatalogHandler  *api.CatalogHandler
	OrderHandler    *api.OrderHandler
}

// AdminDeps contains dependencies for admin routes
type AdminDeps struct {
	// APIKey is the bearer token every admin request must present
	APIKey string

	InventoryHandler *api.InventoryHandler
}

// WebhookDeps contains dependencies for webhook routes
type WebhookDeps struct {
	StripeHandler http.HandlerFunc
}
