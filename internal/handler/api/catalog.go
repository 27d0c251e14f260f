package api

import (
	"net/http"
	"strconv"

	"github.com/dukerupert/quartermaster/internal/domain"
	"github.com/dukerupert/quartermaster/internal/handler"
)

// CatalogHandler serves read-only catalog endpoints.
type CatalogHandler struct {
	catalogService domain.CatalogService
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(catalogService domain.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService}
}

// ListCategories handles GET /api/categories
func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalogService.ListCategories(r.Context())
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.WriteJSON(w, http.StatusOK, map[string]any{
		"categories": categories,
	})
}

// ListProducts handles GET /api/products?category=<slug>&featured=true
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := domain.ProductFilter{CategorySlug: query.Get("category")}
	if v := query.Get("featured"); v != "" {
		featured, err := strconv.ParseBool(v)
		if err != nil {
			handler.ErrorResponse(w, r, domain.NewValidationError("catalog.list_products", "featured", "must be true or false"))
			return
		}
		filter.FeaturedOnly = featured
	}

	products, err := h.catalogService.ListProducts(r.Context(), filter)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.WriteJSON(w, http.StatusOK, map[string]any{
		"products": products,
	})
}

// GetProduct handles GET /api/products/{slug}
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalogService.GetProduct(r.Context(), r.PathValue("slug"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.WriteJSON(w, http.StatusOK, product)
}
