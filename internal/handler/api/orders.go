package api

import (
	"net/http"

	"github.com/dukerupert/quartermaster/internal/domain"
	"github.com/dukerupert/quartermaster/internal/handler"
)

// OrderHandler serves the order confirmation lookup.
type OrderHandler struct {
	orderService domain.OrderService
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orderService domain.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

// Get handles GET /api/orders/{orderNumber}
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := h.orderService.GetOrderByNumber(r.Context(), r.PathValue("orderNumber"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.WriteJSON(w, http.StatusOK, order)
}
