package api

import (
	"net/http"
	"strings"

	"github.com/dukerupert/quartermaster/internal/domain"
	"github.com/dukerupert/quartermaster/internal/handler"
	"github.com/dukerupert/quartermaster/internal/middleware"
	"github.com/dukerupert/quartermaster/internal/service"
	"github.com/google/uuid"
)

// CheckoutHandler serves the storefront checkout endpoints.
type CheckoutHandler struct {
	checkoutService service.CheckoutService
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(checkoutService service.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkoutService: checkoutService}
}

type cartItemRequest struct {
	VariantID string `json:"variantId" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"min=1,max=99"`
}

type checkoutRequest struct {
	Items           []cartItemRequest `json:"items" validate:"required,min=1,max=50,dive"`
	ShippingAddress domain.Address    `json:"shippingAddress" validate:"required"`
	BillingAddress  *domain.Address   `json:"billingAddress" validate:"omitempty"`
}

type customerRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
	Name  string `json:"name" validate:"max=100"`
	Phone string `json:"phone" validate:"max=30"`
}

type enhancedCheckoutRequest struct {
	Items           []cartItemRequest `json:"items" validate:"required,min=1,max=50,dive"`
	ShippingAddress domain.Address    `json:"shippingAddress" validate:"required"`
	BillingAddress  *domain.Address   `json:"billingAddress" validate:"omitempty"`
	Customer        customerRequest   `json:"customer" validate:"required"`
	ShippingMethod  string            `json:"shippingMethod" validate:"omitempty,oneof=standard express"`
}

type checkoutResponse struct {
	Success        bool          `json:"success"`
	URL            string        `json:"url"`
	SessionID      string        `json:"sessionId"`
	OrderNumber    string        `json:"orderNumber"`
	ShippingMethod string        `json:"shippingMethod,omitempty"`
	Totals         domain.Totals `json:"totals"`
}

// Create handles POST /api/checkout
func (h *CheckoutHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	h.createSession(w, r, service.CheckoutRequest{
		Flow:            service.FlowSimple,
		Items:           cartItems(req.Items),
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  derefAddress(req.BillingAddress),
	})
}

// CreateEnhanced handles POST /api/checkout/enhanced
//
// Adds customer details, a shipping method and an optional Idempotency-Key
// header that is forwarded to the payment processor.
func (h *CheckoutHandler) CreateEnhanced(w http.ResponseWriter, r *http.Request) {
	var req enhancedCheckoutRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	h.createSession(w, r, service.CheckoutRequest{
		Flow:            service.FlowEnhanced,
		Items:           cartItems(req.Items),
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  derefAddress(req.BillingAddress),
		Customer: service.Customer{
			Email: strings.TrimSpace(req.Customer.Email),
			Name:  strings.TrimSpace(req.Customer.Name),
			Phone: strings.TrimSpace(req.Customer.Phone),
		},
		ShippingMethod: req.ShippingMethod,
		IdempotencyKey: strings.TrimSpace(r.Header.Get("Idempotency-Key")),
	})
}

func (h *CheckoutHandler) createSession(w http.ResponseWriter, r *http.Request, req service.CheckoutRequest) {
	logger := middleware.GetLogger(r.Context())

	result, err := h.checkoutService.CreateSession(r.Context(), req)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	logger.Info("checkout session created",
		"order_number", result.OrderNumber,
		"flow", req.Flow,
		"total", result.Totals.Total.String(),
	)

	resp := checkoutResponse{
		Success:     true,
		URL:         result.URL,
		SessionID:   result.SessionID,
		OrderNumber: result.OrderNumber,
		Totals:      result.Totals,
	}
	if req.Flow == service.FlowEnhanced {
		resp.ShippingMethod = result.ShippingMethod
	}
	handler.WriteJSON(w, http.StatusOK, resp)
}

// cartItems converts validated request lines. Ids were checked by the
// uuid tag, so parse failures cannot occur here.
func cartItems(lines []cartItemRequest) []service.CartItem {
	items := make([]service.CartItem, len(lines))
	for i, line := range lines {
		items[i] = service.CartItem{
			VariantID: uuid.MustParse(line.VariantID),
			Quantity:  line.Quantity,
		}
	}
	return items
}

func derefAddress(a *domain.Address) domain.Address {
	if a == nil {
		return domain.Address{}
	}
	return *a
}
