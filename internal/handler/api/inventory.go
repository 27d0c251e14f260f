package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/dukerupert/quartermaster/internal/domain"
	"github.com/dukerupert/quartermaster/internal/handler"
	"github.com/dukerupert/quartermaster/internal/middleware"
	"github.com/dukerupert/quartermaster/internal/service"
	"github.com/google/uuid"
)

// InventoryHandler serves the admin stock endpoints.
// All routes sit behind middleware.RequireAPIKey.
type InventoryHandler struct {
	inventoryService service.InventoryService
}

// NewInventoryHandler creates a new inventory handler
func NewInventoryHandler(inventoryService service.InventoryService) *InventoryHandler {
	return &InventoryHandler{inventoryService: inventoryService}
}

type adjustItemRequest struct {
	ProductVariantID string `json:"product_variant_id"`
	QuantityChange   *int   `json:"quantity_change" validate:"omitempty,min=-1000000,max=1000000"`
	NewStockQuantity *int   `json:"new_stock_quantity" validate:"omitempty,min=-1000000,max=1000000"`
	MovementType     string `json:"movement_type"`
	Notes            string `json:"notes" validate:"max=500"`
}

type inventoryRequest struct {
	Action           string              `json:"action" validate:"required,oneof=adjust set bulk"`
	ProductVariantID string              `json:"product_variant_id" validate:"required_unless=Action bulk"`
	QuantityChange   *int                `json:"quantity_change" validate:"required_if=Action adjust,omitempty,min=-1000000,max=1000000"`
	NewStockQuantity *int                `json:"new_stock_quantity" validate:"required_if=Action set,omitempty,min=-1000000,max=1000000"`
	MovementType     string              `json:"movement_type"`
	Notes            string              `json:"notes" validate:"max=500"`
	Items            []adjustItemRequest `json:"items" validate:"required_if=Action bulk,max=200,dive"`
}

type adjustResponse struct {
	Success bool `json:"success"`
	*service.AdjustResult
}

type bulkAdjustResponse struct {
	Success bool `json:"success"`
	*service.BulkAdjustResult
}

// Adjust handles POST /api/admin/inventory
//
// action "adjust" applies quantity_change, "set" applies new_stock_quantity
// and "bulk" applies each entry of items independently.
func (h *InventoryHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context())

	var req inventoryRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	if req.Action == "bulk" {
		params := make([]service.AdjustParams, len(req.Items))
		for i, item := range req.Items {
			params[i] = adjustParams(item)
		}

		result, err := h.inventoryService.BulkAdjust(r.Context(), params)
		if err != nil {
			handler.ErrorResponse(w, r, err)
			return
		}

		logger.Info("bulk stock adjustment",
			"items", len(req.Items),
			"applied", len(result.Results),
			"failed", len(result.Errors),
		)
		handler.WriteJSON(w, http.StatusOK, bulkAdjustResponse{
			Success:          len(result.Errors) == 0,
			BulkAdjustResult: result,
		})
		return
	}

	variantID, err := uuid.Parse(req.ProductVariantID)
	if err != nil {
		handler.ErrorResponse(w, r, domain.NewValidationError("inventory.adjust", "product_variant_id", "must be a valid UUID"))
		return
	}

	params := service.AdjustParams{
		VariantID:    variantID,
		MovementType: domain.MovementType(req.MovementType),
		Notes:        req.Notes,
	}
	if req.Action == "set" {
		params.NewStockQuantity = req.NewStockQuantity
	} else {
		params.QuantityChange = req.QuantityChange
	}

	result, err := h.inventoryService.Adjust(r.Context(), params)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.WriteJSON(w, http.StatusOK, adjustResponse{
		Success:      true,
		AdjustResult: result,
	})
}

// List handles GET /api/admin/inventory?low_stock=5&limit=50&offset=0
func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	var filter service.StockFilter
	fields := map[string]string{}

	query := r.URL.Query()
	if v, ok, err := queryInt(query.Get("low_stock")); err != nil {
		fields["low_stock"] = err.Error()
	} else if ok {
		filter.LowStockThreshold = &v
	}
	if v, _, err := queryInt(query.Get("limit")); err != nil {
		fields["limit"] = err.Error()
	} else {
		filter.Limit = v
	}
	if v, _, err := queryInt(query.Get("offset")); err != nil {
		fields["offset"] = err.Error()
	} else {
		filter.Offset = v
	}
	if len(fields) > 0 {
		handler.ErrorResponse(w, r, &domain.ValidationError{Op: "inventory.list", Fields: fields})
		return
	}

	levels, err := h.inventoryService.ListStock(r.Context(), filter)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.WriteJSON(w, http.StatusOK, map[string]any{
		"items": levels,
		"count": len(levels),
	})
}

// Movements handles GET /api/admin/inventory/{variantId}/movements?limit=20
func (h *InventoryHandler) Movements(w http.ResponseWriter, r *http.Request) {
	const op = "inventory.movements"

	variantID, err := uuid.Parse(r.PathValue("variantId"))
	if err != nil {
		handler.ErrorResponse(w, r, domain.NewValidationError(op, "variantId", "must be a valid UUID"))
		return
	}

	limit, _, err := queryInt(r.URL.Query().Get("limit"))
	if err != nil {
		handler.ErrorResponse(w, r, domain.NewValidationError(op, "limit", err.Error()))
		return
	}

	movements, err := h.inventoryService.ListMovements(r.Context(), variantID, limit)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.WriteJSON(w, http.StatusOK, map[string]any{
		"productVariantId": variantID,
		"movements":        movements,
	})
}

func adjustParams(item adjustItemRequest) service.AdjustParams {
	// An unparseable id becomes uuid.Nil and is reported per item.
	id, _ := uuid.Parse(item.ProductVariantID)
	return service.AdjustParams{
		VariantID:        id,
		QuantityChange:   item.QuantityChange,
		NewStockQuantity: item.NewStockQuantity,
		MovementType:     domain.MovementType(item.MovementType),
		Notes:            item.Notes,
	}
}

var errNotNonNegativeInt = errors.New("must be a non-negative integer")

// queryInt parses an optional non-negative integer query parameter.
func queryInt(raw string) (int, bool, error) {
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, false, errNotNonNegativeInt
	}
	return v, true, nil
}
