package domain

import (
	"time"

	"github.com/google/uuid"
)

// Inventory-related domain errors.
var (
	ErrAdjustmentAmbiguous = &Error{Code: EINVALID, Message: "Provide exactly one of quantity_change or new_stock_quantity"}
	ErrSaleMovementType    = &Error{Code: EINVALID, Message: "Sale movements are recorded by order fulfilment only"}
	ErrStockOutOfRange     = &Error{Code: EINVALID, Message: "Stock quantities must be between -1000000 and 1000000"}
)

// MaxStockAdjustment bounds both quantity_change and new_stock_quantity.
const MaxStockAdjustment = 1_000_000

// MovementType classifies a stock change.
type MovementType string

const (
	MovementSale       MovementType = "sale"
	MovementAdjustment MovementType = "adjustment"
	MovementRestock    MovementType = "restock"
	MovementDamaged    MovementType = "damaged"
	MovementLost       MovementType = "lost"
	MovementReturn     MovementType = "return"
)

// Valid reports whether t is a known movement type.
func (t MovementType) Valid() bool {
	switch t {
	case MovementSale, MovementAdjustment, MovementRestock, MovementDamaged, MovementLost, MovementReturn:
		return true
	}
	return false
}

// InventoryMovement is an append-only record of one stock change.
type InventoryMovement struct {
	ID               uuid.UUID    `json:"id"`
	VariantID        uuid.UUID    `json:"productVariantId"`
	MovementType     MovementType `json:"movementType"`
	QuantityChange   int          `json:"quantityChange"`
	PreviousQuantity int          `json:"previousQuantity"`
	NewQuantity      int          `json:"newQuantity"`
	Reference        string       `json:"reference,omitempty"`
	Notes            string       `json:"notes,omitempty"`
	CreatedAt        time.Time    `json:"createdAt"`
}

// ClampStock applies delta to current and floors the result at zero.
// Stock never goes negative.
func ClampStock(current, delta int) int {
	next := current + delta
	if next < 0 {
		return 0
	}
	return next
}

// StockLevel is one row of the admin inventory listing.
type StockLevel struct {
	VariantID     uuid.UUID `json:"productVariantId"`
	ProductID     uuid.UUID `json:"productId"`
	ProductName   string    `json:"productName"`
	SKU           string    `json:"sku"`
	Size          string    `json:"size"`
	Color         string    `json:"color"`
	StockQuantity int       `json:"stockQuantity"`
	IsActive      bool      `json:"isActive"`
}
