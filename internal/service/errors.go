package service

import (
	"github.com/dukerupert/quartermaster/internal/domain"
)

// Checkout errors - use domain.EINVALID
var (
	ErrInvalidQuantity     = domain.Errorf(domain.EINVALID, "", "Quantity must be between 1 and 99")
	ErrMissingAddress      = domain.Errorf(domain.EINVALID, "", "Shipping address is required")
	ErrMissingEmail        = domain.Errorf(domain.EINVALID, "", "Customer email is required")
	ErrOrderNumberConflict = domain.Errorf(domain.EINTERNAL, "", "Could not allocate a unique order number")
	ErrCheckoutInProgress  = domain.Errorf(domain.ECONFLICT, "", "A checkout with this Idempotency-Key is already in progress")
)

// Inventory errors
var (
	ErrInvalidMovementType = domain.Errorf(domain.EINVALID, "", "Unknown movement type")
	ErrMissingVariantID    = domain.Errorf(domain.EINVALID, "", "product_variant_id is required")
	ErrEmptyBulk           = domain.Errorf(domain.EINVALID, "", "Bulk adjustment needs at least one item")
)

// MaxItemQuantity caps a single cart line.
const MaxItemQuantity = 99
