package tax

import (
	"context"

	"github.com/shopspring/decimal"
)

// Calculator defines the interface for tax calculation.
// Implementations: PercentageCalculator, NoTaxCalculator
type Calculator interface {
	// CalculateTax computes tax for order line items and shipping.
	// Returns tax amount in pence.
	CalculateTax(ctx context.Context, params TaxParams) (*TaxResult, error)
}

// TaxParams contains all information needed for tax calculation.
type TaxParams struct {
	LineItems     []LineItem
	ShippingPence int64
}

// LineItem represents a single item being taxed.
type LineItem struct {
	Description string
	Quantity    int64
	UnitPence   int64
}

// Total is the line's contribution to the subtotal.
func (l LineItem) Total() int64 {
	return l.UnitPence * l.Quantity
}

// Subtotal sums every line item.
func (p TaxParams) Subtotal() int64 {
	var sum int64
	for _, li := range p.LineItems {
		sum += li.Total()
	}
	return sum
}

// TaxResult contains the calculated tax amount and breakdown.
type TaxResult struct {
	TotalTaxPence int64
	Breakdown     []TaxBreakdown
}

// TaxBreakdown represents one named tax applied to the order.
type TaxBreakdown struct {
	Name        string          // e.g., "VAT"
	Rate        decimal.Decimal // e.g., 0.20 for 20%
	AmountPence int64
}
