package tax

import (
	"context"

	"github.com/shopspring/decimal"
)

// UKStandardVAT is the standard UK VAT rate.
var UKStandardVAT = decimal.RequireFromString("0.20")

// PercentageCalculator applies one flat rate to subtotal plus shipping.
type PercentageCalculator struct {
	name string
	rate decimal.Decimal
}

// NewPercentageCalculator creates a flat-rate calculator. The rate must lie
// in [0, 1].
func NewPercentageCalculator(name string, rate decimal.Decimal) (*PercentageCalculator, error) {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, ErrInvalidTaxRate
	}
	return &PercentageCalculator{name: name, rate: rate}, nil
}

// NewVATCalculator returns a calculator for UK VAT at the given rate.
func NewVATCalculator(rate decimal.Decimal) (*PercentageCalculator, error) {
	return NewPercentageCalculator("VAT", rate)
}

// Rate returns the configured rate.
func (c *PercentageCalculator) Rate() decimal.Decimal {
	return c.rate
}

// CalculateTax computes round((subtotal + shipping) × rate) to whole pence.
// Halves round away from zero, so 1p × 0.5 is 1p.
func (c *PercentageCalculator) CalculateTax(ctx context.Context, params TaxParams) (*TaxResult, error) {
	if params.ShippingPence < 0 {
		return nil, ErrNegativeAmount
	}
	for _, li := range params.LineItems {
		if li.Quantity < 0 || li.UnitPence < 0 {
			return nil, ErrNegativeAmount
		}
	}

	taxable := decimal.NewFromInt(params.Subtotal() + params.ShippingPence)
	amount := taxable.Mul(c.rate).Round(0).IntPart()

	return &TaxResult{
		TotalTaxPence: amount,
		Breakdown: []TaxBreakdown{
			{
				Name:        c.name,
				Rate:        c.rate,
				AmountPence: amount,
			},
		},
	}, nil
}
