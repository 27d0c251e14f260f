package service

import (
	"context"

	"github.com/dukerupert/quartermaster/internal/domain"
	"github.com/dukerupert/quartermaster/internal/tax"
)

// LineAmount is one priced cart line. Amounts are in pence.
type LineAmount struct {
	Description string
	UnitPence   int64
	Quantity    int64
}

// ShippingQuote prices delivery for a subtotal.
type ShippingQuote func(subtotalPence int64) int64

// FixedShipping ignores the subtotal. Used once a rate has been selected.
func FixedShipping(pence int64) ShippingQuote {
	return func(int64) int64 { return pence }
}

// OrderTotals is the computed breakdown of an order.
type OrderTotals struct {
	domain.Totals
	TaxBreakdown []tax.TaxBreakdown
}

// Subtotal sums unit price times quantity over every line.
func Subtotal(lines []LineAmount) int64 {
	var sum int64
	for _, l := range lines {
		sum += l.UnitPence * l.Quantity
	}
	return sum
}

// CalculateTotals computes subtotal, shipping, VAT and total in that order.
// VAT is charged on subtotal plus shipping, and total is always the exact
// sum of the three parts.
func CalculateTotals(ctx context.Context, calc tax.Calculator, lines []LineAmount, quote ShippingQuote) (*OrderTotals, error) {
	const op = "checkout.totals"

	if len(lines) == 0 {
		return nil, domain.ErrEmptyCart
	}

	taxLines := make([]tax.LineItem, len(lines))
	for i, l := range lines {
		if l.Quantity <= 0 || l.UnitPence < 0 {
			return nil, domain.Invalid(op, "Line items need a positive quantity and a non-negative price")
		}
		taxLines[i] = tax.LineItem{
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPence:   l.UnitPence,
		}
	}

	subtotal := Subtotal(lines)

	var shippingPence int64
	if quote != nil {
		shippingPence = quote(subtotal)
	}

	result, err := calc.CalculateTax(ctx, tax.TaxParams{
		LineItems:     taxLines,
		ShippingPence: shippingPence,
	})
	if err != nil {
		return nil, err
	}

	return &OrderTotals{
		Totals: domain.Totals{
			Subtotal: domain.Money(subtotal),
			Shipping: domain.Money(shippingPence),
			VAT:      domain.Money(result.TotalTaxPence),
			Total:    domain.Money(subtotal + shippingPence + result.TotalTaxPence),
		},
		TaxBreakdown: result.Breakdown,
	}, nil
}
