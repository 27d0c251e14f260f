package tax

import "context"

// NoTaxCalculator returns zero tax for all calculations.
// Used when the shop is not VAT registered.
type NoTaxCalculator struct{}

func NewNoTaxCalculator() *NoTaxCalculator {
	return &NoTaxCalculator{}
}

// CalculateTax always returns zero tax.
func (c *NoTaxCalculator) CalculateTax(ctx context.Context, params TaxParams) (*TaxResult, error) {
	return &TaxResult{TotalTaxPence: 0, Breakdown: nil}, nil
}
