package shipping

import (
	"context"
	"strings"
)

// ThresholdProvider charges a flat rate below a free-delivery threshold
// and nothing at or above it.
type ThresholdProvider struct {
	freeThresholdPence int64
	flatRatePence      int64
}

// NewThresholdProvider creates a threshold provider. The UK defaults are
// free delivery from £50 and £4.99 otherwise.
func NewThresholdProvider(freeThresholdPence, flatRatePence int64) *ThresholdProvider {
	return &ThresholdProvider{
		freeThresholdPence: freeThresholdPence,
		flatRatePence:      flatRatePence,
	}
}

// Quote returns the standard shipping cost for a subtotal.
func (p *ThresholdProvider) Quote(subtotalPence int64) int64 {
	if subtotalPence >= p.freeThresholdPence {
		return 0
	}
	return p.flatRatePence
}

// GetRates returns the single standard rate for the cart.
func (p *ThresholdProvider) GetRates(ctx context.Context, params RateParams) ([]Rate, error) {
	if params.SubtotalPence < 0 {
		return nil, ErrNegativeSubtotal
	}
	if params.Country != "" && !isUK(params.Country) {
		return nil, ErrUnsupportedCountry
	}

	cost := p.Quote(params.SubtotalPence)
	name := "Standard UK delivery"
	if cost == 0 {
		name = "Free UK delivery"
	}

	return []Rate{
		{
			ServiceName: name,
			ServiceCode: MethodStandard,
			CostPence:   cost,
			DaysMin:     2,
			DaysMax:     4,
		},
	}, nil
}

func isUK(country string) bool {
	switch strings.ToUpper(strings.TrimSpace(country)) {
	case "GB", "UK":
		return true
	}
	return false
}
