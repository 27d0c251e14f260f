package shipping

import (
	"context"
)

// Service codes offered at checkout.
const (
	MethodStandard = "standard"
	MethodExpress  = "express"
)

// Provider defines the interface for quoting shipping.
// Implementations: ThresholdProvider, StripeRateProvider, MockProvider
type Provider interface {
	// GetRates returns the shipping options available for a cart.
	GetRates(ctx context.Context, params RateParams) ([]Rate, error)
}

// RateParams contains parameters for calculating shipping rates.
type RateParams struct {
	// SubtotalPence is the cart subtotal before shipping and VAT.
	SubtotalPence int64

	// Country is the ISO 3166-1 alpha-2 destination, e.g. "GB".
	Country string
}

// Rate represents a shipping rate option.
type Rate struct {
	ServiceName string
	ServiceCode string
	CostPence   int64
	DaysMin     int
	DaysMax     int

	// ProviderRateID is set when the rate is managed by the payment
	// provider and should be referenced rather than sent inline.
	ProviderRateID string
}

// SelectRate picks the rate with the given service code. An empty code
// selects the standard rate.
func SelectRate(rates []Rate, code string) (Rate, error) {
	if len(rates) == 0 {
		return Rate{}, ErrNoRates
	}
	if code == "" {
		code = MethodStandard
	}
	for _, r := range rates {
		if r.ServiceCode == code {
			return r, nil
		}
	}
	return Rate{}, ErrUnknownRate
}
