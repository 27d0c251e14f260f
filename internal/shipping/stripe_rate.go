package shipping

import (
	"context"
	"log/slog"

	"github.com/dukerupert/quartermaster/internal/billing"
)

// StripeRateProvider adds an express option backed by a shipping rate
// configured in the Stripe dashboard to the rates of a base provider.
type StripeRateProvider struct {
	base          Provider
	rates         billing.Provider
	expressRateID string
	logger        *slog.Logger
}

func NewStripeRateProvider(base Provider, rates billing.Provider, expressRateID string, logger *slog.Logger) *StripeRateProvider {
	return &StripeRateProvider{
		base:          base,
		rates:         rates,
		expressRateID: expressRateID,
		logger:        logger.With("component", "shipping"),
	}
}

// GetRates returns the base rates plus express when it is configured and
// active. A failed express lookup degrades to the base rates.
func (p *StripeRateProvider) GetRates(ctx context.Context, params RateParams) ([]Rate, error) {
	rates, err := p.base.GetRates(ctx, params)
	if err != nil {
		return nil, err
	}
	if p.expressRateID == "" {
		return rates, nil
	}

	sr, err := p.rates.GetShippingRate(ctx, p.expressRateID)
	if err != nil {
		p.logger.WarnContext(ctx, "express shipping rate lookup failed",
			"rate_id", p.expressRateID,
			"error", err,
		)
		return rates, nil
	}
	if !sr.Active {
		return rates, nil
	}

	return append(rates, Rate{
		ServiceName:    sr.DisplayName,
		ServiceCode:    MethodExpress,
		CostPence:      sr.AmountPence,
		DaysMin:        sr.DaysMin,
		DaysMax:        sr.DaysMax,
		ProviderRateID: sr.ID,
	}), nil
}
