package shipping_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/dukerupert/quartermaster/internal/billing"
	"github.com/dukerupert/quartermaster/internal/shipping"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThresholdProvider_Quote(t *testing.T) {
	p := shipping.NewThresholdProvider(5000, 499)

	tests := []struct {
		name     string
		subtotal int64
		expected int64
	}{
		{name: "empty cart", subtotal: 0, expected: 499},
		{name: "just under threshold", subtotal: 4999, expected: 499},
		{name: "exactly threshold", subtotal: 5000, expected: 0},
		{name: "over threshold", subtotal: 5198, expected: 0},
		{name: "under threshold", subtotal: 2099, expected: 499},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, p.Quote(tt.subtotal))
		})
	}
}

func TestThresholdProvider_GetRates(t *testing.T) {
	p := shipping.NewThresholdProvider(5000, 499)

	rates, err := p.GetRates(context.Background(), shipping.RateParams{SubtotalPence: 2099, Country: "GB"})
	require.NoError(t, err)
	require.Len(t, rates, 1)
	assert.Equal(t, shipping.MethodStandard, rates[0].ServiceCode)
	assert.Equal(t, "Standard UK delivery", rates[0].ServiceName)
	assert.Equal(t, int64(499), rates[0].CostPence)

	rates, err = p.GetRates(context.Background(), shipping.RateParams{SubtotalPence: 5198})
	require.NoError(t, err)
	assert.Equal(t, "Free UK delivery", rates[0].ServiceName)
	assert.Equal(t, int64(0), rates[0].CostPence)

	_, err = p.GetRates(context.Background(), shipping.RateParams{SubtotalPence: -1})
	assert.ErrorIs(t, err, shipping.ErrNegativeSubtotal)

	_, err = p.GetRates(context.Background(), shipping.RateParams{SubtotalPence: 100, Country: "FR"})
	assert.ErrorIs(t, err, shipping.ErrUnsupportedCountry)
}

func TestSelectRate(t *testing.T) {
	rates := []shipping.Rate{
		{ServiceCode: shipping.MethodStandard, CostPence: 499},
		{ServiceCode: shipping.MethodExpress, CostPence: 899},
	}

	r, err := shipping.SelectRate(rates, "")
	require.NoError(t, err)
	assert.Equal(t, int64(499), r.CostPence)

	r, err = shipping.SelectRate(rates, shipping.MethodExpress)
	require.NoError(t, err)
	assert.Equal(t, int64(899), r.CostPence)

	_, err = shipping.SelectRate(rates, "overnight")
	assert.ErrorIs(t, err, shipping.ErrUnknownRate)

	_, err = shipping.SelectRate(nil, "")
	assert.ErrorIs(t, err, shipping.ErrNoRates)
}

func TestStripeRateProvider(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	base := shipping.NewThresholdProvider(5000, 499)

	t.Run("appends active express rate", func(t *testing.T) {
		mock := billing.NewMockProvider()
		mock.ShippingRates["shr_express"] = &billing.ShippingRate{
			ID: "shr_express", DisplayName: "Express (next working day)", AmountPence: 899, Active: true, DaysMin: 1, DaysMax: 1,
		}
		p := shipping.NewStripeRateProvider(base, mock, "shr_express", logger)

		rates, err := p.GetRates(context.Background(), shipping.RateParams{SubtotalPence: 2099})
		require.NoError(t, err)
		require.Len(t, rates, 2)
		assert.Equal(t, shipping.MethodExpress, rates[1].ServiceCode)
		assert.Equal(t, "shr_express", rates[1].ProviderRateID)
		assert.Equal(t, int64(899), rates[1].CostPence)
	})

	t.Run("skips inactive rate", func(t *testing.T) {
		mock := billing.NewMockProvider()
		mock.ShippingRates["shr_express"] = &billing.ShippingRate{ID: "shr_express", Active: false}
		p := shipping.NewStripeRateProvider(base, mock, "shr_express", logger)

		rates, err := p.GetRates(context.Background(), shipping.RateParams{SubtotalPence: 2099})
		require.NoError(t, err)
		assert.Len(t, rates, 1)
	})

	t.Run("lookup failure degrades to base rates", func(t *testing.T) {
		mock := billing.NewMockProvider()
		mock.GetShippingRateFunc = func(ctx context.Context, rateID string) (*billing.ShippingRate, error) {
			return nil, errors.New("stripe unavailable")
		}
		p := shipping.NewStripeRateProvider(base, mock, "shr_express", logger)

		rates, err := p.GetRates(context.Background(), shipping.RateParams{SubtotalPence: 2099})
		require.NoError(t, err)
		assert.Len(t, rates, 1)
	})

	t.Run("no express configured", func(t *testing.T) {
		mock := billing.NewMockProvider()
		p := shipping.NewStripeRateProvider(base, mock, "", logger)

		rates, err := p.GetRates(context.Background(), shipping.RateParams{SubtotalPence: 2099})
		require.NoError(t, err)
		assert.Len(t, rates, 1)
		assert.Empty(t, mock.CallLog)
	})
}
