package service

import (
	"io"
	"log/slog"
	"testing"

	"github.com/dukerupert/quartermaster/internal/billing"
	"github.com/dukerupert/quartermaster/internal/domain"
	"github.com/dukerupert/quartermaster/internal/notify"
	"github.com/dukerupert/quartermaster/internal/repository"
	"github.com/dukerupert/quartermaster/internal/shipping"
	"github.com/dukerupert/quartermaster/internal/tax"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ukVAT(t *testing.T) tax.Calculator {
	t.Helper()
	calc, err := tax.NewVATCalculator(decimal.RequireFromString("0.20"))
	require.NoError(t, err)
	return calc
}

type fixture struct {
	store       *repository.MockStore
	billing     *billing.MockProvider
	notifier    *notify.MockNotifier
	checkout    CheckoutService
	fulfillment FulfillmentService
	inventory   InventoryService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := repository.NewMockStore()
	provider := billing.NewMockProvider()
	notifier := &notify.MockNotifier{}
	logger := testLogger()

	shippingProvider := shipping.NewStripeRateProvider(
		shipping.NewThresholdProvider(5000, 499),
		provider,
		"shr_express",
		logger,
	)

	return &fixture{
		store:    store,
		billing:  provider,
		notifier: notifier,
		checkout: NewCheckoutService(store, provider, shippingProvider, ukVAT(t), CheckoutConfig{
			BaseURL:           "https://shop.test/",
			Currency:          "gbp",
			OrderNumberPrefix: "QM",
		}, logger),
		fulfillment: NewFulfillmentService(store, notifier, logger),
		inventory:   NewInventoryService(store, logger),
	}
}

func testAddress() domain.Address {
	return domain.Address{
		FullName: "Tommy Atkins",
		Line1:    "1 Barrack Road",
		City:     "Aldershot",
		Postcode: "GU11 1AA",
		Country:  "GB",
	}
}

func intPtr(v int) *int { return &v }
