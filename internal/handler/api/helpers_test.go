package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dukerupert/quartermaster/internal/billing"
	"github.com/dukerupert/quartermaster/internal/handler"
	"github.com/dukerupert/quartermaster/internal/postgres"
	"github.com/dukerupert/quartermaster/internal/repository"
	"github.com/dukerupert/quartermaster/internal/service"
	"github.com/dukerupert/quartermaster/internal/shipping"
	"github.com/dukerupert/quartermaster/internal/tax"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	store     *repository.MockStore
	billing   *billing.MockProvider
	checkout  *CheckoutHandler
	catalog   *CatalogHandler
	orders    *OrderHandler
	inventory *InventoryHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := repository.NewMockStore()
	provider := billing.NewMockProvider()

	vat, err := tax.NewVATCalculator(decimal.RequireFromString("0.20"))
	require.NoError(t, err)

	shippingProvider := shipping.NewStripeRateProvider(
		shipping.NewThresholdProvider(5000, 499),
		provider,
		"shr_express",
		logger,
	)

	checkoutService := service.NewCheckoutService(store, provider, shippingProvider, vat, service.CheckoutConfig{
		BaseURL:           "https://shop.test",
		OrderNumberPrefix: "QM",
	}, logger)

	return &testEnv{
		store:     store,
		billing:   provider,
		checkout:  NewCheckoutHandler(checkoutService),
		catalog:   NewCatalogHandler(postgres.NewCatalogService(store)),
		orders:    NewOrderHandler(postgres.NewOrderService(store)),
		inventory: NewInventoryHandler(service.NewInventoryService(store, logger)),
	}
}

// serve routes a single request through a mux so path values resolve.
func serve(pattern string, h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	mux.HandleFunc(pattern, h)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) handler.ErrorBody {
	t.Helper()
	return decode[handler.ErrorBody](t, rec)
}

func variantID(v repository.ProductVariant) string {
	return postgres.UUID(v.ID).String()
}

const addressJSON = `{"fullName":"Tommy Atkins","line1":"1 Barrack Road","city":"Aldershot","postcode":"GU11 1AA","country":"GB"}`
