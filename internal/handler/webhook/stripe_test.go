package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dukerupert/quartermaster/internal/billing"
	"github.com/dukerupert/quartermaster/internal/domain"
	"github.com/dukerupert/quartermaster/internal/middleware"
	"github.com/dukerupert/quartermaster/internal/notify"
	"github.com/dukerupert/quartermaster/internal/postgres"
	"github.com/dukerupert/quartermaster/internal/repository"
	"github.com/dukerupert/quartermaster/internal/service"
	"github.com/dukerupert/quartermaster/internal/shipping"
	"github.com/dukerupert/quartermaster/internal/tax"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	store    *repository.MockStore
	billing  *billing.MockProvider
	notifier *notify.MockNotifier
	checkout service.CheckoutService
	handler  http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := repository.NewMockStore()
	provider := billing.NewMockProvider()
	notifier := &notify.MockNotifier{}

	vat, err := tax.NewVATCalculator(decimal.RequireFromString("0.20"))
	require.NoError(t, err)

	checkout := service.NewCheckoutService(store, provider,
		shipping.NewThresholdProvider(5000, 499), vat,
		service.CheckoutConfig{BaseURL: "https://shop.test", OrderNumberPrefix: "QM"}, logger)

	h := NewStripeHandler(provider, service.NewFulfillmentService(store, notifier, logger))

	return &testEnv{
		store:    store,
		billing:  provider,
		notifier: notifier,
		checkout: checkout,
		handler:  middleware.MaxBodySize(middleware.WebhookMaxBodySize)(http.HandlerFunc(h.HandleWebhook)),
	}
}

// placeOrder checks out qty units of a fresh variant and returns the order
// number and variant.
func (e *testEnv) placeOrder(t *testing.T, stock int32, qty int) (string, repository.ProductVariant) {
	t.Helper()

	product := e.store.AddProduct("Poncho, Lightweight", "poncho-"+t.Name(), 2499)
	variant := e.store.AddVariant(product.ID, "One Size", "MTP", "PON-"+t.Name(), stock)

	result, err := e.checkout.CreateSession(context.Background(), service.CheckoutRequest{
		Items: []service.CartItem{{VariantID: postgres.UUID(variant.ID), Quantity: qty}},
		ShippingAddress: domain.Address{
			FullName: "Tommy Atkins",
			Line1:    "1 Barrack Road",
			City:     "Aldershot",
			Postcode: "GU11 1AA",
			Country:  "GB",
		},
	})
	require.NoError(t, err)
	return result.OrderNumber, variant
}

func (e *testEnv) post(payload, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", strings.NewReader(payload))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func sessionPayload(eventID, eventType, orderNumber, paymentStatus string) string {
	session := map[string]any{
		"id":                  "cs_test_a1",
		"object":              "checkout.session",
		"status":              "complete",
		"payment_status":      paymentStatus,
		"client_reference_id": orderNumber,
		"payment_intent":      "pi_test_a1",
		"customer_details":    map[string]any{"email": "buyer@example.com"},
		"metadata":            map[string]string{"order_number": orderNumber},
	}
	return eventPayload(eventID, eventType, session)
}

func eventPayload(eventID, eventType string, object map[string]any) string {
	b, _ := json.Marshal(map[string]any{
		"id":      eventID,
		"object":  "event",
		"type":    eventType,
		"created": 1709942400,
		"data":    map[string]any{"object": object},
	})
	return string(b)
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body), rec.Body.String())
	return body
}

func TestHandleWebhook_CheckoutCompleted(t *testing.T) {
	env := newTestEnv(t)
	orderNumber, variant := env.placeOrder(t, 10, 3)

	rec := env.post(sessionPayload("evt_1", billing.EventCheckoutSessionCompleted, orderNumber, "paid"), "valid-signature")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, map[string]any{"received": true}, decodeResponse(t, rec))

	order, _ := env.store.OrderByNumber(orderNumber)
	assert.Equal(t, "paid", order.PaymentStatus)
	assert.Equal(t, "processing", order.Status)
	assert.Equal(t, "pi_test_a1", order.StripePaymentIntentID.String)
	assert.Equal(t, int32(7), env.store.Stock(variant.ID))

	movements := env.store.MovementsFor(variant.ID)
	require.Len(t, movements, 1)
	assert.Equal(t, int32(-3), movements[0].QuantityChange)
	assert.Len(t, env.notifier.Paid, 1)
}

func TestHandleWebhook_Replay(t *testing.T) {
	env := newTestEnv(t)
	orderNumber, variant := env.placeOrder(t, 10, 3)
	payload := sessionPayload("evt_replayed", billing.EventCheckoutSessionCompleted, orderNumber, "paid")

	first := env.post(payload, "valid-signature")
	require.Equal(t, http.StatusOK, first.Code)

	second := env.post(payload, "valid-signature")
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, map[string]any{"received": true, "duplicate": true}, decodeResponse(t, second))

	assert.Equal(t, int32(7), env.store.Stock(variant.ID), "stock is deducted once")
	assert.Len(t, env.store.MovementsFor(variant.ID), 1)
	assert.Empty(t, env.store.Errors, "duplicates are not failures")
}

func TestHandleWebhook_AsyncPayment(t *testing.T) {
	env := newTestEnv(t)
	orderNumber, variant := env.placeOrder(t, 5, 1)

	rec := env.post(sessionPayload("evt_completed", billing.EventCheckoutSessionCompleted, orderNumber, "unpaid"), "valid-signature")
	require.Equal(t, http.StatusOK, rec.Code)

	order, _ := env.store.OrderByNumber(orderNumber)
	assert.Equal(t, "unpaid", order.PaymentStatus, "unpaid completion waits for the async outcome")
	assert.Equal(t, int32(5), env.store.Stock(variant.ID))
	assert.Empty(t, env.store.Events)

	rec = env.post(sessionPayload("evt_async_ok", billing.EventCheckoutSessionAsyncPaymentSucceeded, orderNumber, "paid"), "valid-signature")
	require.Equal(t, http.StatusOK, rec.Code)

	order, _ = env.store.OrderByNumber(orderNumber)
	assert.Equal(t, "paid", order.PaymentStatus)
	assert.Equal(t, int32(4), env.store.Stock(variant.ID))
}

func TestHandleWebhook_Cancellations(t *testing.T) {
	tests := []struct {
		name              string
		payload           func(orderNumber string) string
		wantPaymentStatus string
	}{
		{
			name: "session expired",
			payload: func(n string) string {
				return sessionPayload("evt_exp", billing.EventCheckoutSessionExpired, n, "unpaid")
			},
			wantPaymentStatus: "unpaid",
		},
		{
			name: "async payment failed",
			payload: func(n string) string {
				return sessionPayload("evt_async_fail", billing.EventCheckoutSessionAsyncPaymentFailed, n, "unpaid")
			},
			wantPaymentStatus: "failed",
		},
		{
			name: "payment intent failed",
			payload: func(n string) string {
				return eventPayload("evt_pi_fail", billing.EventPaymentIntentPaymentFailed, map[string]any{
					"id":                 "pi_test_a1",
					"object":             "payment_intent",
					"status":             "requires_payment_method",
					"metadata":           map[string]string{"order_number": n},
					"last_payment_error": map[string]any{"message": "Your card was declined."},
				})
			},
			wantPaymentStatus: "failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			orderNumber, variant := env.placeOrder(t, 5, 2)

			rec := env.post(tt.payload(orderNumber), "valid-signature")
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			order, _ := env.store.OrderByNumber(orderNumber)
			assert.Equal(t, "cancelled", order.Status)
			assert.Equal(t, tt.wantPaymentStatus, order.PaymentStatus)
			assert.Equal(t, int32(5), env.store.Stock(variant.ID), "cancellation never touches stock")
			assert.Len(t, env.notifier.Cancelled, 1)
		})
	}
}

func TestHandleWebhook_PaymentFailedReason(t *testing.T) {
	env := newTestEnv(t)
	orderNumber, _ := env.placeOrder(t, 5, 1)

	payload := eventPayload("evt_pi_fail", billing.EventPaymentIntentPaymentFailed, map[string]any{
		"id":                 "pi_test_a1",
		"object":             "payment_intent",
		"metadata":           map[string]string{"order_number": orderNumber},
		"last_payment_error": map[string]any{"message": "Your card has insufficient funds."},
	})
	rec := env.post(payload, "valid-signature")
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, env.notifier.Cancelled, 1)
	assert.Equal(t, "Your card has insufficient funds.", env.notifier.Cancelled[0].Reason)
}

func TestHandleWebhook_LateExpiryIgnoredForPaidOrder(t *testing.T) {
	env := newTestEnv(t)
	orderNumber, variant := env.placeOrder(t, 5, 1)

	rec := env.post(sessionPayload("evt_paid", billing.EventCheckoutSessionCompleted, orderNumber, "paid"), "valid-signature")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.post(sessionPayload("evt_exp", billing.EventCheckoutSessionExpired, orderNumber, "unpaid"), "valid-signature")
	require.Equal(t, http.StatusOK, rec.Code)

	order, _ := env.store.OrderByNumber(orderNumber)
	assert.Equal(t, "processing", order.Status)
	assert.Equal(t, int32(4), env.store.Stock(variant.ID))
	assert.Empty(t, env.notifier.Cancelled)
}

func TestHandleWebhook_RejectsBadRequests(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name       string
		payload    string
		signature  string
		wantStatus int
		wantError  string
	}{
		{
			name:       "missing signature",
			payload:    sessionPayload("evt_1", billing.EventCheckoutSessionCompleted, "QM-240309-ABCDEF", "paid"),
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid signature",
		},
		{
			name:       "wrong signature",
			payload:    sessionPayload("evt_1", billing.EventCheckoutSessionCompleted, "QM-240309-ABCDEF", "paid"),
			signature:  "t=1,v1=forged",
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid signature",
		},
		{
			name:       "malformed event",
			payload:    `{"id":`,
			signature:  "valid-signature",
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid event payload",
		},
		{
			name:       "oversized body",
			payload:    `{"id":"` + strings.Repeat("x", int(middleware.WebhookMaxBodySize)) + `"}`,
			signature:  "valid-signature",
			wantStatus: http.StatusRequestEntityTooLarge,
			wantError:  "Request body too large",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.post(tt.payload, tt.signature)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantError, decodeResponse(t, rec)["error"])
		})
	}

	assert.Empty(t, env.store.Events)
}

func TestHandleWebhook_UnhandledEventType(t *testing.T) {
	env := newTestEnv(t)

	payload := eventPayload("evt_other", "customer.created", map[string]any{"id": "cus_1", "object": "customer"})
	rec := env.post(payload, "valid-signature")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, env.store.Events)
	assert.Empty(t, env.store.Errors)
}

func TestHandleWebhook_DomainErrorsAreAcknowledged(t *testing.T) {
	t.Run("unknown order", func(t *testing.T) {
		env := newTestEnv(t)

		rec := env.post(sessionPayload("evt_ghost", billing.EventCheckoutSessionCompleted, "QM-240309-GHOST2", "paid"), "valid-signature")

		assert.Equal(t, http.StatusOK, rec.Code, "a retry cannot create the order")
		require.Len(t, env.store.Errors, 1)
		assert.Equal(t, "evt_ghost", env.store.Errors[0].EventID)
		assert.Contains(t, env.store.Errors[0].ErrorMessage, "Order not found")
		assert.NotNil(t, env.store.Errors[0].Payload)
	})

	t.Run("missing order number", func(t *testing.T) {
		env := newTestEnv(t)

		payload := eventPayload("evt_no_meta", billing.EventPaymentIntentPaymentFailed, map[string]any{
			"id":     "pi_unrelated",
			"object": "payment_intent",
		})
		rec := env.post(payload, "valid-signature")

		assert.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, env.store.Errors, 1)
		assert.Equal(t, domain.ErrMissingOrderNumber.Error(), env.store.Errors[0].ErrorMessage)
	})
}

func TestHandleWebhook_InternalErrorAsksForRetry(t *testing.T) {
	env := newTestEnv(t)
	orderNumber, variant := env.placeOrder(t, 10, 2)
	env.store.Fail["UpdateVariantStock"] = errors.New("deadlock detected")

	payload := sessionPayload("evt_retry", billing.EventCheckoutSessionCompleted, orderNumber, "paid")
	rec := env.post(payload, "valid-signature")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "deadlock")
	require.Len(t, env.store.Errors, 1)
	assert.Equal(t, int32(10), env.store.Stock(variant.ID))

	// The failed attempt released its claim, so Stripe's retry succeeds.
	delete(env.store.Fail, "UpdateVariantStock")
	rec = env.post(payload, "valid-signature")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int32(8), env.store.Stock(variant.ID))
}
