package service

import (
	"context"
	"errors"
	"testing"

	"github.com/dukerupert/quartermaster/internal/billing"
	"github.com/dukerupert/quartermaster/internal/domain"
	"github.com/dukerupert/quartermaster/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// placeOrder runs a checkout for qty units of a new variant with the given
// stock and returns the order number and the variant.
func placeOrder(t *testing.T, f *fixture, stock int32, qty int) (string, repository.ProductVariant) {
	t.Helper()

	product := f.store.AddProduct("Field Jacket", "field-jacket-"+t.Name(), 2599)
	variant := f.store.AddVariant(product.ID, "M", "Olive", "FJ-"+t.Name(), max(stock, int32(qty)))

	result, err := f.checkout.CreateSession(context.Background(), CheckoutRequest{
		Items:           []CartItem{{VariantID: variantID(variant), Quantity: qty}},
		ShippingAddress: testAddress(),
	})
	require.NoError(t, err)

	// Stock may drop between checkout and payment.
	variant.StockQuantity = stock
	f.store.Variants[variant.ID.Bytes] = variant

	return result.OrderNumber, variant
}

func paidEvent(id, orderNumber string) PaymentEvent {
	return PaymentEvent{
		EventID:         id,
		EventType:       billing.EventCheckoutSessionCompleted,
		OrderNumber:     orderNumber,
		SessionID:       "cs_test_1",
		PaymentIntentID: "pi_test_1",
		CustomerEmail:   "buyer@example.com",
	}
}

func TestFulfillment_MarkPaid_DeductsStock(t *testing.T) {
	f := newFixture(t)
	orderNumber, variant := placeOrder(t, f, 10, 3)

	result, err := f.fulfillment.MarkPaid(context.Background(), paidEvent("evt_1", orderNumber))
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusProcessing, result.Order.Status)
	assert.Equal(t, domain.PaymentStatusPaid, result.Order.PaymentStatus)
	assert.NotNil(t, result.Order.PaidAt)
	assert.Equal(t, "buyer@example.com", result.Order.CustomerEmail)
	assert.False(t, result.AlreadyPaid)

	assert.Equal(t, int32(7), f.store.Stock(variant.ID))

	movements := f.store.MovementsFor(variant.ID)
	require.Len(t, movements, 1)
	assert.Equal(t, "sale", movements[0].MovementType)
	assert.Equal(t, int32(-3), movements[0].QuantityChange)
	assert.Equal(t, int32(10), movements[0].PreviousQuantity)
	assert.Equal(t, int32(7), movements[0].NewQuantity)
	assert.Equal(t, orderNumber, movements[0].Reference.String)

	require.Len(t, f.notifier.Paid, 1)
	assert.Equal(t, orderNumber, f.notifier.Paid[0].OrderNumber)
	assert.Equal(t, "processing", f.notifier.Paid[0].Status)
}

func TestFulfillment_MarkPaid_FloorsAtZero(t *testing.T) {
	tests := []struct {
		name      string
		stock     int32
		qty       int
		wantStock int32
	}{
		{name: "exact", stock: 2, qty: 2, wantStock: 0},
		{name: "oversold", stock: 1, qty: 3, wantStock: 0},
		{name: "already empty", stock: 0, qty: 2, wantStock: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			orderNumber, variant := placeOrder(t, f, tt.stock, tt.qty)

			result, err := f.fulfillment.MarkPaid(context.Background(), paidEvent("evt_"+tt.name, orderNumber))
			require.NoError(t, err)

			assert.Equal(t, tt.wantStock, f.store.Stock(variant.ID))
			require.Len(t, result.Movements, 1)
			assert.Equal(t, -tt.qty, result.Movements[0].QuantityChange, "movement records the ordered quantity")
			assert.Equal(t, int(tt.stock), result.Movements[0].PreviousQuantity)
			assert.Equal(t, int(tt.wantStock), result.Movements[0].NewQuantity)
		})
	}
}

func TestFulfillment_MarkPaid_DuplicateEvent(t *testing.T) {
	f := newFixture(t)
	orderNumber, variant := placeOrder(t, f, 10, 3)
	ctx := context.Background()

	_, err := f.fulfillment.MarkPaid(ctx, paidEvent("evt_dup", orderNumber))
	require.NoError(t, err)

	_, err = f.fulfillment.MarkPaid(ctx, paidEvent("evt_dup", orderNumber))
	assert.ErrorIs(t, err, domain.ErrDuplicateEvent)

	assert.Equal(t, int32(7), f.store.Stock(variant.ID), "replay must not deduct again")
	assert.Len(t, f.store.MovementsFor(variant.ID), 1)
	assert.Len(t, f.notifier.Paid, 1)
}

func TestFulfillment_MarkPaid_AlreadyPaidByOtherEvent(t *testing.T) {
	f := newFixture(t)
	orderNumber, variant := placeOrder(t, f, 10, 3)
	ctx := context.Background()

	_, err := f.fulfillment.MarkPaid(ctx, paidEvent("evt_completed", orderNumber))
	require.NoError(t, err)

	ev := paidEvent("evt_async", orderNumber)
	ev.EventType = billing.EventCheckoutSessionAsyncPaymentSucceeded
	result, err := f.fulfillment.MarkPaid(ctx, ev)
	require.NoError(t, err)

	assert.True(t, result.AlreadyPaid)
	assert.Equal(t, int32(7), f.store.Stock(variant.ID))
	assert.Len(t, f.notifier.Paid, 1)
}

func TestFulfillment_MarkPaid_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing order number", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.fulfillment.MarkPaid(ctx, paidEvent("evt_1", ""))
		assert.ErrorIs(t, err, domain.ErrMissingOrderNumber)
	})

	t.Run("unknown order releases claim", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.fulfillment.MarkPaid(ctx, paidEvent("evt_1", "QM-000000-NOPE00"))
		assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
		assert.Empty(t, f.store.Events)
	})

	t.Run("stock write failure rolls back", func(t *testing.T) {
		f := newFixture(t)
		orderNumber, variant := placeOrder(t, f, 10, 3)
		f.store.Fail["CreateInventoryMovement"] = errors.New("disk full")

		_, err := f.fulfillment.MarkPaid(ctx, paidEvent("evt_1", orderNumber))
		assert.Equal(t, domain.EINTERNAL, domain.ErrorCode(err))

		order, _ := f.store.OrderByNumber(orderNumber)
		assert.Equal(t, "unpaid", order.PaymentStatus)
		assert.Equal(t, int32(10), f.store.Stock(variant.ID))
		assert.Empty(t, f.store.Events, "retry must be able to claim the event")
		assert.Empty(t, f.notifier.Paid)
	})

	t.Run("notification failure is not fatal", func(t *testing.T) {
		f := newFixture(t)
		orderNumber, _ := placeOrder(t, f, 10, 1)
		f.notifier.Err = errors.New("nats: no servers")

		_, err := f.fulfillment.MarkPaid(ctx, paidEvent("evt_1", orderNumber))
		assert.NoError(t, err)
	})
}

func TestFulfillment_Cancel(t *testing.T) {
	ctx := context.Background()

	t.Run("expired session", func(t *testing.T) {
		f := newFixture(t)
		orderNumber, variant := placeOrder(t, f, 10, 3)

		result, err := f.fulfillment.Cancel(ctx, PaymentEvent{
			EventID:     "evt_exp",
			EventType:   billing.EventCheckoutSessionExpired,
			OrderNumber: orderNumber,
		})
		require.NoError(t, err)

		assert.Equal(t, domain.OrderStatusCancelled, result.Order.Status)
		assert.Equal(t, domain.PaymentStatusUnpaid, result.Order.PaymentStatus)
		assert.NotNil(t, result.Order.CancelledAt)
		assert.Equal(t, int32(10), f.store.Stock(variant.ID))
		require.Len(t, f.notifier.Cancelled, 1)
	})

	t.Run("failed payment", func(t *testing.T) {
		f := newFixture(t)
		orderNumber, _ := placeOrder(t, f, 10, 1)

		result, err := f.fulfillment.Cancel(ctx, PaymentEvent{
			EventID:     "evt_fail",
			EventType:   billing.EventPaymentIntentPaymentFailed,
			OrderNumber: orderNumber,
			Reason:      "Your card was declined.",
		})
		require.NoError(t, err)

		assert.Equal(t, domain.PaymentStatusFailed, result.Order.PaymentStatus)
		require.Len(t, f.notifier.Cancelled, 1)
		assert.Equal(t, "Your card was declined.", f.notifier.Cancelled[0].Reason)
	})

	t.Run("paid order is left alone", func(t *testing.T) {
		f := newFixture(t)
		orderNumber, _ := placeOrder(t, f, 10, 1)
		_, err := f.fulfillment.MarkPaid(ctx, paidEvent("evt_paid", orderNumber))
		require.NoError(t, err)

		result, err := f.fulfillment.Cancel(ctx, PaymentEvent{
			EventID:     "evt_late_expiry",
			EventType:   billing.EventCheckoutSessionExpired,
			OrderNumber: orderNumber,
		})
		require.NoError(t, err)

		assert.True(t, result.Ignored)
		assert.Equal(t, domain.OrderStatusProcessing, result.Order.Status)
		assert.Empty(t, f.notifier.Cancelled)
	})

	t.Run("duplicate", func(t *testing.T) {
		f := newFixture(t)
		orderNumber, _ := placeOrder(t, f, 10, 1)
		ev := PaymentEvent{EventID: "evt_x", EventType: billing.EventCheckoutSessionExpired, OrderNumber: orderNumber}

		_, err := f.fulfillment.Cancel(ctx, ev)
		require.NoError(t, err)
		_, err = f.fulfillment.Cancel(ctx, ev)
		assert.ErrorIs(t, err, domain.ErrDuplicateEvent)
	})
}

func TestFulfillment_RecordWebhookError(t *testing.T) {
	ctx := context.Background()

	t.Run("stores json payload", func(t *testing.T) {
		f := newFixture(t)
		f.fulfillment.RecordWebhookError(ctx, "evt_1", "checkout.session.completed",
			errors.New("boom"), []byte(`{"id":"evt_1"}`))

		require.Len(t, f.store.Errors, 1)
		assert.Equal(t, "boom", f.store.Errors[0].ErrorMessage)
		assert.JSONEq(t, `{"id":"evt_1"}`, string(f.store.Errors[0].Payload))
	})

	t.Run("drops non-json payload", func(t *testing.T) {
		f := newFixture(t)
		f.fulfillment.RecordWebhookError(ctx, "evt_2", "unknown", errors.New("bad"), []byte("not json"))

		require.Len(t, f.store.Errors, 1)
		assert.Nil(t, f.store.Errors[0].Payload)
	})

	t.Run("store failure is swallowed", func(t *testing.T) {
		f := newFixture(t)
		f.store.Fail["CreateWebhookError"] = errors.New("db down")

		assert.NotPanics(t, func() {
			f.fulfillment.RecordWebhookError(ctx, "evt_3", "unknown", errors.New("bad"), nil)
		})
		assert.Empty(t, f.store.Errors)
	})
}
