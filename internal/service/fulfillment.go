package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/dukerupert/quartermaster/internal/billing"
	"github.com/dukerupert/quartermaster/internal/domain"
	"github.com/dukerupert/quartermaster/internal/notify"
	"github.com/dukerupert/quartermaster/internal/postgres"
	"github.com/dukerupert/quartermaster/internal/repository"
	"github.com/dukerupert/quartermaster/internal/telemetry"
	"github.com/jackc/pgx/v5"
)

// FulfillmentService applies payment outcomes reported by the payment
// processor to orders and stock.
type FulfillmentService interface {
	// MarkPaid marks the order paid and deducts stock for every item, in one
	// transaction with the event claim. A replayed event returns
	// domain.ErrDuplicateEvent and changes nothing.
	MarkPaid(ctx context.Context, event PaymentEvent) (*FulfillmentResult, error)

	// Cancel marks an unpaid order cancelled. Paid orders are left alone.
	Cancel(ctx context.Context, event PaymentEvent) (*FulfillmentResult, error)

	// RecordWebhookError stores a processing failure for later inspection.
	// Failures to record are logged and never returned.
	RecordWebhookError(ctx context.Context, eventID, eventType string, cause error, payload []byte)
}

// PaymentEvent is the processor-neutral view of a webhook event.
type PaymentEvent struct {
	EventID         string
	EventType       string
	OrderNumber     string
	SessionID       string
	PaymentIntentID string
	CustomerEmail   string
	// Reason is the processor's failure message, if any.
	Reason string
}

// FulfillmentResult describes what a webhook changed.
type FulfillmentResult struct {
	Order     domain.Order
	Items     []domain.OrderItem
	Movements []domain.InventoryMovement

	// AlreadyPaid is set when MarkPaid found the order paid by an earlier
	// event with a different id.
	AlreadyPaid bool

	// Ignored is set when Cancel found the order already paid or cancelled.
	Ignored bool
}

type fulfillmentService struct {
	store    repository.Store
	notifier notify.Notifier
	logger   *slog.Logger
}

// NewFulfillmentService creates a new FulfillmentService instance.
func NewFulfillmentService(store repository.Store, notifier notify.Notifier, logger *slog.Logger) FulfillmentService {
	return &fulfillmentService{
		store:    store,
		notifier: notifier,
		logger:   logger.With("service", "fulfillment"),
	}
}

func (s *fulfillmentService) MarkPaid(ctx context.Context, event PaymentEvent) (*FulfillmentResult, error) {
	const op = "fulfillment.mark_paid"

	if event.OrderNumber == "" {
		return nil, domain.ErrMissingOrderNumber
	}

	log := s.logger.With("event_id", event.EventID, "order_number", event.OrderNumber)
	result := &FulfillmentResult{}

	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		if err := claimEvent(ctx, q, event); err != nil {
			return err
		}

		row, err := lockOrder(ctx, q, op, event.OrderNumber)
		if err != nil {
			return err
		}

		if domain.PaymentStatus(row.PaymentStatus) == domain.PaymentStatusPaid {
			result.Order = postgres.OrderFromRow(row)
			result.AlreadyPaid = true
			return nil
		}
		if domain.OrderStatus(row.Status) == domain.OrderStatusCancelled {
			// Money has been taken, so the order is fulfilled regardless.
			log.WarnContext(ctx, "payment received for cancelled order")
		}

		paid, err := q.MarkOrderPaid(ctx, repository.MarkOrderPaidParams{
			ID:                    row.ID,
			StripePaymentIntentID: postgres.PgText(event.PaymentIntentID),
			StripeSessionID:       postgres.PgText(event.SessionID),
			CustomerEmail:         postgres.PgText(event.CustomerEmail),
		})
		if err != nil {
			return domain.Internal(err, op, "failed to mark order paid")
		}
		result.Order = postgres.OrderFromRow(paid)

		items, err := q.ListOrderItems(ctx, paid.ID)
		if err != nil {
			return domain.Internal(err, op, "failed to load order items")
		}
		result.Items = postgres.OrderItemsFromRows(items)

		for _, item := range items {
			movement, err := deductStock(ctx, q, op, item, paid.OrderNumber, log)
			if err != nil {
				return err
			}
			result.Movements = append(result.Movements, movement)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.AlreadyPaid {
		log.InfoContext(ctx, "order already paid, skipping stock deduction")
		return result, nil
	}

	if telemetry.Business != nil {
		telemetry.Business.OrdersPaid.Inc()
		telemetry.Business.OrderValue.WithLabelValues(result.Order.ShippingMethod).
			Observe(result.Order.Totals.Total.Pounds().InexactFloat64())
		for _, m := range result.Movements {
			telemetry.Business.StockMovements.WithLabelValues(string(m.MovementType)).Inc()
			telemetry.Business.StockUnitsDeducted.Add(float64(-m.QuantityChange))
		}
	}

	log.InfoContext(ctx, "order paid",
		"items", len(result.Items),
		"total", result.Order.Totals.Total.String(),
	)

	if err := s.notifier.OrderPaid(ctx, notify.NewOrderEvent(result.Order, result.Items, "")); err != nil {
		log.WarnContext(ctx, "order paid notification failed", "error", err)
	}

	return result, nil
}

// deductStock floors the variant at zero and records a sale movement for
// the full ordered quantity.
func deductStock(ctx context.Context, q repository.Querier, op string, item repository.OrderItem, orderNumber string, log *slog.Logger) (domain.InventoryMovement, error) {
	variant, err := q.LockVariantForUpdate(ctx, item.ProductVariantID)
	if err != nil {
		return domain.InventoryMovement{}, domain.Internal(err, op, "failed to lock variant "+item.VariantSku)
	}

	prev := int(variant.StockQuantity)
	qty := int(item.Quantity)
	next := domain.ClampStock(prev, -qty)

	if prev < qty {
		log.WarnContext(ctx, "stock oversold",
			"sku", item.VariantSku,
			"stock", prev,
			"ordered", qty,
		)
		if telemetry.Business != nil {
			telemetry.Business.OversoldDeductions.Inc()
		}
	}

	if _, err := q.UpdateVariantStock(ctx, repository.UpdateVariantStockParams{
		ID:            variant.ID,
		StockQuantity: int32(next),
	}); err != nil {
		return domain.InventoryMovement{}, domain.Internal(err, op, "failed to update stock for "+item.VariantSku)
	}

	movement, err := q.CreateInventoryMovement(ctx, repository.CreateInventoryMovementParams{
		ProductVariantID: variant.ID,
		MovementType:     string(domain.MovementSale),
		QuantityChange:   int32(-qty),
		PreviousQuantity: int32(prev),
		NewQuantity:      int32(next),
		Reference:        postgres.PgText(orderNumber),
	})
	if err != nil {
		return domain.InventoryMovement{}, domain.Internal(err, op, "failed to record stock movement")
	}

	return postgres.MovementFromRow(movement), nil
}

func (s *fulfillmentService) Cancel(ctx context.Context, event PaymentEvent) (*FulfillmentResult, error) {
	const op = "fulfillment.cancel"

	if event.OrderNumber == "" {
		return nil, domain.ErrMissingOrderNumber
	}

	log := s.logger.With("event_id", event.EventID, "order_number", event.OrderNumber)
	result := &FulfillmentResult{}

	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		if err := claimEvent(ctx, q, event); err != nil {
			return err
		}

		row, err := lockOrder(ctx, q, op, event.OrderNumber)
		if err != nil {
			return err
		}

		if domain.PaymentStatus(row.PaymentStatus) == domain.PaymentStatusPaid ||
			domain.OrderStatus(row.Status) == domain.OrderStatusCancelled {
			result.Order = postgres.OrderFromRow(row)
			result.Ignored = true
			return nil
		}

		cancelled, err := q.CancelOrder(ctx, repository.CancelOrderParams{
			ID:            row.ID,
			PaymentStatus: string(cancelPaymentStatus(event.EventType)),
		})
		if err != nil {
			return domain.Internal(err, op, "failed to cancel order")
		}
		result.Order = postgres.OrderFromRow(cancelled)

		items, err := q.ListOrderItems(ctx, cancelled.ID)
		if err != nil {
			return domain.Internal(err, op, "failed to load order items")
		}
		result.Items = postgres.OrderItemsFromRows(items)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Ignored {
		log.InfoContext(ctx, "cancellation ignored",
			"status", result.Order.Status,
			"payment_status", result.Order.PaymentStatus,
		)
		return result, nil
	}

	if telemetry.Business != nil {
		telemetry.Business.OrdersCancelled.WithLabelValues(event.EventType).Inc()
	}

	log.InfoContext(ctx, "order cancelled", "event_type", event.EventType, "reason", event.Reason)

	if err := s.notifier.OrderCancelled(ctx, notify.NewOrderEvent(result.Order, result.Items, event.Reason)); err != nil {
		log.WarnContext(ctx, "order cancelled notification failed", "error", err)
	}

	return result, nil
}

// cancelPaymentStatus distinguishes an abandoned session from a declined
// payment.
func cancelPaymentStatus(eventType string) domain.PaymentStatus {
	if eventType == billing.EventCheckoutSessionExpired {
		return domain.PaymentStatusUnpaid
	}
	return domain.PaymentStatusFailed
}

func (s *fulfillmentService) RecordWebhookError(ctx context.Context, eventID, eventType string, cause error, payload []byte) {
	if cause == nil {
		return
	}

	// payload is JSONB; anything the processor sent that isn't JSON is dropped.
	if !json.Valid(payload) {
		payload = nil
	}

	if err := s.store.CreateWebhookError(ctx, repository.CreateWebhookErrorParams{
		EventID:      eventID,
		EventType:    eventType,
		ErrorMessage: cause.Error(),
		Payload:      payload,
	}); err != nil {
		s.logger.ErrorContext(ctx, "failed to record webhook error",
			"event_id", eventID,
			"event_type", eventType,
			"error", err,
		)
	}
}

func claimEvent(ctx context.Context, q repository.Querier, event PaymentEvent) error {
	if event.EventID == "" {
		return nil
	}
	n, err := q.ClaimWebhookEvent(ctx, repository.ClaimWebhookEventParams{
		EventID:   event.EventID,
		EventType: event.EventType,
	})
	if err != nil {
		return domain.Internal(err, "fulfillment.claim_event", "failed to claim webhook event")
	}
	if n == 0 {
		return domain.ErrDuplicateEvent
	}
	return nil
}

func lockOrder(ctx context.Context, q repository.Querier, op, orderNumber string) (repository.Order, error) {
	row, err := q.LockOrderByNumber(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.Order{}, domain.NotFound(op, "Order", orderNumber)
		}
		return repository.Order{}, domain.Internal(err, op, "failed to load order")
	}
	return row, nil
}
