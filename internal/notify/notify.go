// Package notify publishes order lifecycle events. Email delivery is owned by
// whatever consumes the events; this service only announces them.
package notify

import (
	"context"
	"time"

	"github.com/dukerupert/quartermaster/internal/domain"
)

// Event names, appended to the configured subject prefix.
const (
	EventOrderPaid      = "order.paid"
	EventOrderCancelled = "order.cancelled"
)

// Notifier announces order state changes. Calls are best-effort: callers log
// a returned error but never fail the request over it.
type Notifier interface {
	OrderPaid(ctx context.Context, event OrderEvent) error
	OrderCancelled(ctx context.Context, event OrderEvent) error
	Close() error
}

// OrderEvent is the JSON payload published for an order.
type OrderEvent struct {
	OrderNumber   string           `json:"orderNumber"`
	CustomerEmail string           `json:"customerEmail,omitempty"`
	CustomerName  string           `json:"customerName,omitempty"`
	Status        string           `json:"status"`
	PaymentStatus string           `json:"paymentStatus"`
	Total         domain.Money     `json:"total"`
	Reason        string           `json:"reason,omitempty"`
	Items         []OrderEventItem `json:"items,omitempty"`
	OccurredAt    time.Time        `json:"occurredAt"`
}

type OrderEventItem struct {
	SKU         string `json:"sku"`
	ProductName string `json:"productName"`
	Quantity    int    `json:"quantity"`
}

// NewOrderEvent builds the payload from an order and its items.
func NewOrderEvent(order domain.Order, items []domain.OrderItem, reason string) OrderEvent {
	ev := OrderEvent{
		OrderNumber:   order.OrderNumber,
		CustomerEmail: order.CustomerEmail,
		CustomerName:  order.CustomerName,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		Total:         order.Totals.Total,
		Reason:        reason,
		OccurredAt:    time.Now().UTC(),
	}
	for _, it := range items {
		ev.Items = append(ev.Items, OrderEventItem{
			SKU:         it.SKU,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
		})
	}
	return ev
}
