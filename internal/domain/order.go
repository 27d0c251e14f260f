package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Order-related domain errors.
var (
	ErrEmptyCart           = &Error{Code: EINVALID, Message: "Cart is empty"}
	ErrMissingOrderNumber  = &Error{Code: EINVALID, Message: "Order number missing from payment metadata"}
	ErrDuplicateEvent      = &Error{Code: ECONFLICT, Message: "Webhook event already processed"}
	ErrUnknownShippingRate = &Error{Code: EINVALID, Message: "Unknown shipping method"}
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentStatusUnpaid   PaymentStatus = "unpaid"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

type FulfillmentStatus string

const (
	FulfillmentStatusUnfulfilled FulfillmentStatus = "unfulfilled"
	FulfillmentStatusPartial     FulfillmentStatus = "partial"
	FulfillmentStatusFulfilled   FulfillmentStatus = "fulfilled"
)

// Address is stored as embedded JSON on the order.
type Address struct {
	FullName string `json:"fullName" validate:"required,max=100"`
	Line1    string `json:"line1" validate:"required,max=200"`
	Line2    string `json:"line2,omitempty" validate:"max=200"`
	City     string `json:"city" validate:"required,max=100"`
	County   string `json:"county,omitempty" validate:"max=100"`
	Postcode string `json:"postcode" validate:"required,max=10"`
	Country  string `json:"country" validate:"required,len=2"`
	Phone    string `json:"phone,omitempty" validate:"max=30"`
}

// IsZero reports whether no address fields were supplied.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Totals is the priced breakdown of a cart. Total always equals
// Subtotal + Shipping + VAT.
type Totals struct {
	Subtotal Money `json:"subtotal"`
	Shipping Money `json:"shipping"`
	VAT      Money `json:"vat"`
	Total    Money `json:"total"`
}

type Order struct {
	ID                    uuid.UUID         `json:"id"`
	OrderNumber           string            `json:"orderNumber"`
	CustomerEmail         string            `json:"customerEmail,omitempty"`
	CustomerName          string            `json:"customerName,omitempty"`
	CustomerPhone         string            `json:"customerPhone,omitempty"`
	ShippingAddress       Address           `json:"shippingAddress"`
	BillingAddress        Address           `json:"billingAddress"`
	ShippingMethod        string            `json:"shippingMethod"`
	Totals                Totals            `json:"totals"`
	Currency              string            `json:"currency"`
	Status                OrderStatus       `json:"status"`
	PaymentStatus         PaymentStatus     `json:"paymentStatus"`
	FulfillmentStatus     FulfillmentStatus `json:"fulfillmentStatus"`
	StripeSessionID       string            `json:"-"`
	StripePaymentIntentID string            `json:"-"`
	PaidAt                *time.Time        `json:"paidAt,omitempty"`
	CancelledAt           *time.Time        `json:"cancelledAt,omitempty"`
	CreatedAt             time.Time         `json:"createdAt"`
}

type OrderItem struct {
	ID              uuid.UUID `json:"id"`
	OrderID         uuid.UUID `json:"-"`
	VariantID       uuid.UUID `json:"variantId"`
	ProductName     string    `json:"productName"`
	SKU             string    `json:"sku"`
	VariantLabel    string    `json:"variantLabel,omitempty"`
	Quantity        int       `json:"quantity"`
	PriceAtPurchase Money     `json:"priceAtPurchase"`
}

// LineTotal is the item's contribution to the order subtotal.
func (i OrderItem) LineTotal() Money {
	return i.PriceAtPurchase * Money(i.Quantity)
}

// OrderDetail aggregates an order with its items.
type OrderDetail struct {
	Order
	Items []OrderItem `json:"items"`
}

// OrderService provides read access to orders.
type OrderService interface {
	GetOrderByNumber(ctx context.Context, orderNumber string) (*OrderDetail, error)
}
