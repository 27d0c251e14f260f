package billing

import (
	"context"
	"time"
)

// Provider defines the interface for payment processing.
// StripeProvider is the production implementation; MockProvider is used in tests.
type Provider interface {
	// CreateCheckoutSession creates a hosted checkout page for one order.
	CreateCheckoutSession(ctx context.Context, params CreateCheckoutSessionParams) (*CheckoutSession, error)

	// GetShippingRate retrieves a shipping rate configured in the provider's dashboard.
	GetShippingRate(ctx context.Context, rateID string) (*ShippingRate, error)

	// ConstructEvent verifies the webhook signature and decodes the event.
	// Returns ErrInvalidWebhookSignature when verification fails.
	ConstructEvent(payload []byte, signature string) (*Event, error)
}

// CreateCheckoutSessionParams contains everything needed to create a hosted
// checkout session. Amounts are in pence.
type CreateCheckoutSessionParams struct {
	// Currency code (ISO 4217), e.g. "gbp"
	Currency string

	LineItems []CheckoutLineItem

	// Shipping is the single shipping option offered on the hosted page.
	Shipping *CheckoutShipping

	// CustomerEmail prefills the email field on the hosted page.
	CustomerEmail string

	// ClientReferenceID is echoed back on the completed session.
	ClientReferenceID string

	SuccessURL string
	CancelURL  string

	// Metadata is copied onto both the session and its payment intent so
	// every webhook type can be traced back to the order.
	Metadata map[string]string

	// IdempotencyKey prevents duplicate sessions on client retries.
	IdempotencyKey string
}

// CheckoutLineItem is one priced line on the hosted checkout page.
type CheckoutLineItem struct {
	Name            string
	Description     string
	ImageURL        string
	UnitAmountPence int64
	Quantity        int64
}

// CheckoutShipping is either an inline fixed amount or a reference to a
// pre-configured provider shipping rate (RateID).
type CheckoutShipping struct {
	RateID      string
	DisplayName string
	AmountPence int64
	DaysMin     int
	DaysMax     int
}

// CheckoutSession is the created hosted checkout session.
type CheckoutSession struct {
	ID        string
	URL       string
	Status    string
	ExpiresAt time.Time
}

// ShippingRate is a provider-side shipping rate.
type ShippingRate struct {
	ID          string
	DisplayName string
	AmountPence int64
	Currency    string
	Active      bool
	DaysMin     int
	DaysMax     int
}

// Webhook event types this service reacts to.
const (
	EventCheckoutSessionCompleted             = "checkout.session.completed"
	EventCheckoutSessionAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	EventCheckoutSessionAsyncPaymentFailed    = "checkout.session.async_payment_failed"
	EventCheckoutSessionExpired               = "checkout.session.expired"
	EventPaymentIntentPaymentFailed           = "payment_intent.payment_failed"
)

// Session payment statuses.
const (
	SessionPaymentPaid              = "paid"
	SessionPaymentUnpaid            = "unpaid"
	SessionPaymentNoPaymentRequired = "no_payment_required"
)

// Event is a verified webhook event. Exactly one of Session or
// PaymentIntent is set for the event types above.
type Event struct {
	ID      string
	Type    string
	Created time.Time

	Session       *SessionObject
	PaymentIntent *PaymentIntentObject

	// Raw is the original request body, kept for error logging.
	Raw []byte
}

// SessionObject is the subset of a checkout session carried by webhooks.
type SessionObject struct {
	ID                string
	Status            string
	PaymentStatus     string
	PaymentIntentID   string
	ClientReferenceID string
	CustomerEmail     string
	AmountTotalPence  int64
	Metadata          map[string]string
}

// PaymentIntentObject is the subset of a payment intent carried by webhooks.
type PaymentIntentObject struct {
	ID               string
	Status           string
	LastErrorMessage string
	Metadata         map[string]string
}

// OrderNumber returns the order number embedded in the session.
func (s *SessionObject) OrderNumber() string {
	if s == nil {
		return ""
	}
	if n := s.Metadata[MetadataOrderNumber]; n != "" {
		return n
	}
	return s.ClientReferenceID
}

// OrderNumber returns the order number embedded in the payment intent.
func (p *PaymentIntentObject) OrderNumber() string {
	if p == nil {
		return ""
	}
	return p.Metadata[MetadataOrderNumber]
}

// Metadata keys written on sessions and payment intents.
const (
	MetadataOrderNumber = "order_number"
	MetadataOrderID     = "order_id"
)
