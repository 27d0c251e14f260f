package billing

import (
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v83"
)

var (
	// ErrInvalidAPIKey is returned when the Stripe API key is invalid or missing.
	ErrInvalidAPIKey = errors.New("billing: invalid or missing API key")

	// ErrInvalidWebhookSignature is returned when webhook signature verification fails.
	ErrInvalidWebhookSignature = errors.New("billing: invalid webhook signature")

	// ErrMalformedEvent is returned when a verified event body cannot be decoded.
	ErrMalformedEvent = errors.New("billing: malformed webhook event")

	// ErrShippingRateNotFound is returned when a shipping rate id is unknown.
	ErrShippingRateNotFound = errors.New("billing: shipping rate not found")

	// ErrNoLineItems is returned when a checkout session would be empty.
	ErrNoLineItems = errors.New("billing: checkout session requires at least one line item")
)

// StripeError wraps a Stripe API error with additional context.
type StripeError struct {
	Message       string // Human-readable error message
	Code          string // Stripe error code (e.g., "resource_missing")
	Type          string // Stripe error type (e.g., "invalid_request_error")
	HTTPStatus    int    // HTTP status code from Stripe
	RequestID     string // Stripe request ID for debugging
	OriginalError error  // Original error from Stripe SDK
}

func (e *StripeError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("stripe: %s (code: %s)", e.Message, e.Code)
	}
	return fmt.Sprintf("stripe: %s", e.Message)
}

func (e *StripeError) Unwrap() error {
	return e.OriginalError
}

// IsTemporary returns true if error is likely transient and retryable.
func (e *StripeError) IsTemporary() bool {
	return e.Type == string(stripe.ErrorTypeAPI) || e.HTTPStatus == 429 || e.HTTPStatus >= 500
}

// IsNotFound returns true if Stripe reported the resource as missing.
func (e *StripeError) IsNotFound() bool {
	return e.Code == string(stripe.ErrorCodeResourceMissing) || e.HTTPStatus == 404
}

// wrapStripeError converts SDK errors into *StripeError. Non-Stripe errors
// (network, context) are wrapped with their message preserved.
func wrapStripeError(err error) error {
	if err == nil {
		return nil
	}

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return &StripeError{
			Message:       stripeErr.Msg,
			Code:          string(stripeErr.Code),
			Type:          string(stripeErr.Type),
			HTTPStatus:    stripeErr.HTTPStatusCode,
			RequestID:     stripeErr.RequestID,
			OriginalError: err,
		}
	}

	return &StripeError{
		Message:       err.Error(),
		OriginalError: err,
	}
}
