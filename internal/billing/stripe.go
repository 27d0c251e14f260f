package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v83"
	checkoutsession "github.com/stripe/stripe-go/v83/checkout/session"
	"github.com/stripe/stripe-go/v83/shippingrate"
	"github.com/stripe/stripe-go/v83/webhook"
)

// StripeProvider implements Provider using Stripe Checkout.
type StripeProvider struct {
	config StripeConfig
}

// NewStripeProvider configures the Stripe SDK and returns a provider.
func NewStripeProvider(cfg StripeConfig) (*StripeProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	stripe.Key = cfg.APIKey

	return &StripeProvider{config: cfg}, nil
}

// CreateCheckoutSession creates a payment-mode Stripe Checkout session.
func (s *StripeProvider) CreateCheckoutSession(ctx context.Context, params CreateCheckoutSessionParams) (*CheckoutSession, error) {
	sessionParams, err := buildCheckoutSessionParams(params)
	if err != nil {
		return nil, err
	}
	sessionParams.Context = ctx

	session, err := checkoutsession.New(sessionParams)
	if err != nil {
		return nil, wrapStripeError(err)
	}

	return &CheckoutSession{
		ID:        session.ID,
		URL:       session.URL,
		Status:    string(session.Status),
		ExpiresAt: time.Unix(session.ExpiresAt, 0),
	}, nil
}

// buildCheckoutSessionParams maps our params onto the SDK's request type.
func buildCheckoutSessionParams(params CreateCheckoutSessionParams) (*stripe.CheckoutSessionParams, error) {
	if len(params.LineItems) == 0 {
		return nil, ErrNoLineItems
	}

	currency := params.Currency
	if currency == "" {
		currency = string(stripe.CurrencyGBP)
	}

	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(params.LineItems))
	for _, li := range params.LineItems {
		productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(li.Name),
		}
		if li.Description != "" {
			productData.Description = stripe.String(li.Description)
		}
		if li.ImageURL != "" {
			productData.Images = []*string{stripe.String(li.ImageURL)}
		}

		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(currency),
				ProductData: productData,
				UnitAmount:  stripe.Int64(li.UnitAmountPence),
			},
			Quantity: stripe.Int64(li.Quantity),
		})
	}

	metadata := make(map[string]string, len(params.Metadata))
	for k, v := range params.Metadata {
		metadata[k] = v
	}

	sp := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:  lineItems,
		SuccessURL: stripe.String(params.SuccessURL),
		CancelURL:  stripe.String(params.CancelURL),
		Metadata:   metadata,
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: metadata,
		},
		ShippingAddressCollection: &stripe.CheckoutSessionShippingAddressCollectionParams{
			AllowedCountries: []*string{stripe.String("GB")},
		},
	}

	if params.ClientReferenceID != "" {
		sp.ClientReferenceID = stripe.String(params.ClientReferenceID)
	}
	if params.CustomerEmail != "" {
		sp.CustomerEmail = stripe.String(params.CustomerEmail)
	}
	if params.Shipping != nil {
		sp.ShippingOptions = []*stripe.CheckoutSessionShippingOptionParams{
			buildShippingOption(*params.Shipping, currency),
		}
	}
	if params.IdempotencyKey != "" {
		sp.SetIdempotencyKey(params.IdempotencyKey)
	}

	return sp, nil
}

func buildShippingOption(s CheckoutShipping, currency string) *stripe.CheckoutSessionShippingOptionParams {
	if s.RateID != "" {
		return &stripe.CheckoutSessionShippingOptionParams{
			ShippingRate: stripe.String(s.RateID),
		}
	}

	data := &stripe.CheckoutSessionShippingOptionShippingRateDataParams{
		DisplayName: stripe.String(s.DisplayName),
		Type:        stripe.String("fixed_amount"),
		FixedAmount: &stripe.CheckoutSessionShippingOptionShippingRateDataFixedAmountParams{
			Amount:   stripe.Int64(s.AmountPence),
			Currency: stripe.String(currency),
		},
	}
	if s.DaysMin > 0 && s.DaysMax >= s.DaysMin {
		data.DeliveryEstimate = &stripe.CheckoutSessionShippingOptionShippingRateDataDeliveryEstimateParams{
			Minimum: &stripe.CheckoutSessionShippingOptionShippingRateDataDeliveryEstimateMinimumParams{
				Unit:  stripe.String("business_day"),
				Value: stripe.Int64(int64(s.DaysMin)),
			},
			Maximum: &stripe.CheckoutSessionShippingOptionShippingRateDataDeliveryEstimateMaximumParams{
				Unit:  stripe.String("business_day"),
				Value: stripe.Int64(int64(s.DaysMax)),
			},
		}
	}

	return &stripe.CheckoutSessionShippingOptionParams{ShippingRateData: data}
}

// GetShippingRate retrieves a dashboard-configured shipping rate.
func (s *StripeProvider) GetShippingRate(ctx context.Context, rateID string) (*ShippingRate, error) {
	params := &stripe.ShippingRateParams{}
	params.Context = ctx

	rate, err := shippingrate.Get(rateID, params)
	if err != nil {
		wrapped := wrapStripeError(err)
		if se, ok := wrapped.(*StripeError); ok && se.IsNotFound() {
			return nil, fmt.Errorf("%w: %s", ErrShippingRateNotFound, rateID)
		}
		return nil, wrapped
	}

	out := &ShippingRate{
		ID:          rate.ID,
		DisplayName: rate.DisplayName,
		Active:      rate.Active,
	}
	if rate.FixedAmount != nil {
		out.AmountPence = rate.FixedAmount.Amount
		out.Currency = string(rate.FixedAmount.Currency)
	}
	if rate.DeliveryEstimate != nil {
		if rate.DeliveryEstimate.Minimum != nil {
			out.DaysMin = int(rate.DeliveryEstimate.Minimum.Value)
		}
		if rate.DeliveryEstimate.Maximum != nil {
			out.DaysMax = int(rate.DeliveryEstimate.Maximum.Value)
		}
	}
	return out, nil
}

// ConstructEvent verifies the Stripe-Signature header and decodes the
// objects we care about.
func (s *StripeProvider) ConstructEvent(payload []byte, signature string) (*Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.config.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWebhookSignature, err)
	}

	return decodeEvent(event, payload)
}

// paymentIntentPayload is decoded locally so only the fields we read are
// coupled to the API version.
type paymentIntentPayload struct {
	ID               string            `json:"id"`
	Status           string            `json:"status"`
	Metadata         map[string]string `json:"metadata"`
	LastPaymentError *struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

func decodeEvent(event stripe.Event, payload []byte) (*Event, error) {
	out := &Event{
		ID:      event.ID,
		Type:    string(event.Type),
		Created: time.Unix(event.Created, 0),
		Raw:     payload,
	}
	if event.Data == nil {
		return out, nil
	}

	switch out.Type {
	case EventCheckoutSessionCompleted,
		EventCheckoutSessionAsyncPaymentSucceeded,
		EventCheckoutSessionAsyncPaymentFailed,
		EventCheckoutSessionExpired:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}

		obj := &SessionObject{
			ID:                session.ID,
			Status:            string(session.Status),
			PaymentStatus:     string(session.PaymentStatus),
			ClientReferenceID: session.ClientReferenceID,
			CustomerEmail:     session.CustomerEmail,
			AmountTotalPence:  session.AmountTotal,
			Metadata:          session.Metadata,
		}
		if session.PaymentIntent != nil {
			obj.PaymentIntentID = session.PaymentIntent.ID
		}
		if session.CustomerDetails != nil && session.CustomerDetails.Email != "" {
			obj.CustomerEmail = session.CustomerDetails.Email
		}
		out.Session = obj

	case EventPaymentIntentPaymentFailed:
		var pi paymentIntentPayload
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		obj := &PaymentIntentObject{
			ID:       pi.ID,
			Status:   pi.Status,
			Metadata: pi.Metadata,
		}
		if pi.LastPaymentError != nil {
			obj.LastErrorMessage = pi.LastPaymentError.Message
		}
		out.PaymentIntent = obj
	}

	return out, nil
}

var _ Provider = (*StripeProvider)(nil)
