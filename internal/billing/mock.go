package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v83"
)

// MockProvider is a mock billing provider for testing.
// Simulates Stripe Checkout without calling the Stripe API.
type MockProvider struct {
	CreateCheckoutSessionFunc func(ctx context.Context, params CreateCheckoutSessionParams) (*CheckoutSession, error)
	GetShippingRateFunc       func(ctx context.Context, rateID string) (*ShippingRate, error)
	ConstructEventFunc        func(payload []byte, signature string) (*Event, error)

	// ValidSignature is the only signature the default ConstructEvent accepts.
	ValidSignature string

	// ShippingRates is consulted by the default GetShippingRate.
	ShippingRates map[string]*ShippingRate

	// Sessions records every params value passed to CreateCheckoutSession.
	Sessions []CreateCheckoutSessionParams

	// CallLog tracks method calls for test assertions
	CallLog []string

	mu sync.Mutex
}

// NewMockProvider creates a new mock billing provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		ValidSignature: "valid-signature",
		ShippingRates:  make(map[string]*ShippingRate),
		CallLog:        []string{},
	}
}

// CreateCheckoutSession records the params and returns a fake session.
func (m *MockProvider) CreateCheckoutSession(ctx context.Context, params CreateCheckoutSessionParams) (*CheckoutSession, error) {
	m.mu.Lock()
	m.CallLog = append(m.CallLog, fmt.Sprintf("CreateCheckoutSession(%s)", params.Metadata[MetadataOrderNumber]))
	m.Sessions = append(m.Sessions, params)
	m.mu.Unlock()

	if m.CreateCheckoutSessionFunc != nil {
		return m.CreateCheckoutSessionFunc(ctx, params)
	}
	if len(params.LineItems) == 0 {
		return nil, ErrNoLineItems
	}

	id := "cs_test_" + uuid.New().String()
	return &CheckoutSession{
		ID:        id,
		URL:       "https://checkout.stripe.test/c/pay/" + id,
		Status:    "open",
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}, nil
}

// GetShippingRate returns a rate from ShippingRates.
func (m *MockProvider) GetShippingRate(ctx context.Context, rateID string) (*ShippingRate, error) {
	m.mu.Lock()
	m.CallLog = append(m.CallLog, fmt.Sprintf("GetShippingRate(%s)", rateID))
	m.mu.Unlock()

	if m.GetShippingRateFunc != nil {
		return m.GetShippingRateFunc(ctx, rateID)
	}

	rate, ok := m.ShippingRates[rateID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrShippingRateNotFound, rateID)
	}
	return rate, nil
}

// ConstructEvent accepts only ValidSignature and decodes the payload as a
// Stripe event JSON document.
func (m *MockProvider) ConstructEvent(payload []byte, signature string) (*Event, error) {
	m.mu.Lock()
	m.CallLog = append(m.CallLog, "ConstructEvent")
	m.mu.Unlock()

	if m.ConstructEventFunc != nil {
		return m.ConstructEventFunc(payload, signature)
	}
	if signature != m.ValidSignature {
		return nil, ErrInvalidWebhookSignature
	}

	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return decodeEvent(event, payload)
}

var _ Provider = (*MockProvider)(nil)
