package notify

import (
	"context"
	"sync"
)

// MockNotifier records events for assertions in tests.
type MockNotifier struct {
	Err error

	mu        sync.Mutex
	Paid      []OrderEvent
	Cancelled []OrderEvent
}

func (m *MockNotifier) OrderPaid(ctx context.Context, event OrderEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Paid = append(m.Paid, event)
	return m.Err
}

func (m *MockNotifier) OrderCancelled(ctx context.Context, event OrderEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Cancelled = append(m.Cancelled, event)
	return m.Err
}

func (m *MockNotifier) Close() error { return nil }

var _ Notifier = (*MockNotifier)(nil)
