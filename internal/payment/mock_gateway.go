package payment

import (
	"context"
	"fmt"
	"sync"
)

// MockGateway implements Gateway for development and load testing. Every
// payment reference is reported as paid for the requested amount unless
// it was registered otherwise.
type MockGateway struct {
	mu       sync.RWMutex
	payments map[string]*Status

	// DefaultAmountCents is reported for unregistered references
	DefaultAmountCents int64
}

// NewMockGateway creates a new mock gateway
func NewMockGateway() *MockGateway {
	return &MockGateway{
		payments:           make(map[string]*Status),
		DefaultAmountCents: 0,
	}
}

// Register seeds the gateway with a payment status. Later lookups of the
// same reference return the seeded value.
func (g *MockGateway) Register(status *Status) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payments[status.PaymentRef] = status
}

// GetPayment returns the registered status, or a paid status when the
// reference was never registered
func (g *MockGateway) GetPayment(ctx context.Context, paymentRef string) (*Status, error) {
	if paymentRef == "" {
		return nil, fmt.Errorf("payment ref is required")
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	if status, ok := g.payments[paymentRef]; ok {
		copied := *status
		return &copied, nil
	}

	return &Status{
		PaymentRef:  paymentRef,
		Paid:        true,
		State:       "succeeded",
		AmountCents: g.DefaultAmountCents,
		Currency:    "usd",
	}, nil
}

// Name returns the gateway name
func (g *MockGateway) Name() string {
	return "mock"
}
