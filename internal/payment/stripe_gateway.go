package payment

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
)

// StripeGateway implements Gateway using Stripe PaymentIntents. The
// payment reference is the PaymentIntent ID.
type StripeGateway struct {
	config *StripeGatewayConfig
}

// StripeGatewayConfig holds configuration for the Stripe gateway
type StripeGatewayConfig struct {
	SecretKey   string
	Environment string // "test" or "live"
}

// NewStripeGateway creates a new Stripe gateway
func NewStripeGateway(config *StripeGatewayConfig) (*StripeGateway, error) {
	if config == nil {
		return nil, fmt.Errorf("stripe config is required")
	}
	if config.SecretKey == "" {
		return nil, fmt.Errorf("stripe secret key is required")
	}

	// Set Stripe API key globally
	stripe.Key = config.SecretKey

	return &StripeGateway{
		config: config,
	}, nil
}

// GetPayment retrieves a PaymentIntent and maps it onto a Status
func (g *StripeGateway) GetPayment(ctx context.Context, paymentRef string) (*Status, error) {
	if paymentRef == "" {
		return nil, fmt.Errorf("payment ref is required")
	}

	pi, err := paymentintent.Get(paymentRef, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment intent: %w", err)
	}

	return &Status{
		PaymentRef:  pi.ID,
		Paid:        pi.Status == stripe.PaymentIntentStatusSucceeded,
		State:       string(pi.Status),
		AmountCents: pi.AmountReceived,
		Currency:    string(pi.Currency),
	}, nil
}

// Name returns the gateway name
func (g *StripeGateway) Name() string {
	return "stripe"
}
