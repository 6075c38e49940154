package payment

import "context"

// Status describes the state of an external payment as reported by the
// gateway. Paid is true only when the full amount has been captured.
type Status struct {
	PaymentRef  string
	Paid        bool
	State       string
	AmountCents int64
	Currency    string
}

// Gateway looks up payments held by an external processor.
type Gateway interface {
	// GetPayment returns the current status of a payment reference.
	GetPayment(ctx context.Context, paymentRef string) (*Status, error)

	// Name returns the gateway name
	Name() string
}
