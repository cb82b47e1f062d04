package billing

import "context"

// Provider is the outbound payment provider surface used by the service.
type Provider interface {
	CreateRefund(ctx context.Context, params RefundParams) (*ProviderRefund, error)
	RetrieveSubscription(ctx context.Context, id string) (*ProviderSubscription, error)
	FindCheckoutSessionByPaymentIntent(ctx context.Context, paymentIntentID string) (*ProviderCheckoutSession, error)
}

// RefundParams describes a refund to create. Amount nil refunds in full.
type RefundParams struct {
	PaymentIntent  string
	Amount         *int64
	Reason         string
	IdempotencyKey string
	Metadata       map[string]string
}

type ProviderRefund struct {
	ID            string
	PaymentIntent string
	Amount        int64
	Currency      string
	Status        string
}

type ProviderSubscription struct {
	ID       string
	Customer string
	Status   string
	Metadata map[string]string
}

type ProviderCheckoutSession struct {
	ID            string
	Customer      string
	Subscription  string
	PaymentIntent string
	Metadata      map[string]string
}
