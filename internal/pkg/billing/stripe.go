package billing

import (
	"context"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v82"
	stripesession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/refund"
	"github.com/stripe/stripe-go/v82/subscription"
)

// StripeProvider implements Provider with the stripe-go client. The SDK calls
// are held in fields so tests can replace them.
type StripeProvider struct {
	newRefund       func(params *stripe.RefundParams) (*stripe.Refund, error)
	getSubscription func(id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
	listSessions    func(params *stripe.CheckoutSessionListParams) ([]*stripe.CheckoutSession, error)
}

// NewStripeProvider configures the global stripe key and returns a provider.
func NewStripeProvider(secretKey string) (*StripeProvider, error) {
	key := strings.TrimSpace(secretKey)
	if key == "" {
		return nil, errors.New("STRIPE_SECRET_KEY is not configured")
	}
	stripe.Key = key

	return &StripeProvider{
		newRefund:       refund.New,
		getSubscription: subscription.Get,
		listSessions: func(params *stripe.CheckoutSessionListParams) ([]*stripe.CheckoutSession, error) {
			var out []*stripe.CheckoutSession
			it := stripesession.List(params)
			for it.Next() {
				out = append(out, it.CheckoutSession())
			}
			return out, it.Err()
		},
	}, nil
}

func (p *StripeProvider) CreateRefund(ctx context.Context, in RefundParams) (*ProviderRefund, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(in.PaymentIntent),
	}
	params.Context = ctx
	if in.Amount != nil {
		params.Amount = stripe.Int64(*in.Amount)
	}
	if in.Reason != "" {
		params.Reason = stripe.String(in.Reason)
	}
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}

	r, err := p.newRefund(params)
	if err != nil {
		return nil, err
	}
	out := &ProviderRefund{
		ID:            r.ID,
		PaymentIntent: in.PaymentIntent,
		Amount:        r.Amount,
		Currency:      string(r.Currency),
		Status:        string(r.Status),
	}
	if r.PaymentIntent != nil && r.PaymentIntent.ID != "" {
		out.PaymentIntent = r.PaymentIntent.ID
	}
	return out, nil
}

func (p *StripeProvider) RetrieveSubscription(ctx context.Context, id string) (*ProviderSubscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	s, err := p.getSubscription(id, params)
	if err != nil {
		return nil, err
	}
	out := &ProviderSubscription{
		ID:       s.ID,
		Status:   string(s.Status),
		Metadata: s.Metadata,
	}
	if s.Customer != nil {
		out.Customer = s.Customer.ID
	}
	return out, nil
}

func (p *StripeProvider) FindCheckoutSessionByPaymentIntent(ctx context.Context, paymentIntentID string) (*ProviderCheckoutSession, error) {
	params := &stripe.CheckoutSessionListParams{
		PaymentIntent: stripe.String(paymentIntentID),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(1)

	sessions, err := p.listSessions(params)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 || sessions[0] == nil {
		return nil, nil
	}
	cs := sessions[0]
	out := &ProviderCheckoutSession{
		ID:            cs.ID,
		PaymentIntent: paymentIntentID,
		Metadata:      cs.Metadata,
	}
	if cs.Customer != nil {
		out.Customer = cs.Customer.ID
	}
	if cs.Subscription != nil {
		out.Subscription = cs.Subscription.ID
	}
	return out, nil
}
