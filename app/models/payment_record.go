package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Payment statuses.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusFailed    = "failed"
	PaymentStatusCanceled  = "canceled"
)

// Payment kinds. Audit only, never used for decisions.
const (
	PaymentKindCheckout      = "checkout"
	PaymentKindInitialCharge = "initial charge"
	PaymentKindRenewal       = "renewal"
	PaymentKindPayment       = "payment"
	PaymentKindRefund        = "refund"
)

// External reference kinds, in idempotency-key precedence order.
const (
	RefPaymentIntent   = "payment_intent"
	RefInvoice         = "invoice"
	RefCheckoutSession = "checkout_session"
	RefSubscription    = "subscription"
	RefRefund          = "refund"
)

// PaymentRecord is one charge, renewal or refund as reported by the payment
// provider. IdempotencyKey is unique; PaymentIntentRef is unique as well so a
// payment intent can never back more than one row.
type PaymentRecord struct {
	ID                 uint              `gorm:"primaryKey" json:"id"`
	SubscriberID       string            `gorm:"type:varchar(191);not null;default:'';index" json:"subscriber_id"`
	IdempotencyKey     string            `gorm:"type:varchar(191);not null;uniqueIndex" json:"idempotency_key"`
	PaymentIntentRef   *string           `gorm:"type:varchar(191);default:null;uniqueIndex" json:"payment_intent,omitempty"`
	SubscriptionRef    *string           `gorm:"type:varchar(191);default:null;index" json:"subscription,omitempty"`
	CheckoutSessionRef *string           `gorm:"type:varchar(191);default:null;index" json:"checkout_session,omitempty"`
	InvoiceRef         *string           `gorm:"type:varchar(191);default:null;index" json:"invoice,omitempty"`
	RefundRef          *string           `gorm:"type:varchar(191);default:null;index" json:"refund,omitempty"`
	Amount             int64             `gorm:"not null;default:0" json:"amount"`
	Currency           string            `gorm:"type:varchar(3);not null;default:''" json:"currency"`
	Status             string            `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	Kind               string            `gorm:"type:varchar(64);not null;default:''" json:"kind"`
	Metadata           datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt          time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

// Ref returns the value of the given external reference kind or "".
func (p *PaymentRecord) Ref(kind string) string {
	var v *string
	switch kind {
	case RefPaymentIntent:
		v = p.PaymentIntentRef
	case RefInvoice:
		v = p.InvoiceRef
	case RefCheckoutSession:
		v = p.CheckoutSessionRef
	case RefSubscription:
		v = p.SubscriptionRef
	case RefRefund:
		v = p.RefundRef
	}
	if v == nil {
		return ""
	}
	return *v
}

// SetRef sets an external reference. Empty values are ignored.
func (p *PaymentRecord) SetRef(kind, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	switch kind {
	case RefPaymentIntent:
		p.PaymentIntentRef = &value
	case RefInvoice:
		p.InvoiceRef = &value
	case RefCheckoutSession:
		p.CheckoutSessionRef = &value
	case RefSubscription:
		p.SubscriptionRef = &value
	case RefRefund:
		p.RefundRef = &value
	}
}

// ExternalRef is one provider reference of a payment.
type ExternalRef struct {
	Kind  string
	Value string
}

// MatchRefs returns the references that identify the row an observation
// belongs to, strongest first. Refund rows match by refund only; subscription
// refs are shared by every renewal and never match.
func (p *PaymentRecord) MatchRefs() []ExternalRef {
	kinds := []string{RefPaymentIntent, RefInvoice, RefCheckoutSession}
	if p.Ref(RefRefund) != "" {
		kinds = []string{RefRefund}
	}
	var refs []ExternalRef
	for _, kind := range kinds {
		if v := p.Ref(kind); v != "" {
			refs = append(refs, ExternalRef{Kind: kind, Value: v})
		}
	}
	return refs
}

// HasExternalRef reports whether at least one external reference is set.
func (p *PaymentRecord) HasExternalRef() bool {
	return p.DeriveIdempotencyKey() != ""
}

// DeriveIdempotencyKey returns "<kind>:<value>" for the strongest reference set
// on the record. Refund rows are keyed by the refund so they never collide with
// the charge they reverse.
func (p *PaymentRecord) DeriveIdempotencyKey() string {
	order := []string{RefPaymentIntent, RefInvoice, RefCheckoutSession, RefSubscription, RefRefund}
	if p.Ref(RefRefund) != "" {
		order = []string{RefRefund}
	}
	for _, kind := range order {
		if v := p.Ref(kind); v != "" {
			return kind + ":" + v
		}
	}
	return ""
}

// MergeFrom folds a later observation of the same payment into p. References
// and metadata accumulate, a terminal status is never downgraded to pending,
// and an existing subscriber is kept. An invoice write relabels a charge as a
// renewal; any other existing kind is kept.
func (p *PaymentRecord) MergeFrom(in *PaymentRecord) {
	if p.SubscriberID == "" {
		p.SubscriberID = in.SubscriberID
	}
	for _, kind := range []string{RefPaymentIntent, RefInvoice, RefCheckoutSession, RefSubscription, RefRefund} {
		if p.Ref(kind) == "" {
			p.SetRef(kind, in.Ref(kind))
		}
	}
	if in.Amount > 0 {
		p.Amount = in.Amount
	}
	if in.Currency != "" {
		p.Currency = in.Currency
	}
	if in.Status != "" && !(in.Status == PaymentStatusPending && p.Status != "" && p.Status != PaymentStatusPending) {
		p.Status = in.Status
	}
	if p.Kind == "" || (in.Kind == PaymentKindRenewal && p.Kind != PaymentKindRefund) {
		p.Kind = in.Kind
	}
	if len(in.Metadata) > 0 {
		if p.Metadata == nil {
			p.Metadata = datatypes.JSONMap{}
		}
		for k, v := range in.Metadata {
			p.Metadata[k] = v
		}
	}
}
