package billing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
)

// Stripe event types routed by the service.
const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
	EventSubscriptionCreated      = "customer.subscription.created"
	EventSubscriptionUpdated      = "customer.subscription.updated"
	EventSubscriptionDeleted      = "customer.subscription.deleted"
	EventInvoicePaid              = "invoice.paid"
	EventInvoicePaymentSucceeded  = "invoice.payment_succeeded"
	EventInvoicePaymentFailed     = "invoice.payment_failed"
	EventPaymentIntentSucceeded   = "payment_intent.succeeded"
	EventChargeRefunded           = "charge.refunded"
	EventChargeRefundUpdated      = "charge.refund.updated"
	EventRefundCreated            = "refund.created"
	EventRefundUpdated            = "refund.updated"
)

// Event is a verified provider event with its payload decoded once. Payload
// is nil for types the service does not handle.
type Event struct {
	ID      string
	Type    string
	Created time.Time
	Payload Payload
}

// Payload is implemented by the concrete payload shapes below.
type Payload interface {
	payloadID() string
}

// ExpandableID accepts either a bare Stripe id or an expanded object and keeps
// only the id.
type ExpandableID string

func (e *ExpandableID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*e = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*e = ExpandableID(strings.TrimSpace(s))
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*e = ExpandableID(strings.TrimSpace(obj.ID))
	return nil
}

func (e ExpandableID) String() string { return string(e) }

type CheckoutSession struct {
	ID                string            `json:"id"`
	Mode              string            `json:"mode"`
	Status            string            `json:"status"`
	Customer          ExpandableID      `json:"customer"`
	Subscription      ExpandableID      `json:"subscription"`
	PaymentIntent     ExpandableID      `json:"payment_intent"`
	AmountTotal       int64             `json:"amount_total"`
	Currency          string            `json:"currency"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
}

type SubscriptionPrice struct {
	ID         string `json:"id"`
	UnitAmount int64  `json:"unit_amount"`
	Currency   string `json:"currency"`
}

type SubscriptionItem struct {
	ID               string            `json:"id"`
	Quantity         int64             `json:"quantity"`
	CurrentPeriodEnd int64             `json:"current_period_end"`
	Price            SubscriptionPrice `json:"price"`
}

type Subscription struct {
	ID               string            `json:"id"`
	Customer         ExpandableID      `json:"customer"`
	Status           string            `json:"status"`
	CurrentPeriodEnd int64             `json:"current_period_end"`
	Metadata         map[string]string `json:"metadata"`
	Items            struct {
		Data []SubscriptionItem `json:"data"`
	} `json:"items"`
}

// PeriodEnd returns the current period end, preferring the top-level field and
// falling back to the first item (newer API versions only set the latter).
func (s *Subscription) PeriodEnd() int64 {
	if s.CurrentPeriodEnd > 0 {
		return s.CurrentPeriodEnd
	}
	if len(s.Items.Data) > 0 && s.Items.Data[0].CurrentPeriodEnd > 0 {
		return s.Items.Data[0].CurrentPeriodEnd
	}
	return 0
}

// FirstItemAmount returns price x quantity of the first item and its currency.
func (s *Subscription) FirstItemAmount() (int64, string) {
	if len(s.Items.Data) == 0 {
		return 0, ""
	}
	item := s.Items.Data[0]
	qty := item.Quantity
	if qty <= 0 {
		qty = 1
	}
	return item.Price.UnitAmount * qty, item.Price.Currency
}

type InvoiceLine struct {
	Period struct {
		Start int64 `json:"start"`
		End   int64 `json:"end"`
	} `json:"period"`
}

type Invoice struct {
	ID            string            `json:"id"`
	Customer      ExpandableID      `json:"customer"`
	Subscription  ExpandableID      `json:"subscription"`
	PaymentIntent ExpandableID      `json:"payment_intent"`
	AmountPaid    int64             `json:"amount_paid"`
	Currency      string            `json:"currency"`
	BillingReason string            `json:"billing_reason"`
	PeriodStart   int64             `json:"period_start"`
	PeriodEnd     int64             `json:"period_end"`
	Metadata      map[string]string `json:"metadata"`
	Lines         struct {
		Data []InvoiceLine `json:"data"`
	} `json:"lines"`
	Parent *struct {
		SubscriptionDetails *struct {
			Subscription ExpandableID      `json:"subscription"`
			Metadata     map[string]string `json:"metadata"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

// SubscriptionID returns the subscription the invoice belongs to, also for
// payloads that only carry it under parent.subscription_details.
func (i *Invoice) SubscriptionID() string {
	if i.Subscription != "" {
		return i.Subscription.String()
	}
	if i.Parent != nil && i.Parent.SubscriptionDetails != nil {
		return i.Parent.SubscriptionDetails.Subscription.String()
	}
	return ""
}

// SubscriptionMetadata returns the subscription metadata snapshot on the invoice.
func (i *Invoice) SubscriptionMetadata() map[string]string {
	if i.Parent != nil && i.Parent.SubscriptionDetails != nil {
		return i.Parent.SubscriptionDetails.Metadata
	}
	return nil
}

// ServicePeriod returns the invoiced period, preferring the first line.
func (i *Invoice) ServicePeriod() (start, end int64) {
	if len(i.Lines.Data) > 0 && i.Lines.Data[0].Period.End > 0 {
		return i.Lines.Data[0].Period.Start, i.Lines.Data[0].Period.End
	}
	return i.PeriodStart, i.PeriodEnd
}

type PaymentIntent struct {
	ID             string            `json:"id"`
	Customer       ExpandableID      `json:"customer"`
	Invoice        ExpandableID      `json:"invoice"`
	Amount         int64             `json:"amount"`
	AmountReceived int64             `json:"amount_received"`
	Currency       string            `json:"currency"`
	Status         string            `json:"status"`
	Metadata       map[string]string `json:"metadata"`
}

type Refund struct {
	ID            string            `json:"id"`
	Amount        int64             `json:"amount"`
	Currency      string            `json:"currency"`
	Status        string            `json:"status"`
	Reason        string            `json:"reason"`
	Charge        ExpandableID      `json:"charge"`
	PaymentIntent ExpandableID      `json:"payment_intent"`
	Metadata      map[string]string `json:"metadata"`
}

type Charge struct {
	ID             string            `json:"id"`
	Customer       ExpandableID      `json:"customer"`
	PaymentIntent  ExpandableID      `json:"payment_intent"`
	Currency       string            `json:"currency"`
	AmountRefunded int64             `json:"amount_refunded"`
	Metadata       map[string]string `json:"metadata"`
	Refunds        struct {
		Data []Refund `json:"data"`
	} `json:"refunds"`
}

func (c *CheckoutSession) payloadID() string { return c.ID }
func (s *Subscription) payloadID() string    { return s.ID }
func (i *Invoice) payloadID() string         { return i.ID }
func (p *PaymentIntent) payloadID() string   { return p.ID }
func (r *Refund) payloadID() string          { return r.ID }
func (c *Charge) payloadID() string          { return c.ID }

func newPayload(eventType string) Payload {
	switch eventType {
	case EventCheckoutSessionCompleted:
		return &CheckoutSession{}
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted:
		return &Subscription{}
	case EventInvoicePaid, EventInvoicePaymentSucceeded, EventInvoicePaymentFailed:
		return &Invoice{}
	case EventPaymentIntentSucceeded:
		return &PaymentIntent{}
	case EventChargeRefunded:
		return &Charge{}
	case EventRefundCreated, EventRefundUpdated, EventChargeRefundUpdated:
		return &Refund{}
	default:
		return nil
	}
}

// DecodeEvent resolves the untyped event object into its concrete payload.
// Handled types whose object is missing or undecodable are malformed.
func DecodeEvent(ev stripe.Event) (Event, error) {
	out := Event{
		ID:   strings.TrimSpace(ev.ID),
		Type: strings.TrimSpace(string(ev.Type)),
	}
	if ev.Created > 0 {
		out.Created = time.Unix(ev.Created, 0).UTC()
	}
	if out.ID == "" || out.Type == "" {
		return out, fmt.Errorf("%w: event id and type are required", ErrMalformedEvent)
	}

	payload := newPayload(out.Type)
	if payload == nil {
		return out, nil
	}
	if ev.Data == nil || len(ev.Data.Raw) == 0 {
		return out, fmt.Errorf("%w: %s has no data.object", ErrMalformedEvent, out.Type)
	}
	if err := json.Unmarshal(ev.Data.Raw, payload); err != nil {
		return out, fmt.Errorf("%w: decode %s: %v", ErrMalformedEvent, out.Type, err)
	}
	if strings.TrimSpace(payload.payloadID()) == "" {
		return out, fmt.Errorf("%w: %s object has no id", ErrMalformedEvent, out.Type)
	}
	out.Payload = payload
	return out, nil
}
