package billing

import (
	"context"
	"strings"

	"github.com/ManuelReschke/MeterGate/app/models"
	"github.com/gofiber/fiber/v2/log"
)

var subscriberMetadataKeys = []string{"userId", "user_id"}

// identityHints carries everything an event offers for attributing it to a
// subscriber. Empty fields skip their resolution step.
type identityHints struct {
	metadata        []map[string]string
	clientReference string
	subscriptionID  string
	paymentIntent   string
	customerID      string
}

func subscriberIDFromMetadata(md map[string]string) string {
	for _, key := range subscriberMetadataKeys {
		if v := strings.TrimSpace(md[key]); v != "" {
			return v
		}
	}
	return ""
}

// resolveSubscriberID walks the resolution chain and stops at the first hit:
// event metadata, the checkout client reference, subscription metadata,
// checkout session metadata, then the locally linked customer. Provider
// failures skip the step.
func (s *Service) resolveSubscriberID(ctx context.Context, eventID string, h identityHints) (string, string) {
	for _, md := range h.metadata {
		if id := subscriberIDFromMetadata(md); id != "" {
			return id, "metadata"
		}
	}
	if id := strings.TrimSpace(h.clientReference); id != "" {
		return id, "client_reference"
	}

	if h.subscriptionID != "" && s.provider != nil {
		lookupCtx, cancel := context.WithTimeout(ctx, s.cfg.LookupTimeout)
		sub, err := s.provider.RetrieveSubscription(lookupCtx, h.subscriptionID)
		cancel()
		if err != nil {
			log.Warnf("[Billing] Subscription lookup %s for event %s failed: %v", h.subscriptionID, eventID, err)
		} else if sub != nil {
			if id := subscriberIDFromMetadata(sub.Metadata); id != "" {
				return id, "subscription"
			}
			if h.customerID == "" {
				h.customerID = sub.Customer
			}
		}
	}

	if h.paymentIntent != "" && s.provider != nil {
		lookupCtx, cancel := context.WithTimeout(ctx, s.cfg.LookupTimeout)
		cs, err := s.provider.FindCheckoutSessionByPaymentIntent(lookupCtx, h.paymentIntent)
		cancel()
		if err != nil {
			log.Warnf("[Billing] Checkout session lookup for %s (event %s) failed: %v", h.paymentIntent, eventID, err)
		} else if cs != nil {
			if id := subscriberIDFromMetadata(cs.Metadata); id != "" {
				return id, "checkout_session"
			}
			if h.customerID == "" {
				h.customerID = cs.Customer
			}
		}
	}

	if h.customerID != "" {
		sub, err := s.stores.Subscribers.FindByCustomerRef(ctx, h.customerID)
		if err != nil {
			log.Warnf("[Billing] Customer lookup %s for event %s failed: %v", h.customerID, eventID, err)
		} else if sub != nil {
			return sub.ID, "customer"
		}
	}
	return "", ""
}

// resolveSubscriber returns the local subscriber for an event, or a skipped
// outcome when there is nothing to reconcile against.
func (s *Service) resolveSubscriber(ctx context.Context, ev Event, h identityHints) (*models.Subscriber, *Outcome) {
	id, source := s.resolveSubscriberID(ctx, ev.ID, h)
	if id == "" {
		log.Warnf("[Billing] %s: event %s (%s) has no resolvable subscriber", ErrUnresolvedIdentity, ev.ID, ev.Type)
		out := skipped(ReasonUnresolvedIdentity)
		return nil, &out
	}

	sub, err := s.stores.Subscribers.Get(ctx, id)
	if err != nil {
		out := failed(storeError("load subscriber", err))
		return nil, &out
	}
	if sub == nil {
		log.Warnf("[Billing] Event %s (%s) references unknown subscriber %s (via %s)", ev.ID, ev.Type, id, source)
		out := skipped(ReasonUnknownSubscriber)
		return nil, &out
	}
	return sub, nil
}
