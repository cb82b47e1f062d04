package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ManuelReschke/MeterGate/app/models"
	"github.com/gofiber/fiber/v2/log"
)

// Service reconciles provider events into subscriber state and the payment
// ledger.
type Service struct {
	stores   Stores
	provider Provider
	recorder OutcomeRecorder
	cfg      Config
	router   *Router
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithOutcomeRecorder reports every webhook outcome to r.
func WithOutcomeRecorder(r OutcomeRecorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a billing service. provider may be nil, in which case
// identity fallbacks are skipped and refunds fail.
func NewService(stores Stores, provider Provider, cfg Config, opts ...Option) *Service {
	s := &Service{
		stores:   stores,
		provider: provider,
		cfg:      cfg.withDefaults(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router = NewRouter()
	s.router.Handle(s.handleCheckoutCompleted, EventCheckoutSessionCompleted)
	s.router.Handle(s.handleSubscriptionCreated, EventSubscriptionCreated)
	s.router.Handle(s.handleSubscriptionUpdated, EventSubscriptionUpdated)
	s.router.Handle(s.handleSubscriptionDeleted, EventSubscriptionDeleted)
	s.router.Handle(s.handleInvoicePaid, EventInvoicePaid, EventInvoicePaymentSucceeded)
	s.router.Handle(s.handleInvoicePaymentFailed, EventInvoicePaymentFailed)
	s.router.Handle(s.handlePaymentIntentSucceeded, EventPaymentIntentSucceeded)
	s.router.Handle(s.handleChargeRefunded, EventChargeRefunded)
	s.router.Handle(s.handleRefundEvent, EventRefundCreated, EventRefundUpdated, EventChargeRefundUpdated)
	return s
}

func storeError(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}

// HandleWebhook verifies, journals and dispatches one delivery. Only a bad
// signature is returned as an error; every other result is an Outcome.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) (*WebhookResult, error) {
	raw, err := VerifyWebhook(payload, signatureHeader, s.cfg.WebhookSecret)
	if err != nil {
		return nil, err
	}

	ev, decodeErr := DecodeEvent(raw)
	result := &WebhookResult{EventID: ev.ID, EventType: ev.Type}

	created, stored, err := s.RecordWebhookEvent(ctx, WebhookEventInput{
		Provider:        models.BillingProviderStripe,
		ProviderEventID: ev.ID,
		EventType:       ev.Type,
		PayloadJSON:     string(payload),
	})
	if err != nil {
		result.Outcome = failed(storeError("journal webhook event", err))
		s.record(ctx, ev.Type, result.Outcome)
		return result, nil
	}
	if !created && stored.IsProcessed() {
		log.Infof("[Billing] Duplicate delivery of event %s (%s)", ev.ID, ev.Type)
		result.Duplicate = true
		result.Outcome = ignored("duplicate")
		s.record(ctx, ev.Type, result.Outcome)
		return result, nil
	}

	if decodeErr != nil {
		result.Outcome = failed(decodeErr)
	} else {
		result.Outcome = s.router.Dispatch(ctx, ev)
	}

	switch result.Outcome.Status {
	case OutcomeFailed:
		log.Errorf("[Billing] Event %s (%s) failed: %v", ev.ID, ev.Type, result.Outcome.Err)
	case OutcomeSkipped:
		log.Warnf("[Billing] Event %s (%s) skipped: %s", ev.ID, ev.Type, result.Outcome.Reason)
	}

	if err := s.MarkWebhookProcessed(ctx, stored.ID, result.Outcome.Err); err != nil {
		log.Errorf("[Billing] Failed to mark event %s processed: %v", ev.ID, err)
	}
	s.record(ctx, ev.Type, result.Outcome)
	return result, nil
}

func (s *Service) record(ctx context.Context, eventType string, o Outcome) {
	if s.recorder != nil {
		s.recorder.RecordOutcome(ctx, eventType, o.Status)
	}
}

// RecordWebhookEvent persists webhook payloads idempotently.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.BillingWebhookEvent, error) {
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.BillingWebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
	}
	return s.stores.Events.CreateIfNotExists(ctx, event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.stores.Events.MarkProcessed(ctx, webhookEventID, errMsg)
}
