package billing

import (
	"context"
	"time"

	"github.com/ManuelReschke/MeterGate/app/models"
	"github.com/ManuelReschke/MeterGate/app/repository"
)

// SubscriberStore is the subscriber state used by the reconciliation handlers.
type SubscriberStore interface {
	Get(ctx context.Context, id string) (*models.Subscriber, error)
	FindByCustomerRef(ctx context.Context, customerRef string) (*models.Subscriber, error)
	SetPremium(ctx context.Context, id string, premium bool, until *time.Time) error
	LinkCustomer(ctx context.Context, id, customerRef string) error
}

// PaymentStore is the payment ledger used by handlers and refunds.
type PaymentStore interface {
	FindByExternalRef(ctx context.Context, kind, value string) (*models.PaymentRecord, error)
	Upsert(ctx context.Context, record *models.PaymentRecord) error
}

// EventJournal persists webhook deliveries for dedupe and audit.
type EventJournal interface {
	CreateIfNotExists(ctx context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error)
	MarkProcessed(ctx context.Context, id uint, processingError string) error
}

// OutcomeRecorder counts webhook outcomes. Optional.
type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, eventType string, status OutcomeStatus)
}

// Stores bundles the persistence dependencies of the service.
type Stores struct {
	Subscribers SubscriberStore
	Payments    PaymentStore
	Events      EventJournal
}

// StoresFromRepositories adapts the repository set.
func StoresFromRepositories(repos *repository.Repositories) Stores {
	return Stores{
		Subscribers: repos.Subscriber,
		Payments:    repos.Payment,
		Events:      repos.WebhookEvent,
	}
}
