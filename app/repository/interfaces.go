package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ManuelReschke/MeterGate/app/models"
	"gorm.io/gorm"
)

var (
	// ErrUnknownRefKind is returned for an external reference kind with no column.
	ErrUnknownRefKind = errors.New("unknown external reference kind")
	// ErrMissingExternalRef is returned when a payment record carries no reference.
	ErrMissingExternalRef = errors.New("payment record requires at least one external reference")
)

// SubscriberRepository defines the subscriber state operations used by billing
type SubscriberRepository interface {
	Get(ctx context.Context, id string) (*models.Subscriber, error)
	FindByCustomerRef(ctx context.Context, customerRef string) (*models.Subscriber, error)
	SetPremium(ctx context.Context, id string, premium bool, until *time.Time) error
	LinkCustomer(ctx context.Context, id, customerRef string) error
}

// PaymentRepository defines the payment ledger operations
type PaymentRepository interface {
	FindByExternalRef(ctx context.Context, kind, value string) (*models.PaymentRecord, error)
	Upsert(ctx context.Context, record *models.PaymentRecord) error
	CountByExternalRef(ctx context.Context, kind, value string) (int64, error)
}

// CredentialRepository defines the credential operations used by lifecycle jobs.
// List methods page by id: pass the last id of the previous page as afterID.
type CredentialRepository interface {
	ListActive(ctx context.Context, afterID uint, limit int) ([]models.Credential, error)
	FindExpired(ctx context.Context, now time.Time, afterID uint, limit int) ([]models.Credential, error)
	ResetDailyCounters(ctx context.Context) (int64, error)
	Deactivate(ctx context.Context, id uint, actor, reason string) error
	CountAll(ctx context.Context) (int64, error)
	CountActive(ctx context.Context) (int64, error)
}

// AccessLogRepository defines the aggregation queries over access logs
type AccessLogRepository interface {
	CountDistinctIPs(ctx context.Context, credentialID uint, since time.Time) (int64, error)
	CountDistinctUserAgents(ctx context.Context, credentialID uint, since time.Time) (int64, error)
	CountSuspicious(ctx context.Context, credentialID uint, since time.Time) (int64, error)
	CountTotal(ctx context.Context, credentialID uint, since time.Time) (int64, error)
	CountTotalSince(ctx context.Context, since time.Time) (int64, error)
	CountSuspiciousSince(ctx context.Context, since time.Time) (int64, error)
}

// WebhookEventRepository defines the webhook journal operations
type WebhookEventRepository interface {
	CreateIfNotExists(ctx context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error)
	MarkProcessed(ctx context.Context, id uint, processingError string) error
}

// Repositories struct holds all repository instances
type Repositories struct {
	Subscriber   SubscriberRepository
	Payment      PaymentRepository
	Credential   CredentialRepository
	AccessLog    AccessLogRepository
	WebhookEvent WebhookEventRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Subscriber:   NewSubscriberRepository(db),
		Payment:      NewPaymentRepository(db),
		Credential:   NewCredentialRepository(db),
		AccessLog:    NewAccessLogRepository(db),
		WebhookEvent: NewWebhookEventRepository(db),
	}
}
