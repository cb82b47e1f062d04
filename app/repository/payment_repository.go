package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ManuelReschke/MeterGate/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// paymentRepository implements the PaymentRepository interface
type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new payment repository instance
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func refColumn(kind string) (string, error) {
	switch kind {
	case models.RefPaymentIntent:
		return "payment_intent_ref", nil
	case models.RefInvoice:
		return "invoice_ref", nil
	case models.RefCheckoutSession:
		return "checkout_session_ref", nil
	case models.RefSubscription:
		return "subscription_ref", nil
	case models.RefRefund:
		return "refund_ref", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRefKind, kind)
	}
}

// FindByExternalRef returns the oldest record carrying the reference, or nil
func (r *paymentRepository) FindByExternalRef(ctx context.Context, kind, value string) (*models.PaymentRecord, error) {
	column, err := refColumn(kind)
	if err != nil {
		return nil, err
	}
	v := strings.TrimSpace(value)
	if v == "" {
		return nil, nil
	}
	var rec models.PaymentRecord
	err = r.db.WithContext(ctx).Where(column+" = ?", v).Order("id ASC").First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CountByExternalRef counts the records carrying the reference
func (r *paymentRepository) CountByExternalRef(ctx context.Context, kind, value string) (int64, error) {
	column, err := refColumn(kind)
	if err != nil {
		return 0, err
	}
	var n int64
	err = r.db.WithContext(ctx).Model(&models.PaymentRecord{}).Where(column+" = ?", strings.TrimSpace(value)).Count(&n).Error
	return n, err
}

// findOwner returns the row an observation belongs to: the row holding its
// idempotency key, else the oldest row carrying one of its match refs. Charge
// observations never match refund rows. locking reads the latest committed
// rows, which the retry after a lost insert race needs.
func findOwner(tx *gorm.DB, record *models.PaymentRecord, locking bool) (*models.PaymentRecord, error) {
	query := func() *gorm.DB {
		if locking {
			return tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		return tx
	}

	var rows []models.PaymentRecord
	if err := query().Where("idempotency_key = ?", record.IdempotencyKey).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		return &rows[0], nil
	}

	chargeOnly := record.Ref(models.RefRefund) == ""
	for _, ref := range record.MatchRefs() {
		column, err := refColumn(ref.Kind)
		if err != nil {
			return nil, err
		}
		q := query().Where(column+" = ?", ref.Value)
		if chargeOnly {
			q = q.Where("refund_ref IS NULL")
		}
		if err := q.Order("id ASC").Limit(1).Find(&rows).Error; err != nil {
			return nil, err
		}
		if len(rows) > 0 {
			return &rows[0], nil
		}
	}
	return nil, nil
}

// Upsert merges the record into the row it belongs to (see findOwner) or
// inserts it. The idempotency key unique index decides the winner between
// concurrent inserts; the loser merges into the winner's row. The stored
// row keeps its original key. On return record holds the stored row.
func (r *paymentRepository) Upsert(ctx context.Context, record *models.PaymentRecord) error {
	if !record.HasExternalRef() {
		return ErrMissingExternalRef
	}
	if record.IdempotencyKey == "" {
		record.IdempotencyKey = record.DeriveIdempotencyKey()
	}
	if record.Status == "" {
		record.Status = models.PaymentStatusPending
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := findOwner(tx, record, false)
		if err != nil {
			return err
		}
		if existing == nil {
			res := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "idempotency_key"}},
				DoNothing: true,
			}).Create(record)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected > 0 {
				return nil
			}
			if existing, err = findOwner(tx, record, true); err != nil {
				return err
			}
			if existing == nil {
				return fmt.Errorf("payment %s: conflicting row not found", record.IdempotencyKey)
			}
		}

		existing.MergeFrom(record)
		if err := tx.Save(existing).Error; err != nil {
			return err
		}
		*record = *existing
		return nil
	})
}
