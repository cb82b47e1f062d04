package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ManuelReschke/MeterGate/app/models"
	"gorm.io/gorm"
)

// subscriberRepository implements the SubscriberRepository interface
type subscriberRepository struct {
	db *gorm.DB
}

// NewSubscriberRepository creates a new subscriber repository instance
func NewSubscriberRepository(db *gorm.DB) SubscriberRepository {
	return &subscriberRepository{db: db}
}

// Get returns the subscriber or nil when no row exists
func (r *subscriberRepository) Get(ctx context.Context, id string) (*models.Subscriber, error) {
	var sub models.Subscriber
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// FindByCustomerRef returns the subscriber linked to a provider customer or nil
func (r *subscriberRepository) FindByCustomerRef(ctx context.Context, customerRef string) (*models.Subscriber, error) {
	ref := strings.TrimSpace(customerRef)
	if ref == "" {
		return nil, nil
	}
	var sub models.Subscriber
	err := r.db.WithContext(ctx).Where("external_customer_ref = ?", ref).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// SetPremium writes premium and premium_until together. The write does not
// check affected rows: MySQL reports zero for an unchanged row.
func (r *subscriberRepository) SetPremium(ctx context.Context, id string, premium bool, until *time.Time) error {
	updates := map[string]interface{}{
		"premium":       premium,
		"premium_until": until,
	}
	return r.db.WithContext(ctx).Model(&models.Subscriber{}).Where("id = ?", id).Updates(updates).Error
}

// LinkCustomer stores the provider customer id on the subscriber
func (r *subscriberRepository) LinkCustomer(ctx context.Context, id, customerRef string) error {
	ref := strings.TrimSpace(customerRef)
	if ref == "" {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Subscriber{}).Where("id = ?", id).
		Update("external_customer_ref", ref).Error
}
