package repository

import (
	"context"
	"time"

	"github.com/ManuelReschke/MeterGate/app/models"
	"gorm.io/gorm"
)

// credentialRepository implements the CredentialRepository interface
type credentialRepository struct {
	db *gorm.DB
}

// NewCredentialRepository creates a new credential repository instance
func NewCredentialRepository(db *gorm.DB) CredentialRepository {
	return &credentialRepository{db: db}
}

// ListActive returns one page of active credentials ordered by id
func (r *credentialRepository) ListActive(ctx context.Context, afterID uint, limit int) ([]models.Credential, error) {
	var creds []models.Credential
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND id > ?", true, afterID).
		Order("id ASC").
		Limit(limit).
		Find(&creds).Error
	return creds, err
}

// FindExpired returns one page of active credentials whose expiry is before now
func (r *credentialRepository) FindExpired(ctx context.Context, now time.Time, afterID uint, limit int) ([]models.Credential, error) {
	var creds []models.Credential
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND expires_at IS NOT NULL AND expires_at < ? AND id > ?", true, now, afterID).
		Order("id ASC").
		Limit(limit).
		Find(&creds).Error
	return creds, err
}

// ResetDailyCounters zeroes daily_quota_used. UpdateColumn skips hooks and
// updated_at so no other column changes.
func (r *credentialRepository) ResetDailyCounters(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Credential{}).
		Where("daily_quota_used <> ?", 0).
		UpdateColumn("daily_quota_used", 0)
	return res.RowsAffected, res.Error
}

// Deactivate marks an active credential inactive and records who did it
func (r *credentialRepository) Deactivate(ctx context.Context, id uint, actor, reason string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"is_active":           false,
		"deactivated_at":      &now,
		"deactivated_by":      actor,
		"deactivation_reason": reason,
	}
	return r.db.WithContext(ctx).Model(&models.Credential{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(updates).Error
}

// CountAll returns the number of credentials
func (r *credentialRepository) CountAll(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Credential{}).Count(&n).Error
	return n, err
}

// CountActive returns the number of active credentials
func (r *credentialRepository) CountActive(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Credential{}).Where("is_active = ?", true).Count(&n).Error
	return n, err
}
