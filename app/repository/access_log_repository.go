package repository

import (
	"context"
	"time"

	"github.com/ManuelReschke/MeterGate/app/models"
	"gorm.io/gorm"
)

// accessLogRepository implements the AccessLogRepository interface
type accessLogRepository struct {
	db *gorm.DB
}

// NewAccessLogRepository creates a new access log repository instance
func NewAccessLogRepository(db *gorm.DB) AccessLogRepository {
	return &accessLogRepository{db: db}
}

func (r *accessLogRepository) window(ctx context.Context, credentialID uint, since time.Time) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.AccessLogEntry{}).
		Where("credential_id = ? AND logged_at >= ?", credentialID, since)
}

// CountDistinctIPs counts distinct client IPs for a credential since t
func (r *accessLogRepository) CountDistinctIPs(ctx context.Context, credentialID uint, since time.Time) (int64, error) {
	var n int64
	err := r.window(ctx, credentialID, since).Distinct("ip").Count(&n).Error
	return n, err
}

// CountDistinctUserAgents counts distinct user agents for a credential since t
func (r *accessLogRepository) CountDistinctUserAgents(ctx context.Context, credentialID uint, since time.Time) (int64, error) {
	var n int64
	err := r.window(ctx, credentialID, since).Distinct("user_agent").Count(&n).Error
	return n, err
}

// CountSuspicious counts suspicious calls for a credential since t
func (r *accessLogRepository) CountSuspicious(ctx context.Context, credentialID uint, since time.Time) (int64, error) {
	var n int64
	err := r.window(ctx, credentialID, since).Where("status_code IN ?", models.SuspiciousStatusCodes).Count(&n).Error
	return n, err
}

// CountTotal counts all calls for a credential since t
func (r *accessLogRepository) CountTotal(ctx context.Context, credentialID uint, since time.Time) (int64, error) {
	var n int64
	err := r.window(ctx, credentialID, since).Count(&n).Error
	return n, err
}

// CountTotalSince counts all calls across credentials since t
func (r *accessLogRepository) CountTotalSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.AccessLogEntry{}).Where("logged_at >= ?", since).Count(&n).Error
	return n, err
}

// CountSuspiciousSince counts suspicious calls across credentials since t
func (r *accessLogRepository) CountSuspiciousSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.AccessLogEntry{}).
		Where("logged_at >= ? AND status_code IN ?", since, models.SuspiciousStatusCodes).
		Count(&n).Error
	return n, err
}
