package models

import "time"

const (
	CredentialTierFree    = "free"
	CredentialTierPremium = "premium"
)

// Credential is an issued API key with its quota counters. Credentials are
// deactivated, never deleted.
type Credential struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	OwnerSubscriberID  string     `gorm:"type:varchar(191);not null;index" json:"owner_subscriber_id"`
	Tier               string     `gorm:"type:varchar(16);not null;default:'free'" json:"tier"`
	DailyQuotaUsed     int64      `gorm:"not null;default:0" json:"daily_quota_used"`
	MinuteQuotaUsed    int64      `gorm:"not null;default:0" json:"minute_quota_used"`
	DailyQuotaLimit    int64      `gorm:"not null;default:0" json:"daily_quota_limit"`
	MinuteQuotaLimit   int64      `gorm:"not null;default:0" json:"minute_quota_limit"`
	HourlyQuotaLimit   int64      `gorm:"not null;default:0" json:"hourly_quota_limit"` // 0 = unlimited
	MonthlyQuotaLimit  int64      `gorm:"not null;default:0" json:"monthly_quota_limit"`
	IsActive           bool       `gorm:"not null;default:true;index" json:"is_active"`
	ExpiresAt          *time.Time `gorm:"type:timestamp;default:null;index" json:"expires_at,omitempty"`
	LastUsedAt         *time.Time `gorm:"type:timestamp;default:null" json:"last_used_at,omitempty"`
	DeactivatedAt      *time.Time `gorm:"type:timestamp;default:null" json:"deactivated_at,omitempty"`
	DeactivatedBy      string     `gorm:"type:varchar(64);not null;default:''" json:"deactivated_by,omitempty"`
	DeactivationReason string     `gorm:"type:varchar(255);not null;default:''" json:"deactivation_reason,omitempty"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsExpired reports whether the credential has an expiry strictly before now.
func (c *Credential) IsExpired(now time.Time) bool {
	return c.ExpiresAt != nil && c.ExpiresAt.Before(now)
}
