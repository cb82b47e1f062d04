package models

import "time"

// Subscriber is the billing view of a registered account. Rows are created by
// account registration; this service only flips premium state and links the
// provider customer.
type Subscriber struct {
	ID                  string     `gorm:"primaryKey;type:varchar(191)" json:"id"`
	Premium             bool       `gorm:"default:false;index" json:"premium"`
	PremiumUntil        *time.Time `gorm:"type:timestamp;default:null" json:"premium_until,omitempty"`
	ExternalCustomerRef *string    `gorm:"type:varchar(191);default:null;index" json:"external_customer_ref,omitempty"`
	CreatedAt           time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// CustomerRef returns the linked provider customer id or "".
func (s *Subscriber) CustomerRef() string {
	if s == nil || s.ExternalCustomerRef == nil {
		return ""
	}
	return *s.ExternalCustomerRef
}
