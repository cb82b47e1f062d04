package models

import "time"

// SuspiciousStatusCodes are the response codes counted as suspicious activity
// by the security heuristic: rejected credentials and throttled callers.
var SuspiciousStatusCodes = []int{401, 403, 429}

// AccessLogEntry is one metered API call. Written by the usage middleware,
// read-only here.
type AccessLogEntry struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Timestamp    time.Time `gorm:"column:logged_at;type:timestamp;not null;index;index:idx_access_logs_credential_ts,priority:2" json:"timestamp"`
	CredentialID uint      `gorm:"not null;index:idx_access_logs_credential_ts,priority:1" json:"credential_id"`
	Endpoint     string    `gorm:"type:varchar(255);not null;default:''" json:"endpoint"`
	IP           string    `gorm:"type:varchar(45);not null;default:''" json:"ip"`
	UserAgent    string    `gorm:"type:varchar(512);not null;default:''" json:"user_agent"`
	StatusCode   int       `gorm:"not null;default:0" json:"status_code"`
}

// TableName keeps the table name short.
func (AccessLogEntry) TableName() string {
	return "access_logs"
}
