package billing

import "time"

const (
	defaultPremiumWindow = 30 * 24 * time.Hour
	defaultLookupTimeout = 5 * time.Second
)

// Config holds the tunables of the reconciliation service.
type Config struct {
	// WebhookSecret is the Stripe endpoint signing secret (whsec_...).
	WebhookSecret string
	// DefaultPremiumWindow applies when an event carries no period end.
	DefaultPremiumWindow time.Duration
	// LookupTimeout bounds each identity fallback call to the provider.
	LookupTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.DefaultPremiumWindow <= 0 {
		c.DefaultPremiumWindow = defaultPremiumWindow
	}
	if c.LookupTimeout <= 0 {
		c.LookupTimeout = defaultLookupTimeout
	}
	return c
}

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	PayloadJSON     string
}

// WebhookResult describes what happened to one webhook delivery.
type WebhookResult struct {
	EventID   string
	EventType string
	Duplicate bool
	Outcome   Outcome
}
