package billing

import (
	"strings"

	"github.com/ManuelReschke/MeterGate/app/models"
)

func normalizeCurrency(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}

func isActiveSubscription(status string) bool {
	return strings.EqualFold(strings.TrimSpace(status), "active")
}

// isPaidSubscription reports whether a new subscription's first charge can be
// treated as collected.
func isPaidSubscription(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "active", "trialing":
		return true
	default:
		return false
	}
}

// refundStatusToPaymentStatus maps a Stripe refund status onto the ledger.
func refundStatusToPaymentStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "succeeded":
		return models.PaymentStatusSucceeded
	case "failed":
		return models.PaymentStatusFailed
	case "canceled":
		return models.PaymentStatusCanceled
	default:
		// pending, requires_action
		return models.PaymentStatusPending
	}
}
