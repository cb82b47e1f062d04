package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ManuelReschke/MeterGate/app/models"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
)

// RefundRequest is a caller-initiated refund. Amount nil refunds in full.
type RefundRequest struct {
	PaymentIntent string `json:"payment_intent" validate:"required,startswith=pi_"`
	Amount        *int64 `json:"amount,omitempty" validate:"omitempty,gt=0"`
	Reason        string `json:"reason,omitempty" validate:"omitempty,oneof=duplicate fraudulent requested_by_customer"`
}

// RefundResult is returned by Refund. RefundID is set as soon as the provider
// accepted the refund, even when recording it locally failed.
type RefundResult struct {
	RefundID string                `json:"refund_id"`
	Status   string                `json:"status"`
	Record   *models.PaymentRecord `json:"record,omitempty"`
}

// Refund issues a refund against the provider and mirrors it into the ledger.
// Provider failures are returned wrapped in ErrProviderCall.
func (s *Service) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	pi := strings.TrimSpace(req.PaymentIntent)
	if pi == "" {
		return nil, errors.New("payment_intent is required")
	}
	if req.Amount != nil && *req.Amount <= 0 {
		return nil, errors.New("amount must be positive")
	}
	if s.provider == nil {
		return nil, fmt.Errorf("%w: provider not configured", ErrProviderCall)
	}

	original, err := s.stores.Payments.FindByExternalRef(ctx, models.RefPaymentIntent, pi)
	if err != nil {
		return nil, storeError("load original payment", err)
	}
	subscriberID := ""
	if original != nil {
		subscriberID = original.SubscriberID
	}

	pr, err := s.provider.CreateRefund(ctx, RefundParams{
		PaymentIntent:  pi,
		Amount:         req.Amount,
		Reason:         strings.TrimSpace(req.Reason),
		IdempotencyKey: uuid.NewString(),
	})
	if err != nil {
		log.Errorf("[Billing] Refund for %s failed at provider: %v", pi, err)
		return nil, fmt.Errorf("%w: %w", ErrProviderCall, err)
	}

	rec := refundRecord(subscriberID, original, pr.ID, pr.Amount, pr.Currency, pr.Status, req.Reason)
	rec.Metadata["payment_intent"] = pi
	result := &RefundResult{RefundID: pr.ID, Status: rec.Status}
	if err := s.upsertPayment(ctx, rec); err != nil {
		log.Errorf("[Billing] Refund %s issued but not recorded: %v", pr.ID, err)
		return result, fmt.Errorf("record refund %s: %w", pr.ID, err)
	}
	result.Record = rec
	result.Status = rec.Status

	log.Infof("[Billing] Refund %s for %s recorded (%s)", pr.ID, pi, rec.Status)
	return result, nil
}
