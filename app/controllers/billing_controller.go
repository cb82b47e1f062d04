package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ManuelReschke/MeterGate/internal/pkg/billing"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

const (
	webhookTimeout = 15 * time.Second
	refundTimeout  = 30 * time.Second
)

// BillingController serves the Stripe webhook and the admin refund endpoint.
type BillingController struct {
	svc *billing.Service
}

func NewBillingController(svc *billing.Service) *BillingController {
	return &BillingController{svc: svc}
}

// HandleStripeWebhook verifies and processes one Stripe delivery. Stripe
// retries anything outside 2xx, so only transient failures answer 503.
func (bc *BillingController) HandleStripeWebhook(c *fiber.Ctx) error {
	// The signature covers the exact bytes; fiber reuses the body buffer.
	rawBody := append([]byte(nil), c.BodyRaw()...)
	if len(rawBody) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "empty_body"})
	}
	signature := strings.TrimSpace(c.Get("Stripe-Signature"))

	ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
	defer cancel()

	res, err := bc.svc.HandleWebhook(ctx, rawBody, signature)
	if err != nil {
		log.Warnf("[Billing] Rejected webhook from %s: %v", c.IP(), err)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "error": "invalid_signature"})
	}

	if res.Duplicate {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true, "duplicate": true, "event_id": res.EventID})
	}

	o := res.Outcome
	switch {
	case o.Retryable():
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"success":  false,
			"status":   o.Status,
			"event_id": res.EventID,
			"retry":    true,
		})
	case o.Failed():
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"success":  false,
			"status":   o.Status,
			"event_id": res.EventID,
			"error":    o.ErrorString(),
		})
	}

	body := fiber.Map{"success": true, "status": o.Status, "event_id": res.EventID}
	if o.Reason != "" {
		body["reason"] = o.Reason
	}
	return c.Status(fiber.StatusOK).JSON(body)
}

// HandleCreateRefund issues a refund for a payment intent.
func (bc *BillingController) HandleCreateRefund(c *fiber.Ctx) error {
	var req billing.RefundRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid_request", "Request body must be JSON")
	}
	req.PaymentIntent = strings.TrimSpace(req.PaymentIntent)
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "validation_failed",
			"message": "Invalid refund request",
			"fields":  validationErrors(err),
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), refundTimeout)
	defer cancel()

	res, err := bc.svc.Refund(ctx, req)
	if err != nil {
		if errors.Is(err, billing.ErrProviderCall) {
			return errorJSON(c, fiber.StatusBadGateway, "provider_error", err.Error())
		}
		body := fiber.Map{"error": "record_failed", "message": "Refund could not be recorded"}
		if res != nil && res.RefundID != "" {
			body["refund_id"] = res.RefundID
		}
		return c.Status(fiber.StatusInternalServerError).JSON(body)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}
