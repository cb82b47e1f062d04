package billing

import (
	"context"
	"time"

	"github.com/ManuelReschke/MeterGate/app/models"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/datatypes"
)

func unixTime(ts int64) *time.Time {
	if ts <= 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}

func (s *Service) defaultUntil() *time.Time {
	t := s.now().Add(s.cfg.DefaultPremiumWindow).UTC()
	return &t
}

// setPremium writes premium state last-write-wins. Moving premium_until
// backwards is applied but logged since it signals out-of-order delivery.
func (s *Service) setPremium(ctx context.Context, ev Event, sub *models.Subscriber, premium bool, until *time.Time) error {
	if premium && until != nil && sub.PremiumUntil != nil && until.Before(*sub.PremiumUntil) {
		log.Warnf("[Billing] Event %s (%s) moves premium_until of %s backwards: %s -> %s",
			ev.ID, ev.Type, sub.ID, sub.PremiumUntil.Format(time.RFC3339), until.Format(time.RFC3339))
	}
	if err := s.stores.Subscribers.SetPremium(ctx, sub.ID, premium, until); err != nil {
		return storeError("set premium", err)
	}
	sub.Premium = premium
	sub.PremiumUntil = until
	return nil
}

func (s *Service) linkCustomer(ctx context.Context, sub *models.Subscriber, customerID string) error {
	if customerID == "" || sub.CustomerRef() == customerID {
		return nil
	}
	if err := s.stores.Subscribers.LinkCustomer(ctx, sub.ID, customerID); err != nil {
		return storeError("link customer", err)
	}
	sub.ExternalCustomerRef = &customerID
	return nil
}

func (s *Service) upsertPayment(ctx context.Context, rec *models.PaymentRecord) error {
	if err := s.stores.Payments.Upsert(ctx, rec); err != nil {
		return storeError("upsert payment", err)
	}
	return nil
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, ev Event) Outcome {
	cs := ev.Payload.(*CheckoutSession)
	sub, skip := s.resolveSubscriber(ctx, ev, identityHints{
		metadata:        []map[string]string{cs.Metadata},
		clientReference: cs.ClientReferenceID,
		subscriptionID:  cs.Subscription.String(),
		customerID:      cs.Customer.String(),
	})
	if skip != nil {
		return *skip
	}

	rec := &models.PaymentRecord{
		SubscriberID: sub.ID,
		Amount:       cs.AmountTotal,
		Currency:     normalizeCurrency(cs.Currency),
		Status:       models.PaymentStatusSucceeded,
		Kind:         models.PaymentKindCheckout,
		Metadata: datatypes.JSONMap{
			"session_id": cs.ID,
			"mode":       cs.Mode,
			"customer":   cs.Customer.String(),
		},
	}
	rec.SetRef(models.RefCheckoutSession, cs.ID)
	rec.SetRef(models.RefPaymentIntent, cs.PaymentIntent.String())
	rec.SetRef(models.RefSubscription, cs.Subscription.String())
	if err := s.upsertPayment(ctx, rec); err != nil {
		return failed(err)
	}

	if err := s.setPremium(ctx, ev, sub, true, s.defaultUntil()); err != nil {
		return failed(err)
	}
	if err := s.linkCustomer(ctx, sub, cs.Customer.String()); err != nil {
		return failed(err)
	}
	log.Infof("[Billing] Checkout %s completed for %s (payment %d)", cs.ID, sub.ID, rec.ID)
	return applied("")
}

func (s *Service) handleSubscriptionCreated(ctx context.Context, ev Event) Outcome {
	stripeSub := ev.Payload.(*Subscription)
	sub, skip := s.resolveSubscriber(ctx, ev, identityHints{
		metadata:       []map[string]string{stripeSub.Metadata},
		subscriptionID: stripeSub.ID,
		customerID:     stripeSub.Customer.String(),
	})
	if skip != nil {
		return *skip
	}

	until := unixTime(stripeSub.PeriodEnd())
	if until == nil {
		until = s.defaultUntil()
	}

	amount, currency := stripeSub.FirstItemAmount()
	status := models.PaymentStatusPending
	if isPaidSubscription(stripeSub.Status) {
		status = models.PaymentStatusSucceeded
	}
	rec := &models.PaymentRecord{
		SubscriberID: sub.ID,
		Amount:       amount,
		Currency:     normalizeCurrency(currency),
		Status:       status,
		Kind:         models.PaymentKindInitialCharge,
		Metadata: datatypes.JSONMap{
			"subscription_status": stripeSub.Status,
			"period_end":          until.Unix(),
		},
	}
	rec.SetRef(models.RefSubscription, stripeSub.ID)
	if err := s.upsertPayment(ctx, rec); err != nil {
		return failed(err)
	}

	if err := s.setPremium(ctx, ev, sub, true, until); err != nil {
		return failed(err)
	}
	if err := s.linkCustomer(ctx, sub, stripeSub.Customer.String()); err != nil {
		return failed(err)
	}
	return applied("")
}

func (s *Service) handleSubscriptionUpdated(ctx context.Context, ev Event) Outcome {
	stripeSub := ev.Payload.(*Subscription)
	sub, skip := s.resolveSubscriber(ctx, ev, identityHints{
		metadata:       []map[string]string{stripeSub.Metadata},
		subscriptionID: stripeSub.ID,
		customerID:     stripeSub.Customer.String(),
	})
	if skip != nil {
		return *skip
	}

	active := isActiveSubscription(stripeSub.Status)
	var until *time.Time
	if active {
		until = unixTime(stripeSub.PeriodEnd())
	}
	if err := s.setPremium(ctx, ev, sub, active, until); err != nil {
		return failed(err)
	}
	return applied(stripeSub.Status)
}

func (s *Service) handleSubscriptionDeleted(ctx context.Context, ev Event) Outcome {
	stripeSub := ev.Payload.(*Subscription)
	sub, skip := s.resolveSubscriber(ctx, ev, identityHints{
		metadata:       []map[string]string{stripeSub.Metadata},
		subscriptionID: stripeSub.ID,
		customerID:     stripeSub.Customer.String(),
	})
	if skip != nil {
		return *skip
	}

	if err := s.setPremium(ctx, ev, sub, false, nil); err != nil {
		return failed(err)
	}
	return applied("")
}

func invoiceHints(inv *Invoice) identityHints {
	return identityHints{
		metadata:       []map[string]string{inv.Metadata, inv.SubscriptionMetadata()},
		subscriptionID: inv.SubscriptionID(),
		paymentIntent:  inv.PaymentIntent.String(),
		customerID:     inv.Customer.String(),
	}
}

func (s *Service) handleInvoicePaid(ctx context.Context, ev Event) Outcome {
	inv := ev.Payload.(*Invoice)
	sub, skip := s.resolveSubscriber(ctx, ev, invoiceHints(inv))
	if skip != nil {
		return *skip
	}

	start, end := inv.ServicePeriod()
	rec := &models.PaymentRecord{
		SubscriberID: sub.ID,
		Amount:       inv.AmountPaid,
		Currency:     normalizeCurrency(inv.Currency),
		Status:       models.PaymentStatusSucceeded,
		Kind:         models.PaymentKindRenewal,
		Metadata: datatypes.JSONMap{
			"period_start":   start,
			"period_end":     end,
			"billing_reason": inv.BillingReason,
		},
	}
	rec.SetRef(models.RefInvoice, inv.ID)
	rec.SetRef(models.RefSubscription, inv.SubscriptionID())
	rec.SetRef(models.RefPaymentIntent, inv.PaymentIntent.String())
	if err := s.upsertPayment(ctx, rec); err != nil {
		return failed(err)
	}

	until := unixTime(end)
	if until == nil {
		until = s.defaultUntil()
	}
	if err := s.setPremium(ctx, ev, sub, true, until); err != nil {
		return failed(err)
	}
	return applied("")
}

func (s *Service) handleInvoicePaymentFailed(ctx context.Context, ev Event) Outcome {
	inv := ev.Payload.(*Invoice)
	sub, skip := s.resolveSubscriber(ctx, ev, invoiceHints(inv))
	if skip != nil {
		return *skip
	}

	if err := s.setPremium(ctx, ev, sub, false, sub.PremiumUntil); err != nil {
		return failed(err)
	}
	return applied("")
}

func (s *Service) handlePaymentIntentSucceeded(ctx context.Context, ev Event) Outcome {
	pi := ev.Payload.(*PaymentIntent)
	sub, skip := s.resolveSubscriber(ctx, ev, identityHints{
		metadata:      []map[string]string{pi.Metadata},
		paymentIntent: pi.ID,
		customerID:    pi.Customer.String(),
	})
	if skip != nil {
		return *skip
	}

	amount := pi.AmountReceived
	if amount <= 0 {
		amount = pi.Amount
	}
	rec := &models.PaymentRecord{
		SubscriberID: sub.ID,
		Amount:       amount,
		Currency:     normalizeCurrency(pi.Currency),
		Status:       models.PaymentStatusSucceeded,
		Kind:         models.PaymentKindPayment,
	}
	rec.SetRef(models.RefPaymentIntent, pi.ID)
	rec.SetRef(models.RefInvoice, pi.Invoice.String())
	if err := s.upsertPayment(ctx, rec); err != nil {
		return failed(err)
	}

	if sub.Premium {
		return applied("already_premium")
	}
	if err := s.setPremium(ctx, ev, sub, true, s.defaultUntil()); err != nil {
		return failed(err)
	}
	return applied("")
}

// refundOrigin loads the charge row a refund reverses and the subscriber it
// belongs to. Metadata on the event wins over the charge row.
func (s *Service) refundOrigin(ctx context.Context, md map[string]string, paymentIntent string) (*models.PaymentRecord, string, error) {
	subscriberID := subscriberIDFromMetadata(md)
	if paymentIntent == "" {
		return nil, subscriberID, nil
	}
	original, err := s.stores.Payments.FindByExternalRef(ctx, models.RefPaymentIntent, paymentIntent)
	if err != nil {
		return nil, "", storeError("load original payment", err)
	}
	if original != nil && subscriberID == "" {
		subscriberID = original.SubscriberID
	}
	return original, subscriberID, nil
}

// handleChargeRefunded mirrors provider-side refunds, including ones issued
// from the dashboard, into refund rows. The charge row itself is left alone.
// Newer API versions omit the refund list; those refunds arrive as refund
// events instead.
func (s *Service) handleChargeRefunded(ctx context.Context, ev Event) Outcome {
	ch := ev.Payload.(*Charge)
	if len(ch.Refunds.Data) == 0 {
		return skipped(ReasonNoRefunds)
	}

	original, subscriberID, err := s.refundOrigin(ctx, ch.Metadata, ch.PaymentIntent.String())
	if err != nil {
		return failed(err)
	}

	for _, r := range ch.Refunds.Data {
		rec := refundRecord(subscriberID, original, r.ID, r.Amount, r.Currency, r.Status, r.Reason)
		rec.Metadata["charge"] = ch.ID
		if pi := ch.PaymentIntent.String(); pi != "" {
			rec.Metadata["payment_intent"] = pi
		}
		if err := s.upsertPayment(ctx, rec); err != nil {
			return failed(err)
		}
	}
	return applied("")
}

// handleRefundEvent mirrors a single refund object into its refund row.
func (s *Service) handleRefundEvent(ctx context.Context, ev Event) Outcome {
	r := ev.Payload.(*Refund)
	pi := r.PaymentIntent.String()
	original, subscriberID, err := s.refundOrigin(ctx, r.Metadata, pi)
	if err != nil {
		return failed(err)
	}

	rec := refundRecord(subscriberID, original, r.ID, r.Amount, r.Currency, r.Status, r.Reason)
	if ch := r.Charge.String(); ch != "" {
		rec.Metadata["charge"] = ch
	}
	if pi != "" {
		rec.Metadata["payment_intent"] = pi
	}
	if err := s.upsertPayment(ctx, rec); err != nil {
		return failed(err)
	}
	log.Infof("[Billing] Refund %s mirrored as %s (payment %d)", r.ID, rec.Status, rec.ID)
	return applied("")
}

// refundRecord builds the ledger row for a refund. The payment intent goes in
// metadata only; setting the ref would collide with the original charge row.
func refundRecord(subscriberID string, original *models.PaymentRecord, refundID string, amount int64, currency, status, reason string) *models.PaymentRecord {
	currency = normalizeCurrency(currency)
	if currency == "" && original != nil {
		currency = original.Currency
	}
	rec := &models.PaymentRecord{
		SubscriberID: subscriberID,
		Amount:       amount,
		Currency:     currency,
		Status:       refundStatusToPaymentStatus(status),
		Kind:         models.PaymentKindRefund,
		Metadata:     datatypes.JSONMap{},
	}
	if reason != "" {
		rec.Metadata["reason"] = reason
	}
	if original != nil {
		rec.Metadata["original_payment_id"] = original.ID
		rec.SetRef(models.RefSubscription, original.Ref(models.RefSubscription))
		rec.SetRef(models.RefInvoice, original.Ref(models.RefInvoice))
	}
	rec.SetRef(models.RefRefund, refundID)
	return rec
}
