package billing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ManuelReschke/MeterGate/app/models"
	"github.com/ManuelReschke/MeterGate/app/repository"
)

var errStoreDown = errors.New("store unavailable")

type fakeSubscribers struct {
	mu   sync.Mutex
	rows map[string]*models.Subscriber
	err  error
}

func newFakeSubscribers(ids ...string) *fakeSubscribers {
	f := &fakeSubscribers{rows: map[string]*models.Subscriber{}}
	for _, id := range ids {
		f.rows[id] = &models.Subscriber{ID: id}
	}
	return f
}

func (f *fakeSubscribers) Get(_ context.Context, id string) (*models.Subscriber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	row, ok := f.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (f *fakeSubscribers) FindByCustomerRef(_ context.Context, ref string) (*models.Subscriber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.CustomerRef() == ref {
			cp := *row
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeSubscribers) SetPremium(_ context.Context, id string, premium bool, until *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	row := f.rows[id]
	row.Premium = premium
	if until != nil {
		t := *until
		row.PremiumUntil = &t
	} else {
		row.PremiumUntil = nil
	}
	return nil
}

func (f *fakeSubscribers) LinkCustomer(_ context.Context, id, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[id].ExternalCustomerRef = &ref
	return nil
}

func (f *fakeSubscribers) get(id string) models.Subscriber {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.rows[id]
}

type fakePayments struct {
	mu     sync.Mutex
	rows   map[string]*models.PaymentRecord
	nextID uint
	err    error
}

func newFakePayments() *fakePayments {
	return &fakePayments{rows: map[string]*models.PaymentRecord{}}
}

func (f *fakePayments) FindByExternalRef(_ context.Context, kind, value string) (*models.PaymentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var found *models.PaymentRecord
	for _, row := range f.rows {
		if row.Ref(kind) == value && (found == nil || row.ID < found.ID) {
			found = row
		}
	}
	if found == nil {
		return nil, nil
	}
	cp := *found
	return &cp, nil
}

// owner mirrors the repository lookup: idempotency key first, then the oldest
// non-refund row (or refund row, for refunds) carrying a match ref.
func (f *fakePayments) owner(rec *models.PaymentRecord) *models.PaymentRecord {
	if row, ok := f.rows[rec.IdempotencyKey]; ok {
		return row
	}
	isRefund := rec.Ref(models.RefRefund) != ""
	for _, ref := range rec.MatchRefs() {
		var found *models.PaymentRecord
		for _, row := range f.rows {
			if (row.Ref(models.RefRefund) != "") != isRefund || row.Ref(ref.Kind) != ref.Value {
				continue
			}
			if found == nil || row.ID < found.ID {
				found = row
			}
		}
		if found != nil {
			return found
		}
	}
	return nil
}

func (f *fakePayments) Upsert(_ context.Context, rec *models.PaymentRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if !rec.HasExternalRef() {
		return repository.ErrMissingExternalRef
	}
	rec.IdempotencyKey = rec.DeriveIdempotencyKey()
	if rec.Status == "" {
		rec.Status = models.PaymentStatusPending
	}
	if existing := f.owner(rec); existing != nil {
		existing.MergeFrom(rec)
		*rec = *existing
		return nil
	}
	f.nextID++
	rec.ID = f.nextID
	cp := *rec
	f.rows[rec.IdempotencyKey] = &cp
	return nil
}

func (f *fakePayments) all() []models.PaymentRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.PaymentRecord, 0, len(f.rows))
	for _, row := range f.rows {
		out = append(out, *row)
	}
	return out
}

func (f *fakePayments) byKey(key string) *models.PaymentRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[key]
	if !ok {
		return nil
	}
	cp := *row
	return &cp
}

type fakeJournal struct {
	mu     sync.Mutex
	rows   map[string]*models.BillingWebhookEvent
	nextID uint
	err    error
}

func newFakeJournal() *fakeJournal {
	return &fakeJournal{rows: map[string]*models.BillingWebhookEvent{}}
}

func (f *fakeJournal) CreateIfNotExists(_ context.Context, ev *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, nil, f.err
	}
	key := ev.Provider + "/" + ev.ProviderEventID
	if existing, ok := f.rows[key]; ok {
		cp := *existing
		return false, &cp, nil
	}
	f.nextID++
	ev.ID = f.nextID
	cp := *ev
	f.rows[key] = &cp
	return true, ev, nil
}

func (f *fakeJournal) MarkProcessed(_ context.Context, id uint, processingError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.ID == id {
			now := time.Now()
			row.ProcessedAt = &now
			row.ProcessingError = processingError
		}
	}
	return nil
}

func (f *fakeJournal) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type fakeProvider struct {
	mu             sync.Mutex
	subscriptions  map[string]*ProviderSubscription
	sessions       map[string]*ProviderCheckoutSession
	lookupErr      error
	refund         *ProviderRefund
	refundErr      error
	refundCalls    []RefundParams
	subLookups     int
	sessionLookups int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		subscriptions: map[string]*ProviderSubscription{},
		sessions:      map[string]*ProviderCheckoutSession{},
	}
}

func (f *fakeProvider) CreateRefund(_ context.Context, p RefundParams) (*ProviderRefund, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refundCalls = append(f.refundCalls, p)
	if f.refundErr != nil {
		return nil, f.refundErr
	}
	return f.refund, nil
}

func (f *fakeProvider) RetrieveSubscription(_ context.Context, id string) (*ProviderSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subLookups++
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	return f.subscriptions[id], nil
}

func (f *fakeProvider) FindCheckoutSessionByPaymentIntent(_ context.Context, pi string) (*ProviderCheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessionLookups++
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	return f.sessions[pi], nil
}

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *countingRecorder) RecordOutcome(_ context.Context, eventType string, status OutcomeStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = map[string]int{}
	}
	c.counts[eventType+":"+string(status)]++
}
