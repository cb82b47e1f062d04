package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/ManuelReschke/MeterGate/app/models"
	"github.com/ManuelReschke/MeterGate/app/repository"
	"github.com/ManuelReschke/MeterGate/internal/pkg/billing"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testWebhookSecret = "whsec_controller_test"

var errDown = errors.New("database is down")

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "controllers.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.Subscriber{},
		&models.PaymentRecord{},
		&models.Credential{},
		&models.AccessLogEntry{},
		&models.BillingWebhookEvent{},
	))
	return db
}

func dbStores(db *gorm.DB) billing.Stores {
	return billing.StoresFromRepositories(repository.NewRepositories(db))
}

type stubProvider struct {
	refund *billing.ProviderRefund
	err    error
	calls  int
}

func (p *stubProvider) CreateRefund(ctx context.Context, params billing.RefundParams) (*billing.ProviderRefund, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	r := *p.refund
	r.PaymentIntent = params.PaymentIntent
	return &r, nil
}

func (p *stubProvider) RetrieveSubscription(ctx context.Context, id string) (*billing.ProviderSubscription, error) {
	return nil, errors.New("not available in tests")
}

func (p *stubProvider) FindCheckoutSessionByPaymentIntent(ctx context.Context, id string) (*billing.ProviderCheckoutSession, error) {
	return nil, nil
}

type downJournal struct{}

func (downJournal) CreateIfNotExists(ctx context.Context, e *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	return false, nil, errDown
}

func (downJournal) MarkProcessed(ctx context.Context, id uint, msg string) error { return errDown }

type downPayments struct{ billing.PaymentStore }

func (downPayments) Upsert(ctx context.Context, r *models.PaymentRecord) error { return errDown }

func newBillingApp(svc *billing.Service) *fiber.App {
	bc := NewBillingController(svc)
	app := fiber.New()
	app.Post("/webhook", bc.HandleStripeWebhook)
	app.Post("/refunds", bc.HandleCreateRefund)
	return app
}

func signedEvent(t *testing.T, eventID, eventType string, object map[string]any) ([]byte, string) {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":      eventID,
		"object":  "event",
		"type":    eventType,
		"created": time.Now().Unix(),
		"data":    map[string]any{"object": object},
	})
	require.NoError(t, err)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	return signed.Payload, signed.Header
}

func doRequest(t *testing.T, app *fiber.App, method, path string, body []byte, headers map[string]string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func jsonHeaders() map[string]string {
	return map[string]string{fiber.HeaderContentType: fiber.MIMEApplicationJSON}
}

