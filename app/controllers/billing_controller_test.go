package controllers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payledger/PayLedger/app/models"
	"github.com/payledger/PayLedger/internal/pkg/billing"
	"github.com/payledger/PayLedger/internal/pkg/catalog"
	"github.com/payledger/PayLedger/internal/pkg/gateway"
	"gorm.io/gorm"
)

const testSecret = "whsec_controller"

// memRepo is an in-memory billing.Repository for handler tests.
type memRepo struct {
	txns    map[string]*models.CreditTransaction
	subs    map[string]*models.Subscription
	intents []*models.PaymentIntent
	events  map[string]*models.WebhookEvent
	nextID  uint

	failTxn error
}

func newMemRepo() *memRepo {
	return &memRepo{
		txns:   make(map[string]*models.CreditTransaction),
		subs:   make(map[string]*models.Subscription),
		events: make(map[string]*models.WebhookEvent),
	}
}

func (m *memRepo) CreateCreditTransactionIfNotExists(txn *models.CreditTransaction) (bool, error) {
	if m.failTxn != nil {
		return false, m.failTxn
	}
	key := txn.ReferenceID + "|" + txn.Type
	if _, ok := m.txns[key]; ok {
		return false, nil
	}
	stored := *txn
	m.txns[key] = &stored
	return true, nil
}

func (m *memRepo) CreditBalance(userID string) (int64, error) {
	var sum int64
	for _, txn := range m.txns {
		if txn.UserID == userID {
			sum += txn.Delta
		}
	}
	return sum, nil
}

func (m *memRepo) UpsertSubscription(sub *models.Subscription) error {
	stored := *sub
	m.subs[sub.UserID] = &stored
	return nil
}

func (m *memRepo) FindSubscriptionByExternalID(externalID string) (*models.Subscription, error) {
	for _, sub := range m.subs {
		if sub.ExternalSubscriptionID == externalID && externalID != "" {
			return sub, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memRepo) SaveSubscription(sub *models.Subscription) error {
	stored := *sub
	m.subs[sub.UserID] = &stored
	return nil
}

func (m *memRepo) CreatePaymentIntent(intent *models.PaymentIntent) error {
	m.nextID++
	intent.ID = m.nextID
	m.intents = append(m.intents, intent)
	return nil
}

func (m *memRepo) SavePaymentIntent(intent *models.PaymentIntent) error { return nil }

func (m *memRepo) ConfirmPaymentIntentByExternalID(externalID string) error {
	for _, intent := range m.intents {
		if intent.ExternalID == externalID && intent.Status == models.PaymentIntentStatusCreated {
			intent.Status = models.PaymentIntentStatusConfirmed
		}
	}
	return nil
}

func (m *memRepo) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	key := event.Provider + "|" + event.ProviderEventID
	if stored, ok := m.events[key]; ok {
		return false, stored, nil
	}
	m.nextID++
	event.ID = m.nextID
	stored := *event
	m.events[key] = &stored
	return true, &stored, nil
}

func (m *memRepo) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	for _, event := range m.events {
		if event.ID == id {
			event.ProcessedAt = &now
			event.ProcessingError = processingError
		}
	}
	return nil
}

func (m *memRepo) Transact(fn func(billing.Repository) error) error { return fn(m) }

// stubGateway returns fixed resources without network access.
type stubGateway struct {
	err error
}

func (s *stubGateway) CreateOrder(ctx context.Context, in gateway.CreateOrderInput) (*gateway.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &gateway.Order{ID: "order_test", AmountMinor: in.AmountMinor, Currency: in.Currency, Status: "created", Notes: in.Notes}, nil
}

func (s *stubGateway) CreateSubscription(ctx context.Context, in gateway.CreateSubscriptionInput) (*gateway.Subscription, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &gateway.Subscription{ID: "sub_test", PlanRef: in.PlanRef, Status: "created", Notes: in.Notes}, nil
}

func newTestApp(t *testing.T, repo *memRepo, gw billing.Gateway) *fiber.App {
	t.Helper()
	cat := catalog.Default()
	svc := billing.NewService(repo, cat, gw)
	coord, err := billing.NewCoordinator(svc, repo, testSecret, nil)
	require.NoError(t, err)
	bc := NewBillingController(svc, coord, cat)

	app := fiber.New()
	app.Post("/api/v1/billing/subscription-intent", bc.HandleCreateSubscriptionIntent)
	app.Post("/api/v1/billing/order-intent", bc.HandleCreateOrderIntent)
	app.Get("/api/v1/billing/balance/:userId", bc.HandleCreditBalance)
	app.Get("/api/v1/billing/catalog", bc.HandleCatalog)
	app.Post("/webhooks/gateway", bc.HandleGatewayWebhook)
	return app
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func postJSON(t *testing.T, app *fiber.App, path string, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestSubscriptionIntentFreePlan(t *testing.T) {
	repo := newMemRepo()
	app := newTestApp(t, repo, &stubGateway{})

	resp := postJSON(t, app, "/api/v1/billing/subscription-intent", `{"planId":"free","userId":"U1"}`)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, float64(0), body["amount"])

	balance, err := repo.CreditBalance("U1")
	require.NoError(t, err)
	assert.Equal(t, int64(25), balance)
}

func TestSubscriptionIntentValidation(t *testing.T) {
	app := newTestApp(t, newMemRepo(), &stubGateway{})

	resp := postJSON(t, app, "/api/v1/billing/subscription-intent", `{"userId":"U1"}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, app, "/api/v1/billing/subscription-intent", `{"planId":"basic","billingCycle":"weekly","userId":"U1"}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, app, "/api/v1/billing/subscription-intent", `{"planId":"enterprise","userId":"U1"}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestSubscriptionIntentGatewayDown(t *testing.T) {
	app := newTestApp(t, newMemRepo(), &stubGateway{err: errors.New("unreachable")})

	resp := postJSON(t, app, "/api/v1/billing/subscription-intent", `{"planId":"basic","billingCycle":"monthly","userId":"U1"}`)
	assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)
}

func TestOrderIntent(t *testing.T) {
	app := newTestApp(t, newMemRepo(), &stubGateway{})

	resp := postJSON(t, app, "/api/v1/billing/order-intent", `{"type":"credits","packageId":"starter","userId":"U1"}`)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "order_test", body["order_id"])
	assert.Equal(t, float64(500), body["amount"])

	resp = postJSON(t, app, "/api/v1/billing/order-intent", `{"type":"donation","packageId":"starter","userId":"U1"}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestCreditBalanceEndpoint(t *testing.T) {
	repo := newMemRepo()
	repo.txns["seed|credit_purchase"] = &models.CreditTransaction{UserID: "U1", Delta: 75, Type: models.TransactionTypeCreditPurchase, ReferenceID: "seed"}
	app := newTestApp(t, repo, &stubGateway{})

	req := httptest.NewRequest(fiber.MethodGet, "/api/v1/billing/balance/U1", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, float64(75), body["balance"])
}

func TestCatalogEndpoint(t *testing.T) {
	app := newTestApp(t, newMemRepo(), &stubGateway{})

	req := httptest.NewRequest(fiber.MethodGet, "/api/v1/billing/catalog", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.NotEmpty(t, body["plans"])
	assert.NotEmpty(t, body["packages"])
}

func TestGatewayWebhookStatusMapping(t *testing.T) {
	repo := newMemRepo()
	app := newTestApp(t, repo, &stubGateway{})

	payload := []byte(`{"event":"payment.captured","payload":{"payment":{"id":"pay_1"},"order":{"id":"order_1","notes":{"userId":"U1","type":"credits","credits":"100"}}}}`)

	send := func(signature, eventID string) *http.Response {
		req := httptest.NewRequest(fiber.MethodPost, "/webhooks/gateway", bytes.NewBuffer(payload))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Signature", signature)
		if eventID != "" {
			req.Header.Set("X-Event-Id", eventID)
		}
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		return resp
	}

	resp := send(sign(payload), "evt_1")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = send(sign(payload), "evt_1")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decodeBody(t, resp)["duplicate"])

	resp = send("deadbeef", "evt_2")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	repo.failTxn = errors.New("connection lost")
	resp = send(sign(payload), "evt_3")
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	balance, err := repo.CreditBalance("U1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance, "only the first delivery lands")
}
