package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/payledger/PayLedger/app/models"
	"github.com/payledger/PayLedger/internal/pkg/gateway"
	"gorm.io/gorm"
)

// fakeRepository is an in-memory Repository that mirrors the uniqueness
// semantics of the real tables.
type fakeRepository struct {
	txns    map[string]*models.CreditTransaction
	subs    map[string]*models.Subscription
	intents []*models.PaymentIntent
	events  map[string]*models.WebhookEvent
	nextID  uint

	failCreateTxn   error
	failCreateEvent error
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		txns:   make(map[string]*models.CreditTransaction),
		subs:   make(map[string]*models.Subscription),
		events: make(map[string]*models.WebhookEvent),
	}
}

func txnKey(referenceID, txType string) string {
	return referenceID + "|" + txType
}

func (f *fakeRepository) CreateCreditTransactionIfNotExists(txn *models.CreditTransaction) (bool, error) {
	if f.failCreateTxn != nil {
		return false, f.failCreateTxn
	}
	key := txnKey(txn.ReferenceID, txn.Type)
	if _, ok := f.txns[key]; ok {
		return false, nil
	}
	stored := *txn
	f.txns[key] = &stored
	return true, nil
}

func (f *fakeRepository) CreditBalance(userID string) (int64, error) {
	var sum int64
	for _, txn := range f.txns {
		if txn.UserID == userID {
			sum += txn.Delta
		}
	}
	return sum, nil
}

func (f *fakeRepository) UpsertSubscription(sub *models.Subscription) error {
	if existing, ok := f.subs[sub.UserID]; ok {
		existing.ExternalSubscriptionID = sub.ExternalSubscriptionID
		existing.PlanID = sub.PlanID
		existing.Status = sub.Status
		existing.CurrentPeriodEnd = sub.CurrentPeriodEnd
		existing.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
		existing.CanceledAt = sub.CanceledAt
		*sub = *existing
		return nil
	}
	f.nextID++
	sub.ID = f.nextID
	stored := *sub
	f.subs[sub.UserID] = &stored
	return nil
}

func (f *fakeRepository) FindSubscriptionByExternalID(externalID string) (*models.Subscription, error) {
	for _, sub := range f.subs {
		if sub.ExternalSubscriptionID == externalID && externalID != "" {
			return sub, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) SaveSubscription(sub *models.Subscription) error {
	stored := *sub
	f.subs[sub.UserID] = &stored
	return nil
}

func (f *fakeRepository) CreatePaymentIntent(intent *models.PaymentIntent) error {
	f.nextID++
	intent.ID = f.nextID
	f.intents = append(f.intents, intent)
	return nil
}

func (f *fakeRepository) SavePaymentIntent(intent *models.PaymentIntent) error {
	return nil
}

func (f *fakeRepository) ConfirmPaymentIntentByExternalID(externalID string) error {
	for _, intent := range f.intents {
		if intent.ExternalID == externalID && intent.Status == models.PaymentIntentStatusCreated {
			intent.Status = models.PaymentIntentStatusConfirmed
		}
	}
	return nil
}

func (f *fakeRepository) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	if f.failCreateEvent != nil {
		return false, nil, f.failCreateEvent
	}
	key := event.Provider + "|" + event.ProviderEventID
	if stored, ok := f.events[key]; ok {
		return false, stored, nil
	}
	f.nextID++
	event.ID = f.nextID
	stored := *event
	f.events[key] = &stored
	return true, &stored, nil
}

func (f *fakeRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	for _, event := range f.events {
		if event.ID == id {
			event.ProcessedAt = &now
			event.ProcessingError = processingError
		}
	}
	return nil
}

func (f *fakeRepository) Transact(fn func(Repository) error) error {
	return fn(f)
}

func (f *fakeRepository) transactionCount(userID string) int {
	n := 0
	for _, txn := range f.txns {
		if txn.UserID == userID {
			n++
		}
	}
	return n
}

// fakeGateway records requests and returns deterministic resources.
type fakeGateway struct {
	orders int
	subs   int
	err    error

	lastOrder gateway.CreateOrderInput
	lastSub   gateway.CreateSubscriptionInput
}

func (f *fakeGateway) CreateOrder(ctx context.Context, in gateway.CreateOrderInput) (*gateway.Order, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.orders++
	f.lastOrder = in
	return &gateway.Order{
		ID:          fmt.Sprintf("order_%d", f.orders),
		AmountMinor: in.AmountMinor,
		Currency:    in.Currency,
		Receipt:     in.Receipt,
		Status:      "created",
		Notes:       in.Notes,
	}, nil
}

func (f *fakeGateway) CreateSubscription(ctx context.Context, in gateway.CreateSubscriptionInput) (*gateway.Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.subs++
	f.lastSub = in
	return &gateway.Subscription{
		ID:         fmt.Sprintf("sub_%d", f.subs),
		PlanRef:    in.PlanRef,
		Status:     "created",
		TotalCount: in.TotalCount,
		Notes:      in.Notes,
	}, nil
}

// fakeHint is a map-backed DuplicateHint.
type fakeHint struct {
	seen map[string]bool
}

func newFakeHint() *fakeHint {
	return &fakeHint{seen: make(map[string]bool)}
}

func (h *fakeHint) Seen(key string) bool {
	return h.seen[key]
}

func (h *fakeHint) Mark(key string) {
	h.seen[key] = true
}
