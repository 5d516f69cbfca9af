package billing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"encoding/json"

	"github.com/google/uuid"
	"github.com/payledger/PayLedger/app/models"
	"github.com/payledger/PayLedger/internal/pkg/catalog"
	"github.com/payledger/PayLedger/internal/pkg/gateway"
	"gorm.io/gorm"
)

var (
	ErrInvalidPlan          = errors.New("unknown subscription plan")
	ErrInvalidPackage       = errors.New("unknown credit package")
	ErrInvalidService       = errors.New("unknown service")
	ErrInvalidOrderType     = errors.New("unknown order type")
	ErrGateway              = errors.New("payment gateway request failed")
	ErrSubscriptionNotFound = errors.New("no subscription for external id")
)

// Service implements intent creation and the reconciliation effects: the
// credit ledger and the subscription state machine. All ledger writes go
// through one grant primitive so the free-plan fast path and the webhook
// path share a single exactly-once mechanism.
type Service struct {
	repo    Repository
	catalog *catalog.Catalog
	gateway Gateway
}

// NewService creates a billing service from injected collaborators.
func NewService(repo Repository, cat *catalog.Catalog, gw Gateway) *Service {
	return &Service{repo: repo, catalog: cat, gateway: gw}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, cat *catalog.Catalog, gw Gateway) *Service {
	return NewService(NewRepository(db), cat, gw)
}

// SubscriptionIntentResult is returned to the client to continue checkout.
type SubscriptionIntentResult struct {
	SubscriptionID string `json:"subscription_id,omitempty"`
	AmountMinor    int64  `json:"amount"`
	Currency       string `json:"currency"`
	PlanName       string `json:"plan_name"`
	BillingCycle   string `json:"billing_cycle"`
}

// OrderIntentResult is returned to the client to continue checkout.
type OrderIntentResult struct {
	OrderID     string `json:"order_id"`
	AmountMinor int64  `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
}

// CreateSubscriptionIntent resolves a plan and either activates it directly
// (free tier) or creates a gateway subscription carrying self-describing
// notes for later reconciliation.
func (s *Service) CreateSubscriptionIntent(ctx context.Context, userID, planID, billingCycle string) (*SubscriptionIntentResult, error) {
	userID = strings.TrimSpace(userID)
	planID = strings.TrimSpace(planID)
	if userID == "" || planID == "" {
		return nil, errors.New("user_id and plan_id are required")
	}
	cycle := normalizeBillingCycle(billingCycle)

	plan, err := s.catalog.Resolve(catalog.KindSubscriptionPlan, planID)
	if err != nil {
		return nil, ErrInvalidPlan
	}

	if plan.IsFree() {
		// Private fast path: no gateway round-trip, but the same upsert and
		// grant primitives as the webhook path, keyed by a synthetic
		// reference id so a repeated free signup cannot double-grant.
		err := s.repo.Transact(func(r Repository) error {
			if err := r.UpsertSubscription(&models.Subscription{
				UserID: userID,
				PlanID: plan.ID,
				Status: models.SubscriptionStatusActive,
			}); err != nil {
				return err
			}
			ref := fmt.Sprintf("free:%s:%s", userID, plan.ID)
			_, err := grantCredits(r, userID, plan.Credits, models.TransactionTypeSubscriptionCreated, ref)
			return err
		})
		if err != nil {
			return nil, err
		}
		return &SubscriptionIntentResult{
			AmountMinor:  0,
			Currency:     plan.Currency,
			PlanName:     plan.Name,
			BillingCycle: cycle,
		}, nil
	}

	notes := map[string]string{
		NoteUserID:       userID,
		NotePlanID:       plan.ID,
		NoteBillingCycle: cycle,
	}

	intent := &models.PaymentIntent{
		PublicID:  uuid.NewString(),
		UserID:    userID,
		Kind:      models.IntentKindSubscription,
		CatalogID: plan.ID,
		Status:    models.PaymentIntentStatusCreated,
		Metadata:  intentMetadata(notes, plan.Credits),
	}
	if err := intent.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.CreatePaymentIntent(intent); err != nil {
		return nil, err
	}

	sub, err := s.gateway.CreateSubscription(ctx, gateway.CreateSubscriptionInput{
		PlanRef:    plan.ID + "-" + cycle,
		TotalCount: totalCountForCycle(cycle),
		Notes:      notes,
	})
	if err != nil {
		intent.Status = models.PaymentIntentStatusFailed
		_ = s.repo.SavePaymentIntent(intent)
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}

	intent.ExternalID = sub.ID
	if err := s.repo.SavePaymentIntent(intent); err != nil {
		return nil, err
	}

	return &SubscriptionIntentResult{
		SubscriptionID: sub.ID,
		AmountMinor:    plan.PriceForCycle(cycle),
		Currency:       plan.Currency,
		PlanName:       plan.Name,
		BillingCycle:   cycle,
	}, nil
}

// CreateOrderIntent creates a gateway order for a credit package or a
// one-off service purchase.
func (s *Service) CreateOrderIntent(ctx context.Context, userID, orderType, id string) (*OrderIntentResult, error) {
	userID = strings.TrimSpace(userID)
	id = strings.TrimSpace(id)
	if userID == "" || id == "" {
		return nil, errors.New("user_id and a package or service id are required")
	}

	var entry *catalog.Entry
	var err error
	notes := map[string]string{
		NoteUserID: userID,
		NoteType:   orderType,
	}
	switch strings.ToLower(strings.TrimSpace(orderType)) {
	case OrderTypeCredits:
		entry, err = s.catalog.Resolve(catalog.KindCreditPackage, id)
		if err != nil {
			return nil, ErrInvalidPackage
		}
		notes[NotePackageID] = entry.ID
	case OrderTypeService:
		entry, err = s.catalog.Resolve(catalog.KindService, id)
		if err != nil {
			return nil, ErrInvalidService
		}
		notes[NoteServiceID] = entry.ID
	default:
		return nil, ErrInvalidOrderType
	}
	notes[NoteCredits] = strconv.FormatInt(entry.Credits, 10)

	description := entry.Description
	if description == "" {
		description = entry.Name
	}

	intent := &models.PaymentIntent{
		PublicID:  uuid.NewString(),
		UserID:    userID,
		Kind:      models.IntentKindOrder,
		CatalogID: entry.ID,
		Status:    models.PaymentIntentStatusCreated,
		Metadata:  intentMetadata(notes, entry.Credits),
	}
	if err := intent.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.CreatePaymentIntent(intent); err != nil {
		return nil, err
	}

	order, err := s.gateway.CreateOrder(ctx, gateway.CreateOrderInput{
		AmountMinor: entry.PriceMinor,
		Currency:    entry.Currency,
		Receipt:     intent.PublicID,
		Notes:       notes,
	})
	if err != nil {
		intent.Status = models.PaymentIntentStatusFailed
		_ = s.repo.SavePaymentIntent(intent)
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}

	intent.ExternalID = order.ID
	if err := s.repo.SavePaymentIntent(intent); err != nil {
		return nil, err
	}

	return &OrderIntentResult{
		OrderID:     order.ID,
		AmountMinor: entry.PriceMinor,
		Currency:    entry.Currency,
		Description: description,
	}, nil
}

// CreditBalance derives a user's balance from the ledger.
func (s *Service) CreditBalance(ctx context.Context, userID string) (int64, error) {
	_ = ctx
	return s.repo.CreditBalance(strings.TrimSpace(userID))
}

// GrantCredits applies one signed delta through the conditional-insert
// primitive.
func (s *Service) GrantCredits(ctx context.Context, userID string, delta int64, txType, referenceID string) (Outcome, error) {
	_ = ctx
	return grantCredits(s.repo, userID, delta, txType, referenceID)
}

// ApplySubscriptionActivated upserts the user's subscription row, grants the
// plan's credits keyed by the external subscription id, and confirms the
// matching payment intent, all in one transaction.
func (s *Service) ApplySubscriptionActivated(ctx context.Context, externalSubID string, notes map[string]string, periodEnd *time.Time) (Outcome, error) {
	_ = ctx
	userID := strings.TrimSpace(notes[NoteUserID])
	planID := strings.TrimSpace(notes[NotePlanID])
	if userID == "" || planID == "" {
		return OutcomeIgnored, errors.New("activation notes missing userId/planId")
	}

	plan, err := s.catalog.Resolve(catalog.KindSubscriptionPlan, planID)
	if err != nil {
		// The plan no longer exists; redelivery cannot succeed either, so the
		// event is acknowledged and kept on record instead of retried forever.
		return OutcomeIgnored, fmt.Errorf("activation for unknown plan %q", planID)
	}

	outcome := OutcomeErrored
	err = s.repo.Transact(func(r Repository) error {
		if err := r.UpsertSubscription(&models.Subscription{
			UserID:                 userID,
			ExternalSubscriptionID: externalSubID,
			PlanID:                 plan.ID,
			Status:                 models.SubscriptionStatusActive,
			CurrentPeriodEnd:       periodEnd,
		}); err != nil {
			return err
		}
		o, err := grantCredits(r, userID, plan.Credits, models.TransactionTypeSubscriptionActivated, externalSubID)
		if err != nil {
			return err
		}
		outcome = o
		return r.ConfirmPaymentIntentByExternalID(externalSubID)
	})
	if err != nil {
		return OutcomeErrored, err
	}
	return outcome, nil
}

// ApplySubscriptionCancelled moves the subscription with the given external
// id to its terminal canceled state. Cancelling twice is a no-op; an unknown
// external id is acknowledged but reported so callers can log it.
func (s *Service) ApplySubscriptionCancelled(ctx context.Context, externalSubID string) (Outcome, error) {
	_ = ctx
	externalSubID = strings.TrimSpace(externalSubID)
	if externalSubID == "" {
		return OutcomeIgnored, errors.New("cancellation payload missing subscription id")
	}

	sub, err := s.repo.FindSubscriptionByExternalID(externalSubID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return OutcomeIgnored, ErrSubscriptionNotFound
		}
		return OutcomeErrored, err
	}
	if sub.Status == models.SubscriptionStatusCanceled {
		return OutcomeDuplicate, nil
	}

	now := time.Now()
	sub.Status = models.SubscriptionStatusCanceled
	sub.CancelAtPeriodEnd = true
	sub.CanceledAt = &now
	if err := s.repo.SaveSubscription(sub); err != nil {
		return OutcomeErrored, err
	}
	return OutcomeApplied, nil
}

// ApplyPaymentCaptured grants the credits described by the gateway-echoed
// order notes, keyed by the payment id, and confirms the matching intent.
func (s *Service) ApplyPaymentCaptured(ctx context.Context, paymentID, orderID string, notes map[string]string) (Outcome, error) {
	_ = ctx
	paymentID = strings.TrimSpace(paymentID)
	userID := strings.TrimSpace(notes[NoteUserID])
	if paymentID == "" || userID == "" {
		return OutcomeIgnored, errors.New("capture payload missing payment id or userId note")
	}

	var txType string
	switch strings.ToLower(strings.TrimSpace(notes[NoteType])) {
	case OrderTypeCredits:
		txType = models.TransactionTypeCreditPurchase
	case OrderTypeService:
		txType = models.TransactionTypeServicePurchase
	default:
		return OutcomeIgnored, fmt.Errorf("capture with unknown order type %q", notes[NoteType])
	}

	credits, err := strconv.ParseInt(strings.TrimSpace(notes[NoteCredits]), 10, 64)
	if err != nil || credits < 0 {
		// A capture whose notes no longer say how many credits were bought
		// must not be confirmed as if zero were; keep the drop on record.
		return OutcomeIgnored, fmt.Errorf("capture with unusable credits note %q", notes[NoteCredits])
	}

	outcome := OutcomeApplied
	err = s.repo.Transact(func(r Repository) error {
		if credits > 0 {
			o, err := grantCredits(r, userID, credits, txType, paymentID)
			if err != nil {
				return err
			}
			outcome = o
		}
		if orderID != "" {
			return r.ConfirmPaymentIntentByExternalID(orderID)
		}
		return nil
	})
	if err != nil {
		return OutcomeErrored, err
	}
	return outcome, nil
}

func grantCredits(r Repository, userID string, delta int64, txType, referenceID string) (Outcome, error) {
	created, err := r.CreateCreditTransactionIfNotExists(&models.CreditTransaction{
		UserID:      userID,
		Delta:       delta,
		Type:        txType,
		ReferenceID: referenceID,
	})
	if err != nil {
		return OutcomeErrored, err
	}
	if !created {
		return OutcomeDuplicate, nil
	}
	return OutcomeApplied, nil
}

func intentMetadata(notes map[string]string, credits int64) string {
	meta := make(map[string]string, len(notes)+1)
	for k, v := range notes {
		meta[k] = v
	}
	meta[NoteCredits] = strconv.FormatInt(credits, 10)
	b, _ := json.Marshal(meta)
	return string(b)
}

func normalizeBillingCycle(cycle string) string {
	if strings.EqualFold(strings.TrimSpace(cycle), models.BillingCycleAnnual) {
		return models.BillingCycleAnnual
	}
	return models.BillingCycleMonthly
}

func totalCountForCycle(cycle string) int {
	if cycle == models.BillingCycleAnnual {
		return 10
	}
	return 120
}
