package billing

import (
	"time"

	"github.com/payledger/PayLedger/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the billing service. Transact
// runs a function against a repository bound to one storage transaction;
// ledger and subscription writes for a single webhook share that scope.
type Repository interface {
	CreateCreditTransactionIfNotExists(txn *models.CreditTransaction) (bool, error)
	CreditBalance(userID string) (int64, error)
	UpsertSubscription(sub *models.Subscription) error
	FindSubscriptionByExternalID(externalID string) (*models.Subscription, error)
	SaveSubscription(sub *models.Subscription) error
	CreatePaymentIntent(intent *models.PaymentIntent) error
	SavePaymentIntent(intent *models.PaymentIntent) error
	ConfirmPaymentIntentByExternalID(externalID string) error
	CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error
	Transact(fn func(Repository) error) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// CreateCreditTransactionIfNotExists performs the conditional insert that
// enforces the exactly-once guarantee. The unique index on
// (reference_id, type) turns a replay into a silent conflict; the return
// value reports whether the row was actually written.
func (r *gormRepository) CreateCreditTransactionIfNotExists(txn *models.CreditTransaction) (bool, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "reference_id"},
			{Name: "type"},
		},
		DoNothing: true,
	}).Create(txn)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) CreditBalance(userID string) (int64, error) {
	return models.CreditBalance(r.db, userID)
}

func (r *gormRepository) UpsertSubscription(sub *models.Subscription) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"external_subscription_id",
			"plan_id",
			"status",
			"current_period_end",
			"cancel_at_period_end",
			"canceled_at",
			"updated_at",
		}),
	}).Create(sub).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.Where("user_id = ?", sub.UserID).First(sub).Error
}

func (r *gormRepository) FindSubscriptionByExternalID(externalID string) (*models.Subscription, error) {
	return models.FindSubscriptionByExternalID(r.db, externalID)
}

func (r *gormRepository) SaveSubscription(sub *models.Subscription) error {
	return r.db.Save(sub).Error
}

func (r *gormRepository) CreatePaymentIntent(intent *models.PaymentIntent) error {
	return r.db.Create(intent).Error
}

func (r *gormRepository) SavePaymentIntent(intent *models.PaymentIntent) error {
	return r.db.Save(intent).Error
}

func (r *gormRepository) ConfirmPaymentIntentByExternalID(externalID string) error {
	return r.db.Model(&models.PaymentIntent{}).
		Where("external_id = ? AND status = ?", externalID, models.PaymentIntentStatusCreated).
		Update("status", models.PaymentIntentStatusConfirmed).Error
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

func (r *gormRepository) Transact(fn func(Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}
