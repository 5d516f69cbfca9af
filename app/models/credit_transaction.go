package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	TransactionTypeSubscriptionCreated   = "subscription_created"
	TransactionTypeSubscriptionActivated = "subscription_activated"
	TransactionTypeCreditPurchase        = "credit_purchase"
	TransactionTypeServicePurchase       = "service_purchase"
)

// CreditTransaction is one append-only ledger entry. A user's balance is
// always the sum of their deltas, never a stored counter. The unique index
// on (reference_id, type) is what makes webhook replays a no-op.
type CreditTransaction struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      string    `gorm:"type:varchar(64);not null;index:idx_credit_transactions_user" json:"user_id"`
	Delta       int64     `gorm:"not null" json:"delta"`
	Type        string    `gorm:"type:varchar(50);not null;index:ux_credit_transactions_ref,unique,priority:2" json:"type"`
	ReferenceID string    `gorm:"type:varchar(191);not null;index:ux_credit_transactions_ref,unique,priority:1" json:"reference_id"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// CreditBalance derives a user's balance by summing the ledger at read time.
func CreditBalance(db *gorm.DB, userID string) (int64, error) {
	var balance int64
	err := db.Model(&CreditTransaction{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(delta), 0)").
		Scan(&balance).Error
	return balance, err
}
