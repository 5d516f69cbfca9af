package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	SubscriptionStatusCreated  = "created"
	SubscriptionStatusActive   = "active"
	SubscriptionStatusCanceled = "canceled"
)

const (
	BillingCycleMonthly = "monthly"
	BillingCycleAnnual  = "annual"
)

// Subscription tracks one logical subscription per user and maps the
// gateway-side subscription to the internal plan.
type Subscription struct {
	ID                     uint       `gorm:"primaryKey" json:"id"`
	UserID                 string     `gorm:"type:varchar(64);not null;uniqueIndex:ux_subscriptions_user" json:"user_id"`
	ExternalSubscriptionID string     `gorm:"type:varchar(191);default:'';index:idx_subscriptions_external" json:"external_subscription_id"`
	PlanID                 string     `gorm:"type:varchar(64);not null" json:"plan_id"`
	Status                 string     `gorm:"type:varchar(32);not null;default:'created';index" json:"status"`
	CurrentPeriodEnd       *time.Time `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	CancelAtPeriodEnd      bool       `gorm:"default:false" json:"cancel_at_period_end"`
	CanceledAt             *time.Time `gorm:"type:timestamp;default:null" json:"canceled_at,omitempty"`
	CreatedAt              time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// FindSubscriptionByUser returns the subscription row for a user.
func FindSubscriptionByUser(db *gorm.DB, userID string) (*Subscription, error) {
	var sub Subscription
	if err := db.Where("user_id = ?", userID).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// FindSubscriptionByExternalID resolves a gateway subscription id to the
// local row.
func FindSubscriptionByExternalID(db *gorm.DB, externalID string) (*Subscription, error) {
	var sub Subscription
	if err := db.Where("external_subscription_id = ?", externalID).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}
