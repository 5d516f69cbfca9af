package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	PaymentIntentStatusCreated   = "created"
	PaymentIntentStatusConfirmed = "confirmed"
	PaymentIntentStatusFailed    = "failed"
)

const (
	IntentKindSubscription = "subscription"
	IntentKindOrder        = "order"
)

// PaymentIntent is the audit record for an in-progress payment. The metadata
// column holds the notes sent to the gateway at creation time; webhooks are
// reconciled against the gateway-echoed copy of those notes, never against
// the original request. Rows are never deleted.
type PaymentIntent struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	PublicID   string    `gorm:"type:char(36);not null;uniqueIndex:ux_payment_intents_public" json:"public_id" validate:"required,uuid4"`
	UserID     string    `gorm:"type:varchar(64);not null;index" json:"user_id" validate:"required,max=64"`
	Kind       string    `gorm:"type:varchar(20);not null" json:"kind" validate:"oneof=subscription order"`
	CatalogID  string    `gorm:"type:varchar(64);not null" json:"catalog_id" validate:"required,max=64"`
	ExternalID string    `gorm:"type:varchar(191);default:'';index:idx_payment_intents_external" json:"external_id"`
	Status     string    `gorm:"type:varchar(20);not null;default:'created';index" json:"status" validate:"oneof=created confirmed failed"`
	Metadata   string    `gorm:"type:longtext" json:"metadata"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *PaymentIntent) Validate() error {
	v := validator.New()
	return v.Struct(p)
}
