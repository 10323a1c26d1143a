package models

import "time"

// Content types a one-time checkout can unlock.
const (
	ContentTypeWorkout = "workout"
	ContentTypeProgram = "program"
	ContentTypeShop    = "shop"
	ContentTypeRitual  = "ritual"
)

// Purchase is an immutable ledger row for a one-time catalog purchase.
type Purchase struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          string    `gorm:"type:varchar(64);not null;index" json:"user_id"`
	ContentType     string    `gorm:"type:varchar(20);not null" json:"content_type"`
	ContentID       string    `gorm:"type:varchar(191);not null;default:''" json:"content_id"`
	ContentName     string    `gorm:"type:varchar(255);not null;default:''" json:"content_name"`
	AmountCents     int64     `gorm:"not null;default:0" json:"amount_cents"`
	Currency        string    `gorm:"type:varchar(3);not null;default:''" json:"currency"`
	PaymentIntentID string    `gorm:"type:varchar(191);not null;uniqueIndex:ux_purchases_payment_intent" json:"payment_intent_id"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// RitualPurchase records a dated ritual entitlement. Rituals are addressed by
// calendar day rather than by catalog id, so the ledger key is (user, date).
type RitualPurchase struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_ritual_purchases_user_date,priority:1" json:"user_id"`
	RitualDate      string    `gorm:"type:varchar(10);not null;uniqueIndex:ux_ritual_purchases_user_date,priority:2" json:"ritual_date"`
	AmountCents     int64     `gorm:"not null;default:0" json:"amount_cents"`
	Currency        string    `gorm:"type:varchar(3);not null;default:''" json:"currency"`
	PaymentIntentID string    `gorm:"type:varchar(191);not null;default:'';index" json:"payment_intent_id"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}
