package models

import "time"

// UnlimitedSeats is the reserved seat capacity for plans without a member cap.
const UnlimitedSeats = -1

// CorporateSubscription is an organization-level entitlement held by an admin
// user. CurrentMembers is maintained by the membership flows.
type CorporateSubscription struct {
	ID                     uint       `gorm:"primaryKey" json:"id"`
	AdminUserID            string     `gorm:"type:varchar(64);not null;index" json:"admin_user_id"`
	OrganizationName       string     `gorm:"type:varchar(200);not null" json:"organization_name"`
	PlanTier               string     `gorm:"type:varchar(50);not null" json:"plan_tier"`
	MaxMembers             int        `gorm:"not null;default:0" json:"max_members"`
	CurrentMembers         int        `gorm:"not null;default:0" json:"current_members"`
	CustomerID             string     `gorm:"type:varchar(191);not null;default:'';index" json:"customer_id"`
	ProviderSubscriptionID string     `gorm:"type:varchar(191);not null;uniqueIndex:ux_corporate_subscriptions_subid" json:"provider_subscription_id"`
	Status                 string     `gorm:"type:varchar(32);not null;default:'active'" json:"status"`
	CurrentPeriodStart     *time.Time `gorm:"type:timestamp;default:null" json:"current_period_start,omitempty"`
	CurrentPeriodEnd       *time.Time `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	CreatedAt              time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// HasUnlimitedSeats reports whether the plan carries no member cap.
func (c *CorporateSubscription) HasUnlimitedSeats() bool {
	return c.MaxMembers == UnlimitedSeats
}
