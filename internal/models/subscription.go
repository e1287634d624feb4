package models

import (
	"time"

	"gorm.io/gorm"
)

// Subscription status values mirror what the billing provider reports.
const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusInactive = "inactive"
	SubscriptionStatusCanceled = "canceled"
	SubscriptionStatusPastDue  = "past_due"
)

// Subscription plan tiers.
const (
	PlanFree    = "free"
	PlanPremium = "premium"
)

// Subscription reflects a user's billing state. Only the webhook path
// writes this entity; clients read it.
type Subscription struct {
	ID                   string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID               string    `json:"user_id" gorm:"uniqueIndex;type:varchar(36)" validate:"required,uuid"`
	StripeCustomerID     string    `json:"stripe_customer_id" gorm:"type:varchar(255)"`
	StripeSubscriptionID string    `json:"stripe_subscription_id" gorm:"type:varchar(255)"`
	Status               string    `json:"status" gorm:"type:varchar(32)"`
	Plan                 string    `json:"plan" gorm:"type:varchar(32)"`
	CurrentPeriodEnd     time.Time `json:"current_period_end"`
	gorm.Model
}

// IsSubscribed reports whether the subscription is currently active.
func (s *Subscription) IsSubscribed() bool {
	return s != nil && s.Status == SubscriptionStatusActive
}

// IsPremium reports whether the subscription is on the premium plan.
func (s *Subscription) IsPremium() bool {
	return s != nil && s.Plan == PlanPremium
}
