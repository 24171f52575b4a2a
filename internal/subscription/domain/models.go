// Package domain contains persistence models for subscriptions and their settled charges.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// SubscriptionStatus represents lifecycle states for a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "ACTIVE"
	SubscriptionStatusPastDue  SubscriptionStatus = "PAST_DUE"
	SubscriptionStatusCanceled SubscriptionStatus = "CANCELED"
	SubscriptionStatusExpired  SubscriptionStatus = "EXPIRED"
)

func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionStatusActive, SubscriptionStatusPastDue, SubscriptionStatusCanceled, SubscriptionStatusExpired:
		return true
	}
	return false
}

// Subscription grants catalog-wide access while ACTIVE within its current period.
type Subscription struct {
	ID                 snowflake.ID       `gorm:"primaryKey" json:"id"`
	UserID             snowflake.ID       `gorm:"not null;index" json:"user_id"`
	PlanID             string             `gorm:"type:text;not null" json:"plan_id"`
	PlanName           string             `gorm:"type:text;not null" json:"plan_name"`
	Status             SubscriptionStatus `gorm:"type:text;not null;index" json:"status"`
	CurrentPeriodStart time.Time          `gorm:"not null" json:"current_period_start"`
	CurrentPeriodEnd   time.Time          `gorm:"not null" json:"current_period_end"`
	CanceledAt         *time.Time         `json:"canceled_at,omitempty"`
	CreatedAt          time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt          time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }

// Covers reports whether the subscription is ACTIVE and at falls inside its period.
func (s Subscription) Covers(at time.Time) bool {
	if s.Status != SubscriptionStatusActive {
		return false
	}
	return !at.Before(s.CurrentPeriodStart) && !at.After(s.CurrentPeriodEnd)
}

// Charge is a settled recurring charge reported by the payment processor.
type Charge struct {
	ID               snowflake.ID `gorm:"primaryKey" json:"id"`
	SubscriptionID   snowflake.ID `gorm:"not null;index" json:"subscription_id"`
	UserID           snowflake.ID `gorm:"not null;index" json:"user_id"`
	ExternalChargeID string       `gorm:"type:text;not null;uniqueIndex" json:"external_charge_id"`
	PlanName         string       `gorm:"type:text;not null" json:"plan_name"`
	AmountCents      int64        `gorm:"not null" json:"amount_cents"`
	Currency         string       `gorm:"type:text;not null" json:"currency"`
	PeriodStart      time.Time    `gorm:"not null" json:"period_start"`
	PeriodEnd        time.Time    `gorm:"not null" json:"period_end"`
	SettledAt        time.Time    `gorm:"not null" json:"settled_at"`
	CreatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Charge) TableName() string { return "subscription_charges" }
