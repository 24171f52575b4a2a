// Package domain holds discount codes, their redemptions and the pure pricing rule.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Kind is the closed set of discount computations.
type Kind string

const (
	KindPercentage  Kind = "PERCENTAGE"
	KindFixedAmount Kind = "FIXED_AMOUNT"
)

func (k Kind) Valid() bool {
	switch k {
	case KindPercentage, KindFixedAmount:
		return true
	}
	return false
}

// DiscountCode is an operator-defined code. UsedCount only ever grows, and only
// inside the transaction that completes a purchase.
type DiscountCode struct {
	ID                     snowflake.ID `gorm:"primaryKey" json:"id"`
	Code                   string       `gorm:"type:text;not null;uniqueIndex" json:"code"`
	Kind                   Kind         `gorm:"type:text;not null" json:"kind"`
	Value                  int64        `gorm:"not null" json:"value"`
	MinPurchaseCents       int64        `gorm:"not null" json:"min_purchase_cents"`
	MaxUsesTotal           *int64       `json:"max_uses_total,omitempty"`
	MaxUsesPerUser         *int64       `json:"max_uses_per_user,omitempty"`
	ValidFrom              *time.Time   `json:"valid_from,omitempty"`
	ValidUntil             *time.Time   `json:"valid_until,omitempty"`
	AppliesToPurchases     bool         `gorm:"not null" json:"applies_to_purchases"`
	AppliesToSubscriptions bool         `gorm:"not null" json:"applies_to_subscriptions"`
	IsActive               bool         `gorm:"not null" json:"is_active"`
	UsedCount              int64        `gorm:"not null" json:"used_count"`
	CreatedAt              time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt              time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (DiscountCode) TableName() string { return "discount_codes" }

// Redemption is appended once per purchase that actually received the discount.
type Redemption struct {
	ID                  snowflake.ID `gorm:"primaryKey" json:"id"`
	DiscountCodeID      snowflake.ID `gorm:"not null;index:idx_discount_redemptions_code_user,priority:1" json:"discount_code_id"`
	UserID              snowflake.ID `gorm:"not null;index:idx_discount_redemptions_code_user,priority:2" json:"user_id"`
	PurchaseID          snowflake.ID `gorm:"not null;uniqueIndex" json:"purchase_id"`
	DiscountAmountCents int64        `gorm:"not null" json:"discount_amount_cents"`
	RedeemedAt          time.Time    `gorm:"not null" json:"redeemed_at"`
}

func (Redemption) TableName() string { return "discount_redemptions" }

// Quote is the outcome of a successful evaluation.
type Quote struct {
	Valid               bool         `json:"valid"`
	CodeID              snowflake.ID `json:"code_id"`
	Code                string       `json:"code"`
	Kind                Kind         `json:"kind"`
	CartTotalCents      int64        `json:"cart_total_cents"`
	DiscountAmountCents int64        `json:"discount_amount_cents"`
	FinalAmountCents    int64        `json:"final_amount_cents"`
}
