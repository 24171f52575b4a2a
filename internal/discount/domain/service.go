package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type ValidateRequest struct {
	Code            string       `json:"code"`
	CartTotalCents  int64        `json:"cart_total_cents"`
	UserID          snowflake.ID `json:"user_id"`
	ForSubscription bool         `json:"for_subscription"`
}

type CreateCodeRequest struct {
	Code                   string     `json:"code"`
	Kind                   Kind       `json:"kind"`
	Value                  int64      `json:"value"`
	MinPurchaseCents       int64      `json:"min_purchase_cents"`
	MaxUsesTotal           *int64     `json:"max_uses_total,omitempty"`
	MaxUsesPerUser         *int64     `json:"max_uses_per_user,omitempty"`
	ValidFrom              *time.Time `json:"valid_from,omitempty"`
	ValidUntil             *time.Time `json:"valid_until,omitempty"`
	AppliesToPurchases     bool       `json:"applies_to_purchases"`
	AppliesToSubscriptions bool       `json:"applies_to_subscriptions"`
	Inactive               bool       `json:"inactive,omitempty"`
}

type Service interface {
	// Validate prices the code against the cart without consuming a use.
	// Rejections are returned as the sentinel errors understood by ReasonOf.
	Validate(ctx context.Context, req ValidateRequest) (*Quote, error)
	CreateCode(ctx context.Context, req CreateCodeRequest) (*DiscountCode, error)
	GetByCode(ctx context.Context, code string) (*DiscountCode, error)
	SetActive(ctx context.Context, code string, active bool) (*DiscountCode, error)
}
