package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type CreateSubscriptionRequest struct {
	UserID             snowflake.ID `json:"user_id"`
	PlanID             string       `json:"plan_id"`
	PlanName           string       `json:"plan_name"`
	CurrentPeriodStart time.Time    `json:"current_period_start"`
	CurrentPeriodEnd   time.Time    `json:"current_period_end"`
}

type RecordChargeRequest struct {
	SubscriptionID   snowflake.ID `json:"subscription_id"`
	ExternalChargeID string       `json:"external_charge_id"`
	AmountCents      int64        `json:"amount_cents"`
	Currency         string       `json:"currency"`
	PeriodStart      time.Time    `json:"period_start"`
	PeriodEnd        time.Time    `json:"period_end"`
	SettledAt        *time.Time   `json:"settled_at,omitempty"`
}

type Service interface {
	Create(ctx context.Context, req CreateSubscriptionRequest) (*Subscription, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Subscription, error)
	// GetActive returns nil without error when no ACTIVE subscription covers at.
	GetActive(ctx context.Context, userID snowflake.ID, at time.Time) (*Subscription, error)
	UpdateStatus(ctx context.Context, id snowflake.ID, status SubscriptionStatus) (*Subscription, error)
	// RecordCharge is idempotent on ExternalChargeID and returns the stored charge.
	RecordCharge(ctx context.Context, req RecordChargeRequest) (*Charge, error)
	GetCharge(ctx context.Context, id snowflake.ID) (*Charge, error)
}

var (
	ErrInvalidUser          = errors.New("invalid_user")
	ErrInvalidPlan          = errors.New("invalid_plan")
	ErrInvalidPeriod        = errors.New("invalid_period")
	ErrInvalidStatus        = errors.New("invalid_status")
	ErrInvalidCharge        = errors.New("invalid_charge")
	ErrSubscriptionNotFound = errors.New("subscription_not_found")
	ErrChargeNotFound       = errors.New("subscription_charge_not_found")
	ErrChargeMismatch       = errors.New("subscription_charge_mismatch")
	ErrInvalidTransition    = errors.New("invalid_subscription_transition")
)
