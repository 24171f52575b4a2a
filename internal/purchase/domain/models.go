// Package domain defines the purchase lifecycle records.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusRefunded  Status = "REFUNDED"
)

const (
	FailureReasonDeclined = "declined"
	FailureReasonExpired  = "expired"
)

// Purchase is one checkout of a cart through a payment processor.
type Purchase struct {
	ID                     snowflake.ID   `gorm:"primaryKey" json:"id"`
	UserID                 snowflake.ID   `gorm:"not null;index" json:"user_id"`
	Status                 Status         `gorm:"type:text;not null;index:idx_purchases_status_created,priority:1" json:"status"`
	Processor              string         `gorm:"type:text;not null" json:"processor"`
	ExternalOrderID        string         `gorm:"type:text;not null;uniqueIndex" json:"external_order_id"`
	ExternalCaptureID      string         `gorm:"type:text" json:"external_capture_id,omitempty"`
	PayerEmail             string         `gorm:"type:text" json:"payer_email,omitempty"`
	Currency               string         `gorm:"type:text;not null" json:"currency"`
	SubtotalCents          int64          `gorm:"not null" json:"subtotal_cents"`
	DiscountCents          int64          `gorm:"not null" json:"discount_cents"`
	PricePaidCents         int64          `gorm:"not null" json:"price_paid_cents"`
	AmountCapturedCents    int64          `gorm:"not null" json:"amount_captured_cents"`
	DiscountCodeID         *snowflake.ID  `json:"discount_code_id,omitempty"`
	DiscountCode           string         `gorm:"type:text" json:"discount_code,omitempty"`
	DiscountRejectedReason string         `gorm:"type:text" json:"discount_rejected_reason,omitempty"`
	CartSnapshot           datatypes.JSON `gorm:"type:jsonb;not null" json:"cart_snapshot"`
	FailureReason          string         `gorm:"type:text" json:"failure_reason,omitempty"`
	PurchasedAt            *time.Time     `json:"purchased_at,omitempty"`
	FailedAt               *time.Time     `json:"failed_at,omitempty"`
	RefundedAt             *time.Time     `json:"refunded_at,omitempty"`
	CreatedAt              time.Time      `gorm:"not null;index:idx_purchases_status_created,priority:2" json:"created_at"`
	UpdatedAt              time.Time      `gorm:"not null" json:"updated_at"`

	Items []Item `gorm:"-" json:"items,omitempty"`
}

func (Purchase) TableName() string { return "purchases" }

// Item is one purchased piece of content. PricePaidCents carries the item's
// share of the discount.
type Item struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	PurchaseID     snowflake.ID `gorm:"not null;uniqueIndex:ux_purchase_items_content,priority:1" json:"purchase_id"`
	ContentID      snowflake.ID `gorm:"not null;uniqueIndex:ux_purchase_items_content,priority:2;index" json:"content_id"`
	Position       int          `gorm:"not null" json:"position"`
	Title          string       `gorm:"type:text;not null" json:"title"`
	UnitPriceCents int64        `gorm:"not null" json:"unit_price_cents"`
	PricePaidCents int64        `gorm:"not null" json:"price_paid_cents"`
	Currency       string       `gorm:"type:text;not null" json:"currency"`
	CreatedAt      time.Time    `gorm:"not null" json:"created_at"`
}

func (Item) TableName() string { return "purchase_items" }

// Checkout is what a client needs to approve the processor order.
type Checkout struct {
	Purchase    *Purchase `json:"purchase"`
	ApprovalURL string    `json:"approval_url,omitempty"`
	ClientToken string    `json:"client_token,omitempty"`
}
