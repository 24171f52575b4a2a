package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/audiostore/internal/catalog/domain"
)

type CreateOrderRequest struct {
	UserID       snowflake.ID
	Cart         catalogdomain.CartSnapshot
	DiscountCode string
	// Processor selects the payment processor; empty uses the default.
	Processor string
}

type Service interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*Checkout, error)
	// CaptureOrder is idempotent: an already COMPLETED purchase is returned unchanged.
	CaptureOrder(ctx context.Context, externalOrderID string) (*Purchase, error)
	Refund(ctx context.Context, purchaseID snowflake.ID) (*Purchase, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Purchase, error)
	GetByExternalOrderID(ctx context.Context, externalOrderID string) (*Purchase, error)
	// ReclaimStale fails up to limit PENDING purchases created more than
	// olderThan ago and returns how many were reclaimed.
	ReclaimStale(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}
