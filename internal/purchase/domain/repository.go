package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, purchase *Purchase) error
	InsertItems(ctx context.Context, db *gorm.DB, items []Item) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Purchase, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Purchase, error)
	FindByExternalOrderID(ctx context.Context, db *gorm.DB, externalOrderID string) (*Purchase, error)
	FindItems(ctx context.Context, db *gorm.DB, purchaseID snowflake.ID) ([]Item, error)
	UpdateItemPricePaid(ctx context.Context, db *gorm.DB, itemID snowflake.ID, pricePaidCents int64) error
	// Complete moves a PENDING purchase to COMPLETED; false means it was no longer PENDING.
	Complete(ctx context.Context, db *gorm.DB, purchase *Purchase) (bool, error)
	MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string, at time.Time) (bool, error)
	MarkRefunded(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error)
	ListStalePending(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]Purchase, error)
	HasCompletedPurchase(ctx context.Context, db *gorm.DB, userID, contentID snowflake.ID) (bool, error)
}
