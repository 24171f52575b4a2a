package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, subscription *Subscription) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Subscription, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Subscription, error)
	FindActiveByUserIDAt(ctx context.Context, db *gorm.DB, userID snowflake.ID, at time.Time) (*Subscription, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status SubscriptionStatus, at time.Time) error
	UpdatePeriod(ctx context.Context, db *gorm.DB, id snowflake.ID, start, end time.Time, status SubscriptionStatus, at time.Time) error
	InsertCharge(ctx context.Context, db *gorm.DB, charge *Charge) error
	FindChargeByExternalID(ctx context.Context, db *gorm.DB, externalChargeID string) (*Charge, error)
	FindChargeByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Charge, error)
}
