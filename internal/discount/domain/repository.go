package domain

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository takes the handle explicitly so callers can run it inside their
// own transaction.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, code *DiscountCode) error
	FindByCode(ctx context.Context, db *gorm.DB, code string) (*DiscountCode, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*DiscountCode, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*DiscountCode, error)
	SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool, at time.Time) error
	CountRedemptions(ctx context.Context, db *gorm.DB, codeID, userID snowflake.ID) (int64, error)
	InsertRedemption(ctx context.Context, db *gorm.DB, redemption *Redemption) error
	// IncrementUsage reports false when the total cap is already reached.
	IncrementUsage(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error)
}

// NormalizeCode is the canonical stored form of a code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
