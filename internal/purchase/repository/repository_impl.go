package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	purchasedomain "github.com/smallbiznis/audiostore/internal/purchase/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() purchasedomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, purchase *purchasedomain.Purchase) error {
	return db.WithContext(ctx).Create(purchase).Error
}

func (r *repo) InsertItems(ctx context.Context, db *gorm.DB, items []purchasedomain.Item) error {
	if len(items) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&items).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*purchasedomain.Purchase, error) {
	return r.take(db.WithContext(ctx).Where("id = ?", id))
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*purchasedomain.Purchase, error) {
	return r.take(db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id))
}

func (r *repo) FindByExternalOrderID(ctx context.Context, db *gorm.DB, externalOrderID string) (*purchasedomain.Purchase, error) {
	return r.take(db.WithContext(ctx).Where("external_order_id = ?", externalOrderID))
}

func (r *repo) take(query *gorm.DB) (*purchasedomain.Purchase, error) {
	var purchase purchasedomain.Purchase
	err := query.Take(&purchase).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

func (r *repo) FindItems(ctx context.Context, db *gorm.DB, purchaseID snowflake.ID) ([]purchasedomain.Item, error) {
	var items []purchasedomain.Item
	err := db.WithContext(ctx).
		Where("purchase_id = ?", purchaseID).
		Order("position ASC").
		Find(&items).Error
	return items, err
}

func (r *repo) UpdateItemPricePaid(ctx context.Context, db *gorm.DB, itemID snowflake.ID, pricePaidCents int64) error {
	return db.WithContext(ctx).
		Model(&purchasedomain.Item{}).
		Where("id = ?", itemID).
		Update("price_paid_cents", pricePaidCents).Error
}

func (r *repo) Complete(ctx context.Context, db *gorm.DB, purchase *purchasedomain.Purchase) (bool, error) {
	res := db.WithContext(ctx).
		Model(&purchasedomain.Purchase{}).
		Where("id = ? AND status = ?", purchase.ID, purchasedomain.StatusPending).
		Updates(map[string]any{
			"status":                   purchasedomain.StatusCompleted,
			"external_capture_id":      purchase.ExternalCaptureID,
			"payer_email":              purchase.PayerEmail,
			"amount_captured_cents":    purchase.AmountCapturedCents,
			"discount_cents":           purchase.DiscountCents,
			"price_paid_cents":         purchase.PricePaidCents,
			"discount_rejected_reason": purchase.DiscountRejectedReason,
			"purchased_at":             purchase.PurchasedAt,
			"updated_at":               purchase.UpdatedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string, at time.Time) (bool, error) {
	res := db.WithContext(ctx).
		Model(&purchasedomain.Purchase{}).
		Where("id = ? AND status = ?", id, purchasedomain.StatusPending).
		Updates(map[string]any{
			"status":         purchasedomain.StatusFailed,
			"failure_reason": reason,
			"failed_at":      at,
			"updated_at":     at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) MarkRefunded(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error) {
	res := db.WithContext(ctx).
		Model(&purchasedomain.Purchase{}).
		Where("id = ? AND status = ?", id, purchasedomain.StatusCompleted).
		Updates(map[string]any{
			"status":      purchasedomain.StatusRefunded,
			"refunded_at": at,
			"updated_at":  at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) ListStalePending(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]purchasedomain.Purchase, error) {
	var purchases []purchasedomain.Purchase
	err := db.WithContext(ctx).
		Where("status = ? AND created_at < ?", purchasedomain.StatusPending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&purchases).Error
	return purchases, err
}

func (r *repo) HasCompletedPurchase(ctx context.Context, db *gorm.DB, userID, contentID snowflake.ID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Table("purchase_items AS pi").
		Joins("JOIN purchases p ON p.id = pi.purchase_id").
		Where("p.user_id = ? AND p.status = ? AND pi.content_id = ?", userID, purchasedomain.StatusCompleted, contentID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
