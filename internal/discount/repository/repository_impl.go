package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	discountdomain "github.com/smallbiznis/audiostore/internal/discount/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() discountdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, code *discountdomain.DiscountCode) error {
	return db.WithContext(ctx).Create(code).Error
}

func (r *repo) FindByCode(ctx context.Context, db *gorm.DB, code string) (*discountdomain.DiscountCode, error) {
	return r.take(db.WithContext(ctx).Where("code = ?", code))
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*discountdomain.DiscountCode, error) {
	return r.take(db.WithContext(ctx).Where("id = ?", id))
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*discountdomain.DiscountCode, error) {
	return r.take(db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id))
}

func (r *repo) take(query *gorm.DB) (*discountdomain.DiscountCode, error) {
	var code discountdomain.DiscountCode
	err := query.Take(&code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &code, nil
}

func (r *repo) SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool, at time.Time) error {
	return db.WithContext(ctx).
		Model(&discountdomain.DiscountCode{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_active": active, "updated_at": at}).Error
}

func (r *repo) CountRedemptions(ctx context.Context, db *gorm.DB, codeID, userID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&discountdomain.Redemption{}).
		Where("discount_code_id = ? AND user_id = ?", codeID, userID).
		Count(&count).Error
	return count, err
}

func (r *repo) InsertRedemption(ctx context.Context, db *gorm.DB, redemption *discountdomain.Redemption) error {
	return db.WithContext(ctx).Create(redemption).Error
}

func (r *repo) IncrementUsage(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE discount_codes
		SET used_count = used_count + 1, updated_at = ?
		WHERE id = ? AND (max_uses_total IS NULL OR used_count < max_uses_total)`,
		at, id,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
