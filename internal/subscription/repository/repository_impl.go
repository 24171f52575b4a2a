package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/smallbiznis/audiostore/internal/subscription/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() subscriptiondomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, subscription *subscriptiondomain.Subscription) error {
	return db.WithContext(ctx).Create(subscription).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	var subscription subscriptiondomain.Subscription
	err := db.WithContext(ctx).Where("id = ?", id).Take(&subscription).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &subscription, nil
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	var subscription subscriptiondomain.Subscription
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&subscription).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &subscription, nil
}

func (r *repo) FindActiveByUserIDAt(ctx context.Context, db *gorm.DB, userID snowflake.ID, at time.Time) (*subscriptiondomain.Subscription, error) {
	var subscription subscriptiondomain.Subscription
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("status = ?", subscriptiondomain.SubscriptionStatusActive).
		Where("current_period_start <= ? AND current_period_end >= ?", at, at).
		Order("current_period_end DESC").
		Take(&subscription).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &subscription, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status subscriptiondomain.SubscriptionStatus, at time.Time) error {
	updates := map[string]any{
		"status":     status,
		"updated_at": at,
	}
	if status == subscriptiondomain.SubscriptionStatusCanceled {
		updates["canceled_at"] = at
	}
	return db.WithContext(ctx).
		Model(&subscriptiondomain.Subscription{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repo) UpdatePeriod(ctx context.Context, db *gorm.DB, id snowflake.ID, start, end time.Time, status subscriptiondomain.SubscriptionStatus, at time.Time) error {
	return db.WithContext(ctx).
		Model(&subscriptiondomain.Subscription{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"current_period_start": start,
			"current_period_end":   end,
			"status":               status,
			"updated_at":           at,
		}).Error
}

func (r *repo) InsertCharge(ctx context.Context, db *gorm.DB, charge *subscriptiondomain.Charge) error {
	return db.WithContext(ctx).Create(charge).Error
}

func (r *repo) FindChargeByExternalID(ctx context.Context, db *gorm.DB, externalChargeID string) (*subscriptiondomain.Charge, error) {
	var charge subscriptiondomain.Charge
	err := db.WithContext(ctx).Where("external_charge_id = ?", externalChargeID).Take(&charge).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &charge, nil
}

func (r *repo) FindChargeByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*subscriptiondomain.Charge, error) {
	var charge subscriptiondomain.Charge
	err := db.WithContext(ctx).Where("id = ?", id).Take(&charge).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &charge, nil
}
