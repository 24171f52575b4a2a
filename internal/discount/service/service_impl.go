package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/audiostore/internal/clock"
	discountdomain "github.com/smallbiznis/audiostore/internal/discount/domain"
	"github.com/smallbiznis/audiostore/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  discountdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  discountdomain.Repository
}

func NewService(p Params) discountdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("discount.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Validate(ctx context.Context, req discountdomain.ValidateRequest) (*discountdomain.Quote, error) {
	if req.CartTotalCents < 0 {
		return nil, discountdomain.ErrInvalidCartTotal
	}
	code := discountdomain.NormalizeCode(req.Code)
	if code == "" {
		return nil, discountdomain.ErrCodeNotFound
	}

	item, err := s.repo.FindByCode(ctx, s.db, code)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, discountdomain.ErrCodeNotFound
	}

	var redemptions int64
	if item.MaxUsesPerUser != nil && req.UserID != 0 {
		redemptions, err = s.repo.CountRedemptions(ctx, s.db, item.ID, req.UserID)
		if err != nil {
			return nil, err
		}
	}

	quote, err := discountdomain.Evaluate(*item, discountdomain.Input{
		CartTotalCents:  req.CartTotalCents,
		UserRedemptions: redemptions,
		ForSubscription: req.ForSubscription,
		Now:             s.clock.Now(),
	})
	if err != nil {
		s.log.Debug("discount rejected",
			zap.String("code", code),
			zap.String("reason", string(discountdomain.ReasonOf(err))),
		)
		return nil, err
	}
	return &quote, nil
}

func (s *Service) CreateCode(ctx context.Context, req discountdomain.CreateCodeRequest) (*discountdomain.DiscountCode, error) {
	code := discountdomain.NormalizeCode(req.Code)
	if code == "" {
		return nil, discountdomain.ErrInvalidCode
	}
	if !req.Kind.Valid() {
		return nil, discountdomain.ErrInvalidKind
	}
	if req.Value <= 0 || (req.Kind == discountdomain.KindPercentage && req.Value > 100) {
		return nil, discountdomain.ErrInvalidValue
	}
	if req.MinPurchaseCents < 0 {
		return nil, discountdomain.ErrInvalidLimits
	}
	if req.MaxUsesTotal != nil && *req.MaxUsesTotal < 1 {
		return nil, discountdomain.ErrInvalidLimits
	}
	if req.MaxUsesPerUser != nil && *req.MaxUsesPerUser < 1 {
		return nil, discountdomain.ErrInvalidLimits
	}
	if req.ValidFrom != nil && req.ValidUntil != nil && !req.ValidFrom.Before(*req.ValidUntil) {
		return nil, discountdomain.ErrInvalidWindow
	}

	now := s.clock.Now()
	item := &discountdomain.DiscountCode{
		ID:                     s.genID.Generate(),
		Code:                   code,
		Kind:                   req.Kind,
		Value:                  req.Value,
		MinPurchaseCents:       req.MinPurchaseCents,
		MaxUsesTotal:           req.MaxUsesTotal,
		MaxUsesPerUser:         req.MaxUsesPerUser,
		ValidFrom:              utcPtr(req.ValidFrom),
		ValidUntil:             utcPtr(req.ValidUntil),
		AppliesToPurchases:     req.AppliesToPurchases,
		AppliesToSubscriptions: req.AppliesToSubscriptions,
		IsActive:               !req.Inactive,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if err := s.repo.Insert(ctx, s.db, item); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, discountdomain.ErrCodeExists
		}
		return nil, err
	}

	s.log.Info("discount code created",
		zap.String("code", item.Code),
		zap.String("kind", string(item.Kind)),
		zap.Int64("value", item.Value),
	)
	return item, nil
}

func (s *Service) GetByCode(ctx context.Context, code string) (*discountdomain.DiscountCode, error) {
	item, err := s.repo.FindByCode(ctx, s.db, discountdomain.NormalizeCode(code))
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, discountdomain.ErrCodeNotFound
	}
	return item, nil
}

func (s *Service) SetActive(ctx context.Context, code string, active bool) (*discountdomain.DiscountCode, error) {
	item, err := s.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetActive(ctx, s.db, item.ID, active, s.clock.Now()); err != nil {
		return nil, fmt.Errorf("set discount %s active=%t: %w", item.Code, active, err)
	}
	return s.GetByCode(ctx, code)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
