package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/audiostore/internal/clock"
	subscriptiondomain "github.com/smallbiznis/audiostore/internal/subscription/domain"
	"github.com/smallbiznis/audiostore/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID *snowflake.Node
	clock clock.Clock
	repo  subscriptiondomain.Repository
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  subscriptiondomain.Repository
}

func NewService(p ServiceParam) subscriptiondomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("subscription.service"),

		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req subscriptiondomain.CreateSubscriptionRequest) (*subscriptiondomain.Subscription, error) {
	if req.UserID == 0 {
		return nil, subscriptiondomain.ErrInvalidUser
	}
	planID := strings.TrimSpace(req.PlanID)
	planName := strings.TrimSpace(req.PlanName)
	if planID == "" || planName == "" {
		return nil, subscriptiondomain.ErrInvalidPlan
	}
	if req.CurrentPeriodStart.IsZero() || !req.CurrentPeriodEnd.After(req.CurrentPeriodStart) {
		return nil, subscriptiondomain.ErrInvalidPeriod
	}

	now := s.clock.Now()
	subscription := &subscriptiondomain.Subscription{
		ID:                 s.genID.Generate(),
		UserID:             req.UserID,
		PlanID:             planID,
		PlanName:           planName,
		Status:             subscriptiondomain.SubscriptionStatusActive,
		CurrentPeriodStart: req.CurrentPeriodStart.UTC(),
		CurrentPeriodEnd:   req.CurrentPeriodEnd.UTC(),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repo.Insert(ctx, s.db, subscription); err != nil {
		return nil, err
	}
	return subscription, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	subscription, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if subscription == nil {
		return nil, subscriptiondomain.ErrSubscriptionNotFound
	}
	return subscription, nil
}

func (s *Service) GetActive(ctx context.Context, userID snowflake.ID, at time.Time) (*subscriptiondomain.Subscription, error) {
	if userID == 0 {
		return nil, subscriptiondomain.ErrInvalidUser
	}
	return s.repo.FindActiveByUserIDAt(ctx, s.db, userID, at.UTC())
}

func (s *Service) UpdateStatus(ctx context.Context, id snowflake.ID, status subscriptiondomain.SubscriptionStatus) (*subscriptiondomain.Subscription, error) {
	if !status.Valid() {
		return nil, subscriptiondomain.ErrInvalidStatus
	}

	var updated *subscriptiondomain.Subscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return subscriptiondomain.ErrSubscriptionNotFound
		}
		if current.Status == status {
			updated = current
			return nil
		}
		if !canTransition(current.Status, status) {
			return subscriptiondomain.ErrInvalidTransition
		}
		if err := s.repo.UpdateStatus(ctx, tx, id, status, s.clock.Now()); err != nil {
			return err
		}
		updated, err = s.repo.FindByID(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Terminal states never reactivate.
func canTransition(from, to subscriptiondomain.SubscriptionStatus) bool {
	switch from {
	case subscriptiondomain.SubscriptionStatusActive:
		return to == subscriptiondomain.SubscriptionStatusPastDue ||
			to == subscriptiondomain.SubscriptionStatusCanceled ||
			to == subscriptiondomain.SubscriptionStatusExpired
	case subscriptiondomain.SubscriptionStatusPastDue:
		return to == subscriptiondomain.SubscriptionStatusActive ||
			to == subscriptiondomain.SubscriptionStatusCanceled ||
			to == subscriptiondomain.SubscriptionStatusExpired
	}
	return false
}

func (s *Service) RecordCharge(ctx context.Context, req subscriptiondomain.RecordChargeRequest) (*subscriptiondomain.Charge, error) {
	externalID := strings.TrimSpace(req.ExternalChargeID)
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if req.SubscriptionID == 0 || externalID == "" || currency == "" || req.AmountCents < 0 {
		return nil, subscriptiondomain.ErrInvalidCharge
	}
	if !req.PeriodEnd.After(req.PeriodStart) {
		return nil, subscriptiondomain.ErrInvalidPeriod
	}

	existing, err := s.repo.FindChargeByExternalID(ctx, s.db, externalID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.matchExisting(existing, req)
	}

	settledAt := s.clock.Now()
	if req.SettledAt != nil {
		settledAt = req.SettledAt.UTC()
	}

	var charge *subscriptiondomain.Charge
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		subscription, err := s.repo.FindByIDForUpdate(ctx, tx, req.SubscriptionID)
		if err != nil {
			return err
		}
		if subscription == nil {
			return subscriptiondomain.ErrSubscriptionNotFound
		}

		charge = &subscriptiondomain.Charge{
			ID:               s.genID.Generate(),
			SubscriptionID:   subscription.ID,
			UserID:           subscription.UserID,
			ExternalChargeID: externalID,
			PlanName:         subscription.PlanName,
			AmountCents:      req.AmountCents,
			Currency:         currency,
			PeriodStart:      req.PeriodStart.UTC(),
			PeriodEnd:        req.PeriodEnd.UTC(),
			SettledAt:        settledAt,
			CreatedAt:        s.clock.Now(),
		}
		if err := s.repo.InsertCharge(ctx, tx, charge); err != nil {
			return err
		}
		return s.advancePeriod(ctx, tx, subscription, charge)
	})
	if err != nil {
		if !db.IsDuplicateKeyErr(err) {
			return nil, err
		}
		// Lost a race with a redelivery of the same charge.
		existing, findErr := s.repo.FindChargeByExternalID(ctx, s.db, externalID)
		if findErr != nil {
			return nil, findErr
		}
		if existing == nil {
			return nil, err
		}
		return s.matchExisting(existing, req)
	}

	s.log.Info("subscription charge recorded",
		zap.String("subscription_id", charge.SubscriptionID.String()),
		zap.String("charge_id", charge.ID.String()),
		zap.Int64("amount_cents", charge.AmountCents),
	)
	return charge, nil
}

// advancePeriod moves the subscription onto a newer charged period and revives
// it from PAST_DUE once the current period is paid. Canceled and expired
// subscriptions keep their state.
func (s *Service) advancePeriod(ctx context.Context, tx *gorm.DB, subscription *subscriptiondomain.Subscription, charge *subscriptiondomain.Charge) error {
	switch subscription.Status {
	case subscriptiondomain.SubscriptionStatusActive, subscriptiondomain.SubscriptionStatusPastDue:
	default:
		return nil
	}
	if charge.PeriodEnd.Before(subscription.CurrentPeriodEnd) {
		return nil
	}

	start, end := subscription.CurrentPeriodStart, subscription.CurrentPeriodEnd
	if charge.PeriodEnd.After(end) {
		start, end = charge.PeriodStart, charge.PeriodEnd
	} else if subscription.Status == subscriptiondomain.SubscriptionStatusActive {
		return nil
	}

	if err := s.repo.UpdatePeriod(ctx, tx, subscription.ID, start, end, subscriptiondomain.SubscriptionStatusActive, s.clock.Now()); err != nil {
		return err
	}
	s.log.Info("subscription period advanced",
		zap.String("subscription_id", subscription.ID.String()),
		zap.String("from_status", string(subscription.Status)),
		zap.Time("period_end", end),
	)
	return nil
}

func (s *Service) matchExisting(existing *subscriptiondomain.Charge, req subscriptiondomain.RecordChargeRequest) (*subscriptiondomain.Charge, error) {
	if existing.SubscriptionID != req.SubscriptionID || existing.AmountCents != req.AmountCents {
		return nil, fmt.Errorf("%w: external charge %s", subscriptiondomain.ErrChargeMismatch, existing.ExternalChargeID)
	}
	return existing, nil
}

func (s *Service) GetCharge(ctx context.Context, id snowflake.ID) (*subscriptiondomain.Charge, error) {
	charge, err := s.repo.FindChargeByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if charge == nil {
		return nil, subscriptiondomain.ErrChargeNotFound
	}
	return charge, nil
}
