package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/audiostore/internal/catalog/domain"
	"github.com/smallbiznis/audiostore/internal/clock"
	entitlementdomain "github.com/smallbiznis/audiostore/internal/entitlement/domain"
	purchasedomain "github.com/smallbiznis/audiostore/internal/purchase/domain"
	subscriptiondomain "github.com/smallbiznis/audiostore/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB              *gorm.DB
	Log             *zap.Logger
	Clock           clock.Clock
	Catalog         catalogdomain.Service
	PurchaseRepo    purchasedomain.Repository
	Subscriptionsvc subscriptiondomain.Service
}

type Service struct {
	db              *gorm.DB
	log             *zap.Logger
	clock           clock.Clock
	catalog         catalogdomain.Service
	purchaseRepo    purchasedomain.Repository
	subscriptionsvc subscriptiondomain.Service
}

func NewService(p Params) entitlementdomain.Service {
	return &Service{
		db:              p.DB,
		log:             p.Log.Named("entitlement.service"),
		clock:           p.Clock,
		catalog:         p.Catalog,
		purchaseRepo:    p.PurchaseRepo,
		subscriptionsvc: p.Subscriptionsvc,
	}
}

func (s *Service) HasAccess(ctx context.Context, userID snowflake.ID, ref entitlementdomain.ContentRef) (bool, error) {
	grant, err := s.Resolve(ctx, userID, ref)
	if err != nil {
		return false, err
	}
	return grant.Allowed, nil
}

func (s *Service) Resolve(ctx context.Context, userID snowflake.ID, ref entitlementdomain.ContentRef) (entitlementdomain.Grant, error) {
	book, err := s.catalog.GetAudiobook(ctx, ref.AudiobookID)
	if err != nil {
		return entitlementdomain.Grant{}, contentErr(err)
	}
	if book.IsFree {
		return allow(entitlementdomain.SourceFree), nil
	}

	if ref.ChapterID != nil {
		chapter, err := s.catalog.GetChapter(ctx, *ref.ChapterID)
		if err != nil {
			return entitlementdomain.Grant{}, contentErr(err)
		}
		if chapter.AudiobookID != book.ID {
			return entitlementdomain.Grant{}, fmt.Errorf("%w: chapter %s is not part of audiobook %s",
				entitlementdomain.ErrContentNotFound, chapter.ID, book.ID)
		}
		if chapter.IsSample {
			return allow(entitlementdomain.SourceSample), nil
		}
	}

	if userID == 0 {
		return entitlementdomain.Grant{}, nil
	}

	purchased, err := s.purchaseRepo.HasCompletedPurchase(ctx, s.db, userID, book.ID)
	if err != nil {
		return entitlementdomain.Grant{}, err
	}
	if purchased {
		return allow(entitlementdomain.SourcePurchase), nil
	}

	subscription, err := s.subscriptionsvc.GetActive(ctx, userID, s.clock.Now())
	if err != nil {
		return entitlementdomain.Grant{}, err
	}
	if subscription != nil {
		return allow(entitlementdomain.SourceSubscription), nil
	}

	return entitlementdomain.Grant{}, nil
}

func allow(source entitlementdomain.Source) entitlementdomain.Grant {
	return entitlementdomain.Grant{Allowed: true, Source: source}
}

func contentErr(err error) error {
	if errors.Is(err, catalogdomain.ErrAudiobookNotFound) || errors.Is(err, catalogdomain.ErrChapterNotFound) {
		return fmt.Errorf("%w: %v", entitlementdomain.ErrContentNotFound, err)
	}
	return err
}
