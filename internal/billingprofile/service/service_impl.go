package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/audiostore/internal/billingprofile/domain"
	"github.com/smallbiznis/audiostore/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	profiles repository.Repository[domain.Profile]
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("billingprofile.service"),
		genID:    p.GenID,
		profiles: repository.ProvideStore[domain.Profile](p.DB),
	}
}

func (s *Service) GetProfile(ctx context.Context, userID snowflake.ID) (*domain.Profile, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}
	return s.profiles.FindOne(ctx, &domain.Profile{UserID: userID})
}

func (s *Service) UpsertProfile(ctx context.Context, req domain.UpsertProfileRequest) (*domain.Profile, error) {
	if req.UserID == 0 {
		return nil, domain.ErrInvalidUser
	}
	country := strings.ToUpper(strings.TrimSpace(req.Country))
	if country != "" && len(country) != 2 {
		return nil, domain.ErrInvalidCountry
	}

	profile := domain.Profile{
		ID:           s.genID.Generate(),
		UserID:       req.UserID,
		LegalName:    strings.TrimSpace(req.LegalName),
		Email:        strings.TrimSpace(req.Email),
		AddressLine1: strings.TrimSpace(req.AddressLine1),
		AddressLine2: strings.TrimSpace(req.AddressLine2),
		City:         strings.TrimSpace(req.City),
		PostalCode:   strings.TrimSpace(req.PostalCode),
		Region:       strings.TrimSpace(req.Region),
		Country:      country,
		TaxID:        strings.TrimSpace(req.TaxID),
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"legal_name", "email", "address_line1", "address_line2", "city",
			"postal_code", "region", "country", "tax_id", "updated_at",
		}),
	}).Create(&profile).Error
	if err != nil {
		return nil, err
	}

	s.log.Debug("billing profile saved", zap.String("user_id", req.UserID.String()))
	return s.GetProfile(ctx, req.UserID)
}
