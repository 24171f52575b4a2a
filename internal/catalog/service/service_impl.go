package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/audiostore/internal/catalog/domain"
	"github.com/smallbiznis/audiostore/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

type Service struct {
	log        *zap.Logger
	audiobooks repository.Repository[domain.Audiobook]
	chapters   repository.Repository[domain.Chapter]
}

func NewService(p Params) domain.Service {
	return &Service{
		log:        p.Log.Named("catalog.service"),
		audiobooks: repository.ProvideStore[domain.Audiobook](p.DB),
		chapters:   repository.ProvideStore[domain.Chapter](p.DB),
	}
}

func (s *Service) GetAudiobook(ctx context.Context, id snowflake.ID) (*domain.Audiobook, error) {
	book, err := s.audiobooks.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, domain.ErrAudiobookNotFound
	}
	return book, nil
}

func (s *Service) GetChapter(ctx context.Context, id snowflake.ID) (*domain.Chapter, error) {
	chapter, err := s.chapters.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if chapter == nil {
		return nil, domain.ErrChapterNotFound
	}
	return chapter, nil
}

// BuildCart prices the requested audiobooks from the catalog. Repeated ids collapse
// into one line and the requested order is kept.
func (s *Service) BuildCart(ctx context.Context, contentIDs []snowflake.ID) (domain.CartSnapshot, error) {
	ordered := make([]snowflake.ID, 0, len(contentIDs))
	seen := make(map[snowflake.ID]struct{}, len(contentIDs))
	for _, id := range contentIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ordered = append(ordered, id)
	}
	if len(ordered) == 0 {
		return domain.CartSnapshot{}, domain.ErrEmptyCart
	}

	books, err := s.audiobooks.FindByIDs(ctx, ordered)
	if err != nil {
		return domain.CartSnapshot{}, err
	}
	byID := make(map[snowflake.ID]*domain.Audiobook, len(books))
	for _, book := range books {
		byID[book.ID] = book
	}

	cart := domain.CartSnapshot{Items: make([]domain.CartItem, 0, len(ordered))}
	for _, id := range ordered {
		book, ok := byID[id]
		if !ok {
			return domain.CartSnapshot{}, fmt.Errorf("%w: %s", domain.ErrAudiobookNotFound, id)
		}
		if book.IsFree {
			return domain.CartSnapshot{}, fmt.Errorf("%w: %s", domain.ErrFreeContent, id)
		}
		cart.Items = append(cart.Items, domain.CartItem{
			ContentID:      book.ID,
			Title:          book.Title,
			UnitPriceCents: book.PriceCents,
			Currency:       book.Currency,
		})
	}
	if err := cart.Validate(); err != nil {
		return domain.CartSnapshot{}, err
	}
	return cart, nil
}
