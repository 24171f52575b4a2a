package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository is a thin generic store for rows that need no bespoke queries.
type Repository[T any] interface {
	WithTrx(tx *gorm.DB) Repository[T]
	FindByID(ctx context.Context, id any) (*T, error)
	FindOne(ctx context.Context, query *T) (*T, error)
	Find(ctx context.Context, query *T) ([]*T, error)
	FindByIDs(ctx context.Context, ids any) ([]*T, error)
	Create(ctx context.Context, resource *T) error
	Save(ctx context.Context, resource *T) error
	Count(ctx context.Context, query *T) (int64, error)
}
