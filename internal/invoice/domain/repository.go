package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// NextNumber increments the named sequence and returns the new value.
	// The updated row stays locked until db's transaction ends.
	NextNumber(ctx context.Context, db *gorm.DB, name string, at time.Time) (int64, error)
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	InsertLineItems(ctx context.Context, db *gorm.DB, items []LineItem) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	FindBySource(ctx context.Context, db *gorm.DB, sourceType SourceType, sourceID snowflake.ID) (*Invoice, error)
	FindLineItems(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]LineItem, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from []InvoiceStatus, to InvoiceStatus, at time.Time) (bool, error)
	SaveDocument(ctx context.Context, db *gorm.DB, doc *Document) error
	FindDocument(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) (*Document, error)
}
