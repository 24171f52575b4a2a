package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/smallbiznis/audiostore/internal/invoice/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() invoicedomain.Repository {
	return &repo{}
}

func (r *repo) NextNumber(ctx context.Context, db *gorm.DB, name string, at time.Time) (int64, error) {
	db = db.WithContext(ctx)
	bumped, err := r.bump(db, name, at)
	if err != nil {
		return 0, err
	}
	if !bumped {
		seed := invoicedomain.Sequence{Name: name, LastValue: 0, UpdatedAt: at}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return 0, err
		}
		if bumped, err = r.bump(db, name, at); err != nil {
			return 0, err
		}
		if !bumped {
			return 0, fmt.Errorf("invoice sequence %q unavailable", name)
		}
	}

	var seq invoicedomain.Sequence
	if err := db.Where("name = ?", name).Take(&seq).Error; err != nil {
		return 0, err
	}
	return seq.LastValue, nil
}

func (r *repo) bump(db *gorm.DB, name string, at time.Time) (bool, error) {
	res := db.Exec(
		"UPDATE invoice_sequences SET last_value = last_value + 1, updated_at = ? WHERE name = ?",
		at, name,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, invoice *invoicedomain.Invoice) error {
	return db.WithContext(ctx).Create(invoice).Error
}

func (r *repo) InsertLineItems(ctx context.Context, db *gorm.DB, items []invoicedomain.LineItem) error {
	if len(items) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&items).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*invoicedomain.Invoice, error) {
	return r.take(db.WithContext(ctx).Where("id = ?", id))
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*invoicedomain.Invoice, error) {
	return r.take(db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id))
}

func (r *repo) FindBySource(ctx context.Context, db *gorm.DB, sourceType invoicedomain.SourceType, sourceID snowflake.ID) (*invoicedomain.Invoice, error) {
	return r.take(db.WithContext(ctx).Where("source_type = ? AND source_id = ?", sourceType, sourceID))
}

func (r *repo) take(query *gorm.DB) (*invoicedomain.Invoice, error) {
	var invoice invoicedomain.Invoice
	err := query.Take(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *repo) FindLineItems(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]invoicedomain.LineItem, error) {
	var items []invoicedomain.LineItem
	err := db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("position ASC").
		Find(&items).Error
	return items, err
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from []invoicedomain.InvoiceStatus, to invoicedomain.InvoiceStatus, at time.Time) (bool, error) {
	updates := map[string]any{
		"status":     to,
		"updated_at": at,
	}
	switch to {
	case invoicedomain.InvoiceStatusPaid:
		updates["paid_at"] = at
	case invoicedomain.InvoiceStatusCancelled:
		updates["cancelled_at"] = at
	}

	res := db.WithContext(ctx).
		Model(&invoicedomain.Invoice{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) SaveDocument(ctx context.Context, db *gorm.DB, doc *invoicedomain.Document) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "invoice_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"location", "rendered_at"}),
		}).
		Create(doc).Error
}

func (r *repo) FindDocument(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) (*invoicedomain.Document, error) {
	var doc invoicedomain.Document
	err := db.WithContext(ctx).Where("invoice_id = ?", invoiceID).Take(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
