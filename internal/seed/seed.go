package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/audiostore/internal/catalog/domain"
	discountdomain "github.com/smallbiznis/audiostore/internal/discount/domain"
	invoicedomain "github.com/smallbiznis/audiostore/internal/invoice/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EnsureInvoiceSequence creates the invoice counter row so the first issued
// invoice is number 1.
func EnsureInvoiceSequence(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	seq := invoicedomain.Sequence{
		Name:      invoicedomain.SequenceInvoice,
		LastValue: 0,
		UpdatedAt: time.Now().UTC(),
	}
	return db.WithContext(context.Background()).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&seq).Error
}

var demoBooks = []catalogdomain.Audiobook{
	{ID: 1001, Title: "The Time Machine", Author: "H. G. Wells", PriceCents: 999, Currency: "USD"},
	{ID: 1002, Title: "Pride and Prejudice", Author: "Jane Austen", PriceCents: 1299, Currency: "USD"},
	{ID: 1003, Title: "The Raven and Other Poems", Author: "Edgar Allan Poe", Currency: "USD", IsFree: true},
}

var demoChapters = []catalogdomain.Chapter{
	{ID: 2001, AudiobookID: 1001, Title: "Introduction", Position: 1, IsSample: true},
	{ID: 2002, AudiobookID: 1001, Title: "Chapter I", Position: 2},
	{ID: 2003, AudiobookID: 1002, Title: "Chapter 1", Position: 1, IsSample: true},
	{ID: 2004, AudiobookID: 1002, Title: "Chapter 2", Position: 2},
	{ID: 2005, AudiobookID: 1003, Title: "The Raven", Position: 1},
}

// EnsureDemoCatalog inserts a small fixed catalog and a SAVE20 code for local
// development. Existing rows are left untouched.
func EnsureDemoCatalog(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	now := time.Now().UTC()
	ctx := context.Background()

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		books := make([]catalogdomain.Audiobook, len(demoBooks))
		for i, book := range demoBooks {
			book.CreatedAt, book.UpdatedAt = now, now
			books[i] = book
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&books).Error; err != nil {
			return err
		}

		chapters := make([]catalogdomain.Chapter, len(demoChapters))
		for i, chapter := range demoChapters {
			chapter.CreatedAt = now
			chapters[i] = chapter
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&chapters).Error; err != nil {
			return err
		}

		code := discountdomain.DiscountCode{
			ID:                 snowflake.ID(3001),
			Code:               "SAVE20",
			Kind:               discountdomain.KindPercentage,
			Value:              20,
			AppliesToPurchases: true,
			IsActive:           true,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&code).Error
	})
}
