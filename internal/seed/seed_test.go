package seed

import (
	"testing"

	"github.com/glebarez/sqlite"
	catalogdomain "github.com/smallbiznis/audiostore/internal/catalog/domain"
	discountdomain "github.com/smallbiznis/audiostore/internal/discount/domain"
	invoicedomain "github.com/smallbiznis/audiostore/internal/invoice/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:seedtest?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, conn.AutoMigrate(
		&catalogdomain.Audiobook{},
		&catalogdomain.Chapter{},
		&discountdomain.DiscountCode{},
		&invoicedomain.Sequence{},
	))
	return conn
}

func TestSeedsAreIdempotent(t *testing.T) {
	db := openDB(t)

	for i := 0; i < 2; i++ {
		require.NoError(t, EnsureInvoiceSequence(db))
		require.NoError(t, EnsureDemoCatalog(db))
	}

	var seq invoicedomain.Sequence
	require.NoError(t, db.Where("name = ?", invoicedomain.SequenceInvoice).Take(&seq).Error)
	assert.Equal(t, int64(0), seq.LastValue)

	var books, codes int64
	require.NoError(t, db.Model(&catalogdomain.Audiobook{}).Count(&books).Error)
	require.NoError(t, db.Model(&discountdomain.DiscountCode{}).Count(&codes).Error)
	assert.Equal(t, int64(len(demoBooks)), books)
	assert.Equal(t, int64(1), codes)
}
