package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	billingprofiledomain "github.com/smallbiznis/audiostore/internal/billingprofile/domain"
	catalogdomain "github.com/smallbiznis/audiostore/internal/catalog/domain"
	discountdomain "github.com/smallbiznis/audiostore/internal/discount/domain"
	invoicedomain "github.com/smallbiznis/audiostore/internal/invoice/domain"
	purchasedomain "github.com/smallbiznis/audiostore/internal/purchase/domain"
	subscriptiondomain "github.com/smallbiznis/audiostore/internal/subscription/domain"
	"gorm.io/gorm"
)

const migrationsDir = "sql"

//go:embed sql/*.sql
var embeddedMigrations embed.FS

// RunMigrations applies the embedded Postgres migrations.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// migrator.Close would close the shared *sql.DB.

	return nil
}

// Models lists every table the engine owns, parents first.
func Models() []any {
	return []any{
		&catalogdomain.Audiobook{},
		&catalogdomain.Chapter{},
		&billingprofiledomain.Profile{},
		&subscriptiondomain.Subscription{},
		&subscriptiondomain.Charge{},
		&discountdomain.DiscountCode{},
		&purchasedomain.Purchase{},
		&purchasedomain.Item{},
		&discountdomain.Redemption{},
		&invoicedomain.Sequence{},
		&invoicedomain.Invoice{},
		&invoicedomain.LineItem{},
		&invoicedomain.Document{},
	}
}

// AutoMigrate builds the schema from the models for dialects without SQL
// migrations (SQLite, MySQL).
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
