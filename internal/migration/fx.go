package migration

import (
	"strings"

	"github.com/smallbiznis/audiostore/internal/config"
	"github.com/smallbiznis/audiostore/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if strings.EqualFold(cfg.DBType, "postgres") {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else if err := AutoMigrate(conn); err != nil {
			return err
		}

		if err := seed.EnsureInvoiceSequence(conn); err != nil {
			return err
		}
		if cfg.SeedDemoCatalog {
			if err := seed.EnsureDemoCatalog(conn); err != nil {
				return err
			}
		}
		log.Named("migration").Info("schema ready", zap.String("dialect", cfg.DBType))
		return nil
	}),
)
