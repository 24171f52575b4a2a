package db

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/smallbiznis/audiostore/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var ErrUnsupportedDialect = errors.New("unsupported_database_type")

// Dialect builds the gorm dialector for DATABASE_TYPE. Every dialect stores
// timestamps in UTC.
func Dialect(cfg config.Config) (gorm.Dialector, error) {
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}
	switch normalizeType(cfg.DBType) {
	case "mysql":
		return mysql.Open(dsn), nil
	case "postgres":
		return postgres.Open(dsn), nil
	default:
		return sqlite.Open(dsn), nil
	}
}

// DSN renders the connection string for the configured dialect.
func DSN(cfg config.Config) (string, error) {
	switch normalizeType(cfg.DBType) {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName), nil
	case "postgres":
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(cfg.DBUser, cfg.DBPassword),
			Host:   cfg.DBHost + ":" + cfg.DBPort,
			Path:   "/" + cfg.DBName,
		}
		q := url.Values{}
		q.Set("sslmode", firstNonEmpty(cfg.DBSSLMode, "disable"))
		q.Set("TimeZone", "UTC")
		u.RawQuery = q.Encode()
		return u.String(), nil
	case "sqlite":
		return firstNonEmpty(cfg.DBName, "audiostore.db"), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedDialect, cfg.DBType)
	}
}

func normalizeType(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
