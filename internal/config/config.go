package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(LoadPayment),
	fx.Provide(NewCommerceConfigHolder),
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

	SnowflakeNode int64

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	InvoiceNumberTemplate string
	SeedDemoCatalog       bool

	// OperatorKeys are "name:role:sha256hex" entries for the operator API.
	OperatorKeys []string

	Documents DocumentConfig
	Sweep     SweepConfig
	RateLimit RateLimitConfig
}

// DocumentConfig selects where rendered invoice PDFs are written.
type DocumentConfig struct {
	Backend     string
	Dir         string
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string

	SellerName    string
	SellerAddress string
	SellerEmail   string
}

type SweepConfig struct {
	Enabled       bool
	Interval      time.Duration
	PendingTTL    time.Duration
	BatchSize     int
	LockTTL       time.Duration
	JobTimeout    time.Duration
	EnabledJobs   []string
	LockKeyPrefix string
}

// RateLimitConfig bounds checkout and discount validation calls per user.
// Rate is in requests per second.
type RateLimitConfig struct {
	Enabled   bool
	Rate      float64
	Burst     int
	KeyPrefix string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:           getenv("APP_SERVICE", "audiostore"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       getenv("ENVIRONMENT", "development"),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint:      getenv("OTLP_ENDPOINT", "localhost:4317"),
		SnowflakeNode:     getenvInt64("SNOWFLAKE_NODE", 1),
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "audiostore"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     int(getenvInt64("DATABASE_MAX_IDLE_CONN", 5)),
		DBMaxOpenConn:     int(getenvInt64("DATABASE_MAX_OPEN_CONN", 20)),
		DBConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 1800)),
		DBConnMaxIdleTime: int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 300)),
		RedisAddr:         strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword:     getenv("REDIS_PASSWORD", ""),
		RedisDB:           int(getenvInt64("REDIS_DB", 0)),

		InvoiceNumberTemplate: getenv("INVOICE_NUMBER_TEMPLATE", "INV-{YYYY}-{SEQ6}"),
		SeedDemoCatalog:       getenvBool("SEED_DEMO_CATALOG", false),
		OperatorKeys:          parseList(getenv("OPERATOR_API_KEYS", "")),

		Documents: DocumentConfig{
			Backend:     strings.ToLower(getenv("DOCUMENT_BACKEND", "local")),
			Dir:         getenv("DOCUMENT_DIR", "./var/invoices"),
			S3Bucket:    strings.TrimSpace(getenv("DOCUMENT_S3_BUCKET", "")),
			S3Region:    getenv("DOCUMENT_S3_REGION", "eu-central-1"),
			S3Endpoint:  strings.TrimSpace(getenv("DOCUMENT_S3_ENDPOINT", "")),
			S3AccessKey: strings.TrimSpace(getenv("DOCUMENT_S3_ACCESS_KEY", "")),
			S3SecretKey: strings.TrimSpace(getenv("DOCUMENT_S3_SECRET_KEY", "")),

			SellerName:    getenv("DOCUMENT_SELLER_NAME", "Audiostore"),
			SellerAddress: getenv("DOCUMENT_SELLER_ADDRESS", ""),
			SellerEmail:   getenv("DOCUMENT_SELLER_EMAIL", ""),
		},
		Sweep: SweepConfig{
			Enabled:       getenvBool("SWEEP_ENABLED", true),
			Interval:      getenvDuration("SWEEP_INTERVAL", 10*time.Minute),
			PendingTTL:    getenvDuration("SWEEP_PENDING_TTL", 24*time.Hour),
			BatchSize:     int(getenvInt64("SWEEP_BATCH_SIZE", 100)),
			LockTTL:       getenvDuration("SWEEP_LOCK_TTL", 5*time.Minute),
			JobTimeout:    getenvDuration("SWEEP_JOB_TIMEOUT", time.Minute),
			EnabledJobs:   parseList(getenv("SWEEP_JOBS", "")),
			LockKeyPrefix: getenv("SWEEP_LOCK_PREFIX", "audiostore:scheduler:"),
		},
		RateLimit: RateLimitConfig{
			Enabled:   getenvBool("RATE_LIMIT_ENABLED", true),
			Rate:      getenvFloat("RATE_LIMIT_RATE", 0.5),
			Burst:     int(getenvInt64("RATE_LIMIT_BURST", 10)),
			KeyPrefix: getenv("RATE_LIMIT_PREFIX", "audiostore:ratelimit:"),
		},
	}
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
