package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// CommerceConfig is the hot-reloadable commercial policy: tax rates per country.
type CommerceConfig struct {
	Tax TaxConfig `mapstructure:"tax"`
}

type TaxConfig struct {
	DefaultRate string            `mapstructure:"default_rate"`
	Rates       map[string]string `mapstructure:"rates"`
}

func DefaultCommerceConfig() CommerceConfig {
	return CommerceConfig{
		Tax: TaxConfig{
			DefaultRate: "0",
			Rates:       map[string]string{},
		},
	}
}

type CommerceConfigHolder struct {
	current atomic.Value // holds CommerceConfig
}

func NewCommerceConfigHolder() (*CommerceConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("commerce")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/audiostore/config")
	v.AddConfigPath("/etc/audiostore")
	v.AddConfigPath(".")

	v.SetEnvPrefix("AUDIOSTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileFound = false
		defaults := DefaultCommerceConfig()
		v.SetDefault("commerce.tax.default_rate", defaults.Tax.DefaultRate)
		v.SetDefault("commerce.tax.rates", defaults.Tax.Rates)
	}

	var cfg CommerceConfig
	if err := v.UnmarshalKey("commerce", &cfg); err != nil {
		return nil, err
	}
	cfg = normalizeCommerceConfig(cfg)
	if err := validateCommerceConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticCommerceConfigHolder(cfg)
	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated CommerceConfig
		if err := v.UnmarshalKey("commerce", &updated); err != nil {
			log.Printf("[commerce-config] reload failed: %v", err)
			return
		}
		updated = normalizeCommerceConfig(updated)
		if err := validateCommerceConfig(updated); err != nil {
			log.Printf("[commerce-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[commerce-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticCommerceConfigHolder wraps a fixed configuration.
func NewStaticCommerceConfigHolder(cfg CommerceConfig) *CommerceConfigHolder {
	holder := &CommerceConfigHolder{}
	holder.current.Store(normalizeCommerceConfig(cfg))
	return holder
}

func (h *CommerceConfigHolder) Get() CommerceConfig {
	return h.current.Load().(CommerceConfig)
}

// viper lower-cases map keys; country codes are stored upper-case.
func normalizeCommerceConfig(cfg CommerceConfig) CommerceConfig {
	rates := make(map[string]string, len(cfg.Tax.Rates))
	for country, rate := range cfg.Tax.Rates {
		rates[strings.ToUpper(strings.TrimSpace(country))] = strings.TrimSpace(rate)
	}
	cfg.Tax.Rates = rates
	cfg.Tax.DefaultRate = strings.TrimSpace(cfg.Tax.DefaultRate)
	if cfg.Tax.DefaultRate == "" {
		cfg.Tax.DefaultRate = "0"
	}
	return cfg
}

func validateCommerceConfig(cfg CommerceConfig) error {
	if err := validateRate(cfg.Tax.DefaultRate); err != nil {
		return fmt.Errorf("commerce.tax.default_rate: %w", err)
	}
	for country, rate := range cfg.Tax.Rates {
		if len(country) != 2 {
			return fmt.Errorf("commerce.tax.rates: invalid country %q", country)
		}
		if err := validateRate(rate); err != nil {
			return fmt.Errorf("commerce.tax.rates.%s: %w", country, err)
		}
	}
	return nil
}

func validateRate(raw string) error {
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return err
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100)) {
		return errors.New("rate must be between 0 and 100")
	}
	return nil
}
