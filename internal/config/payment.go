package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// PaymentConfig carries processor credentials.
type PaymentConfig struct {
	DefaultProcessor string        `env:"PAYMENT_DEFAULT_PROCESSOR" envDefault:"stripe"`
	CallTimeout      time.Duration `env:"PAYMENT_CALL_TIMEOUT" envDefault:"20s"`

	StripeSecretKey string `env:"STRIPE_SECRET_KEY"`
	StripeBaseURL   string `env:"STRIPE_BASE_URL"`

	PayPalClientID     string `env:"PAYPAL_CLIENT_ID"`
	PayPalClientSecret string `env:"PAYPAL_CLIENT_SECRET"`
	PayPalBaseURL      string `env:"PAYPAL_BASE_URL" envDefault:"https://api-m.sandbox.paypal.com"`
}

func LoadPayment() (PaymentConfig, error) {
	return env.ParseAs[PaymentConfig]()
}

func (c PaymentConfig) StripeEnabled() bool {
	return c.StripeSecretKey != ""
}

func (c PaymentConfig) PayPalEnabled() bool {
	return c.PayPalClientID != "" && c.PayPalClientSecret != ""
}
