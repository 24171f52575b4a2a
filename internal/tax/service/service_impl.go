package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	billingprofiledomain "github.com/smallbiznis/audiostore/internal/billingprofile/domain"
	"github.com/smallbiznis/audiostore/internal/config"
	taxdomain "github.com/smallbiznis/audiostore/internal/tax/domain"
	"go.uber.org/fx"
)

var hundred = decimal.NewFromInt(100)

type ResolverParam struct {
	fx.In

	Commerce *config.CommerceConfigHolder
}

type resolver struct {
	commerce *config.CommerceConfigHolder
}

// NewResolver reads rates from the live commerce config, so reloads apply to
// the next invoice.
func NewResolver(p ResolverParam) taxdomain.RateProvider {
	return &resolver{commerce: p.Commerce}
}

func (r *resolver) RateFor(ctx context.Context, profile *billingprofiledomain.Profile) (decimal.Decimal, error) {
	cfg := r.commerce.Get().Tax

	raw := cfg.DefaultRate
	if profile != nil {
		country := strings.ToUpper(strings.TrimSpace(profile.Country))
		if rate, ok := cfg.Rates[country]; ok && country != "" {
			raw = rate
		}
	}
	return ParseRate(raw)
}

// ParseRate accepts a percentage between 0 and 100; empty means 0.
func ParseRate(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", taxdomain.ErrInvalidRate, raw)
	}
	if rate.IsNegative() || rate.GreaterThan(hundred) {
		return decimal.Zero, fmt.Errorf("%w: %s out of range", taxdomain.ErrInvalidRate, rate)
	}
	return rate, nil
}

// ComputeTax calculates tax added on top of subtotal, rounding half away from
// zero. Rounding happens only here to keep stored values integer-safe.
func ComputeTax(subtotal int64, rate decimal.Decimal) int64 {
	if subtotal <= 0 || !rate.IsPositive() {
		return 0
	}
	return decimal.NewFromInt(subtotal).Mul(rate).Div(hundred).Round(0).IntPart()
}
