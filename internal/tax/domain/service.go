package domain

import (
	"context"

	"github.com/shopspring/decimal"
	billingprofiledomain "github.com/smallbiznis/audiostore/internal/billingprofile/domain"
)

// RateProvider returns the tax rate, in percent, that applies to a buyer.
// A nil profile gets the default rate.
type RateProvider interface {
	RateFor(ctx context.Context, profile *billingprofiledomain.Profile) (decimal.Decimal, error)
}
