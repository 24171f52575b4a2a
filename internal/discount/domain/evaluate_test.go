package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64 { return &v }

func activeCode(kind Kind, value int64) DiscountCode {
	return DiscountCode{
		ID:                 42,
		Code:               "SAVE20",
		Kind:               kind,
		Value:              value,
		AppliesToPurchases: true,
		IsActive:           true,
	}
}

func TestEvaluatePercentage(t *testing.T) {
	quote, err := Evaluate(activeCode(KindPercentage, 20), Input{CartTotalCents: 1000})
	require.NoError(t, err)
	assert.True(t, quote.Valid)
	assert.Equal(t, int64(200), quote.DiscountAmountCents)
	assert.Equal(t, int64(800), quote.FinalAmountCents)
	assert.Equal(t, KindPercentage, quote.Kind)
}

func TestEvaluatePercentageFloors(t *testing.T) {
	quote, err := Evaluate(activeCode(KindPercentage, 15), Input{CartTotalCents: 999})
	require.NoError(t, err)
	assert.Equal(t, int64(149), quote.DiscountAmountCents)
	assert.Equal(t, int64(850), quote.FinalAmountCents)
}

func TestEvaluateFixedAmountClampsToTotal(t *testing.T) {
	quote, err := Evaluate(activeCode(KindFixedAmount, 1500), Input{CartTotalCents: 1000})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), quote.DiscountAmountCents)
	assert.Equal(t, int64(0), quote.FinalAmountCents)

	quote, err = Evaluate(activeCode(KindFixedAmount, 250), Input{CartTotalCents: 1000})
	require.NoError(t, err)
	assert.Equal(t, int64(250), quote.DiscountAmountCents)
	assert.Equal(t, int64(750), quote.FinalAmountCents)
}

func TestEvaluateRejections(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name   string
		mutate func(*DiscountCode)
		input  Input
		want   error
		reason Reason
	}{
		{
			name:   "inactive",
			mutate: func(c *DiscountCode) { c.IsActive = false },
			input:  Input{CartTotalCents: 1000, Now: now},
			want:   ErrCodeInactive,
			reason: ReasonInactive,
		},
		{
			name:   "not yet valid",
			mutate: func(c *DiscountCode) { c.ValidFrom = &future },
			input:  Input{CartTotalCents: 1000, Now: now},
			want:   ErrCodeOutOfWindow,
			reason: ReasonOutOfWindow,
		},
		{
			name:   "expired",
			mutate: func(c *DiscountCode) { c.ValidUntil = &past },
			input:  Input{CartTotalCents: 1000, Now: now},
			want:   ErrCodeOutOfWindow,
			reason: ReasonOutOfWindow,
		},
		{
			name:   "below minimum",
			mutate: func(c *DiscountCode) { c.MinPurchaseCents = 2000 },
			input:  Input{CartTotalCents: 1000, Now: now},
			want:   ErrBelowMinimum,
			reason: ReasonBelowMinimum,
		},
		{
			name: "total exhausted",
			mutate: func(c *DiscountCode) {
				c.MaxUsesTotal = int64Ptr(3)
				c.UsedCount = 3
			},
			input:  Input{CartTotalCents: 1000, Now: now},
			want:   ErrExhaustedTotal,
			reason: ReasonExhaustedTotal,
		},
		{
			name:   "per user exhausted",
			mutate: func(c *DiscountCode) { c.MaxUsesPerUser = int64Ptr(1) },
			input:  Input{CartTotalCents: 1000, UserRedemptions: 1, Now: now},
			want:   ErrExhaustedPerUser,
			reason: ReasonExhaustedPerUser,
		},
		{
			name:   "purchase only code on subscription",
			mutate: func(c *DiscountCode) {},
			input:  Input{CartTotalCents: 1000, ForSubscription: true, Now: now},
			want:   ErrNotApplicable,
			reason: ReasonNotApplicable,
		},
		{
			name: "subscription only code on purchase",
			mutate: func(c *DiscountCode) {
				c.AppliesToPurchases = false
				c.AppliesToSubscriptions = true
			},
			input:  Input{CartTotalCents: 1000, Now: now},
			want:   ErrNotApplicable,
			reason: ReasonNotApplicable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code := activeCode(KindPercentage, 20)
			tt.mutate(&code)

			_, err := Evaluate(code, tt.input)
			require.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.reason, ReasonOf(err))
		})
	}
}

func TestEvaluateCheckOrder(t *testing.T) {
	code := activeCode(KindPercentage, 20)
	code.IsActive = false
	code.MinPurchaseCents = 5000
	code.MaxUsesTotal = int64Ptr(1)
	code.UsedCount = 1

	_, err := Evaluate(code, Input{CartTotalCents: 100})
	assert.ErrorIs(t, err, ErrCodeInactive)

	code.IsActive = true
	_, err = Evaluate(code, Input{CartTotalCents: 100})
	assert.ErrorIs(t, err, ErrBelowMinimum)
}

func TestEvaluateUnknownKind(t *testing.T) {
	_, err := Evaluate(activeCode(Kind("BOGUS"), 10), Input{CartTotalCents: 100})
	assert.ErrorIs(t, err, ErrInvalidKind)
	assert.Equal(t, Reason(""), ReasonOf(err))
}

func TestReasonOfWrapped(t *testing.T) {
	err := fmt.Errorf("capture: %w", ErrExhaustedTotal)
	assert.Equal(t, ReasonExhaustedTotal, ReasonOf(err))
	assert.True(t, IsValidationError(err))
	assert.False(t, IsValidationError(nil))
}
