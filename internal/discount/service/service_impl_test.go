package service

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/audiostore/internal/clock"
	discountdomain "github.com/smallbiznis/audiostore/internal/discount/domain"
	"github.com/smallbiznis/audiostore/internal/discount/repository"
	"github.com/smallbiznis/audiostore/internal/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (discountdomain.Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()
	conn := storetest.Open(t)
	clk := clock.NewFakeClock(time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC))
	svc := NewService(Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: storetest.Node(t),
		Clock: clk,
		Repo:  repository.Provide(),
	})
	return svc, conn, clk
}

func int64Ptr(v int64) *int64 { return &v }

func TestValidateSave20(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateCode(ctx, discountdomain.CreateCodeRequest{
		Code:               "save20",
		Kind:               discountdomain.KindPercentage,
		Value:              20,
		AppliesToPurchases: true,
	})
	require.NoError(t, err)

	quote, err := svc.Validate(ctx, discountdomain.ValidateRequest{Code: " Save20 ", CartTotalCents: 1000, UserID: 7})
	require.NoError(t, err)
	assert.True(t, quote.Valid)
	assert.Equal(t, "SAVE20", quote.Code)
	assert.Equal(t, int64(200), quote.DiscountAmountCents)
	assert.Equal(t, int64(800), quote.FinalAmountCents)
}

func TestValidateUnknownCode(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Validate(context.Background(), discountdomain.ValidateRequest{Code: "NOPE", CartTotalCents: 1000})
	require.ErrorIs(t, err, discountdomain.ErrCodeNotFound)
	assert.Equal(t, discountdomain.ReasonNotFound, discountdomain.ReasonOf(err))
}

func TestValidateExhaustedPerUser(t *testing.T) {
	svc, conn, clk := newTestService(t)
	ctx := context.Background()

	code, err := svc.CreateCode(ctx, discountdomain.CreateCodeRequest{
		Code:               "ONCE",
		Kind:               discountdomain.KindFixedAmount,
		Value:              300,
		MaxUsesPerUser:     int64Ptr(1),
		AppliesToPurchases: true,
	})
	require.NoError(t, err)

	require.NoError(t, conn.Create(&discountdomain.Redemption{
		ID:                  1,
		DiscountCodeID:      code.ID,
		UserID:              7,
		PurchaseID:          99,
		DiscountAmountCents: 300,
		RedeemedAt:          clk.Now(),
	}).Error)

	_, err = svc.Validate(ctx, discountdomain.ValidateRequest{Code: "ONCE", CartTotalCents: 1000, UserID: 7})
	require.ErrorIs(t, err, discountdomain.ErrExhaustedPerUser)

	quote, err := svc.Validate(ctx, discountdomain.ValidateRequest{Code: "ONCE", CartTotalCents: 1000, UserID: 8})
	require.NoError(t, err)
	assert.Equal(t, int64(700), quote.FinalAmountCents)
}

func TestValidateDoesNotConsumeUses(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateCode(ctx, discountdomain.CreateCodeRequest{
		Code:               "LIMITED",
		Kind:               discountdomain.KindPercentage,
		Value:              10,
		MaxUsesTotal:       int64Ptr(1),
		AppliesToPurchases: true,
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := svc.Validate(ctx, discountdomain.ValidateRequest{Code: "LIMITED", CartTotalCents: 500, UserID: 1})
		require.NoError(t, err)
	}

	code, err := svc.GetByCode(ctx, "limited")
	require.NoError(t, err)
	assert.Equal(t, int64(0), code.UsedCount)
}

func TestValidateWindowUsesClock(t *testing.T) {
	svc, _, clk := newTestService(t)
	ctx := context.Background()

	until := clk.Now().Add(time.Hour)
	_, err := svc.CreateCode(ctx, discountdomain.CreateCodeRequest{
		Code:               "HOUR",
		Kind:               discountdomain.KindPercentage,
		Value:              50,
		ValidUntil:         &until,
		AppliesToPurchases: true,
	})
	require.NoError(t, err)

	_, err = svc.Validate(ctx, discountdomain.ValidateRequest{Code: "HOUR", CartTotalCents: 100})
	require.NoError(t, err)

	clk.Advance(2 * time.Hour)
	_, err = svc.Validate(ctx, discountdomain.ValidateRequest{Code: "HOUR", CartTotalCents: 100})
	assert.ErrorIs(t, err, discountdomain.ErrCodeOutOfWindow)
}

func TestCreateCodeValidation(t *testing.T) {
	svc, _, clk := newTestService(t)
	ctx := context.Background()
	later := clk.Now().Add(time.Hour)
	earlier := clk.Now()

	tests := []struct {
		name string
		req  discountdomain.CreateCodeRequest
		want error
	}{
		{"empty code", discountdomain.CreateCodeRequest{Kind: discountdomain.KindPercentage, Value: 10}, discountdomain.ErrInvalidCode},
		{"unknown kind", discountdomain.CreateCodeRequest{Code: "X", Kind: "BOGO", Value: 10}, discountdomain.ErrInvalidKind},
		{"zero value", discountdomain.CreateCodeRequest{Code: "X", Kind: discountdomain.KindFixedAmount}, discountdomain.ErrInvalidValue},
		{"percent over 100", discountdomain.CreateCodeRequest{Code: "X", Kind: discountdomain.KindPercentage, Value: 101}, discountdomain.ErrInvalidValue},
		{"zero total cap", discountdomain.CreateCodeRequest{Code: "X", Kind: discountdomain.KindPercentage, Value: 10, MaxUsesTotal: int64Ptr(0)}, discountdomain.ErrInvalidLimits},
		{"inverted window", discountdomain.CreateCodeRequest{Code: "X", Kind: discountdomain.KindPercentage, Value: 10, ValidFrom: &later, ValidUntil: &earlier}, discountdomain.ErrInvalidWindow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateCode(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCreateCodeDuplicate(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	req := discountdomain.CreateCodeRequest{Code: "DUP", Kind: discountdomain.KindPercentage, Value: 5, AppliesToPurchases: true}

	_, err := svc.CreateCode(ctx, req)
	require.NoError(t, err)

	req.Code = "dup"
	_, err = svc.CreateCode(ctx, req)
	assert.ErrorIs(t, err, discountdomain.ErrCodeExists)
}

func TestSetActive(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateCode(ctx, discountdomain.CreateCodeRequest{Code: "OFF", Kind: discountdomain.KindPercentage, Value: 5, AppliesToPurchases: true})
	require.NoError(t, err)

	code, err := svc.SetActive(ctx, "off", false)
	require.NoError(t, err)
	assert.False(t, code.IsActive)

	_, err = svc.Validate(ctx, discountdomain.ValidateRequest{Code: "OFF", CartTotalCents: 100})
	assert.ErrorIs(t, err, discountdomain.ErrCodeInactive)
}
