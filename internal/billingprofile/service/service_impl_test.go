package service

import (
	"context"
	"testing"

	"github.com/smallbiznis/audiostore/internal/billingprofile/domain"
	"github.com/smallbiznis/audiostore/internal/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) domain.Service {
	t.Helper()
	return NewService(Params{DB: storetest.Open(t), Log: zap.NewNop(), GenID: storetest.Node(t)})
}

func TestGetProfileAbsent(t *testing.T) {
	svc := newTestService(t)

	profile, err := svc.GetProfile(context.Background(), 7)
	require.NoError(t, err)
	assert.Nil(t, profile)

	_, err = svc.GetProfile(context.Background(), 0)
	assert.ErrorIs(t, err, domain.ErrInvalidUser)
}

func TestUpsertProfileOverwritesInPlace(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.UpsertProfile(ctx, domain.UpsertProfileRequest{
		UserID:    7,
		LegalName: " Ada Listener ",
		Country:   "de",
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada Listener", first.LegalName)
	assert.Equal(t, "DE", first.Country)

	second, err := svc.UpsertProfile(ctx, domain.UpsertProfileRequest{
		UserID:    7,
		LegalName: "Ada L. Ltd",
		Country:   "FR",
		TaxID:     "FR123",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Ada L. Ltd", second.LegalName)
	assert.Equal(t, "FR", second.Country)
	assert.Equal(t, "FR123", second.TaxID)
}

func TestUpsertProfileValidates(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.UpsertProfile(context.Background(), domain.UpsertProfileRequest{LegalName: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidUser)

	_, err = svc.UpsertProfile(context.Background(), domain.UpsertProfileRequest{UserID: 7, Country: "DEU"})
	assert.ErrorIs(t, err, domain.ErrInvalidCountry)
}
