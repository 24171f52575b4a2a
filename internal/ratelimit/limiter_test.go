package ratelimit

import (
	"context"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/audiostore/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func unreachableClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func enabledConfig() config.Config {
	return config.Config{RateLimit: config.RateLimitConfig{
		Enabled:   true,
		Rate:      1,
		Burst:     5,
		KeyPrefix: "test:",
	}}
}

func TestNewLimiterDisabled(t *testing.T) {
	cfg := enabledConfig()
	assert.Nil(t, NewLimiter(Params{Config: cfg, Log: zap.NewNop()}))

	cfg.RateLimit.Enabled = false
	assert.Nil(t, NewLimiter(Params{Config: cfg, Client: unreachableClient(t), Log: zap.NewNop()}))

	cfg = enabledConfig()
	cfg.RateLimit.Burst = 0
	assert.Nil(t, NewLimiter(Params{Config: cfg, Client: unreachableClient(t), Log: zap.NewNop()}))
}

func TestUserLimiterRejectsEmptyKey(t *testing.T) {
	limiter := NewLimiter(Params{Config: enabledConfig(), Client: unreachableClient(t), Log: zap.NewNop()})
	require.NotNil(t, limiter)

	_, err := limiter.Allow(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestUserLimiterSurfacesRedisErrors(t *testing.T) {
	limiter := NewLimiter(Params{Config: enabledConfig(), Client: unreachableClient(t), Log: zap.NewNop()})
	require.NotNil(t, limiter)

	res, err := limiter.Allow(context.Background(), "checkout:42")
	assert.Error(t, err)
	assert.Nil(t, res)
}

func TestNewTokenBucketValidates(t *testing.T) {
	_, err := NewTokenBucket(nil, 1, 1)
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewTokenBucket(unreachableClient(t), 0, 1)
	assert.ErrorIs(t, err, ErrInvalidBucket)

	_, err = NewTokenBucket(unreachableClient(t), 1, 0)
	assert.ErrorIs(t, err, ErrInvalidBucket)
}

func TestTakeValidatesArguments(t *testing.T) {
	var nilBucket *TokenBucket
	_, err := nilBucket.Take(context.Background(), "k", 1)
	assert.ErrorIs(t, err, ErrNotConfigured)

	bucket, err := NewTokenBucket(unreachableClient(t), 1, 3)
	require.NoError(t, err)

	_, err = bucket.Take(context.Background(), "", 1)
	assert.ErrorIs(t, err, ErrEmptyKey)
	_, err = bucket.Take(context.Background(), "k", 0)
	assert.ErrorIs(t, err, ErrInvalidBucket)
	_, err = bucket.Take(context.Background(), "k", 4)
	assert.ErrorIs(t, err, ErrInvalidBucket)
}

func TestIdleTTL(t *testing.T) {
	assert.Equal(t, 20*time.Second, idleTTL(0.5, 5))
	assert.Equal(t, time.Second, idleTTL(100, 1))
	assert.Equal(t, 4*time.Second, idleTTL(5, 10))
}
