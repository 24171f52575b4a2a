package ratelimit

import (
	"context"
	"errors"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/audiostore/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrEmptyKey = errors.New("rate_limit_key_empty")

// Limiter admits or rejects one request for key.
type Limiter interface {
	Allow(ctx context.Context, key string) (*Result, error)
}

type Params struct {
	fx.In

	Config config.Config
	Client *redis.Client `optional:"true"`
	Log    *zap.Logger
}

// UserLimiter applies one token bucket per caller key.
type UserLimiter struct {
	bucket *TokenBucket
	prefix string
}

// NewLimiter returns nil when limiting is disabled or redis is not configured.
func NewLimiter(p Params) Limiter {
	cfg := p.Config.RateLimit
	log := p.Log.Named("ratelimit")
	if !cfg.Enabled || p.Client == nil {
		log.Info("rate limiting disabled",
			zap.Bool("enabled", cfg.Enabled),
			zap.Bool("redis", p.Client != nil),
		)
		return nil
	}
	bucket, err := NewTokenBucket(p.Client, cfg.Rate, cfg.Burst)
	if err != nil {
		log.Warn("rate limiting disabled", zap.Error(err))
		return nil
	}
	return &UserLimiter{bucket: bucket, prefix: cfg.KeyPrefix}
}

func (l *UserLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrEmptyKey
	}
	return l.bucket.Take(ctx, l.prefix+key, 1)
}
