package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	redis "github.com/redis/go-redis/v9"
)

var (
	ErrNotConfigured = errors.New("rate_limit_not_configured")
	ErrInvalidBucket = errors.New("rate_limit_bucket_invalid")
)

// Redis truncates Lua numbers to integers on the way out, so the wait is
// computed here from the fractional token count.
const takeScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])
local cost = tonumber(ARGV[4])

local clock = redis.call("TIME")
local now = (clock[1] * 1000) + math.floor(clock[2] / 1000)

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(state[1])
local last = tonumber(state[2])

if tokens == nil then
  tokens = burst
else
  local elapsed = math.max(0, now - last)
  tokens = math.min(burst, tokens + (elapsed / 1000) * rate)
end

local allowed = 0
local wait = 0
if tokens >= cost then
  allowed = 1
  tokens = tokens - cost
else
  wait = math.ceil(((cost - tokens) / rate) * 1000)
end

redis.call("HSET", KEYS[1], "tokens", tostring(tokens), "ts", now)
redis.call("PEXPIRE", KEYS[1], ttl)

return {allowed, math.floor(tokens), wait, now}
`

// Result is the outcome of one Take.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

// TokenBucket refills at rate tokens per second up to burst.
type TokenBucket struct {
	client *redis.Client
	script *redis.Script
	rate   float64
	burst  int
	ttl    time.Duration
}

func NewTokenBucket(client *redis.Client, rate float64, burst int) (*TokenBucket, error) {
	if client == nil {
		return nil, ErrNotConfigured
	}
	if rate <= 0 || burst <= 0 {
		return nil, fmt.Errorf("%w: rate=%v burst=%d", ErrInvalidBucket, rate, burst)
	}
	return &TokenBucket{
		client: client,
		script: redis.NewScript(takeScript),
		rate:   rate,
		burst:  burst,
		ttl:    idleTTL(rate, burst),
	}, nil
}

// Take spends cost tokens from the bucket stored under key.
func (b *TokenBucket) Take(ctx context.Context, key string, cost int) (*Result, error) {
	if b == nil || b.client == nil {
		return nil, ErrNotConfigured
	}
	if key == "" {
		return nil, ErrEmptyKey
	}
	if cost <= 0 || cost > b.burst {
		return nil, fmt.Errorf("%w: cost=%d burst=%d", ErrInvalidBucket, cost, b.burst)
	}

	vals, err := b.script.Run(ctx, b.client, []string{key},
		b.rate, b.burst, b.ttl.Milliseconds(), cost,
	).Int64Slice()
	if err != nil {
		return nil, err
	}
	if len(vals) != 4 {
		return nil, fmt.Errorf("unexpected token bucket reply of %d values", len(vals))
	}

	wait := time.Duration(vals[2]) * time.Millisecond
	return &Result{
		Allowed:    vals[0] == 1,
		Limit:      b.burst,
		Remaining:  int(vals[1]),
		ResetTime:  time.UnixMilli(vals[3]).Add(wait),
		RetryAfter: wait,
	}, nil
}

// idleTTL keeps an untouched bucket around for two full refills.
func idleTTL(rate float64, burst int) time.Duration {
	seconds := math.Ceil(float64(burst) / rate * 2)
	if seconds < 1 {
		seconds = 1
	}
	return time.Duration(seconds) * time.Second
}
