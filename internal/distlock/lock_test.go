package distlock

import (
	"context"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

func TestNewFromClientWithoutRedis(t *testing.T) {
	assert.Nil(t, NewFromClient(nil))
}

func TestTryLockValidatesArguments(t *testing.T) {
	locker := NewRedisLocker(unreachableClient(t))

	_, ok, err := locker.TryLock(context.Background(), " ", time.Minute)
	assert.ErrorIs(t, err, ErrEmptyKey)
	assert.False(t, ok)

	_, ok, err = locker.TryLock(context.Background(), "audiostore:scheduler:reclaim_pending", 0)
	assert.ErrorIs(t, err, ErrInvalidTTL)
	assert.False(t, ok)
}

func TestTryLockSurfacesConnectionErrors(t *testing.T) {
	locker := NewRedisLocker(unreachableClient(t))

	token, ok, err := locker.TryLock(context.Background(), "audiostore:scheduler:reclaim_pending", time.Minute)
	require.Error(t, err)
	assert.False(t, ok)
	assert.Empty(t, token)
}

func TestReleaseIgnoresMissingToken(t *testing.T) {
	locker := NewRedisLocker(unreachableClient(t))
	assert.NoError(t, locker.Release(context.Background(), "k", ""))

	var nilLocker *RedisLocker
	assert.NoError(t, nilLocker.Release(context.Background(), "k", "t"))
}
