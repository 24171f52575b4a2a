package context

import (
	"context"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureRequestIDKeepsExisting(t *testing.T) {
	ctx := WithRequestID(context.Background(), " req-1 ")

	ctx, id := EnsureRequestID(ctx)
	assert.Equal(t, "req-1", id)
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
}

func TestEnsureRequestIDMintsULID(t *testing.T) {
	ctx, id := EnsureRequestID(context.Background())

	_, err := ulid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, id, RequestIDFromContext(ctx))

	_, again := EnsureRequestID(ctx)
	assert.Equal(t, id, again)
}

func TestActorAndUser(t *testing.T) {
	ctx := WithActor(context.Background(), "system", "scheduler")
	ctx = WithUserID(ctx, "42")

	kind, id := ActorFromContext(ctx)
	assert.Equal(t, "system", kind)
	assert.Equal(t, "scheduler", id)
	assert.Equal(t, "42", UserIDFromContext(ctx))
}
