package logger

import (
	"context"
	"testing"

	obscontext "github.com/smallbiznis/audiostore/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContextAddsCorrelationFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	ctx := obscontext.WithRequestID(context.Background(), "req-1")
	ctx = obscontext.WithUserID(ctx, "42")
	ctx = obscontext.WithActor(ctx, "system", "scheduler")

	WithContext(ctx, base).Info("hello")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "req-1", fields["request_id"])
		assert.Equal(t, "42", fields["user_id"])
		assert.Equal(t, "system", fields["actor_type"])
		assert.Equal(t, "scheduler", fields["actor_id"])
		assert.NotContains(t, fields, "trace_id")
	}
}

func TestWithContextWithoutValuesReturnsBase(t *testing.T) {
	base := zap.NewNop()
	assert.Same(t, base, WithContext(context.Background(), base))
}

func TestOperationFromSQL(t *testing.T) {
	assert.Equal(t, "SELECT", operationFromSQL("  select * from purchases"))
	assert.Equal(t, "UPDATE", operationFromSQL("update purchases set status = ? where id = ?"))
	assert.Equal(t, "UNKNOWN", operationFromSQL(""))
}
