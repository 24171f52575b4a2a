package logger

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	obscontext "github.com/smallbiznis/audiostore/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observedEngine(t *testing.T) (*gin.Engine, *observer.ObservedLogs) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	core, logs := observer.New(zap.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	t.Cleanup(restore)

	r := gin.New()
	r.Use(GinMiddleware(MiddlewareConfig{
		ErrorClassifier: func(error) (string, string) { return "conflict", "discount_exhausted" },
	}))
	r.GET("/ok", func(c *gin.Context) {
		c.Request = c.Request.WithContext(obscontext.WithUserID(c.Request.Context(), "42"))
		c.Status(http.StatusNoContent)
	})
	r.GET("/conflict", func(c *gin.Context) {
		_ = c.Error(errors.New("exhausted"))
		c.AbortWithStatus(http.StatusConflict)
	})
	return r, logs
}

func TestGinMiddlewareMintsRequestID(t *testing.T) {
	r, logs := observedEngine(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))

	id := rec.Header().Get(HeaderRequestID)
	_, err := ulid.Parse(id)
	require.NoError(t, err)

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, id, fields["request_id"])
	assert.Equal(t, "42", fields["user_id"])
	assert.Equal(t, "/ok", fields["route"])
}

func TestGinMiddlewareKeepsIncomingRequestID(t *testing.T) {
	r, logs := observedEngine(t)

	req := httptest.NewRequest(http.MethodGet, "/conflict", nil)
	req.Header.Set(HeaderRequestID, "req-upstream")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, "req-upstream", rec.Header().Get(HeaderRequestID))
	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-upstream", fields["request_id"])
	assert.Equal(t, "conflict", fields["error_type"])
	assert.Equal(t, "discount_exhausted", fields["error_code"])
}
