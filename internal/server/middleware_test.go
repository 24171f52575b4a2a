package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/audiostore/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeLimiter struct {
	keys  []string
	allow bool
	err   error
}

func (f *fakeLimiter) Allow(_ context.Context, key string) (*ratelimit.Result, error) {
	f.keys = append(f.keys, key)
	if f.err != nil {
		return nil, f.err
	}
	res := &ratelimit.Result{Allowed: f.allow, Limit: 10, Remaining: 3}
	if !f.allow {
		res.Remaining = 0
		res.RetryAfter = 1500 * time.Millisecond
	}
	return res, nil
}

func limitedEngine(limiter ratelimit.Limiter, withUser bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandlingMiddleware())
	handlers := []gin.HandlerFunc{}
	if withUser {
		handlers = append(handlers, UserRequired())
	}
	handlers = append(handlers, RateLimited(limiter, "checkout", zap.NewNop()), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	r.POST("/limited", handlers...)
	return r
}

func serveLimited(r *gin.Engine, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/limited", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	if userID != "" {
		req.Header.Set(HeaderUserID, userID)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitedWithoutLimiter(t *testing.T) {
	rec := serveLimited(limitedEngine(nil, false), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRateLimitedKeysByUser(t *testing.T) {
	limiter := &fakeLimiter{allow: true}
	rec := serveLimited(limitedEngine(limiter, true), "42")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"checkout:42"}, limiter.keys)
	assert.Equal(t, "10", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "3", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimitedFallsBackToClientIP(t *testing.T) {
	limiter := &fakeLimiter{allow: true}
	serveLimited(limitedEngine(limiter, false), "")

	assert.Equal(t, []string{"checkout:10.0.0.1"}, limiter.keys)
}

func TestRateLimitedRejects(t *testing.T) {
	rec := serveLimited(limitedEngine(&fakeLimiter{allow: false}, true), "42")

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "rate_limited")
}

func TestRateLimitedFailsOpen(t *testing.T) {
	rec := serveLimited(limitedEngine(&fakeLimiter{err: errors.New("redis down")}, true), "42")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
