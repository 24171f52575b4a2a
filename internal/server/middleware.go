package server

import (
	"math"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/audiostore/internal/observability/context"
	"github.com/smallbiznis/audiostore/internal/ratelimit"
	"go.uber.org/zap"
)

const (
	// HeaderUserID carries the caller resolved by the upstream gateway.
	HeaderUserID     = "X-User-ID"
	contextUserIDKey = "user_id"
)

// UserRequired resolves the acting user from HeaderUserID.
func UserRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := resolveUser(c); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// OptionalUser resolves HeaderUserID when the caller sent one.
func OptionalUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.TrimSpace(c.GetHeader(HeaderUserID)) != "" {
			if err := resolveUser(c); err != nil {
				AbortWithError(c, err)
				return
			}
		}
		c.Next()
	}
}

func resolveUser(c *gin.Context) error {
	raw := strings.TrimSpace(c.GetHeader(HeaderUserID))
	if raw == "" {
		return ErrUnauthorized
	}
	userID, err := snowflake.ParseString(raw)
	if err != nil || userID <= 0 {
		return ErrUnauthorized
	}

	c.Set(contextUserIDKey, userID)
	c.Request = c.Request.WithContext(obscontext.WithUserID(c.Request.Context(), userID.String()))
	return nil
}

func userIDFrom(c *gin.Context) snowflake.ID {
	if v, ok := c.Get(contextUserIDKey); ok {
		if id, ok := v.(snowflake.ID); ok {
			return id
		}
	}
	return 0
}

// RateLimited keys the bucket by user when UserRequired ran first, else by client IP.
// Limiter failures let the request through.
func RateLimited(limiter ratelimit.Limiter, scope string, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		caller := c.ClientIP()
		if userID := userIDFrom(c); userID != 0 {
			caller = userID.String()
		}
		res, err := limiter.Allow(c.Request.Context(), scope+":"+caller)
		if err != nil || res == nil {
			log.Warn("rate limiter unavailable", zap.String("scope", scope), zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		if !res.Allowed {
			seconds := int(math.Ceil(res.RetryAfter.Seconds()))
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(seconds))
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}
