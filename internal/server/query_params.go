package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

func parseSnowflakeID(value string) (snowflake.ID, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, false
	}
	parsed, err := snowflake.ParseString(trimmed)
	if err != nil || parsed <= 0 {
		return 0, false
	}
	return parsed, true
}

func parseOptionalSnowflakeID(value string) (*snowflake.ID, bool) {
	if strings.TrimSpace(value) == "" {
		return nil, true
	}
	parsed, ok := parseSnowflakeID(value)
	if !ok {
		return nil, false
	}
	return &parsed, true
}

// pathID parses a snowflake path parameter, aborting with a validation error
// when it is malformed.
func pathID(c *gin.Context, name string) (snowflake.ID, bool) {
	id, ok := parseSnowflakeID(c.Param(name))
	if !ok {
		AbortWithError(c, newValidationError(name, "invalid_id", "invalid id"))
		return 0, false
	}
	return id, true
}
