package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	entitlementdomain "github.com/smallbiznis/audiostore/internal/entitlement/domain"
)

func (s *Server) CheckEntitlement(c *gin.Context) {
	audiobookID, ok := parseSnowflakeID(c.Query("audiobook_id"))
	if !ok {
		AbortWithError(c, newValidationError("audiobook_id", "invalid_id", "invalid audiobook id"))
		return
	}
	chapterID, ok := parseOptionalSnowflakeID(c.Query("chapter_id"))
	if !ok {
		AbortWithError(c, newValidationError("chapter_id", "invalid_id", "invalid chapter id"))
		return
	}

	grant, err := s.entitlementSvc.Resolve(c.Request.Context(), userIDFrom(c), entitlementdomain.ContentRef{
		AudiobookID: audiobookID,
		ChapterID:   chapterID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": grant})
}
