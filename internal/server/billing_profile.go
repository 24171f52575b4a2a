package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	billingprofiledomain "github.com/smallbiznis/audiostore/internal/billingprofile/domain"
)

type upsertBillingProfileRequest struct {
	LegalName    string `json:"legal_name" binding:"required"`
	Email        string `json:"email" binding:"omitempty,email"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2"`
	City         string `json:"city"`
	PostalCode   string `json:"postal_code"`
	Region       string `json:"region"`
	Country      string `json:"country" binding:"required,len=2"`
	TaxID        string `json:"tax_id"`
}

func (s *Server) GetBillingProfile(c *gin.Context) {
	profile, err := s.profileSvc.GetProfile(c.Request.Context(), userIDFrom(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if profile == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": profile})
}

func (s *Server) UpsertBillingProfile(c *gin.Context) {
	var req upsertBillingProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	profile, err := s.profileSvc.UpsertProfile(c.Request.Context(), billingprofiledomain.UpsertProfileRequest{
		UserID:       userIDFrom(c),
		LegalName:    req.LegalName,
		Email:        req.Email,
		AddressLine1: req.AddressLine1,
		AddressLine2: req.AddressLine2,
		City:         req.City,
		PostalCode:   req.PostalCode,
		Region:       req.Region,
		Country:      req.Country,
		TaxID:        req.TaxID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": profile})
}
