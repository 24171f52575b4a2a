package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	discountdomain "github.com/smallbiznis/audiostore/internal/discount/domain"
)

type validateDiscountRequest struct {
	Code            string `json:"code" binding:"required"`
	CartTotalCents  int64  `json:"cart_total_cents" binding:"gte=0"`
	ForSubscription bool   `json:"for_subscription"`
}

type validateDiscountResponse struct {
	Valid  bool                  `json:"valid"`
	Reason discountdomain.Reason `json:"reason,omitempty"`
	Quote  *discountdomain.Quote `json:"quote,omitempty"`
}

// ValidateDiscount answers 200 for rejected codes so clients can show the reason.
// The per-user cap is only checked for the caller named by HeaderUserID.
func (s *Server) ValidateDiscount(c *gin.Context) {
	var req validateDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	quote, err := s.discountSvc.Validate(c.Request.Context(), discountdomain.ValidateRequest{
		Code:            req.Code,
		CartTotalCents:  req.CartTotalCents,
		UserID:          userIDFrom(c),
		ForSubscription: req.ForSubscription,
	})
	if err != nil {
		if reason := discountdomain.ReasonOf(err); reason != "" {
			c.JSON(http.StatusOK, validateDiscountResponse{Valid: false, Reason: reason})
			return
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, validateDiscountResponse{Valid: quote.Valid, Quote: quote})
}

type createDiscountRequest struct {
	Code                   string     `json:"code" binding:"required"`
	Kind                   string     `json:"kind" binding:"required,oneof=PERCENTAGE FIXED_AMOUNT"`
	Value                  int64      `json:"value" binding:"gt=0"`
	MinPurchaseCents       int64      `json:"min_purchase_cents" binding:"gte=0"`
	MaxUsesTotal           *int64     `json:"max_uses_total" binding:"omitempty,gt=0"`
	MaxUsesPerUser         *int64     `json:"max_uses_per_user" binding:"omitempty,gt=0"`
	ValidFrom              *time.Time `json:"valid_from"`
	ValidUntil             *time.Time `json:"valid_until"`
	AppliesToPurchases     bool       `json:"applies_to_purchases"`
	AppliesToSubscriptions bool       `json:"applies_to_subscriptions"`
	Inactive               bool       `json:"inactive"`
}

func (s *Server) CreateDiscountCode(c *gin.Context) {
	var req createDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	item, err := s.discountSvc.CreateCode(c.Request.Context(), discountdomain.CreateCodeRequest{
		Code:                   req.Code,
		Kind:                   discountdomain.Kind(req.Kind),
		Value:                  req.Value,
		MinPurchaseCents:       req.MinPurchaseCents,
		MaxUsesTotal:           req.MaxUsesTotal,
		MaxUsesPerUser:         req.MaxUsesPerUser,
		ValidFrom:              req.ValidFrom,
		ValidUntil:             req.ValidUntil,
		AppliesToPurchases:     req.AppliesToPurchases,
		AppliesToSubscriptions: req.AppliesToSubscriptions,
		Inactive:               req.Inactive,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": item})
}

func (s *Server) GetDiscountCode(c *gin.Context) {
	item, err := s.discountSvc.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		if errors.Is(err, discountdomain.ErrCodeNotFound) {
			err = ErrNotFound
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

type updateDiscountRequest struct {
	Active *bool `json:"active" binding:"required"`
}

func (s *Server) UpdateDiscountCode(c *gin.Context) {
	var req updateDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	item, err := s.discountSvc.SetActive(c.Request.Context(), c.Param("code"), *req.Active)
	if err != nil {
		if errors.Is(err, discountdomain.ErrCodeNotFound) {
			err = ErrNotFound
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}
