package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/smallbiznis/audiostore/internal/invoice/domain"
	subscriptiondomain "github.com/smallbiznis/audiostore/internal/subscription/domain"
)

type createSubscriptionRequest struct {
	UserID             string    `json:"user_id" binding:"required"`
	PlanID             string    `json:"plan_id" binding:"required"`
	PlanName           string    `json:"plan_name" binding:"required"`
	CurrentPeriodStart time.Time `json:"current_period_start" binding:"required"`
	CurrentPeriodEnd   time.Time `json:"current_period_end" binding:"required,gtfield=CurrentPeriodStart"`
}

func (s *Server) CreateSubscription(c *gin.Context) {
	var req createSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}
	userID, ok := parseSnowflakeID(req.UserID)
	if !ok {
		AbortWithError(c, newValidationError("user_id", "invalid_id", "invalid id"))
		return
	}

	sub, err := s.subscriptionSvc.Create(c.Request.Context(), subscriptiondomain.CreateSubscriptionRequest{
		UserID:             userID,
		PlanID:             req.PlanID,
		PlanName:           req.PlanName,
		CurrentPeriodStart: req.CurrentPeriodStart,
		CurrentPeriodEnd:   req.CurrentPeriodEnd,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": sub})
}

type updateSubscriptionRequest struct {
	Status string `json:"status" binding:"required,oneof=ACTIVE PAST_DUE CANCELED EXPIRED"`
}

func (s *Server) UpdateSubscription(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req updateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	sub, err := s.subscriptionSvc.UpdateStatus(c.Request.Context(), id, subscriptiondomain.SubscriptionStatus(req.Status))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": sub})
}

type recordChargeRequest struct {
	SubscriptionID   string     `json:"subscription_id" binding:"required"`
	ExternalChargeID string     `json:"external_charge_id" binding:"required"`
	AmountCents      int64      `json:"amount_cents" binding:"gte=0"`
	Currency         string     `json:"currency" binding:"required,len=3"`
	PeriodStart      time.Time  `json:"period_start" binding:"required"`
	PeriodEnd        time.Time  `json:"period_end" binding:"required,gtfield=PeriodStart"`
	SettledAt        *time.Time `json:"settled_at"`
}

type chargeResponse struct {
	Charge  *subscriptiondomain.Charge `json:"charge"`
	Invoice *invoicedomain.Invoice     `json:"invoice"`
}

// RecordSubscriptionCharge stores a settled renewal and invoices it. Replays of
// the same external charge return the original charge and invoice.
func (s *Server) RecordSubscriptionCharge(c *gin.Context) {
	var req recordChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}
	subscriptionID, ok := parseSnowflakeID(req.SubscriptionID)
	if !ok {
		AbortWithError(c, newValidationError("subscription_id", "invalid_id", "invalid id"))
		return
	}

	ctx := c.Request.Context()
	charge, err := s.subscriptionSvc.RecordCharge(ctx, subscriptiondomain.RecordChargeRequest{
		SubscriptionID:   subscriptionID,
		ExternalChargeID: req.ExternalChargeID,
		AmountCents:      req.AmountCents,
		Currency:         req.Currency,
		PeriodStart:      req.PeriodStart,
		PeriodEnd:        req.PeriodEnd,
		SettledAt:        req.SettledAt,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	invoice, err := s.invoiceCharge(ctx, charge)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": chargeResponse{Charge: charge, Invoice: invoice}})
}

func (s *Server) invoiceCharge(ctx context.Context, charge *subscriptiondomain.Charge) (*invoicedomain.Invoice, error) {
	invoice, err := s.invoiceSvc.IssueForSubscriptionCharge(ctx, charge.ID)
	if errors.Is(err, invoicedomain.ErrAlreadyInvoiced) {
		return s.invoiceSvc.GetBySource(ctx, invoicedomain.SourceSubscriptionCharge, charge.ID)
	}
	return invoice, err
}
