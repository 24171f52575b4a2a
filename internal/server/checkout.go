package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	invoicedomain "github.com/smallbiznis/audiostore/internal/invoice/domain"
	obslogger "github.com/smallbiznis/audiostore/internal/observability/logger"
	purchasedomain "github.com/smallbiznis/audiostore/internal/purchase/domain"
	"go.uber.org/zap"
)

type createCheckoutRequest struct {
	ContentIDs   []string `json:"content_ids" binding:"required,min=1,dive,required"`
	DiscountCode string   `json:"discount_code"`
	Processor    string   `json:"processor"`
}

func (s *Server) CreateCheckoutOrder(c *gin.Context) {
	var req createCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	contentIDs := make([]snowflake.ID, 0, len(req.ContentIDs))
	for _, raw := range req.ContentIDs {
		id, ok := parseSnowflakeID(raw)
		if !ok {
			AbortWithError(c, newValidationError("content_ids", "invalid_id", "invalid content id"))
			return
		}
		contentIDs = append(contentIDs, id)
	}

	ctx := c.Request.Context()
	cart, err := s.catalogSvc.BuildCart(ctx, contentIDs)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	checkout, err := s.purchaseSvc.CreateOrder(ctx, purchasedomain.CreateOrderRequest{
		UserID:       userIDFrom(c),
		Cart:         cart,
		DiscountCode: req.DiscountCode,
		Processor:    req.Processor,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": checkout})
}

type captureResponse struct {
	Purchase *purchasedomain.Purchase `json:"purchase"`
	Invoice  *invoicedomain.Invoice   `json:"invoice,omitempty"`
}

// CaptureCheckoutOrder settles the order and invoices it. Invoicing failures
// do not fail the capture: the money has moved and the invoice can be issued
// again through IssuePurchaseInvoice.
func (s *Server) CaptureCheckoutOrder(c *gin.Context) {
	ctx := c.Request.Context()
	orderID := c.Param("order_id")

	existing, err := s.purchaseSvc.GetByExternalOrderID(ctx, orderID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if existing.UserID != userIDFrom(c) {
		AbortWithError(c, ErrNotFound)
		return
	}

	purchase, err := s.purchaseSvc.CaptureOrder(ctx, orderID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	invoice, err := s.invoicePurchase(ctx, purchase.ID)
	if err != nil {
		obslogger.WithContext(ctx, s.log).Error("invoice after capture failed",
			zap.String("purchase_id", purchase.ID.String()),
			zap.Error(err),
		)
	}

	c.JSON(http.StatusOK, gin.H{"data": captureResponse{Purchase: purchase, Invoice: invoice}})
}

// invoicePurchase issues or reuses the purchase invoice and marks it paid.
func (s *Server) invoicePurchase(ctx context.Context, purchaseID snowflake.ID) (*invoicedomain.Invoice, error) {
	invoice, err := s.invoiceSvc.IssueForPurchase(ctx, purchaseID)
	if errors.Is(err, invoicedomain.ErrAlreadyInvoiced) {
		invoice, err = s.invoiceSvc.GetBySource(ctx, invoicedomain.SourcePurchase, purchaseID)
	}
	if err != nil {
		return nil, err
	}
	if invoice.Status != invoicedomain.InvoiceStatusIssued {
		return invoice, nil
	}
	return s.invoiceSvc.MarkPaid(ctx, invoice.ID)
}

func (s *Server) GetPurchase(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	purchase, err := s.purchaseSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !canAccess(c, purchase.UserID) {
		AbortWithError(c, ErrNotFound)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": purchase})
}

func (s *Server) RefundPurchase(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	purchase, err := s.purchaseSvc.Refund(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": purchase})
}
