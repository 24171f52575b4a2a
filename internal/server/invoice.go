package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) IssuePurchaseInvoice(c *gin.Context) {
	purchaseID, ok := pathID(c, "purchase_id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	purchase, err := s.purchaseSvc.GetByID(ctx, purchaseID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !canAccess(c, purchase.UserID) {
		AbortWithError(c, ErrNotFound)
		return
	}

	invoice, err := s.invoiceSvc.IssueForPurchase(ctx, purchaseID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": invoice})
}

func (s *Server) GetInvoiceByID(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	item, err := s.invoiceSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !canAccess(c, item.UserID) {
		AbortWithError(c, ErrNotFound)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) CancelInvoice(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	item, err := s.invoiceSvc.Cancel(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}
