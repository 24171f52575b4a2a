package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	IssueForPurchase(ctx context.Context, purchaseID snowflake.ID) (*Invoice, error)
	IssueForSubscriptionCharge(ctx context.Context, chargeID snowflake.ID) (*Invoice, error)
	MarkPaid(ctx context.Context, id snowflake.ID) (*Invoice, error)
	Cancel(ctx context.Context, id snowflake.ID) (*Invoice, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Invoice, error)
	GetBySource(ctx context.Context, sourceType SourceType, sourceID snowflake.ID) (*Invoice, error)
}

// DocumentRenderer produces a printable copy of an issued invoice and returns
// where it was stored.
type DocumentRenderer interface {
	RenderInvoice(ctx context.Context, invoice Invoice) (string, error)
}

var (
	ErrInvoiceNotFound      = errors.New("invoice_not_found")
	ErrAlreadyInvoiced      = errors.New("already_invoiced")
	ErrPurchaseNotCompleted = errors.New("purchase_not_completed")
	ErrInvariantViolation   = errors.New("invoice_invariant_violation")
	ErrInvalidState         = errors.New("invalid_invoice_state")
	ErrInvalidSource        = errors.New("invalid_invoice_source")
)
