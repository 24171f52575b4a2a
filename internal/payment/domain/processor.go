package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/smallbiznis/audiostore/internal/config"
)

var (
	// ErrProcessor marks any processor failure whose outcome is not a decline.
	ErrProcessor = errors.New("payment_processor_error")
	// ErrProcessorTimeout is an unknown outcome; the order may still be captured later.
	ErrProcessorTimeout = fmt.Errorf("%w: timeout", ErrProcessor)

	ErrPaymentDeclined   = errors.New("payment_declined")
	ErrAlreadyCaptured   = errors.New("payment_already_captured")
	ErrProcessorNotFound = errors.New("payment_processor_not_found")
	ErrInvalidConfig     = errors.New("payment_invalid_config")
	ErrInvalidAmount     = errors.New("payment_invalid_amount")
)

// OrderRequest asks the processor to open an order for the final payable amount.
type OrderRequest struct {
	AmountCents int64
	Currency    string
	// Reference is our idempotency key for the order.
	Reference string

	Description string
}

type Order struct {
	ID string
	// ApprovalURL is set by redirect-based processors.
	ApprovalURL string
	// ClientToken is set by processors confirmed client-side.
	ClientToken string
}

type Capture struct {
	CaptureID           string
	PayerEmail          string
	AmountCapturedCents int64
	Currency            string
}

// Processor is the payment collaborator seen by the purchase lifecycle.
type Processor interface {
	Name() string
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
	CaptureOrder(ctx context.Context, orderID string) (*Capture, error)
}

// ProcessorFactory builds a processor from the process configuration.
type ProcessorFactory interface {
	Provider() string
	Enabled(cfg config.PaymentConfig) bool
	NewProcessor(cfg config.PaymentConfig) (Processor, error)
}
