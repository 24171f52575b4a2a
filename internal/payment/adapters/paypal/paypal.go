// Package paypal captures purchases through the PayPal Orders v2 API.
package paypal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	sdk "github.com/plutov/paypal/v4"
	"github.com/smallbiznis/audiostore/internal/config"
	paymentdomain "github.com/smallbiznis/audiostore/internal/payment/domain"
	"github.com/smallbiznis/audiostore/pkg/money"
)

const providerName = "paypal"

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return providerName
}

func (f *Factory) Enabled(cfg config.PaymentConfig) bool {
	return cfg.PayPalEnabled()
}

func (f *Factory) NewProcessor(cfg config.PaymentConfig) (paymentdomain.Processor, error) {
	if strings.TrimSpace(cfg.PayPalBaseURL) == "" {
		return nil, paymentdomain.ErrInvalidConfig
	}
	processor, err := New(Options{
		BaseURL:      cfg.PayPalBaseURL,
		ClientID:     cfg.PayPalClientID,
		ClientSecret: cfg.PayPalClientSecret,
		HTTPClient:   &http.Client{Timeout: cfg.CallTimeout},
		Timeout:      cfg.CallTimeout,
	})
	if err != nil {
		return nil, err
	}
	return processor, nil
}

type Options struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	HTTPClient   *http.Client
	Timeout      time.Duration
}

// Processor wraps the SDK client, which caches the OAuth token and refreshes
// it shortly before expiry once the first one is fetched.
type Processor struct {
	api     *sdk.Client
	timeout time.Duration

	mu     sync.Mutex
	primed bool
}

func New(opts Options) (*Processor, error) {
	api, err := sdk.NewClient(opts.ClientID, opts.ClientSecret, strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", paymentdomain.ErrInvalidConfig, err)
	}
	if opts.HTTPClient != nil {
		api.SetHTTPClient(opts.HTTPClient)
	}
	return &Processor{api: api, timeout: opts.Timeout}, nil
}

func (p *Processor) Name() string { return providerName }

func (p *Processor) CreateOrder(ctx context.Context, req paymentdomain.OrderRequest) (*paymentdomain.Order, error) {
	if req.AmountCents <= 0 {
		return nil, paymentdomain.ErrInvalidAmount
	}
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	if err := p.prime(ctx); err != nil {
		return nil, classify("access token", err)
	}

	currency := strings.ToUpper(req.Currency)
	units := []sdk.PurchaseUnitRequest{{
		ReferenceID: req.Reference,
		Description: req.Description,
		Amount: &sdk.PurchaseUnitAmount{
			Currency: currency,
			Value:    FormatAmount(req.AmountCents, currency),
		},
	}}

	// The reference doubles as PayPal-Request-Id so a retried create returns the same order.
	order, err := p.api.CreateOrderWithPaypalRequestID(ctx, sdk.OrderIntentCapture, units, nil, nil, req.Reference)
	if err != nil {
		return nil, classify("create order", err)
	}

	result := &paymentdomain.Order{ID: order.ID}
	for _, l := range order.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			result.ApprovalURL = l.Href
			break
		}
	}
	return result, nil
}

func (p *Processor) CaptureOrder(ctx context.Context, orderID string) (*paymentdomain.Capture, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	if err := p.prime(ctx); err != nil {
		return nil, classify("access token", err)
	}

	captured, err := p.api.CaptureOrder(ctx, orderID, sdk.CaptureOrderRequest{})
	if err == nil {
		return captureFrom(capturedView(captured))
	}
	if !hasIssue(err, "ORDER_ALREADY_CAPTURED") {
		return nil, classify("capture order", err)
	}

	// A previous attempt went through; read the capture back.
	order, getErr := p.api.GetOrder(ctx, orderID)
	if getErr != nil {
		return nil, fmt.Errorf("%w: %v", paymentdomain.ErrAlreadyCaptured, classify("get order", getErr))
	}
	return captureFrom(orderView(order))
}

func (p *Processor) prime(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.primed {
		return nil
	}
	if _, err := p.api.GetAccessToken(ctx); err != nil {
		return err
	}
	p.primed = true
	return nil
}

// view is the part of an order or capture response a Capture is built from.
type view struct {
	id         string
	status     string
	payerEmail string
	captures   []sdk.CaptureAmount
}

func orderView(order *sdk.Order) view {
	v := view{id: order.ID, status: order.Status}
	if order.Payer != nil {
		v.payerEmail = order.Payer.EmailAddress
	}
	for _, unit := range order.PurchaseUnits {
		if unit.Payments != nil {
			v.captures = append(v.captures, unit.Payments.Captures...)
		}
	}
	return v
}

func capturedView(resp *sdk.CaptureOrderResponse) view {
	v := view{id: resp.ID, status: resp.Status}
	if resp.Payer != nil {
		v.payerEmail = resp.Payer.EmailAddress
	}
	for _, unit := range resp.PurchaseUnits {
		if unit.Payments != nil {
			v.captures = append(v.captures, unit.Payments.Captures...)
		}
	}
	return v
}

func captureFrom(v view) (*paymentdomain.Capture, error) {
	for _, c := range v.captures {
		switch c.Status {
		case "COMPLETED", "PENDING":
		case "DECLINED", "FAILED":
			return nil, fmt.Errorf("%w: capture %s is %s", paymentdomain.ErrPaymentDeclined, c.ID, c.Status)
		default:
			continue
		}
		if c.Amount == nil {
			return nil, fmt.Errorf("%w: capture %s has no amount", paymentdomain.ErrProcessor, c.ID)
		}
		cents, err := ParseAmount(c.Amount.Value, c.Amount.Currency)
		if err != nil {
			return nil, fmt.Errorf("%w: capture %s amount: %v", paymentdomain.ErrProcessor, c.ID, err)
		}
		return &paymentdomain.Capture{
			CaptureID:           c.ID,
			AmountCapturedCents: cents,
			Currency:            strings.ToUpper(c.Amount.Currency),
			PayerEmail:          v.payerEmail,
		}, nil
	}
	return nil, fmt.Errorf("%w: order %s has no capture (status %s)", paymentdomain.ErrProcessor, v.id, v.status)
}

func hasIssue(err error, issue string) bool {
	var apiErr *sdk.ErrorResponse
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, d := range apiErr.Details {
		if d.Issue == issue {
			return true
		}
	}
	return false
}

func classify(op string, err error) error {
	if hasIssue(err, "INSTRUMENT_DECLINED") || hasIssue(err, "TRANSACTION_REFUSED") {
		return fmt.Errorf("%w: %s: %v", paymentdomain.ErrPaymentDeclined, op, err)
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %s", paymentdomain.ErrProcessorTimeout, op)
	}
	return fmt.Errorf("%w: %s: %v", paymentdomain.ErrProcessor, op, err)
}

func (p *Processor) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.timeout)
}

// FormatAmount renders minor units in PayPal's decimal string form.
func FormatAmount(cents int64, currency string) string {
	return money.Format(cents, currency)
}

// ParseAmount converts a PayPal decimal string back to minor units.
func ParseAmount(value, currency string) (int64, error) {
	return money.Parse(value, currency)
}
