// Package stripe captures purchases through manual-capture PaymentIntents.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/smallbiznis/audiostore/internal/config"
	paymentdomain "github.com/smallbiznis/audiostore/internal/payment/domain"
	stripe "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
)

const providerName = "stripe"

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return providerName
}

func (f *Factory) Enabled(cfg config.PaymentConfig) bool {
	return cfg.StripeEnabled()
}

func (f *Factory) NewProcessor(cfg config.PaymentConfig) (paymentdomain.Processor, error) {
	key := strings.TrimSpace(cfg.StripeSecretKey)
	if key == "" {
		return nil, paymentdomain.ErrInvalidConfig
	}
	return New(key, cfg.StripeBaseURL, &http.Client{Timeout: cfg.CallTimeout}, cfg.CallTimeout), nil
}

type Processor struct {
	api     *client.API
	timeout time.Duration
}

// New builds a processor against baseURL, or the public Stripe API when empty.
func New(secretKey, baseURL string, httpClient *http.Client, timeout time.Duration) *Processor {
	backendCfg := &stripe.BackendConfig{
		HTTPClient:        httpClient,
		MaxNetworkRetries: stripe.Int64(0),
	}
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		backendCfg.URL = stripe.String(baseURL)
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg)

	return &Processor{
		api: client.New(secretKey, &stripe.Backends{
			API:     backend,
			Connect: backend,
			Uploads: backend,
		}),
		timeout: timeout,
	}
}

func (p *Processor) Name() string { return providerName }

func (p *Processor) CreateOrder(ctx context.Context, req paymentdomain.OrderRequest) (*paymentdomain.Order, error) {
	if req.AmountCents <= 0 {
		return nil, paymentdomain.ErrInvalidAmount
	}
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(req.AmountCents),
		Currency:      stripe.String(strings.ToLower(req.Currency)),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	params.Context = ctx
	if req.Reference != "" {
		params.SetIdempotencyKey("order_" + req.Reference)
		params.AddMetadata("reference", req.Reference)
	}

	intent, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return nil, classify("create payment intent", err)
	}
	return &paymentdomain.Order{
		ID:          intent.ID,
		ClientToken: intent.ClientSecret,
	}, nil
}

func (p *Processor) CaptureOrder(ctx context.Context, orderID string) (*paymentdomain.Capture, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	getParams := &stripe.PaymentIntentParams{}
	getParams.Context = ctx
	getParams.AddExpand("latest_charge")
	intent, err := p.api.PaymentIntents.Get(orderID, getParams)
	if err != nil {
		return nil, classify("get payment intent", err)
	}

	switch intent.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return captureFrom(intent), nil
	case stripe.PaymentIntentStatusRequiresCapture:
	case stripe.PaymentIntentStatusCanceled:
		return nil, fmt.Errorf("%w: payment intent %s is %s", paymentdomain.ErrPaymentDeclined, intent.ID, intent.Status)
	default:
		// requires_payment_method is both the unconfirmed state and the state
		// after a declined attempt the customer may retry, so the order stays open.
		return nil, fmt.Errorf("%w: payment intent %s is %s", paymentdomain.ErrProcessor, intent.ID, intent.Status)
	}

	captureParams := &stripe.PaymentIntentCaptureParams{}
	captureParams.Context = ctx
	captureParams.AddExpand("latest_charge")
	captureParams.SetIdempotencyKey("capture_" + intent.ID)
	captured, err := p.api.PaymentIntents.Capture(intent.ID, captureParams)
	if err != nil {
		return nil, classify("capture payment intent", err)
	}
	if captured.Status != stripe.PaymentIntentStatusSucceeded {
		return nil, fmt.Errorf("%w: payment intent %s is %s after capture", paymentdomain.ErrProcessor, captured.ID, captured.Status)
	}
	return captureFrom(captured), nil
}

func (p *Processor) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.timeout)
}

func captureFrom(intent *stripe.PaymentIntent) *paymentdomain.Capture {
	capture := &paymentdomain.Capture{
		CaptureID:           intent.ID,
		PayerEmail:          intent.ReceiptEmail,
		AmountCapturedCents: intent.AmountReceived,
		Currency:            strings.ToUpper(string(intent.Currency)),
	}
	if charge := intent.LatestCharge; charge != nil {
		if charge.ID != "" {
			capture.CaptureID = charge.ID
		}
		if charge.BillingDetails != nil && charge.BillingDetails.Email != "" {
			capture.PayerEmail = charge.BillingDetails.Email
		}
	}
	return capture
}

func classify(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.Type == stripe.ErrorTypeCard {
			return fmt.Errorf("%w: %s: %s", paymentdomain.ErrPaymentDeclined, op, stripeErr.Code)
		}
		return fmt.Errorf("%w: %s: %s (%d)", paymentdomain.ErrProcessor, op, stripeErr.Type, stripeErr.HTTPStatusCode)
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %s", paymentdomain.ErrProcessorTimeout, op)
	}
	return fmt.Errorf("%w: %s: %v", paymentdomain.ErrProcessor, op, err)
}
