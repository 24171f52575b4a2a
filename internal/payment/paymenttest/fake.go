// Package paymenttest provides an in-memory payment processor for tests.
package paymenttest

import (
	"context"
	"fmt"
	"sync"

	paymentdomain "github.com/smallbiznis/audiostore/internal/payment/domain"
)

type order struct {
	request paymentdomain.OrderRequest
}

// FakeProcessor records orders and captures them for the full ordered amount.
type FakeProcessor struct {
	mu sync.Mutex

	name         string
	seq          int
	orders       map[string]*order
	createErr    error
	captureErrs  map[string]error
	captureCalls int
}

func NewFakeProcessor(name string) *FakeProcessor {
	return &FakeProcessor{
		name:        name,
		orders:      map[string]*order{},
		captureErrs: map[string]error{},
	}
}

func (f *FakeProcessor) Name() string { return f.name }

// FailCreate makes every following CreateOrder return err; nil clears it.
func (f *FakeProcessor) FailCreate(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createErr = err
}

// FailCapture makes captures of orderID return err; nil clears it.
func (f *FakeProcessor) FailCapture(orderID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.captureErrs, orderID)
		return
	}
	f.captureErrs[orderID] = err
}

func (f *FakeProcessor) CaptureCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.captureCalls
}

func (f *FakeProcessor) Order(orderID string) (paymentdomain.OrderRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return paymentdomain.OrderRequest{}, false
	}
	return o.request, true
}

func (f *FakeProcessor) CreateOrder(ctx context.Context, req paymentdomain.OrderRequest) (*paymentdomain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	if req.AmountCents <= 0 {
		return nil, paymentdomain.ErrInvalidAmount
	}
	f.seq++
	id := fmt.Sprintf("%s-order-%d", f.name, f.seq)
	f.orders[id] = &order{request: req}
	return &paymentdomain.Order{
		ID:          id,
		ApprovalURL: "https://pay.example.com/approve/" + id,
	}, nil
}

func (f *FakeProcessor) CaptureOrder(ctx context.Context, orderID string) (*paymentdomain.Capture, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captureCalls++
	if err, ok := f.captureErrs[orderID]; ok {
		return nil, err
	}
	o, ok := f.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown order %s", paymentdomain.ErrProcessor, orderID)
	}
	return &paymentdomain.Capture{
		CaptureID:           "cap-" + orderID,
		PayerEmail:          "payer@example.com",
		AmountCapturedCents: o.request.AmountCents,
		Currency:            o.request.Currency,
	}, nil
}
