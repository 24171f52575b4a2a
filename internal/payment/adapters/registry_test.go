package adapters

import (
	"context"
	"testing"

	"github.com/smallbiznis/audiostore/internal/config"
	"github.com/smallbiznis/audiostore/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubProcessor struct{ name string }

func (s stubProcessor) Name() string { return s.name }

func (s stubProcessor) CreateOrder(context.Context, domain.OrderRequest) (*domain.Order, error) {
	return &domain.Order{ID: s.name + "-order"}, nil
}

func (s stubProcessor) CaptureOrder(context.Context, string) (*domain.Capture, error) {
	return &domain.Capture{CaptureID: s.name + "-capture"}, nil
}

type stubFactory struct {
	name    string
	enabled bool
}

func (f stubFactory) Provider() string { return f.name }

func (f stubFactory) Enabled(config.PaymentConfig) bool { return f.enabled }

func (f stubFactory) NewProcessor(config.PaymentConfig) (domain.Processor, error) {
	return stubProcessor{name: f.name}, nil
}

func TestRegistrySkipsDisabledFactories(t *testing.T) {
	registry, err := NewRegistry(config.PaymentConfig{DefaultProcessor: "Stripe"}, zap.NewNop(),
		stubFactory{name: "stripe", enabled: true},
		stubFactory{name: "paypal", enabled: false},
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"stripe"}, registry.Names())
	assert.True(t, registry.ProviderExists(" STRIPE "))
	assert.False(t, registry.ProviderExists("paypal"))

	processor, err := registry.Get("")
	require.NoError(t, err)
	assert.Equal(t, "stripe", processor.Name())

	_, err = registry.Get("paypal")
	assert.ErrorIs(t, err, domain.ErrProcessorNotFound)
}

func TestStaticRegistry(t *testing.T) {
	registry := NewStaticRegistry("fake", stubProcessor{name: "fake"})

	processor, err := registry.Get("")
	require.NoError(t, err)
	assert.Equal(t, "fake", processor.Name())

	var nilRegistry *Registry
	_, err = nilRegistry.Get("fake")
	assert.ErrorIs(t, err, domain.ErrProcessorNotFound)
}
