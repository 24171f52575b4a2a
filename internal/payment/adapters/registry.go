package adapters

import (
	"fmt"
	"sort"
	"strings"

	"github.com/smallbiznis/audiostore/internal/config"
	"github.com/smallbiznis/audiostore/internal/payment/domain"
	"go.uber.org/zap"
)

// Registry holds the processors enabled by configuration.
type Registry struct {
	processors  map[string]domain.Processor
	defaultName string
}

// NewRegistry builds every factory whose credentials are configured. Factories
// without credentials are skipped; a configured factory that fails to build is
// an error.
func NewRegistry(cfg config.PaymentConfig, log *zap.Logger, factories ...domain.ProcessorFactory) (*Registry, error) {
	registry := &Registry{
		processors:  map[string]domain.Processor{},
		defaultName: normalize(cfg.DefaultProcessor),
	}
	for _, factory := range factories {
		if factory == nil {
			continue
		}
		provider := normalize(factory.Provider())
		if provider == "" || !factory.Enabled(cfg) {
			continue
		}
		processor, err := factory.NewProcessor(cfg)
		if err != nil {
			return nil, fmt.Errorf("build %s processor: %w", provider, err)
		}
		registry.processors[provider] = processor
	}

	if log != nil {
		log.Info("payment processors configured",
			zap.Strings("processors", registry.Names()),
			zap.String("default", registry.defaultName),
		)
	}
	return registry, nil
}

// NewStaticRegistry wraps already-built processors.
func NewStaticRegistry(defaultName string, processors ...domain.Processor) *Registry {
	registry := &Registry{
		processors:  map[string]domain.Processor{},
		defaultName: normalize(defaultName),
	}
	for _, processor := range processors {
		registry.processors[normalize(processor.Name())] = processor
	}
	return registry
}

func (r *Registry) ProviderExists(provider string) bool {
	if r == nil {
		return false
	}
	_, ok := r.processors[normalize(provider)]
	return ok
}

// Get resolves a processor by name; an empty name selects the default.
func (r *Registry) Get(provider string) (domain.Processor, error) {
	if r == nil {
		return nil, domain.ErrProcessorNotFound
	}
	name := normalize(provider)
	if name == "" {
		name = r.defaultName
	}
	processor, ok := r.processors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrProcessorNotFound, name)
	}
	return processor, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.processors))
	for name := range r.processors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalize(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}
