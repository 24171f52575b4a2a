package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes commerce instruments.
type Metrics struct {
	purchases          metric.Int64Counter
	redemptions        metric.Int64Counter
	discountRejections metric.Int64Counter
	invoicesIssued     metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				log.Info("shutting down meter provider")
				return provider.Shutdown(ctx)
			},
		})
	}

	log.Info("metrics initialized",
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.String("protocol", cfg.ExporterProtocol),
	)
	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "audiostore"
	}
	meter := provider.Meter(name)

	purchases, err := meter.Int64Counter("audiostore_purchases_total",
		metric.WithDescription("Purchase lifecycle transitions by resulting status."))
	if err != nil {
		return nil, err
	}
	redemptions, err := meter.Int64Counter("audiostore_discount_redemptions_total",
		metric.WithDescription("Discount codes applied at purchase completion."))
	if err != nil {
		return nil, err
	}
	discountRejections, err := meter.Int64Counter("audiostore_discount_rejections_total",
		metric.WithDescription("Discounts dropped when re-validated at completion."))
	if err != nil {
		return nil, err
	}
	invoicesIssued, err := meter.Int64Counter("audiostore_invoices_issued_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		purchases:          purchases,
		redemptions:        redemptions,
		discountRejections: discountRejections,
		invoicesIssued:     invoicesIssued,
	}, nil
}

func (m *Metrics) RecordPurchase(ctx context.Context, status, processor string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("status", strings.TrimSpace(status)),
		attribute.String("processor", strings.TrimSpace(processor)),
	)
	m.purchases.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordRedemption(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.redemptions.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("kind", kind))...))
}

func (m *Metrics) RecordDiscountRejected(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.discountRejections.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("reason", reason))...))
}

func (m *Metrics) RecordInvoiceIssued(ctx context.Context, sourceType string) {
	if m == nil {
		return
	}
	m.invoicesIssued.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("source_type", sourceType))...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"status":      {},
	"processor":   {},
	"kind":        {},
	"reason":      {},
	"source_type": {},
	"route":       {},
	"method":      {},
}

// FilterAttributes keeps only low-cardinality label keys.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; ok {
			out = append(out, attr)
		}
	}
	return out
}
