package metrics

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
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

// Metrics exposes document-level instruments. A nil *Metrics records nothing.
type Metrics struct {
	identifiersIssued  metric.Int64Counter
	counterContention  metric.Int64Counter
	totalsRecomputed   metric.Int64Counter
	documentsConverted metric.Int64Counter
	rateLimitDenied    metric.Int64Counter
}

// NewProvider installs a periodic OTLP meter provider, or a no-op one when
// export is disabled.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, errors.Wrap(err, "metric exporter")
	}
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", serviceName(cfg)),
		attribute.String("deployment.environment", strings.TrimSpace(cfg.Environment)),
	))
	if err != nil {
		return nil, errors.Wrap(err, "metric resource")
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(exportInterval))),
	)
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: provider.Shutdown,
		})
	}
	if log != nil {
		log.Info("metric export enabled",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}
	return provider, nil
}

const exportInterval = 10 * time.Second

func serviceName(cfg Config) string {
	if name := strings.TrimSpace(cfg.ServiceName); name != "" {
		return name
	}
	return "docflow"
}

// New creates the document instruments on provider's meter.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter(serviceName(cfg))
	m := &Metrics{}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.identifiersIssued, "docflow_identifiers_issued_total", "Public identifiers issued, by counter key."},
		{&m.counterContention, "docflow_counter_contention_total", "Counter row lock attempts that gave up."},
		{&m.totalsRecomputed, "docflow_totals_recomputed_total", "Parent total recomputations, by parent and whether the total changed."},
		{&m.documentsConverted, "docflow_documents_converted_total", "Conversions along the document chain, by outcome."},
		{&m.rateLimitDenied, "docflow_rate_limit_denied_total", "Requests rejected by the rate limiter."},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, errors.Wrapf(err, "counter %s", c.name)
		}
		*c.dst = counter
	}
	return m, nil
}

// RecordIdentifierIssued counts identifiers handed out per counter key.
func (m *Metrics) RecordIdentifierIssued(ctx context.Context, counterKey string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("counter_key", strings.TrimSpace(counterKey)))
	m.identifiersIssued.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordCounterContention(ctx context.Context, counterKey string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("counter_key", strings.TrimSpace(counterKey)))
	m.counterContention.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordTotalRecomputed counts aggregate recomputations and whether they wrote.
func (m *Metrics) RecordTotalRecomputed(ctx context.Context, parent string, changed bool) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("parent", strings.TrimSpace(parent)),
		attribute.Bool("changed", changed),
	)
	m.totalsRecomputed.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordDocumentConverted counts conversions along the document chain.
func (m *Metrics) RecordDocumentConverted(ctx context.Context, from, to, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("from", strings.TrimSpace(from)),
		attribute.String("to", strings.TrimSpace(to)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.documentsConverted.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
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
		return nil, errors.Newf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"counter_key": {},
	"parent":      {},
	"changed":     {},
	"from":        {},
	"to":          {},
	"outcome":     {},
	"endpoint":    {},
	"status_code": {},
	"reason":      {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
