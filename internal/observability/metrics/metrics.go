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

// Metrics exposes application-level instruments.
type Metrics struct {
	transitions    metric.Int64Counter
	paymentEvents  metric.Int64Counter
	auditFailures  metric.Int64Counter
	notifyFailures metric.Int64Counter
	jobRuns        metric.Int64Counter
	jobDuration    metric.Float64Histogram
	rateLimited    metric.Int64Counter
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
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "procura"
	}
	meter := provider.Meter(name)

	transitions, err := meter.Int64Counter("procura_lifecycle_transitions_total",
		metric.WithDescription("Successful lifecycle transitions by entity and action"))
	if err != nil {
		return nil, err
	}
	paymentEvents, err := meter.Int64Counter("procura_payment_events_total")
	if err != nil {
		return nil, err
	}
	auditFailures, err := meter.Int64Counter("procura_audit_write_failures_total")
	if err != nil {
		return nil, err
	}
	notifyFailures, err := meter.Int64Counter("procura_notification_failures_total")
	if err != nil {
		return nil, err
	}

	jobRuns, err := meter.Int64Counter("procura_scheduler_job_runs_total")
	if err != nil {
		return nil, err
	}
	jobDuration, err := meter.Float64Histogram("procura_scheduler_job_duration_seconds",
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	rateLimited, err := meter.Int64Counter("procura_rate_limited_requests_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		transitions:    transitions,
		paymentEvents:  paymentEvents,
		auditFailures:  auditFailures,
		notifyFailures: notifyFailures,
		jobRuns:        jobRuns,
		jobDuration:    jobDuration,
		rateLimited:    rateLimited,
	}, nil
}

// RecordTransition counts a committed state change.
func (m *Metrics) RecordTransition(ctx context.Context, entity, action string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("entity", strings.TrimSpace(entity)),
		attribute.String("action", strings.TrimSpace(action)),
	)
	m.transitions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordPaymentEvent increments payment event counts.
func (m *Metrics) RecordPaymentEvent(ctx context.Context, provider, eventType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("provider", strings.TrimSpace(provider)),
		attribute.String("event_type", strings.TrimSpace(eventType)),
	)
	m.paymentEvents.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordAuditFailure(ctx context.Context, action string) {
	if m == nil {
		return
	}
	m.auditFailures.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("action", action))...))
}

func (m *Metrics) RecordNotificationFailure(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.notifyFailures.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("reason", kind))...))
}

// RecordJobRun counts one scheduler job execution by outcome (ok, error, timeout, skipped).
func (m *Metrics) RecordJobRun(ctx context.Context, job, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(FilterAttributes(
		attribute.String("job", job),
		attribute.String("outcome", outcome),
	)...)
	m.jobRuns.Add(ctx, 1, attrs)
	m.jobDuration.Record(ctx, elapsed.Seconds(), attrs)
}

func (m *Metrics) RecordRateLimited(ctx context.Context, scope string) {
	if m == nil {
		return
	}
	m.rateLimited.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("scope", scope))...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
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
	"entity":      {},
	"action":      {},
	"route":       {},
	"method":      {},
	"status_code": {},
	"provider":    {},
	"event_type":  {},
	"reason":      {},
	"job":         {},
	"outcome":     {},
	"scope":       {},
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
