package observability

import (
	"context"
	"fmt"
	"net/http"

	promclient "github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics manages the pipeline metrics. A nil *Metrics (or one built with
// Enabled false) is safe to use and records nothing.
type Metrics struct {
	meter metric.Meter

	pipelineRuns     metric.Int64Counter
	pipelineDuration metric.Float64Histogram
	upstreamFailures metric.Int64Counter
	activeRequests   metric.Int64UpDownCounter
}

// NewMetrics builds the otel meter provider with a Prometheus exporter and
// registers the pipeline instruments.
func NewMetrics(enabled bool) (*Metrics, error) {
	if !enabled {
		return nil, nil
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(provider)

	meter := provider.Meter("maestro-builder")

	m := &Metrics{meter: meter}

	m.pipelineRuns, err = meter.Int64Counter(
		"builder.pipeline.runs.total",
		metric.WithDescription("Total number of orchestration runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline_runs counter: %w", err)
	}

	m.pipelineDuration, err = meter.Float64Histogram(
		"builder.pipeline.duration",
		metric.WithDescription("Orchestration run duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline_duration histogram: %w", err)
	}

	m.upstreamFailures, err = meter.Int64Counter(
		"builder.upstream.failures.total",
		metric.WithDescription("Total number of remote agent service failures"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream_failures counter: %w", err)
	}

	m.activeRequests, err = meter.Int64UpDownCounter(
		"builder.requests.active",
		metric.WithDescription("Requests currently being processed"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create active_requests counter: %w", err)
	}

	return m, nil
}

// Handler returns the Prometheus scrape handler.
func (m *Metrics) Handler() http.Handler {
	return promclient.Handler()
}

// RecordRun counts one completed orchestration run by intent and outcome.
func (m *Metrics) RecordRun(ctx context.Context, intent string, success bool) {
	if m == nil || m.pipelineRuns == nil {
		return
	}
	m.pipelineRuns.Add(ctx, 1, metric.WithAttributes(
		attribute.String("intent", intent),
		attribute.Bool("success", success),
	))
}

// ObserveDuration records the wall time of one orchestration run.
func (m *Metrics) ObserveDuration(ctx context.Context, seconds float64) {
	if m == nil || m.pipelineDuration == nil {
		return
	}
	m.pipelineDuration.Record(ctx, seconds)
}

// RecordUpstreamFailure counts a failed call to a remote agent service.
func (m *Metrics) RecordUpstreamFailure(ctx context.Context, service string) {
	if m == nil || m.upstreamFailures == nil {
		return
	}
	m.upstreamFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("service", service)))
}

// RequestStarted marks a request as in flight.
func (m *Metrics) RequestStarted(ctx context.Context) {
	if m == nil || m.activeRequests == nil {
		return
	}
	m.activeRequests.Add(ctx, 1)
}

// RequestFinished marks a request as done.
func (m *Metrics) RequestFinished(ctx context.Context) {
	if m == nil || m.activeRequests == nil {
		return
	}
	m.activeRequests.Add(ctx, -1)
}
