package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the planning pipeline's instruments. It is built from an
// injected meter so tests can read it back through a manual reader.
type AppMetrics struct {
	PlanRequestsTotal   metric.Int64Counter
	PlanErrorsTotal     metric.Int64Counter
	PlanRequestDuration metric.Float64Histogram
	PlanStageDuration   metric.Float64Histogram
	PlanToolCallsTotal  metric.Int64Counter
}

// New registers every instrument on meter.
func New(meter metric.Meter) (*AppMetrics, error) {
	var (
		m   AppMetrics
		err error
	)

	m.PlanRequestsTotal, err = meter.Int64Counter(
		"plan_requests_total",
		metric.WithDescription("Total number of plan requests by outcome"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create plan_requests_total: %w", err)
	}

	m.PlanErrorsTotal, err = meter.Int64Counter(
		"plan_errors_total",
		metric.WithDescription("Total number of failed plan requests by error kind"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create plan_errors_total: %w", err)
	}

	m.PlanRequestDuration, err = meter.Float64Histogram(
		"plan_request_duration_seconds",
		metric.WithDescription("End-to-end duration of plan requests in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.5, 1, 2.5, 5, 10, 20, 40, 80, 160),
	)
	if err != nil {
		return nil, fmt.Errorf("create plan_request_duration_seconds: %w", err)
	}

	m.PlanStageDuration, err = meter.Float64Histogram(
		"plan_stage_duration_seconds",
		metric.WithDescription("Duration of individual pipeline stages in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80, 120),
	)
	if err != nil {
		return nil, fmt.Errorf("create plan_stage_duration_seconds: %w", err)
	}

	m.PlanToolCallsTotal, err = meter.Int64Counter(
		"plan_tool_calls_total",
		metric.WithDescription("Total number of enrichment tool invocations"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create plan_tool_calls_total: %w", err)
	}

	return &m, nil
}

func (m *AppMetrics) IncRequest(ctx context.Context, status string) {
	m.PlanRequestsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

func (m *AppMetrics) IncError(ctx context.Context, kind string) {
	m.PlanErrorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *AppMetrics) ObserveRequestDuration(ctx context.Context, status string, d time.Duration) {
	m.PlanRequestDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("status", status)))
}

func (m *AppMetrics) ObserveStageDuration(ctx context.Context, stage string, d time.Duration) {
	m.PlanStageDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("stage", stage)))
}

func (m *AppMetrics) IncToolCall(ctx context.Context, tool string) {
	m.PlanToolCallsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("tool", tool)))
}
