package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys.
const (
	attrStatus    = "status"
	attrOperation = "operation"
	attrResult    = "result"
	attrTool      = "tool"
	attrUser      = "user"
)

// Metrics provides methods for recording observability metrics.
// All record methods are safe on a nil receiver, so instrumentation can
// be left unconfigured in tests and one-shot CLI runs.
type Metrics struct {
	// Calendar provider metrics
	calendarOperationsTotal   metric.Int64Counter
	calendarOperationDuration metric.Float64Histogram
	cacheLookupsTotal         metric.Int64Counter

	// OAuth metrics
	tokenRefreshTotal metric.Int64Counter

	// Tool metrics
	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram

	// Orchestration metrics
	orchestrationRunsTotal metric.Int64Counter
	orchestrationRounds    metric.Int64Histogram
	orchestrationDuration  metric.Float64Histogram
	iterationCapTotal      metric.Int64Counter

	// detailedLabels controls whether high-cardinality labels are
	// included.
	detailedLabels bool
}

// NewMetrics creates a Metrics instance with all instruments
// initialized on meter.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{
		detailedLabels: detailedLabels,
	}

	var err error

	m.calendarOperationsTotal, err = meter.Int64Counter(
		"calendar_api_operations_total",
		metric.WithDescription("Total number of calendar provider operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_api_operations_total counter: %w", err)
	}

	m.calendarOperationDuration, err = meter.Float64Histogram(
		"calendar_api_operation_duration_seconds",
		metric.WithDescription("Calendar provider operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_api_operation_duration_seconds histogram: %w", err)
	}

	m.cacheLookupsTotal, err = meter.Int64Counter(
		"calendar_cache_lookups_total",
		metric.WithDescription("Total number of event cache lookups by result"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_cache_lookups_total counter: %w", err)
	}

	m.tokenRefreshTotal, err = meter.Int64Counter(
		"oauth_token_refresh_total",
		metric.WithDescription("Total number of OAuth token refresh attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_token_refresh_total counter: %w", err)
	}

	m.toolInvocationsTotal, err = meter.Int64Counter(
		"tool_invocations_total",
		metric.WithDescription("Total number of tool invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool_invocations_total counter: %w", err)
	}

	m.toolDuration, err = meter.Float64Histogram(
		"tool_duration_seconds",
		metric.WithDescription("Tool execution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool_duration_seconds histogram: %w", err)
	}

	m.orchestrationRunsTotal, err = meter.Int64Counter(
		"orchestration_runs_total",
		metric.WithDescription("Total number of orchestration loop runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestration_runs_total counter: %w", err)
	}

	m.orchestrationRounds, err = meter.Int64Histogram(
		"orchestration_rounds",
		metric.WithDescription("Model turns taken per orchestration run"),
		metric.WithUnit("{round}"),
		metric.WithExplicitBucketBoundaries(1, 2, 3, 4, 5, 8, 10),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestration_rounds histogram: %w", err)
	}

	m.orchestrationDuration, err = meter.Float64Histogram(
		"orchestration_run_duration_seconds",
		metric.WithDescription("Orchestration run duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0, 120.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestration_run_duration_seconds histogram: %w", err)
	}

	m.iterationCapTotal, err = meter.Int64Counter(
		"orchestration_iteration_cap_total",
		metric.WithDescription("Total number of runs terminated by the iteration cap"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestration_iteration_cap_total counter: %w", err)
	}

	return m, nil
}

// RecordCalendarOperation records one calendar provider operation.
//
// Parameters:
//   - operation: Operation type (list, create, update, delete)
//   - status: Result status ("success" or "error")
//   - duration: Time taken for the operation
func (m *Metrics) RecordCalendarOperation(ctx context.Context, operation, status string, duration time.Duration) {
	if m == nil || m.calendarOperationsTotal == nil || m.calendarOperationDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	m.calendarOperationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.calendarOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordCacheLookup records one event cache lookup.
// Result should be one of: "hit", "miss"
func (m *Metrics) RecordCacheLookup(ctx context.Context, result string) {
	if m == nil || m.cacheLookupsTotal == nil {
		return // Instrumentation not initialized
	}

	m.cacheLookupsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordTokenRefresh records an OAuth token refresh attempt.
// Result should be one of: "success", "failure"
func (m *Metrics) RecordTokenRefresh(ctx context.Context, result string) {
	if m == nil || m.tokenRefreshTotal == nil {
		return // Instrumentation not initialized
	}

	m.tokenRefreshTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordToolInvocation records one tool invocation with tool name,
// status, and duration.
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status string, duration time.Duration) {
	if m == nil || m.toolInvocationsTotal == nil || m.toolDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	}

	m.toolInvocationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordToolInvocationForUser is RecordToolInvocation plus a user
// label when detailed labels are enabled. Pass a cardinality-safe user
// value (ExtractUserDomain or AnonymizeUser output), never a raw
// identifier.
func (m *Metrics) RecordToolInvocationForUser(ctx context.Context, toolName, status, userHash string, duration time.Duration) {
	if m == nil || m.toolInvocationsTotal == nil || m.toolDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	}

	// Only add high-cardinality labels if explicitly enabled.
	if m.detailedLabels && userHash != "" {
		attrs = append(attrs, attribute.String(attrUser, userHash))
	}

	m.toolInvocationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordOrchestrationRun records one completed orchestration run.
//
// Parameters:
//   - status: Result status ("success" or "error")
//   - rounds: Model turns taken
//   - duration: Wall-clock duration of the run
func (m *Metrics) RecordOrchestrationRun(ctx context.Context, status string, rounds int, duration time.Duration) {
	if m == nil || m.orchestrationRunsTotal == nil {
		return // Instrumentation not initialized
	}

	m.orchestrationRunsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrStatus, status)))
	m.orchestrationRounds.Record(ctx, int64(rounds))
	m.orchestrationDuration.Record(ctx, duration.Seconds())
}

// RecordIterationCap counts a run forced terminal by the iteration cap.
func (m *Metrics) RecordIterationCap(ctx context.Context) {
	if m == nil || m.iterationCapTotal == nil {
		return // Instrumentation not initialized
	}

	m.iterationCapTotal.Add(ctx, 1)
}
