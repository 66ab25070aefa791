// Package instrumentation provides OpenTelemetry instrumentation for
// the chatplan scheduling service.
//
// This package enables production-grade observability through:
//   - OpenTelemetry metrics for calendar provider calls, tool execution, and the orchestration loop
//   - Distributed tracing for tool invocations and provider calls
//   - Prometheus metrics export via /metrics endpoint on dedicated port
//   - OTLP export support for modern observability platforms
//
// # Metrics
//
// The package exposes the following metric categories:
//
// Calendar Provider Metrics:
//   - calendar_api_operations_total: Counter of provider operations by operation and status
//   - calendar_api_operation_duration_seconds: Histogram of provider operation durations
//   - calendar_cache_lookups_total: Counter of event cache lookups by result
//
// OAuth Metrics:
//   - oauth_token_refresh_total: Counter of token refresh attempts by result
//
// Tool Metrics:
//   - tool_invocations_total: Counter of tool invocations by tool name and status
//   - tool_duration_seconds: Histogram of tool execution durations
//
// Orchestration Metrics:
//   - orchestration_runs_total: Counter of loop runs by status
//   - orchestration_rounds: Histogram of model turns per run
//   - orchestration_run_duration_seconds: Histogram of run durations
//   - orchestration_iteration_cap_total: Counter of runs forced terminal by the cap
//
// # Tracing
//
// Distributed tracing spans are created for:
//   - Tool invocations (tool.<name>)
//   - Calendar provider calls (calendar.<operation>)
//   - Orchestration runs (orchestration.run)
//
// # Configuration
//
// Instrumentation can be configured via environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: Metrics exporter type (prometheus, otlp, stdout, default: prometheus)
//   - TRACING_EXPORTER: Tracing exporter type (otlp, stdout, none, default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: chatplan)
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.Config{
//		ServiceName:    "chatplan",
//		ServiceVersion: "0.1.0",
//		Enabled:        true,
//	})
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	recorder := provider.Metrics()
//	recorder.RecordCalendarOperation(ctx, "list", "success", time.Since(start))
//	recorder.RecordToolInvocation(ctx, "detectConflicts", "success", time.Since(start))
package instrumentation
