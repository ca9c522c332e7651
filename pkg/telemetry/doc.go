// Package telemetry groups Tollgate's observability packages.
//
//   - logging: log/slog construction, context enrichment, secret masking
//   - metrics: Prometheus registry, promhttp handler, admin API metrics
//   - tracing: OpenTelemetry tracer provider with OTLP/gRPC or stdout export
//   - health: liveness and readiness probes
//
// Each subpackage is configured from the telemetry section of config.Config
// and wired together by the run command.
package telemetry
