// Package tracing provides OpenTelemetry distributed tracing for Tollgate.
//
// # Overview
//
// New builds a tracer provider from the telemetry.tracing configuration:
// spans are exported over OTLP/gRPC or pretty-printed to stdout, sampled by
// an always, never or ratio strategy, and propagated with W3C Trace Context.
// When tracing is disabled a noop tracer is returned and spans cost nothing.
//
// # Usage
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, tracing.WithServiceVersion(version))
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	ctx, span := tracer.Start(ctx, "limits.consume")
//	defer span.End()
//	tracing.SetDecisionAttributes(span, "agent-1", 5, "allowed", 95, 0)
//
// Incoming HTTP requests are joined to upstream traces with Extract.
package tracing
