package tracing

import (
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys use the "tollgate.*" namespace.
const (
	AttrBucket       = "tollgate.bucket"
	AttrTokens       = "tollgate.tokens"
	AttrOutcome      = "tollgate.outcome"
	AttrBalance      = "tollgate.balance"
	AttrUnlimited    = "tollgate.unlimited"
	AttrRetryAfterMs = "tollgate.retry_after_ms"
	AttrModel        = "tollgate.model"
	AttrRequestID    = "tollgate.request_id"

	AttrSnapshotID    = "tollgate.snapshot.id"
	AttrSnapshotBytes = "tollgate.snapshot.bytes"
	AttrBucketCount   = "tollgate.snapshot.buckets"
	AttrRefilled      = "tollgate.refill.buckets"

	AttrErrorMessage = "error.message"
)

// SetDecisionAttributes records the result of a consume attempt.
// An infinite balance is recorded as tollgate.unlimited instead.
func SetDecisionAttributes(span trace.Span, bucket string, tokens float64, outcome string, balance float64, retryAfter time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String(AttrBucket, bucket),
		attribute.Float64(AttrTokens, tokens),
		attribute.String(AttrOutcome, outcome),
	}
	if math.IsInf(balance, 1) {
		attrs = append(attrs, attribute.Bool(AttrUnlimited, true))
	} else {
		attrs = append(attrs, attribute.Float64(AttrBalance, balance))
	}
	if retryAfter > 0 {
		attrs = append(attrs, attribute.Int64(AttrRetryAfterMs, retryAfter.Milliseconds()))
	}
	span.SetAttributes(attrs...)
}

// SetSnapshotAttributes records a persisted or restored snapshot.
func SetSnapshotAttributes(span trace.Span, id string, buckets, size int) {
	span.SetAttributes(
		attribute.String(AttrSnapshotID, id),
		attribute.Int(AttrBucketCount, buckets),
		attribute.Int(AttrSnapshotBytes, size),
	)
}

// SetRefillAttributes records how many buckets a refill pass visited.
func SetRefillAttributes(span trace.Span, buckets int) {
	span.SetAttributes(attribute.Int(AttrRefilled, buckets))
}

// SetModelAttribute records the model a request was priced for.
func SetModelAttribute(span trace.Span, model string) {
	span.SetAttributes(attribute.String(AttrModel, model))
}
