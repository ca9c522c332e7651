package limits

import (
	"errors"
	"time"

	"mercator-hq/tollgate/pkg/limits/bucket"
)

var (
	// ErrNotFound is returned when an identifier is absent from the registry.
	ErrNotFound = errors.New("bucket not found")

	// ErrInvalidArgument is returned for negative or non-finite token counts,
	// rates and capacities, and for empty identifiers.
	ErrInvalidArgument = bucket.ErrInvalidArgument

	// ErrRefillUndefined is returned when tokens are insufficient and the
	// refill rate is zero.
	ErrRefillUndefined = bucket.ErrRefillUndefined

	// ErrMalformedSnapshot is returned when a snapshot cannot be loaded.
	// The registry is left untouched.
	ErrMalformedSnapshot = errors.New("malformed snapshot")
)

// Outcome classifies the result of a consume attempt.
type Outcome string

const (
	// OutcomeAllowed means the tokens were debited.
	OutcomeAllowed Outcome = "allowed"

	// OutcomeUnlimited means the bucket has unlimited capacity and nothing
	// was debited.
	OutcomeUnlimited Outcome = "unlimited"

	// OutcomeExhausted means the balance could not cover the cost.
	OutcomeExhausted Outcome = "exhausted"

	// OutcomeNotFound means no bucket exists for the identifier.
	OutcomeNotFound Outcome = "not_found"
)

// Decision is the detailed result of Manager.TryConsume.
type Decision struct {
	// Allowed indicates the caller may proceed.
	Allowed bool

	// Outcome explains the decision.
	Outcome Outcome

	// Balance is the balance observed right after the attempt.
	// +Inf for unlimited buckets, zero when the bucket is absent.
	Balance float64

	// RetryAfter is how long until the cost can be covered at the current
	// refill rate. Only set for OutcomeExhausted; zero when the bucket
	// never refills.
	RetryAfter time.Duration
}

// BucketInfo describes one bucket in the registry.
type BucketInfo struct {
	Identifier string
	bucket.State
}

// BucketSpec declares a bucket, typically from configuration.
type BucketSpec struct {
	// Capacity is the maximum balance.
	Capacity bucket.Capacity

	// InitialBalance is the balance a newly created bucket starts with.
	InitialBalance float64

	// RefillRate is in tokens per second.
	RefillRate float64
}

// ReconcileResult lists what Manager.Reconcile changed.
type ReconcileResult struct {
	// Created lists identifiers that did not exist.
	Created []string

	// Replaced lists identifiers whose capacity or refill rate changed.
	// Their balance was reset to the declared initial balance.
	Replaced []string

	// Unchanged lists identifiers left as they were.
	Unchanged []string
}
