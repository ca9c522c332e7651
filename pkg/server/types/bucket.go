package types

import (
	"math"
	"time"

	"mercator-hq/tollgate/pkg/limits"
	"mercator-hq/tollgate/pkg/limits/bucket"
	"mercator-hq/tollgate/pkg/limits/cost"
)

// Bucket is the JSON view of one bucket.
type Bucket struct {
	ID string `json:"id"`

	// Capacity is a number or the string "unlimited".
	Capacity bucket.Capacity `json:"capacity"`

	// Balance is omitted for unlimited buckets.
	Balance *float64 `json:"balance,omitempty"`

	Unlimited  bool      `json:"unlimited"`
	RefillRate float64   `json:"refill_rate"`
	LastRefill time.Time `json:"last_refill"`
}

// NewBucket builds the view of a bucket state.
func NewBucket(id string, state bucket.State) Bucket {
	view := Bucket{
		ID:         id,
		Capacity:   state.Capacity,
		Unlimited:  state.Capacity.IsUnlimited(),
		RefillRate: state.RefillRate,
		LastRefill: state.LastRefill.UTC(),
	}
	if !view.Unlimited {
		view.Balance = Amount(state.Balance)
	}
	return view
}

// BucketList is the body of GET /v1/buckets.
type BucketList struct {
	Buckets []Bucket `json:"buckets"`
	Count   int      `json:"count"`
}

// NewBucketList builds the view of a registry listing.
func NewBucketList(infos []limits.BucketInfo) BucketList {
	list := BucketList{Buckets: make([]Bucket, 0, len(infos)), Count: len(infos)}
	for _, info := range infos {
		list.Buckets = append(list.Buckets, NewBucket(info.Identifier, info.State))
	}
	return list
}

// PutBucketRequest creates or replaces a bucket.
//
// Capacity defaults to InitialBalance. InitialBalance defaults to a full
// bucket, or zero for an unlimited one.
type PutBucketRequest struct {
	Capacity       *bucket.Capacity `json:"capacity,omitempty"`
	InitialBalance *float64         `json:"initial_balance,omitempty"`
	RefillRate     float64          `json:"refill_rate"`
}

// ConsumeRequest is the body of POST /v1/buckets/{id}/consume.
//
// Exactly one way of pricing the request is used, in this order:
//   - Tokens: a raw token count
//   - Usage: measured usage, priced by Model
//   - Messages: usage estimated from a chat turn, priced by Model
//
// A request naming none of them costs bucket.DefaultCost.
type ConsumeRequest struct {
	Tokens *float64 `json:"tokens,omitempty"`

	Usage *cost.Usage `json:"usage,omitempty"`

	Messages            []cost.Message `json:"messages,omitempty"`
	MaxCompletionTokens int            `json:"max_completion_tokens,omitempty"`

	// Model selects the price of Usage and Messages.
	Model string `json:"model,omitempty"`
}

// Decision is the response of a consume request.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Outcome string `json:"outcome"`

	// Charged is the number of tokens the request was priced at.
	Charged float64 `json:"charged"`

	// Balance is omitted for unlimited buckets.
	Balance   *float64 `json:"balance,omitempty"`
	Unlimited bool     `json:"unlimited,omitempty"`

	// RetryAfterMs is set when the bucket is exhausted and refills.
	RetryAfterMs int64 `json:"retry_after_ms,omitempty"`

	Usage *cost.Usage `json:"usage,omitempty"`
}

// NewDecision builds the view of a consume decision.
func NewDecision(d limits.Decision, charged float64, usage *cost.Usage) Decision {
	view := Decision{
		Allowed: d.Allowed,
		Outcome: string(d.Outcome),
		Charged: charged,
		Usage:   usage,
	}
	if math.IsInf(d.Balance, 1) {
		view.Unlimited = true
	} else {
		view.Balance = Amount(d.Balance)
	}
	if d.RetryAfter > 0 {
		view.RetryAfterMs = d.RetryAfter.Milliseconds()
	}
	return view
}

// Wait is the response of GET /v1/buckets/{id}/wait.
type Wait struct {
	Tokens float64 `json:"tokens"`
	WaitMs int64   `json:"wait_ms"`
	Ready  bool    `json:"ready"`
}

// Refill is the response of POST /v1/refill.
type Refill struct {
	Refilled int `json:"refilled"`
}

// Snapshot describes a persisted snapshot.
type Snapshot struct {
	ID          string    `json:"id"`
	BucketCount int       `json:"bucket_count"`
	Bytes       int       `json:"bytes"`
	CreatedAt   time.Time `json:"created_at"`
}

// SnapshotLoaded is the response of PUT /v1/snapshot.
type SnapshotLoaded struct {
	Buckets int `json:"buckets"`
}

// Amount returns a pointer to a copy of v, or nil for infinities.
func Amount(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}
