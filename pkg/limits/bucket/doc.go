// Package bucket implements a single continuous-refill token bucket.
//
// # Overview
//
// A TokenBucket holds a balance of tokens bounded by a Capacity. Tokens are
// credited continuously at a fixed refill rate (tokens per second) and
// debited by Consume. Refill is an explicit operation: Consume never refills
// on its own, so callers that want an up-to-date balance call Refill first.
//
//	b, err := bucket.New(bucket.Finite(100), 100, 10, bucket.SystemClock{})
//	if err != nil {
//	    return err
//	}
//	b.Refill()
//	ok, err := b.Consume(60) // true, balance 40
//
// # Capacity
//
// Capacity is a tagged variant: Finite(n) or Unlimited(). An unlimited bucket
// accepts every valid Consume without touching its balance and ignores Refill.
//
// # Thread Safety
//
// Every bucket owns a mutex. Consume is a single check-and-debit under that
// mutex, so concurrent callers can never spend the same tokens twice.
package bucket
