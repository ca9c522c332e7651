package bucket

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// DefaultCost is the conventional price of a single unit of work.
const DefaultCost = 1.0

// maxDuration is the largest representable time.Duration.
const maxDuration = time.Duration(math.MaxInt64)

// TokenBucket implements the token bucket algorithm with continuous refill.
//
// The balance is a real number bounded by the capacity. Refill credits
// elapsed*rate tokens, where elapsed is measured with the bucket's Clock and
// clamped at zero so a clock that jumps backwards never removes tokens.
//
// # Thread Safety
//
// TokenBucket is thread-safe using sync.Mutex for all operations.
type TokenBucket struct {
	capacity   Capacity  // Maximum tokens in bucket
	balance    float64   // Current available tokens
	refillRate float64   // Tokens added per second
	lastRefill time.Time // Last time tokens were refilled
	clock      Clock
	mu         sync.Mutex
}

// State is a point-in-time copy of a bucket's fields.
type State struct {
	// Capacity is the maximum balance.
	Capacity Capacity

	// Balance is the stored balance. For unlimited buckets it is the value
	// the bucket was created with and never changes.
	Balance float64

	// RefillRate is the number of tokens credited per second.
	RefillRate float64

	// LastRefill is when the balance was last brought up to date.
	LastRefill time.Time
}

// Validate checks the invariants of a bucket state.
func (s State) Validate() error {
	if err := s.Capacity.Validate(); err != nil {
		return err
	}
	if !isValidAmount(s.Balance) {
		return fmt.Errorf("%w: balance must be a finite non-negative number, got %v", ErrInvalidArgument, s.Balance)
	}
	if !isValidAmount(s.RefillRate) {
		return fmt.Errorf("%w: refill rate must be a finite non-negative number, got %v", ErrInvalidArgument, s.RefillRate)
	}
	if limit, ok := s.Capacity.Limit(); ok && s.Balance > limit {
		return fmt.Errorf("%w: balance %v exceeds capacity %v", ErrInvalidArgument, s.Balance, limit)
	}
	return nil
}

// New creates a bucket holding initialBalance tokens that refills at
// refillRate tokens per second up to capacity.
//
// A nil clock defaults to SystemClock.
//
// Example:
//
//	// 100 token burst, 10 tokens/sec sustained
//	b, err := New(Finite(100), 100, 10, nil)
//
//	// Never limited
//	b, err := New(Unlimited(), 0, 0, nil)
func New(capacity Capacity, initialBalance, refillRate float64, clock Clock) (*TokenBucket, error) {
	if clock == nil {
		clock = SystemClock{}
	}
	return Restore(State{
		Capacity:   capacity,
		Balance:    initialBalance,
		RefillRate: refillRate,
		LastRefill: clock.Now(),
	}, clock)
}

// Restore rebuilds a bucket from a previously captured State.
func Restore(state State, clock Clock) (*TokenBucket, error) {
	if err := state.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = SystemClock{}
	}

	return &TokenBucket{
		capacity:   state.Capacity,
		balance:    state.Balance,
		refillRate: state.RefillRate,
		lastRefill: state.LastRefill,
		clock:      clock,
	}, nil
}

// Consume attempts to debit count tokens.
// It returns true if the tokens were available and debited, false otherwise.
//
// Consume does NOT refill first. Unlimited buckets always succeed without
// changing their balance. Invalid counts return ErrInvalidArgument.
func (tb *TokenBucket) Consume(count float64) (bool, error) {
	if !isValidAmount(count) {
		return false, fmt.Errorf("%w: token count must be a finite non-negative number, got %v", ErrInvalidArgument, count)
	}
	if tb.capacity.IsUnlimited() {
		return true, nil
	}

	tb.mu.Lock()
	defer tb.mu.Unlock()

	if tb.balance >= count {
		tb.balance -= count
		return true, nil
	}

	return false, nil
}

// Refill credits tokens for the time elapsed since the last refill.
// It is a no-op for unlimited buckets.
func (tb *TokenBucket) Refill() {
	if tb.capacity.IsUnlimited() {
		return
	}

	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.clock.Now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}

	limit, _ := tb.capacity.Limit()
	tb.balance = math.Min(tb.balance+elapsed*tb.refillRate, limit)
	tb.lastRefill = now
}

// TimeUntilAvailable returns how long until min(desired, capacity) tokens
// will be available, based on the last known balance.
//
// It does not refill; call Refill first for an up-to-date answer.
// Returns ErrRefillUndefined if tokens are insufficient and the refill
// rate is zero.
func (tb *TokenBucket) TimeUntilAvailable(desired float64) (time.Duration, error) {
	if !isValidAmount(desired) {
		return 0, fmt.Errorf("%w: desired tokens must be a finite non-negative number, got %v", ErrInvalidArgument, desired)
	}
	if tb.capacity.IsUnlimited() {
		return 0, nil
	}

	tb.mu.Lock()
	defer tb.mu.Unlock()

	limit, _ := tb.capacity.Limit()
	target := math.Min(desired, limit)
	if tb.balance >= target {
		return 0, nil
	}
	if tb.refillRate == 0 {
		return 0, ErrRefillUndefined
	}

	seconds := (target - tb.balance) / tb.refillRate
	return secondsToDuration(seconds), nil
}

// Balance returns the current balance without refilling.
// Unlimited buckets report +Inf.
func (tb *TokenBucket) Balance() float64 {
	if tb.capacity.IsUnlimited() {
		return math.Inf(1)
	}

	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.balance
}

// Capacity returns the bucket capacity.
func (tb *TokenBucket) Capacity() Capacity {
	return tb.capacity
}

// RefillRate returns the refill rate in tokens per second.
func (tb *TokenBucket) RefillRate() float64 {
	return tb.refillRate
}

// State returns a copy of the bucket's fields.
func (tb *TokenBucket) State() State {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	return State{
		Capacity:   tb.capacity,
		Balance:    tb.balance,
		RefillRate: tb.refillRate,
		LastRefill: tb.lastRefill,
	}
}

// secondsToDuration converts seconds to a Duration, saturating instead of
// overflowing.
func secondsToDuration(seconds float64) time.Duration {
	ns := seconds * float64(time.Second)
	if ns >= float64(maxDuration) {
		return maxDuration
	}
	return time.Duration(math.Ceil(ns))
}
