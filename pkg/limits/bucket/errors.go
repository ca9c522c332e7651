package bucket

import "errors"

var (
	// ErrInvalidArgument is returned for negative or non-finite token counts,
	// rates, balances or capacities. No state is mutated when it is returned.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrRefillUndefined is returned by TimeUntilAvailable when the bucket
	// cannot cover the request and its refill rate is zero.
	ErrRefillUndefined = errors.New("refill rate is zero, tokens will never become available")
)
