// Package types defines the JSON bodies of the Tollgate admin API.
//
// Balances of unlimited buckets are never encoded as numbers: JSON has no
// representation for infinity, so bucket views and decisions carry an
// explicit "unlimited" flag and omit the balance instead.
package types
