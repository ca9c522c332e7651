package config

import (
	"fmt"
	"sort"

	"mercator-hq/tollgate/pkg/limits"
	"mercator-hq/tollgate/pkg/limits/bucket"
	"mercator-hq/tollgate/pkg/limits/cost"
)

// Spec resolves the declared bucket into a limits.BucketSpec.
func (b BucketConfig) Spec() (limits.BucketSpec, error) {
	if b.Capacity == nil && b.InitialBalance == nil {
		return limits.BucketSpec{}, fmt.Errorf("capacity or initial_balance is required")
	}

	spec := limits.BucketSpec{RefillRate: b.RefillRate}

	switch {
	case b.Capacity == nil:
		spec.Capacity = bucket.Finite(*b.InitialBalance)
		spec.InitialBalance = *b.InitialBalance
	case b.InitialBalance == nil:
		spec.Capacity = *b.Capacity
		if limit, ok := b.Capacity.Limit(); ok {
			spec.InitialBalance = limit
		}
	default:
		spec.Capacity = *b.Capacity
		spec.InitialBalance = *b.InitialBalance
	}

	state := bucket.State{
		Capacity:   spec.Capacity,
		Balance:    spec.InitialBalance,
		RefillRate: spec.RefillRate,
	}
	if err := state.Validate(); err != nil {
		return limits.BucketSpec{}, err
	}
	return spec, nil
}

// BucketSpecs resolves every declared bucket.
func (c *Config) BucketSpecs() (map[string]limits.BucketSpec, error) {
	ids := make([]string, 0, len(c.Buckets))
	for id := range c.Buckets {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	specs := make(map[string]limits.BucketSpec, len(ids))
	for _, id := range ids {
		spec, err := c.Buckets[id].Spec()
		if err != nil {
			return nil, fmt.Errorf("bucket %q: %w", id, err)
		}
		specs[id] = spec
	}
	return specs, nil
}

// CostTable returns the per-model pricing table.
func (c *Config) CostTable() cost.Table {
	return cost.Table{
		Models:  c.Cost.Models,
		Default: c.Cost.Default,
	}
}
