// Package cost maps units of work to token counts charged against a bucket.
//
// The limiter itself is agnostic to how cost is computed. This package holds
// the cost functions callers plug in front of it: raw token counts, per-model
// weighted pricing, and a fast character-based estimator for pricing a chat
// turn before the model has answered.
//
//	price := cost.Weighted(cost.Pricing{PromptCostPer1K: 0.01, CompletionCostPer1K: 0.03})
//	charge := price(cost.Usage{PromptTokens: 1200, CompletionTokens: 300})
//	ok, err := manager.Consume("agent-1", charge)
package cost
