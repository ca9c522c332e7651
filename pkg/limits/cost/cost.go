package cost

// Usage is the token usage of a single unit of work, such as one chat turn.
type Usage struct {
	// PromptTokens is the number of tokens sent to the model.
	PromptTokens int `json:"prompt_tokens"`

	// CompletionTokens is the number of tokens generated by the model.
	CompletionTokens int `json:"completion_tokens"`
}

// Total returns prompt plus completion tokens.
func (u Usage) Total() int {
	return u.PromptTokens + u.CompletionTokens
}

// Func maps a unit of work to the number of tokens to consume.
type Func func(Usage) float64

// TokenCount charges one token per prompt or completion token.
func TokenCount(u Usage) float64 {
	return float64(u.Total())
}

// Pricing holds per-1K-token prices for one model.
type Pricing struct {
	// PromptCostPer1K is the price of 1,000 prompt tokens.
	PromptCostPer1K float64 `yaml:"prompt_cost_per_1k" json:"prompt_cost_per_1k"`

	// CompletionCostPer1K is the price of 1,000 completion tokens.
	CompletionCostPer1K float64 `yaml:"completion_cost_per_1k" json:"completion_cost_per_1k"`
}

// Weighted returns a Func charging prompt and completion tokens at the
// given prices.
func Weighted(p Pricing) Func {
	return func(u Usage) float64 {
		prompt := float64(u.PromptTokens) / 1000 * p.PromptCostPer1K
		completion := float64(u.CompletionTokens) / 1000 * p.CompletionCostPer1K
		return prompt + completion
	}
}

// Table selects a cost function by model name.
type Table struct {
	// Models maps model names to prices.
	Models map[string]Pricing

	// Default prices models missing from Models. When nil, unknown models
	// are charged by TokenCount.
	Default *Pricing
}

// For returns the cost function for model.
func (t Table) For(model string) Func {
	if p, ok := t.Models[model]; ok {
		return Weighted(p)
	}
	if t.Default != nil {
		return Weighted(*t.Default)
	}
	return TokenCount
}
