package models

// ModelPricing is one model's per-token prices, using the LiteLLM field names.
// Every price is optional.
type ModelPricing struct {
	InputCostPerToken                    *float64 `json:"input_cost_per_token,omitempty"`
	OutputCostPerToken                   *float64 `json:"output_cost_per_token,omitempty"`
	CacheCreationInputTokenCost          *float64 `json:"cache_creation_input_token_cost,omitempty"`
	CacheReadInputTokenCost              *float64 `json:"cache_read_input_token_cost,omitempty"`
	InputCostPerTokenAbove200k           *float64 `json:"input_cost_per_token_above_200k_tokens,omitempty"`
	OutputCostPerTokenAbove200k          *float64 `json:"output_cost_per_token_above_200k_tokens,omitempty"`
	CacheCreationInputTokenCostAbove200k *float64 `json:"cache_creation_input_token_cost_above_200k_tokens,omitempty"`
	CacheReadInputTokenCostAbove200k     *float64 `json:"cache_read_input_token_cost_above_200k_tokens,omitempty"`
	MaxTokens                            *int64   `json:"max_tokens,omitempty"`
	MaxInputTokens                       *int64   `json:"max_input_tokens,omitempty"`
	MaxOutputTokens                      *int64   `json:"max_output_tokens,omitempty"`
}

// HasBasePrice reports whether an input or output base price is present.
func (p ModelPricing) HasBasePrice() bool {
	return p.InputCostPerToken != nil || p.OutputCostPerToken != nil
}

// Price returns a pointer to v, for building pricing entries in code.
func Price(v float64) *float64 {
	return &v
}
