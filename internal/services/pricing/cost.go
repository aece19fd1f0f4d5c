package pricing

import "github.com/AgentsMesh/CCMonitor/internal/models"

// TieredThreshold is the token count above which tier prices apply.
const TieredThreshold int64 = 200_000

// CalculateCost prices one entry. A precomputed cost on the entry wins;
// missing pricing or usage yields zero.
func CalculateCost(entry models.UsageEntry, p *models.ModelPricing) float64 {
	if entry.CostUSD != nil {
		return *entry.CostUSD
	}
	if p == nil || entry.Message.Usage == nil {
		return 0
	}
	return CostFromTokens(entry.Tokens(), *p)
}

// CostFromTokens sums the tiered cost of the four token categories.
func CostFromTokens(t models.TokenInfo, p models.ModelPricing) float64 {
	input := TieredCost(t.InputTokens, p.InputCostPerToken, p.InputCostPerTokenAbove200k, TieredThreshold)
	output := TieredCost(t.OutputTokens, p.OutputCostPerToken, p.OutputCostPerTokenAbove200k, TieredThreshold)
	cacheCreation := TieredCost(t.CacheCreationTokens, p.CacheCreationInputTokenCost, p.CacheCreationInputTokenCostAbove200k, TieredThreshold)
	cacheRead := TieredCost(t.CacheReadTokens, p.CacheReadInputTokenCost, p.CacheReadInputTokenCostAbove200k, TieredThreshold)
	return input + output + cacheCreation + cacheRead
}

// TieredCost prices tokens at base up to threshold and at tier above it.
// Without a tier price every token is priced at base. Missing prices count as zero.
func TieredCost(tokens int64, base, tier *float64, threshold int64) float64 {
	if tokens <= 0 {
		return 0
	}
	n := float64(tokens)
	limit := float64(threshold)

	if tokens > threshold && tier != nil {
		cost := (n - limit) * *tier
		if base != nil {
			cost += min(n, limit) * *base
		}
		return cost
	}

	if base != nil {
		return n * *base
	}
	return 0
}
