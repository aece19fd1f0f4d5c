package pricing

import (
	"math"
	"testing"

	"github.com/AgentsMesh/CCMonitor/internal/models"
)

const tolerance = 1e-9

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < tolerance
}

func TestTieredCost(t *testing.T) {
	base := models.Price(3e-6)
	tier := models.Price(6e-6)

	tests := []struct {
		name   string
		tokens int64
		base   *float64
		tier   *float64
		want   float64
	}{
		{"Zero", 0, base, tier, 0},
		{"Negative", -5, base, tier, 0},
		{"BelowThreshold", 1000, base, tier, 1000 * 3e-6},
		{"AtThreshold", 200_000, base, tier, 200_000 * 3e-6},
		{"OneAbove", 200_001, base, tier, 200_000*3e-6 + 1*6e-6},
		{"AboveThreshold", 300_000, base, tier, 1.2},
		{"AboveWithoutTier", 300_000, base, nil, 300_000 * 3e-6},
		{"AboveWithoutBase", 300_000, nil, tier, 100_000 * 6e-6},
		{"BelowWithoutBase", 1000, nil, tier, 0},
		{"NoPrices", 1000, nil, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TieredCost(tt.tokens, tt.base, tt.tier, TieredThreshold)
			if !approxEqual(got, tt.want) {
				t.Errorf("TieredCost(%d) = %v, want %v", tt.tokens, got, tt.want)
			}
		})
	}
}

func TestCalculateCost(t *testing.T) {
	sonnet := &models.ModelPricing{
		InputCostPerToken:           models.Price(3e-6),
		OutputCostPerToken:          models.Price(1.5e-5),
		CacheCreationInputTokenCost: models.Price(3.75e-6),
		CacheReadInputTokenCost:     models.Price(3e-7),
		InputCostPerTokenAbove200k:  models.Price(6e-6),
	}

	entryWith := func(u *models.Usage, cost *float64) models.UsageEntry {
		return models.UsageEntry{Message: models.Message{Usage: u}, CostUSD: cost}
	}

	tests := []struct {
		name    string
		entry   models.UsageEntry
		pricing *models.ModelPricing
		want    float64
	}{
		{
			name:    "PrecomputedCostWins",
			entry:   entryWith(&models.Usage{InputTokens: 1_000_000}, models.Price(0.42)),
			pricing: sonnet,
			want:    0.42,
		},
		{
			name:    "PrecomputedCostWithoutPricing",
			entry:   entryWith(&models.Usage{InputTokens: 10}, models.Price(0.42)),
			pricing: nil,
			want:    0.42,
		},
		{
			name:    "NoPricing",
			entry:   entryWith(&models.Usage{InputTokens: 1000}, nil),
			pricing: nil,
			want:    0,
		},
		{
			name:    "NoUsage",
			entry:   entryWith(nil, nil),
			pricing: sonnet,
			want:    0,
		},
		{
			name:    "TieredInput",
			entry:   entryWith(&models.Usage{InputTokens: 300_000}, nil),
			pricing: sonnet,
			want:    1.2,
		},
		{
			name: "AllCategories",
			entry: entryWith(&models.Usage{
				InputTokens:              1000,
				OutputTokens:             500,
				CacheCreationInputTokens: 200,
				CacheReadInputTokens:     100,
			}, nil),
			pricing: sonnet,
			want:    1000*3e-6 + 500*1.5e-5 + 200*3.75e-6 + 100*3e-7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CalculateCost(tt.entry, tt.pricing); !approxEqual(got, tt.want) {
				t.Errorf("CalculateCost() = %v, want %v", got, tt.want)
			}
		})
	}
}
