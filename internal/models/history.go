package models

import "time"

// TimeRange represents the selected history time range.
type TimeRange int

const (
	// TimeRange24Hours shows hourly data from the last 24 hours.
	TimeRange24Hours TimeRange = iota
	// TimeRange7Days shows daily data from the last 7 days.
	TimeRange7Days
	// TimeRange30Days shows daily data from the last 30 days.
	TimeRange30Days
	// TimeRangeAllTime shows all retained daily data.
	TimeRangeAllTime
)

// String returns the display name for a time range.
func (t TimeRange) String() string {
	switch t {
	case TimeRange24Hours:
		return "24 Hours"
	case TimeRange7Days:
		return "7 Days"
	case TimeRange30Days:
		return "30 Days"
	case TimeRangeAllTime:
		return "All Time"
	default:
		return "Unknown"
	}
}

// Days returns the number of days for the time range (0 = unlimited).
func (t TimeRange) Days() int {
	switch t {
	case TimeRange24Hours:
		return 1
	case TimeRange7Days:
		return 7
	case TimeRange30Days:
		return 30
	case TimeRangeAllTime:
		return 0
	default:
		return 30
	}
}

// Granularity returns the bucket width used to chart the range.
func (t TimeRange) Granularity() Granularity {
	if t == TimeRange24Hours {
		return GranularityHour
	}
	return GranularityDay
}

// Next cycles to the next time range.
func (t TimeRange) Next() TimeRange {
	return (t + 1) % 4
}

// HistoryPoint is one persisted bucket read back from the usage store.
type HistoryPoint struct {
	PeriodStart time.Time
	PeriodEnd   time.Time
	Granularity Granularity
	Summary     UsageSummary
}

// UsageHistory is the history tab's read model.
type UsageHistory struct {
	Range       TimeRange
	Points      []HistoryPoint
	TotalCost   float64
	TotalTokens int64
	Requests    int64
	PeakPeriod  time.Time
	PeakCost    float64
}

// HasData returns true if any bucket was found.
func (h *UsageHistory) HasData() bool {
	return len(h.Points) > 0
}

// NewUsageHistory totals the points and finds the most expensive period.
func NewUsageHistory(r TimeRange, points []HistoryPoint) *UsageHistory {
	h := &UsageHistory{Range: r, Points: points}
	for _, p := range points {
		h.TotalCost += p.Summary.TotalCostUSD
		h.TotalTokens += p.Summary.TotalTokens()
		h.Requests += p.Summary.RequestCount
		if p.Summary.TotalCostUSD > h.PeakCost {
			h.PeakCost = p.Summary.TotalCostUSD
			h.PeakPeriod = p.PeriodStart
		}
	}
	return h
}

// Costs returns the per-point costs in order, for charting.
func (h *UsageHistory) Costs() []float64 {
	costs := make([]float64, len(h.Points))
	for i, p := range h.Points {
		costs[i] = p.Summary.TotalCostUSD
	}
	return costs
}
