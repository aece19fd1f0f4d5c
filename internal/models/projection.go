package models

import "time"

// BurnRate is a linear extrapolation of recent spend. It is not a forecast:
// the rate over the window is simply scaled to an hour, a day and a 30-day month.
type BurnRate struct {
	CostPerMinute        float64
	CostPerHour          float64
	TokensPerMinute      float64
	ProjectedDailyCost   float64
	ProjectedMonthlyCost float64
}

// IsZero reports whether no usage fell within the window.
func (b BurnRate) IsZero() bool {
	return b == BurnRate{}
}

// ProjectionStatus indicates urgency level for budget consumption.
type ProjectionStatus string

const (
	ProjectionSafe     ProjectionStatus = "SAFE"
	ProjectionWarning  ProjectionStatus = "WARNING"
	ProjectionCritical ProjectionStatus = "CRITICAL"
	ProjectionUnknown  ProjectionStatus = "UNKNOWN"
)

// BudgetProjection compares spend in one period against its budget.
type BudgetProjection struct {
	Period        string // "daily" or "monthly"
	Budget        float64
	Spent         float64
	Projected     float64
	PercentUsed   float64
	Status        ProjectionStatus
	WillExceed    bool
	PeriodResetAt time.Time
}

// BudgetStatus groups the daily and monthly projections.
type BudgetStatus struct {
	Daily   BudgetProjection
	Monthly BudgetProjection
}
