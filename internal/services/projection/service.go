// Package projection derives burn rates and budget projections from recent usage.
package projection

import (
	"fmt"
	"math"
	"time"

	"github.com/AgentsMesh/CCMonitor/internal/models"
)

const (
	// DefaultWindow is the burn-rate lookback window.
	DefaultWindow = 30 * time.Minute

	// WarningPercent and CriticalPercent are the budget status thresholds.
	WarningPercent  = 80.0
	CriticalPercent = 100.0

	hoursPerDay  = 24
	daysPerMonth = 30
)

// CalculateBurnRate extrapolates the spend of the minute buckets that start
// within [now-window, now]. The rate is linear: the summed cost is divided by
// the minutes between the first and last qualifying bucket (inclusive, at
// least 1) and scaled to an hour, a day and a 30-day month.
func CalculateBurnRate(minute []models.BucketUsage, now time.Time, window time.Duration) models.BurnRate {
	if window <= 0 {
		window = DefaultWindow
	}
	windowStart := now.Add(-window)

	var (
		cost        float64
		tokens      int64
		first, last time.Time
		found       bool
	)
	for _, b := range minute {
		start := b.Bucket.Start
		if start.Before(windowStart) || start.After(now) {
			continue
		}
		cost += b.Summary.TotalCostUSD
		tokens += b.Summary.TotalTokens()
		if !found || start.Before(first) {
			first = start
		}
		if !found || start.After(last) {
			last = start
		}
		found = true
	}
	if !found {
		return models.BurnRate{}
	}

	span := math.Max(1, last.Sub(first).Minutes()+1)
	perMinute := cost / span
	perHour := perMinute * 60

	return models.BurnRate{
		CostPerMinute:        perMinute,
		CostPerHour:          perHour,
		TokensPerMinute:      float64(tokens) / span,
		ProjectedDailyCost:   perHour * hoursPerDay,
		ProjectedMonthlyCost: perHour * hoursPerDay * daysPerMonth,
	}
}

// BudgetConfig holds the configured spend limits in USD.
type BudgetConfig struct {
	Daily   float64
	Monthly float64
}

// CalculateBudget compares today's and the month-to-date spend against the
// budgets. The projection adds the current hourly burn for the rest of the period.
func CalculateBudget(cfg BudgetConfig, todaySpent, monthSpent float64, burn models.BurnRate, now time.Time) models.BudgetStatus {
	y, m, d := now.Date()
	loc := now.Location()
	dayReset := time.Date(y, m, d+1, 0, 0, 0, 0, loc)
	monthReset := time.Date(y, m+1, 1, 0, 0, 0, 0, loc)

	return models.BudgetStatus{
		Daily:   project("daily", cfg.Daily, todaySpent, burn.CostPerHour, now, dayReset),
		Monthly: project("monthly", cfg.Monthly, monthSpent, burn.CostPerHour, now, monthReset),
	}
}

func project(period string, budget, spent, perHour float64, now, resetAt time.Time) models.BudgetProjection {
	p := models.BudgetProjection{
		Period:        period,
		Budget:        budget,
		Spent:         spent,
		Projected:     spent + perHour*resetAt.Sub(now).Hours(),
		Status:        models.ProjectionUnknown,
		PeriodResetAt: resetAt,
	}
	if budget <= 0 {
		return p
	}

	p.PercentUsed = spent / budget * 100
	p.WillExceed = p.Projected > budget
	p.Status = StatusFor(p.PercentUsed)
	return p
}

// StatusFor maps a percentage of budget used to a status.
func StatusFor(percentUsed float64) models.ProjectionStatus {
	switch {
	case percentUsed >= CriticalPercent:
		return models.ProjectionCritical
	case percentUsed >= WarningPercent:
		return models.ProjectionWarning
	default:
		return models.ProjectionSafe
	}
}

// Describe summarizes a projection for display.
func Describe(p models.BudgetProjection) string {
	if p.Budget <= 0 {
		return "No budget set"
	}
	if p.Spent >= p.Budget {
		return fmt.Sprintf("%.0f%% over budget", (p.Spent-p.Budget)/p.Budget*100)
	}
	if !p.WillExceed {
		return "On track"
	}
	diff := (p.Projected - p.Budget) / p.Budget * 100
	if math.Abs(diff) < 10 {
		return "Close to budget"
	}
	return fmt.Sprintf("Heading %.0f%% over budget", diff)
}

// MonthToDate sums the day buckets that fall in now's calendar month.
func MonthToDate(daily []models.BucketUsage, now time.Time) float64 {
	y, m, _ := now.Date()
	var total float64
	for _, b := range daily {
		by, bm, _ := b.Bucket.Start.In(now.Location()).Date()
		if by == y && bm == m {
			total += b.Summary.TotalCostUSD
		}
	}
	return total
}
