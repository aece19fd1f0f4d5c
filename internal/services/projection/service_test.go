package projection

import (
	"math"
	"testing"
	"time"

	"github.com/AgentsMesh/CCMonitor/internal/models"
)

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func bucket(start time.Time, g models.Granularity, cost float64, tokens int64) models.BucketUsage {
	return models.BucketUsage{
		Bucket:  models.DateBucket{Start: start, Granularity: g},
		Summary: models.UsageSummary{TotalCostUSD: cost, InputTokens: tokens, RequestCount: 1},
	}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCalculateBurnRate_Empty(t *testing.T) {
	if got := CalculateBurnRate(nil, now, 30*time.Minute); !got.IsZero() {
		t.Errorf("CalculateBurnRate(nil) = %+v, want zero", got)
	}

	old := []models.BucketUsage{bucket(now.Add(-31*time.Minute), models.GranularityMinute, 5, 100)}
	if got := CalculateBurnRate(old, now, 30*time.Minute); !got.IsZero() {
		t.Errorf("CalculateBurnRate(outside window) = %+v, want zero", got)
	}
}

func TestCalculateBurnRate_SingleBucket(t *testing.T) {
	minute := []models.BucketUsage{bucket(now.Add(-5*time.Minute), models.GranularityMinute, 0.5, 1000)}

	got := CalculateBurnRate(minute, now, 30*time.Minute)

	if !approx(got.CostPerMinute, 0.5) || !approx(got.CostPerHour, 30) || !approx(got.TokensPerMinute, 1000) {
		t.Errorf("CalculateBurnRate() = %+v", got)
	}
	if !approx(got.ProjectedDailyCost, 720) || !approx(got.ProjectedMonthlyCost, 720*30) {
		t.Errorf("projections = %v / %v", got.ProjectedDailyCost, got.ProjectedMonthlyCost)
	}
}

func TestCalculateBurnRate_Span(t *testing.T) {
	minute := []models.BucketUsage{
		bucket(now.Add(-40*time.Minute), models.GranularityMinute, 100, 100), // outside
		bucket(now.Add(-10*time.Minute), models.GranularityMinute, 1, 100),
		bucket(now.Add(-1*time.Minute), models.GranularityMinute, 1, 100),
		bucket(now.Add(time.Minute), models.GranularityMinute, 100, 100), // future
	}

	got := CalculateBurnRate(minute, now, 30*time.Minute)

	// 2 USD over 10 minutes (9 minutes apart, inclusive).
	if !approx(got.CostPerMinute, 0.2) {
		t.Errorf("CostPerMinute = %v, want 0.2", got.CostPerMinute)
	}
	if !approx(got.TokensPerMinute, 20) {
		t.Errorf("TokensPerMinute = %v, want 20", got.TokensPerMinute)
	}
}

func TestCalculateBurnRate_DefaultWindow(t *testing.T) {
	minute := []models.BucketUsage{bucket(now.Add(-29*time.Minute), models.GranularityMinute, 1, 1)}
	if got := CalculateBurnRate(minute, now, 0); got.IsZero() {
		t.Error("a non-positive window should fall back to the default")
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		percent float64
		want    models.ProjectionStatus
	}{
		{0, models.ProjectionSafe},
		{79.9, models.ProjectionSafe},
		{80, models.ProjectionWarning},
		{99.9, models.ProjectionWarning},
		{100, models.ProjectionCritical},
		{250, models.ProjectionCritical},
	}

	for _, tt := range tests {
		if got := StatusFor(tt.percent); got != tt.want {
			t.Errorf("StatusFor(%v) = %v, want %v", tt.percent, got, tt.want)
		}
	}
}

func TestCalculateBudget(t *testing.T) {
	burn := models.BurnRate{CostPerHour: 0.5}

	got := CalculateBudget(BudgetConfig{Daily: 10, Monthly: 200}, 8, 50, burn, now)

	d := got.Daily
	if d.Status != models.ProjectionWarning || !approx(d.PercentUsed, 80) {
		t.Errorf("Daily = %+v", d)
	}
	// 12 hours left today at 0.5/h.
	if !approx(d.Projected, 14) || !d.WillExceed {
		t.Errorf("Daily.Projected = %v, WillExceed = %v", d.Projected, d.WillExceed)
	}
	if want := time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC); !d.PeriodResetAt.Equal(want) {
		t.Errorf("Daily.PeriodResetAt = %v, want %v", d.PeriodResetAt, want)
	}

	m := got.Monthly
	if m.Status != models.ProjectionSafe || !approx(m.PercentUsed, 25) {
		t.Errorf("Monthly = %+v", m)
	}
	if want := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC); !m.PeriodResetAt.Equal(want) {
		t.Errorf("Monthly.PeriodResetAt = %v, want %v", m.PeriodResetAt, want)
	}
	// 372 hours left in June at 0.5/h.
	if !approx(m.Projected, 236) || !m.WillExceed {
		t.Errorf("Monthly.Projected = %v, WillExceed = %v", m.Projected, m.WillExceed)
	}
}

func TestCalculateBudget_NoBudget(t *testing.T) {
	got := CalculateBudget(BudgetConfig{}, 5, 5, models.BurnRate{}, now)
	if got.Daily.Status != models.ProjectionUnknown || got.Daily.WillExceed {
		t.Errorf("Daily = %+v, want unknown", got.Daily)
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		p    models.BudgetProjection
		want string
	}{
		{"NoBudget", models.BudgetProjection{}, "No budget set"},
		{"OnTrack", models.BudgetProjection{Budget: 10, Spent: 1, Projected: 5}, "On track"},
		{"Close", models.BudgetProjection{Budget: 10, Spent: 5, Projected: 10.5, WillExceed: true}, "Close to budget"},
		{"Heading", models.BudgetProjection{Budget: 10, Spent: 5, Projected: 15, WillExceed: true}, "Heading 50% over budget"},
		{"Over", models.BudgetProjection{Budget: 10, Spent: 12, Projected: 15, WillExceed: true}, "20% over budget"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Describe(tt.p); got != tt.want {
				t.Errorf("Describe() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMonthToDate(t *testing.T) {
	daily := []models.BucketUsage{
		bucket(time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC), models.GranularityDay, 100, 0),
		bucket(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), models.GranularityDay, 1.5, 0),
		bucket(time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), models.GranularityDay, 2.5, 0),
	}
	if got := MonthToDate(daily, now); !approx(got, 4) {
		t.Errorf("MonthToDate() = %v, want 4", got)
	}
}
