package models

import "time"

// Totals are the grand totals across all processed entries.
type Totals struct {
	CostUSD  float64
	Tokens   int64
	Requests int64
}

// ModelShare is one row of the model distribution, sorted by request count.
type ModelShare struct {
	Model   string
	Summary UsageSummary
	Percent float64
}

// ScanProgress describes the startup scan.
type ScanProgress struct {
	FilesTotal     int
	FilesProcessed int
	Done           bool
}

// DashboardData is the read model the presentation layer renders.
type DashboardData struct {
	Today          UsageSummary
	Totals         Totals
	BurnRate       BurnRate
	Budget         BudgetStatus
	Models         []ModelShare
	Projects       []ProjectInfo
	Sessions       []SessionInfo
	ActiveSessions int
	MinuteSeries   []BucketUsage
	HourlySeries   []BucketUsage
	DailySeries    []BucketUsage
	TopModel       string
	Progress       ScanProgress
	PricingSource  string
	PricingCount   int
	TrackedFiles   int
	UpdatedAt      time.Time
}
