package services

import (
	"context"
	"maps"
	"slices"
	"time"

	"github.com/AgentsMesh/CCMonitor/internal/logger"
	"github.com/AgentsMesh/CCMonitor/internal/models"
	"github.com/AgentsMesh/CCMonitor/internal/parser"
	"github.com/AgentsMesh/CCMonitor/internal/services/aggregator"
	"github.com/AgentsMesh/CCMonitor/internal/services/pricing"
	"github.com/AgentsMesh/CCMonitor/internal/services/projection"
)

// Diagnostics reports pipeline internals for the info tab.
type Diagnostics struct {
	Parse         parser.Stats
	Aggregate     aggregator.Stats
	TrackedFiles  int
	SeenHashes    int
	PricingSource pricing.Source
	PricingModels int
	Roots         []string
	DatabasePath  string
	HasDatabase   bool
	HasSnapshot   bool
}

// Dashboard builds the read model for the current instant.
func (m *Manager) Dashboard() models.DashboardData {
	now := m.clock.Now()
	agg := m.aggregator

	today := agg.Today()
	burn := projection.CalculateBurnRate(agg.MinuteUsage(), now, m.cfg.BurnRateWindow)
	daily := agg.DailyUsage()
	budget := projection.CalculateBudget(projection.BudgetConfig{
		Daily:   m.cfg.DailyBudget,
		Monthly: m.cfg.MonthlyBudget,
	}, today.TotalCostUSD, projection.MonthToDate(daily, now), burn, now)

	hourStart := models.Truncate(now, models.GranularityHour, m.clock.Location())

	return models.DashboardData{
		Today:          today,
		Totals:         agg.Totals(),
		BurnRate:       burn,
		Budget:         budget,
		Models:         agg.ModelDistribution(),
		Projects:       agg.ProjectsByCost(),
		Sessions:       agg.Sessions(),
		ActiveSessions: agg.ActiveSessionCount(),
		MinuteSeries:   agg.MinuteUsage(),
		HourlySeries:   agg.TimeSeries(models.GranularityHour, hourStart.Add(-23*time.Hour), hourStart.Add(time.Hour)),
		DailySeries:    daily,
		TopModel:       agg.TopModel(),
		Progress:       m.Progress(),
		PricingSource:  string(m.pricing.Source()),
		PricingCount:   m.pricing.Count(),
		TrackedFiles:   m.reader.TrackedFileCount(),
		UpdatedAt:      now,
	}
}

// publish broadcasts a fresh dashboard and raises any due budget alerts.
func (m *Manager) publish() {
	data := m.Dashboard()
	m.broadcast(UsageUpdatedEvent{Data: data})
	m.checkBudget(data.Budget, data.UpdatedAt)
}

// History merges the secondary store with the in-memory buckets for r. The
// in-memory value wins for periods present in both.
func (m *Manager) History(ctx context.Context, r models.TimeRange) (*models.UsageHistory, error) {
	now := m.clock.Now()
	loc := m.clock.Location()
	g := r.Granularity()

	to := models.NewDateBucket(now, g, loc).End()
	var from time.Time
	if days := r.Days(); days > 0 {
		if g == models.GranularityHour {
			from = to.Add(-time.Duration(days) * 24 * time.Hour)
		} else {
			from = to.AddDate(0, 0, -days)
		}
	}

	points := make(map[int64]models.HistoryPoint)
	if database := m.Database(); database != nil {
		stored, err := database.GetAggregatedUsage(ctx, g, from, to)
		if err != nil {
			logger.Warn("Failed to read usage history", "range", r.String(), "error", err)
		} else {
			for _, p := range stored {
				p.PeriodStart = p.PeriodStart.In(loc)
				p.PeriodEnd = p.PeriodEnd.In(loc)
				points[p.PeriodStart.Unix()] = p
			}
		}
	}
	for _, b := range m.aggregator.TimeSeries(g, from, to) {
		points[b.Bucket.Start.Unix()] = models.HistoryPoint{
			PeriodStart: b.Bucket.Start,
			PeriodEnd:   b.Bucket.End(),
			Granularity: g,
			Summary:     b.Summary,
		}
	}

	list := make([]models.HistoryPoint, 0, len(points))
	for _, k := range slices.Sorted(maps.Keys(points)) {
		list = append(list, points[k])
	}
	return models.NewUsageHistory(r, list), ctx.Err()
}

// Diagnostics collects counters from every pipeline component.
func (m *Manager) Diagnostics() Diagnostics {
	return Diagnostics{
		Parse:         m.parser.Stats(),
		Aggregate:     m.aggregator.Stats(),
		TrackedFiles:  m.reader.TrackedFileCount(),
		SeenHashes:    m.aggregator.SeenHashCount(),
		PricingSource: m.pricing.Source(),
		PricingModels: m.pricing.Count(),
		Roots:         m.cfg.ClaudePaths,
		DatabasePath:  m.cfg.DatabasePath,
		HasDatabase:   m.Database() != nil,
		HasSnapshot:   m.HasSnapshot(),
	}
}
