package aggregator

import (
	"cmp"
	"slices"
	"time"

	"github.com/AgentsMesh/CCMonitor/internal/models"
)

// Today returns the usage of the current calendar day.
func (a *Aggregator) Today() models.UsageSummary {
	a.mu.RLock()
	defer a.mu.RUnlock()

	key := models.Truncate(a.clock.Now(), models.GranularityDay, a.clock.Location()).Unix()
	if key != a.todayKey {
		// The day rolled over since the last write; the next write catches up.
		if d, ok := a.daily[key]; ok {
			return d.Clone()
		}
		return models.UsageSummary{}
	}
	return a.today.Clone()
}

// Totals returns the grand totals.
func (a *Aggregator) Totals() models.Totals {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return models.Totals{CostUSD: a.totalCost, Tokens: a.totalTokens, Requests: a.totalRequests}
}

// MinuteUsage returns the minute buckets in time order.
func (a *Aggregator) MinuteUsage() []models.BucketUsage {
	return a.series(models.GranularityMinute, nil)
}

// HourlyUsage returns the hour buckets in time order.
func (a *Aggregator) HourlyUsage() []models.BucketUsage {
	return a.series(models.GranularityHour, nil)
}

// DailyUsage returns the day buckets in time order.
func (a *Aggregator) DailyUsage() []models.BucketUsage {
	return a.series(models.GranularityDay, nil)
}

// TimeSeries returns the buckets of granularity g starting in [from, to).
func (a *Aggregator) TimeSeries(g models.Granularity, from, to time.Time) []models.BucketUsage {
	return a.series(g, func(start time.Time) bool {
		return !start.Before(from) && start.Before(to)
	})
}

func (a *Aggregator) series(g models.Granularity, keep func(time.Time) bool) []models.BucketUsage {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var m bucketMap
	switch g {
	case models.GranularityMinute:
		m = a.minute
	case models.GranularityHour:
		m = a.hourly
	default:
		m = a.daily
	}
	return bucketsSorted(m, g, a.clock.Location(), keep)
}

// ModelUsage returns a copy of the per-model summaries.
func (a *Aggregator) ModelUsage() map[string]models.UsageSummary {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]models.UsageSummary, len(a.byModel))
	for k, v := range a.byModel {
		out[k] = v.Clone()
	}
	return out
}

// ModelDistribution returns the models ordered by request count, then name.
func (a *Aggregator) ModelDistribution() []models.ModelShare {
	a.mu.RLock()
	defer a.mu.RUnlock()

	shares := make([]models.ModelShare, 0, len(a.byModel))
	var requests int64
	for _, s := range a.byModel {
		requests += s.RequestCount
	}
	for name, s := range a.byModel {
		share := models.ModelShare{Model: name, Summary: s.Clone()}
		if requests > 0 {
			share.Percent = float64(s.RequestCount) / float64(requests) * 100
		}
		shares = append(shares, share)
	}
	slices.SortFunc(shares, func(x, y models.ModelShare) int {
		if c := cmp.Compare(y.Summary.RequestCount, x.Summary.RequestCount); c != 0 {
			return c
		}
		return cmp.Compare(x.Model, y.Model)
	})
	return shares
}

// TopModel returns the most used model, or "" when nothing was processed.
func (a *Aggregator) TopModel() string {
	dist := a.ModelDistribution()
	if len(dist) == 0 {
		return ""
	}
	return dist[0].Model
}

// ProjectUsage returns a copy of the per-project rollups.
func (a *Aggregator) ProjectUsage() map[string]models.ProjectInfo {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]models.ProjectInfo, len(a.projects))
	for k, v := range a.projects {
		out[k] = v.Clone()
	}
	return out
}

// ProjectsByCost returns the projects ordered by cost, most expensive first,
// with ActiveSessions filled in.
func (a *Aggregator) ProjectsByCost() []models.ProjectInfo {
	a.mu.RLock()
	defer a.mu.RUnlock()

	active := make(map[string]int)
	for _, s := range a.sessions {
		if s.Status == models.SessionActive {
			active[s.ProjectPath]++
		}
	}

	out := make([]models.ProjectInfo, 0, len(a.projects))
	for id, p := range a.projects {
		c := p.Clone()
		c.ActiveSessions = active[id]
		out = append(out, c)
	}
	slices.SortFunc(out, func(x, y models.ProjectInfo) int {
		if c := cmp.Compare(y.TotalCostUSD, x.TotalCostUSD); c != 0 {
			return c
		}
		return cmp.Compare(x.ProjectPath, y.ProjectPath)
	})
	return out
}

// Sessions returns the tracked sessions, most recent first.
func (a *Aggregator) Sessions() []models.SessionInfo {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]models.SessionInfo, 0, len(a.sessions))
	for _, s := range a.sessions {
		out = append(out, *s)
	}
	slices.SortFunc(out, func(x, y models.SessionInfo) int {
		if c := y.LastActivity.Compare(x.LastActivity); c != 0 {
			return c
		}
		return cmp.Compare(x.ID, y.ID)
	})
	return out
}

// ActiveSessionCount returns the number of sessions currently active.
func (a *Aggregator) ActiveSessionCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	n := 0
	for _, s := range a.sessions {
		if s.Status == models.SessionActive {
			n++
		}
	}
	return n
}

// SeenHashCount returns the size of the dedup set.
func (a *Aggregator) SeenHashCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.seen)
}

// Stats returns a copy of the skip counters.
func (a *Aggregator) Stats() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stats
}
