package aggregator

import (
	"maps"
	"slices"
	"time"

	"github.com/AgentsMesh/CCMonitor/internal/models"
)

// State is a detached copy of every aggregate dimension, used for persistence.
type State struct {
	Minute        []models.BucketUsage
	Hourly        []models.BucketUsage
	Daily         []models.BucketUsage
	Models        map[string]models.UsageSummary
	Projects      map[string]models.ProjectInfo
	Sessions      map[string]models.SessionInfo
	TotalCostUSD  float64
	TotalTokens   int64
	TotalRequests int64
	SeenHashes    []string
}

// Export copies the full aggregate state.
func (a *Aggregator) Export() State {
	a.mu.RLock()
	defer a.mu.RUnlock()

	loc := a.clock.Location()
	st := State{
		Minute:        bucketsSorted(a.minute, models.GranularityMinute, loc, nil),
		Hourly:        bucketsSorted(a.hourly, models.GranularityHour, loc, nil),
		Daily:         bucketsSorted(a.daily, models.GranularityDay, loc, nil),
		Models:        make(map[string]models.UsageSummary, len(a.byModel)),
		Projects:      make(map[string]models.ProjectInfo, len(a.projects)),
		Sessions:      make(map[string]models.SessionInfo, len(a.sessions)),
		TotalCostUSD:  a.totalCost,
		TotalTokens:   a.totalTokens,
		TotalRequests: a.totalRequests,
		SeenHashes:    slices.Sorted(maps.Keys(a.seen)),
	}
	for k, v := range a.byModel {
		st.Models[k] = v.Clone()
	}
	for k, v := range a.projects {
		st.Projects[k] = v.Clone()
	}
	for k, v := range a.sessions {
		st.Sessions[k] = *v
	}
	return st
}

// Restore replaces the aggregate state with st. The today summary is
// re-derived from the day bucket of the current calendar date, so a state
// saved on an earlier day leaves today empty.
func (a *Aggregator) Restore(st State) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.resetLocked()
	loc := a.clock.Location()
	restoreBuckets(a.minute, st.Minute, models.GranularityMinute, loc)
	restoreBuckets(a.hourly, st.Hourly, models.GranularityHour, loc)
	restoreBuckets(a.daily, st.Daily, models.GranularityDay, loc)

	for k, v := range st.Models {
		c := v.Clone()
		a.byModel[k] = &c
	}
	for k, v := range st.Projects {
		c := v.Clone()
		if c.ProjectPath == "" {
			c.ProjectPath = k
		}
		if c.DisplayName == "" {
			c.DisplayName = models.ProjectDisplayName(k)
		}
		a.projects[k] = &c
	}
	now := a.clock.Now()
	for k, v := range st.Sessions {
		c := v
		c.ID = k
		c.UpdateStatus(now, a.sessionDuration)
		a.sessions[k] = &c
	}

	a.totalCost = st.TotalCostUSD
	a.totalTokens = st.TotalTokens
	a.totalRequests = st.TotalRequests
	for _, h := range st.SeenHashes {
		a.seen[h] = struct{}{}
	}

	if d, ok := a.daily[a.todayKey]; ok {
		a.today = d.Clone()
	}
}

func restoreBuckets(dst bucketMap, src []models.BucketUsage, g models.Granularity, loc *time.Location) {
	for _, b := range src {
		key := models.Truncate(b.Bucket.Start, g, loc).Unix()
		s := b.Summary.Clone()
		if existing, ok := dst[key]; ok {
			merge(existing, s)
			continue
		}
		dst[key] = &s
	}
}

func merge(dst *models.UsageSummary, src models.UsageSummary) {
	dst.InputTokens += src.InputTokens
	dst.OutputTokens += src.OutputTokens
	dst.CacheCreationTokens += src.CacheCreationTokens
	dst.CacheReadTokens += src.CacheReadTokens
	dst.TotalCostUSD += src.TotalCostUSD
	dst.RequestCount += src.RequestCount
	for m, n := range src.ModelDistribution {
		if dst.ModelDistribution == nil {
			dst.ModelDistribution = make(map[string]int64)
		}
		dst.ModelDistribution[m] += n
	}
}

// bucketsSorted returns the buckets accepted by keep (all when nil) in time order.
func bucketsSorted(m bucketMap, g models.Granularity, loc *time.Location, keep func(time.Time) bool) []models.BucketUsage {
	keys := slices.Sorted(maps.Keys(m))
	out := make([]models.BucketUsage, 0, len(keys))
	for _, k := range keys {
		start := time.Unix(k, 0).In(loc)
		if keep != nil && !keep(start) {
			continue
		}
		out = append(out, models.BucketUsage{
			Bucket:  models.DateBucket{Start: start, Granularity: g},
			Summary: m[k].Clone(),
		})
	}
	return out
}
