// Package aggregator folds priced usage entries into time, model, project and
// session rollups with message-level deduplication.
package aggregator

import (
	"sync"
	"time"

	"github.com/AgentsMesh/CCMonitor/internal/clock"
	"github.com/AgentsMesh/CCMonitor/internal/logger"
	"github.com/AgentsMesh/CCMonitor/internal/models"
)

// Retention windows applied by Prune.
const (
	MinuteRetention = time.Hour
	HourRetention   = 7 * 24 * time.Hour
	DayRetention    = 30 * 24 * time.Hour
)

// Stats counts entries that were not folded, by reason.
type Stats struct {
	Processed       int64
	Duplicates      int64
	BadTimestamps   int64
	MissingUsage    int64
	RejectedBatches int64
	PrunedBuckets   int64
	EvictedSessions int64
}

type bucketMap map[int64]*models.UsageSummary

// Aggregator owns every aggregate dimension and the dedup set.
// Reads may run concurrently; writers must come from a single lane.
type Aggregator struct {
	mu              sync.RWMutex
	clock           clock.Clock
	sessionDuration time.Duration

	today    models.UsageSummary
	todayKey int64

	minute bucketMap
	hourly bucketMap
	daily  bucketMap

	byModel  map[string]*models.UsageSummary
	projects map[string]*models.ProjectInfo
	sessions map[string]*models.SessionInfo

	totalCost     float64
	totalTokens   int64
	totalRequests int64

	seen  map[string]struct{}
	stats Stats
}

// New creates an empty aggregator. A nil clock uses the system clock; a
// non-positive session duration uses models.DefaultSessionDuration.
func New(clk clock.Clock, sessionDuration time.Duration) *Aggregator {
	if clk == nil {
		clk = clock.System{}
	}
	if sessionDuration <= 0 {
		sessionDuration = models.DefaultSessionDuration
	}
	a := &Aggregator{clock: clk, sessionDuration: sessionDuration}
	a.resetLocked()
	return a
}

// Process folds entries, priced by the matching costs, into every dimension.
// filePath determines the project. A length mismatch rejects the whole batch.
// It returns the number of entries folded.
func (a *Aggregator) Process(entries []models.UsageEntry, costs []float64, filePath string) int {
	if len(entries) != len(costs) {
		logger.Error("Rejected usage batch with mismatched costs",
			"path", filePath, "entries", len(entries), "costs", len(costs))
		a.mu.Lock()
		a.stats.RejectedBatches++
		a.mu.Unlock()
		return 0
	}
	if len(entries) == 0 {
		return 0
	}

	projectID := models.ProjectIDFromPath(filePath)

	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.clock.Now()
	a.rollTodayLocked(now)

	folded := 0
	for i := range entries {
		if a.foldLocked(&entries[i], costs[i], projectID, now) {
			folded++
		}
	}
	return folded
}

func (a *Aggregator) foldLocked(entry *models.UsageEntry, cost float64, projectID string, now time.Time) bool {
	if hash := entry.UniqueHash(); hash != "" {
		if _, dup := a.seen[hash]; dup {
			a.stats.Duplicates++
			return false
		}
		a.seen[hash] = struct{}{}
	}

	ts, err := entry.Time()
	if err != nil {
		a.stats.BadTimestamps++
		logger.Debug("Skipping entry with unparseable timestamp", "timestamp", entry.Timestamp)
		return false
	}
	if entry.Message.Usage == nil {
		a.stats.MissingUsage++
		return false
	}

	loc := a.clock.Location()
	model := entry.ModelName()
	tokens := entry.Tokens()
	total := tokens.Total()

	a.totalCost += cost
	a.totalTokens += total
	a.totalRequests++

	dayKey := models.Truncate(ts, models.GranularityDay, loc).Unix()
	if dayKey == a.todayKey {
		a.today.Add(tokens, cost, model)
	}

	addTo(a.minute, models.Truncate(ts, models.GranularityMinute, loc).Unix(), tokens, cost, model)
	addTo(a.hourly, models.Truncate(ts, models.GranularityHour, loc).Unix(), tokens, cost, model)
	addTo(a.daily, dayKey, tokens, cost, model)

	ms, ok := a.byModel[model]
	if !ok {
		ms = &models.UsageSummary{}
		a.byModel[model] = ms
	}
	ms.Add(tokens, cost, model)

	p, ok := a.projects[projectID]
	if !ok {
		p = models.NewProjectInfo(projectID)
		a.projects[projectID] = p
	}
	p.Add(total, cost, ts, model)

	if entry.SessionID != "" {
		s, ok := a.sessions[entry.SessionID]
		if !ok {
			s = &models.SessionInfo{ID: entry.SessionID, ProjectPath: projectID}
			a.sessions[entry.SessionID] = s
		}
		s.TotalTokens += total
		s.TotalCostUSD += cost
		if ts.After(s.LastActivity) {
			s.LastActivity = ts
		}
		s.ModelName = model
		s.EntryCount++
		s.UpdateStatus(now, a.sessionDuration)
	}

	a.stats.Processed++
	return true
}

func addTo(m bucketMap, key int64, tokens models.TokenInfo, cost float64, model string) {
	s, ok := m[key]
	if !ok {
		s = &models.UsageSummary{}
		m[key] = s
	}
	s.Add(tokens, cost, model)
}

// rollTodayLocked moves the today summary to the current calendar day,
// seeding it from that day's bucket.
func (a *Aggregator) rollTodayLocked(now time.Time) {
	key := models.Truncate(now, models.GranularityDay, a.clock.Location()).Unix()
	if key == a.todayKey {
		return
	}
	a.todayKey = key
	if d, ok := a.daily[key]; ok {
		a.today = d.Clone()
	} else {
		a.today = models.UsageSummary{}
	}
}

// Prune drops minute buckets older than an hour, hour buckets older than a
// week, day buckets older than 30 days and dead sessions. It is idempotent.
func (a *Aggregator) Prune() {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.clock.Now()
	a.rollTodayLocked(now)

	pruned := pruneBuckets(a.minute, now, MinuteRetention) +
		pruneBuckets(a.hourly, now, HourRetention) +
		pruneBuckets(a.daily, now, DayRetention)

	evicted := 0
	for id, s := range a.sessions {
		s.UpdateStatus(now, a.sessionDuration)
		if s.Status == models.SessionDead {
			delete(a.sessions, id)
			evicted++
		}
	}

	a.stats.PrunedBuckets += int64(pruned)
	a.stats.EvictedSessions += int64(evicted)
	if pruned > 0 || evicted > 0 {
		logger.Debug("Pruned aggregates", "buckets", pruned, "sessions", evicted)
	}
}

func pruneBuckets(m bucketMap, now time.Time, retention time.Duration) int {
	n := 0
	for key := range m {
		if now.Sub(time.Unix(key, 0)) >= retention {
			delete(m, key)
			n++
		}
	}
	return n
}

// Reset wipes every dimension, the totals and the dedup set.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resetLocked()
	logger.Info("Aggregator reset")
}

func (a *Aggregator) resetLocked() {
	a.today = models.UsageSummary{}
	a.todayKey = models.Truncate(a.clock.Now(), models.GranularityDay, a.clock.Location()).Unix()
	a.minute = bucketMap{}
	a.hourly = bucketMap{}
	a.daily = bucketMap{}
	a.byModel = make(map[string]*models.UsageSummary)
	a.projects = make(map[string]*models.ProjectInfo)
	a.sessions = make(map[string]*models.SessionInfo)
	a.totalCost = 0
	a.totalTokens = 0
	a.totalRequests = 0
	a.seen = make(map[string]struct{})
	a.stats = Stats{}
}

// RestoreSeenHashes replaces the dedup set.
func (a *Aggregator) RestoreSeenHashes(hashes []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seen = make(map[string]struct{}, len(hashes))
	for _, h := range hashes {
		a.seen[h] = struct{}{}
	}
}
