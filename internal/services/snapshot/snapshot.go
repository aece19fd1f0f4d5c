// Package snapshot persists the aggregator's full state so restarts skip
// re-reading history.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/AgentsMesh/CCMonitor/internal/clock"
	"github.com/AgentsMesh/CCMonitor/internal/fsutil"
	"github.com/AgentsMesh/CCMonitor/internal/logger"
	"github.com/AgentsMesh/CCMonitor/internal/models"
	"github.com/AgentsMesh/CCMonitor/internal/services/aggregator"
)

// Version is the snapshot format written by this package. Files without a
// version field are read as version 0, which carries no hour, minute or
// session data.
const Version = 1

// bucketKeyLayout keys hour and minute buckets.
const bucketKeyLayout = time.RFC3339

// Snapshot is the on-disk image of the aggregator.
type Snapshot struct {
	Version       int                            `json:"version"`
	DailyUsage    map[string]models.UsageSummary `json:"dailyUsage"`
	HourlyUsage   map[string]models.UsageSummary `json:"hourlyUsage,omitempty"`
	MinuteUsage   map[string]models.UsageSummary `json:"minuteUsage,omitempty"`
	ModelUsage    map[string]models.UsageSummary `json:"modelUsage"`
	ProjectUsage  map[string]models.ProjectInfo  `json:"projectUsage"`
	Sessions      map[string]models.SessionInfo  `json:"sessions,omitempty"`
	TotalCostUSD  float64                        `json:"totalCostUSD"`
	TotalTokens   int64                          `json:"totalTokens"`
	TotalRequests int64                          `json:"totalRequests"`
	SeenHashes    []string                       `json:"seenHashes"`
	SnapshotTime  time.Time                      `json:"snapshotTime"`
}

// Store reads and writes the snapshot file.
type Store struct {
	path  string
	clock clock.Clock
}

// New creates a store for path. A nil clock uses the system clock.
func New(path string, clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.System{}
	}
	return &Store{path: path, clock: clk}
}

// Path returns the snapshot file location.
func (s *Store) Path() string {
	return s.path
}

// Save captures agg and atomically replaces the snapshot file.
func (s *Store) Save(agg *aggregator.Aggregator) error {
	snap := s.capture(agg.Export())

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := fsutil.WriteFileAtomic(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	logger.Debug("Saved aggregation snapshot",
		"requests", snap.TotalRequests, "hashes", len(snap.SeenHashes), "bytes", len(data))
	return nil
}

// Load restores agg from the snapshot file. It reports whether a snapshot
// was found and applied; a missing or corrupt file leaves agg untouched.
func (s *Store) Load(agg *aggregator.Aggregator) bool {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("Failed to read snapshot", "path", s.path, "error", err)
		}
		return false
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		logger.Warn("Snapshot is corrupt, ignoring", "path", s.path, "error", err)
		return false
	}
	if snap.Version > Version {
		logger.Warn("Snapshot was written by a newer version, ignoring", "path", s.path, "version", snap.Version)
		return false
	}

	agg.Restore(s.restore(snap))
	logger.Info("Restored aggregation snapshot",
		"requests", snap.TotalRequests, "saved_at", snap.SnapshotTime)
	return true
}

// Remove deletes the snapshot file. A missing file is not an error.
func (s *Store) Remove() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove snapshot: %w", err)
	}
	return nil
}

func (s *Store) capture(st aggregator.State) Snapshot {
	loc := s.clock.Location()
	snap := Snapshot{
		Version:       Version,
		DailyUsage:    make(map[string]models.UsageSummary, len(st.Daily)),
		HourlyUsage:   make(map[string]models.UsageSummary, len(st.Hourly)),
		MinuteUsage:   make(map[string]models.UsageSummary, len(st.Minute)),
		ModelUsage:    st.Models,
		ProjectUsage:  st.Projects,
		Sessions:      st.Sessions,
		TotalCostUSD:  st.TotalCostUSD,
		TotalTokens:   st.TotalTokens,
		TotalRequests: st.TotalRequests,
		SeenHashes:    st.SeenHashes,
		SnapshotTime:  s.clock.Now(),
	}
	for _, b := range st.Daily {
		snap.DailyUsage[b.Bucket.Start.In(loc).Format(models.DayKeyLayout)] = b.Summary
	}
	for _, b := range st.Hourly {
		snap.HourlyUsage[b.Bucket.Start.Format(bucketKeyLayout)] = b.Summary
	}
	for _, b := range st.Minute {
		snap.MinuteUsage[b.Bucket.Start.Format(bucketKeyLayout)] = b.Summary
	}
	return snap
}

func (s *Store) restore(snap Snapshot) aggregator.State {
	loc := s.clock.Location()
	st := aggregator.State{
		Models:        snap.ModelUsage,
		Projects:      snap.ProjectUsage,
		Sessions:      snap.Sessions,
		TotalCostUSD:  snap.TotalCostUSD,
		TotalTokens:   snap.TotalTokens,
		TotalRequests: snap.TotalRequests,
		SeenHashes:    snap.SeenHashes,
	}

	for key, sum := range snap.DailyUsage {
		start, err := time.ParseInLocation(models.DayKeyLayout, key, loc)
		if err != nil {
			logger.Warn("Skipping snapshot day with bad key", "key", key)
			continue
		}
		st.Daily = append(st.Daily, bucketUsage(start, models.GranularityDay, sum))
	}
	st.Hourly = parseBuckets(snap.HourlyUsage, models.GranularityHour)
	st.Minute = parseBuckets(snap.MinuteUsage, models.GranularityMinute)
	return st
}

func parseBuckets(m map[string]models.UsageSummary, g models.Granularity) []models.BucketUsage {
	out := make([]models.BucketUsage, 0, len(m))
	for key, sum := range m {
		start, err := time.Parse(bucketKeyLayout, key)
		if err != nil {
			logger.Warn("Skipping snapshot bucket with bad key", "key", key, "granularity", g.String())
			continue
		}
		out = append(out, bucketUsage(start, g, sum))
	}
	return out
}

func bucketUsage(start time.Time, g models.Granularity, sum models.UsageSummary) models.BucketUsage {
	return models.BucketUsage{
		Bucket:  models.DateBucket{Start: start, Granularity: g},
		Summary: sum,
	}
}
