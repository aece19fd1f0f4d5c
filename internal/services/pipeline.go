package services

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/AgentsMesh/CCMonitor/internal/db"
	"github.com/AgentsMesh/CCMonitor/internal/logger"
	"github.com/AgentsMesh/CCMonitor/internal/models"
	"github.com/AgentsMesh/CCMonitor/internal/services/pricing"
	"github.com/AgentsMesh/CCMonitor/internal/services/watcher"
)

// scanResult summarizes one pass over the log files.
type scanResult struct {
	processed int
	skipped   int
	entries   int
	duration  time.Duration
}

// processFile reads the lines appended to path, prices them and folds them
// into the aggregator. Callers hold laneMu.
func (m *Manager) processFile(path string) (int, error) {
	lines, err := m.reader.ReadNewLines(path)
	if err != nil {
		return 0, err
	}
	if len(lines) == 0 {
		return 0, nil
	}

	entries := m.parser.Parse(lines)
	if len(entries) == 0 {
		return 0, nil
	}

	costs := make([]float64, len(entries))
	for i, entry := range entries {
		costs[i] = pricing.CalculateCost(entry, m.pricing.GetPricing(entry.ModelName()))
	}
	return m.aggregator.Process(entries, costs, path), nil
}

// processFiles handles a batch of changed paths from the watcher.
func (m *Manager) processFiles(ctx context.Context, paths []string) {
	total := 0
	for _, path := range paths {
		if ctx.Err() != nil {
			return
		}
		n, err := m.processFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				logger.Debug("Changed file is gone", "path", path)
				continue
			}
			logger.Warn("Failed to process log file", "path", path, "error", err)
			m.broadcast(ErrorEvent{Service: "reader", Error: err})
			continue
		}
		total += n
	}
	logger.Debug("Processed changed files", "files", len(paths), "entries", total)
	m.publish()
}

// scanAndSave scans every log file, saves all state and announces completion.
func (m *Manager) scanAndSave(ctx context.Context) {
	res := m.scan(ctx)
	if ctx.Err() != nil {
		return
	}
	_ = m.saveAll(ctx)

	m.broadcast(ScanCompletedEvent{
		Processed: res.processed,
		Skipped:   res.skipped,
		Entries:   res.entries,
		Duration:  res.duration,
	})
	m.publish()
}

// scan processes every log file that changed since it was last read. On a
// first load without a snapshot, untracked files are read from the start.
// Callers hold laneMu.
func (m *Manager) scan(ctx context.Context) scanResult {
	start := time.Now()
	files := discoverLogFiles(m.cfg.ProjectsDirs())
	firstLoad := !m.HasSnapshot()

	logger.Info("Scanning log files", "files", len(files), "first_load", firstLoad)
	m.setProgress(models.ScanProgress{FilesTotal: len(files)})

	var res scanResult
	for i, path := range files {
		if ctx.Err() != nil {
			logger.Info("Scan cancelled", "processed", res.processed)
			return res
		}

		if !m.reader.NeedsProcessing(path) {
			res.skipped++
			continue
		}
		if firstLoad && !m.reader.HasState(path) {
			m.reader.InitializeToStart(path)
		}

		n, err := m.processFile(path)
		if err != nil {
			logger.Warn("Failed to process log file", "path", path, "error", err)
		}
		res.entries += n
		res.processed++

		if res.processed%scanBatchSize == 0 {
			progress := models.ScanProgress{FilesTotal: len(files), FilesProcessed: i + 1}
			m.setProgress(progress)
			m.broadcast(ProgressEvent{Progress: progress})
			m.publish()
			logger.Info("Scan progress",
				"processed", res.processed, "skipped", res.skipped, "entries", res.entries,
				"cost", m.aggregator.Totals().CostUSD)
			runtime.Gosched()
		}
	}

	res.duration = time.Since(start)
	m.setProgress(models.ScanProgress{FilesTotal: len(files), FilesProcessed: len(files), Done: true})
	logger.Info("Scan complete",
		"processed", res.processed, "skipped", res.skipped, "entries", res.entries,
		"duration", res.duration)
	return res
}

// discoverLogFiles returns every log file below roots, sorted.
func discoverLogFiles(roots []string) []string {
	var files []string
	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				logger.Debug("Skipping unreadable path", "path", path, "error", err)
				if d != nil && d.IsDir() && path != root {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.IsDir() && strings.HasSuffix(path, watcher.LogExtension) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			logger.Warn("Failed to walk projects directory", "path", root, "error", err)
		}
	}
	slices.Sort(files)
	return slices.Compact(files)
}

// saveAll persists offsets, the snapshot and the secondary store. Failures
// are logged; the joined error is returned for callers that report it.
// Callers hold laneMu.
func (m *Manager) saveAll(ctx context.Context) error {
	var errs []error

	if err := m.reader.Save(); err != nil {
		logger.Warn("Failed to save file states", "error", err)
		errs = append(errs, err)
	}
	if err := m.snapshots.Save(m.aggregator); err != nil {
		logger.Warn("Failed to save snapshot", "error", err)
		errs = append(errs, err)
	}

	if database := m.Database(); database != nil {
		now := m.clock.Now()
		buckets := append(m.aggregator.HourlyUsage(), m.aggregator.DailyUsage()...)
		if err := database.UpsertAggregatedUsage(ctx, buckets, now); err != nil {
			logger.Warn("Failed to update usage store", "error", err)
			errs = append(errs, err)
		}
		cutoff := now.AddDate(0, 0, -db.DefaultRetentionDays)
		if pruned, err := database.PruneAggregatedUsage(ctx, cutoff); err != nil {
			logger.Warn("Failed to prune usage store", "error", err)
			errs = append(errs, err)
		} else if pruned > 0 {
			logger.Debug("Pruned usage store", "rows", pruned)
		}
	}

	return errors.Join(errs...)
}
