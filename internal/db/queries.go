package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/AgentsMesh/CCMonitor/internal/logger"
	"github.com/AgentsMesh/CCMonitor/internal/models"
)

// UpsertAggregatedUsage writes each bucket's cumulative summary, replacing
// any row already stored for the same granularity and period.
func (db *DB) UpsertAggregatedUsage(ctx context.Context, buckets []models.BucketUsage, now time.Time) error {
	if len(buckets) == 0 {
		return nil
	}

	query := `
		INSERT INTO aggregated_usage (
			granularity, period_start, period_end, input_tokens, output_tokens,
			cache_creation_tokens, cache_read_tokens, total_cost_usd, request_count,
			model_distribution, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(granularity, period_start) DO UPDATE SET
			period_end = excluded.period_end,
			input_tokens = excluded.input_tokens,
			output_tokens = excluded.output_tokens,
			cache_creation_tokens = excluded.cache_creation_tokens,
			cache_read_tokens = excluded.cache_read_tokens,
			total_cost_usd = excluded.total_cost_usd,
			request_count = excluded.request_count,
			model_distribution = excluded.model_distribution,
			updated_at = excluded.updated_at
	`

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, b := range buckets {
		dist, err := encodeDistribution(b.Summary.ModelDistribution)
		if err != nil {
			return err
		}
		s := b.Summary
		_, err = stmt.ExecContext(ctx,
			b.Bucket.Granularity.String(),
			b.Bucket.Start.Unix(),
			b.Bucket.End().Unix(),
			s.InputTokens,
			s.OutputTokens,
			s.CacheCreationTokens,
			s.CacheReadTokens,
			s.TotalCostUSD,
			s.RequestCount,
			dist,
			now.Unix(),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert aggregated usage: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit aggregated usage: %w", err)
	}
	return nil
}

// GetAggregatedUsage returns the stored buckets of granularity g whose period
// starts in [from, to), oldest first. A zero to means no upper bound.
func (db *DB) GetAggregatedUsage(ctx context.Context, g models.Granularity, from, to time.Time) ([]models.HistoryPoint, error) {
	query := `
		SELECT period_start, period_end, input_tokens, output_tokens,
			   cache_creation_tokens, cache_read_tokens, total_cost_usd,
			   request_count, model_distribution
		FROM aggregated_usage
		WHERE granularity = ? AND period_start >= ? AND period_start < ?
		ORDER BY period_start
	`

	upper := int64(1<<63 - 1)
	if !to.IsZero() {
		upper = to.Unix()
	}

	rows, err := db.QueryContext(ctx, query, g.String(), from.Unix(), upper)
	if err != nil {
		return nil, fmt.Errorf("failed to query aggregated usage: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var points []models.HistoryPoint
	for rows.Next() {
		var (
			start, end int64
			dist       sql.NullString
			s          models.UsageSummary
		)
		err := rows.Scan(
			&start,
			&end,
			&s.InputTokens,
			&s.OutputTokens,
			&s.CacheCreationTokens,
			&s.CacheReadTokens,
			&s.TotalCostUSD,
			&s.RequestCount,
			&dist,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan aggregated usage: %w", err)
		}
		if dist.Valid && dist.String != "" {
			if err := json.Unmarshal([]byte(dist.String), &s.ModelDistribution); err != nil {
				logger.Debug("Ignoring malformed model distribution", "period_start", start, "error", err)
			}
		}
		points = append(points, models.HistoryPoint{
			PeriodStart: time.Unix(start, 0),
			PeriodEnd:   time.Unix(end, 0),
			Granularity: g,
			Summary:     s,
		})
	}

	return points, rows.Err()
}

// PruneAggregatedUsage deletes rows whose period ended before cutoff.
func (db *DB) PruneAggregatedUsage(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := db.ExecContext(ctx, `DELETE FROM aggregated_usage WHERE period_end < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune aggregated usage: %w", err)
	}
	return result.RowsAffected()
}

// CountAggregatedUsage returns the number of stored rows.
func (db *DB) CountAggregatedUsage(ctx context.Context) (int64, error) {
	var n int64
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM aggregated_usage`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count aggregated usage: %w", err)
	}
	return n, nil
}

func encodeDistribution(dist map[string]int64) (sql.NullString, error) {
	if len(dist) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(dist)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode model distribution: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
