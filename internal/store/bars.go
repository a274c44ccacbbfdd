package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/finpulse/marketpulse/internal/model"
)

// BarMetrics counts bar-writer activity.
type BarMetrics struct {
	Inserts   int64 // rows newly inserted
	Conflicts int64 // rows skipped by ON CONFLICT (already persisted)
	Errors    int64 // failed batch attempts
	Flushes   int64 // batch attempts
}

// BarStats returns a snapshot of bar-writer counters.
func (s *Store) BarStats() BarMetrics {
	s.metricsMu.Lock()
	defer s.metricsMu.Unlock()
	return s.barMetrics
}

// InsertBars writes closed bars in one batch. The (symbol, period_start)
// primary key plus ON CONFLICT DO NOTHING makes re-execution within a period
// idempotent: a bar already persisted counts as a conflict, never a
// duplicate row.
func (s *Store) InsertBars(ctx context.Context, bars []model.Bar) (inserted, conflicts int, err error) {
	if len(bars) == 0 {
		return 0, 0, nil
	}

	start := time.Now()

	batch := &pgx.Batch{}
	for _, b := range bars {
		batch.Queue(`
			INSERT INTO bars (symbol, period_start, period_seconds, open, high, low, close, volume, vwap)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (symbol, period_start) DO NOTHING
		`, b.Symbol, b.PeriodStart, int64(b.Period.Seconds()), b.Open, b.High, b.Low, b.Close, b.Volume, b.VWAP)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range bars {
		ct, execErr := results.Exec()
		if execErr != nil {
			s.metricsMu.Lock()
			s.barMetrics.Errors++
			s.metricsMu.Unlock()
			return 0, 0, fmt.Errorf("insert bars: %w", execErr)
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}
	inserted = len(bars) - conflicts

	s.metricsMu.Lock()
	s.barMetrics.Inserts += int64(inserted)
	s.barMetrics.Conflicts += int64(conflicts)
	s.barMetrics.Flushes++
	s.metricsMu.Unlock()

	s.logger.Debug("flushed bars",
		"count", len(bars),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
	return inserted, conflicts, nil
}
