package intraday

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/finpulse/marketpulse/internal/gateway"
)

// FlushJob closes bars whose period has rolled over, appends them to the
// closed-bar history, hands them to the sink, and refreshes each symbol's
// latest-bar cache entry. It runs ungated: the final bar of a session still
// needs closing after the market does.
type FlushJob struct {
	p        *Pipeline
	interval time.Duration
}

// NewFlushJob creates the bar flush job.
func NewFlushJob(p *Pipeline, interval time.Duration) *FlushJob {
	return &FlushJob{p: p, interval: interval}
}

// Name implements heartbeat.Job.
func (j *FlushJob) Name() string { return "bar_flush" }

// Interval implements heartbeat.Job.
func (j *FlushJob) Interval() time.Duration { return j.interval }

// Run implements heartbeat.Job.
func (j *FlushJob) Run(ctx context.Context) error {
	p := j.p
	now := p.now()

	closed := p.builder.Flush(now)
	if len(closed) == 0 {
		return nil
	}

	for _, bar := range closed {
		p.history.Append(bar)
	}

	var errs []error
	if p.sink != nil {
		inserted, conflicts, err := p.sink.InsertBars(ctx, closed)
		if err != nil {
			// Cache writes below still proceed; the sink retries nothing,
			// the bars stay in history.
			errs = append(errs, fmt.Errorf("persisting bars: %w", err))
		}
		p.count(func(m *Metrics) {
			m.BarsPersisted += int64(inserted)
			m.BarConflicts += int64(conflicts)
		})
	}

	for _, bar := range closed {
		payload, err := json.Marshal(bar)
		if err != nil {
			errs = append(errs, fmt.Errorf("symbol %s: encoding bar: %w", bar.Symbol, err))
			continue
		}
		if err := p.gateway.Set(ctx, gateway.BarKey(bar.Symbol), payload, p.cfg.BarTTL); err != nil {
			errs = append(errs, fmt.Errorf("symbol %s: caching bar: %w", bar.Symbol, err))
		}
	}

	p.count(func(m *Metrics) {
		m.BarsClosed += int64(len(closed))
		m.Errors += int64(len(errs))
	})

	p.logger.Debug("bars flushed", "count", len(closed))
	return errors.Join(errs...)
}
