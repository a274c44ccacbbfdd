package intraday

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/finpulse/marketpulse/internal/feed"
	"github.com/finpulse/marketpulse/internal/gateway"
	"github.com/finpulse/marketpulse/internal/model"
)

// IngestJob pulls the latest quotes for symbols whose market is open, folds
// fresh ones into in-progress bars, refreshes the cached latest-quote entry,
// and announces each refresh. Stale quotes are "no data": skipped with the
// cache left untouched.
type IngestJob struct {
	p        *Pipeline
	interval time.Duration
}

// NewIngestJob creates the quote ingestion job.
func NewIngestJob(p *Pipeline, interval time.Duration) *IngestJob {
	return &IngestJob{p: p, interval: interval}
}

// Name implements heartbeat.Job.
func (j *IngestJob) Name() string { return "quote_ingest" }

// Interval implements heartbeat.Job.
func (j *IngestJob) Interval() time.Duration { return j.interval }

// ShouldRun implements heartbeat.Gater: no work while every market is closed.
func (j *IngestJob) ShouldRun(now time.Time) bool {
	return j.p.anyOpen(now)
}

// Run implements heartbeat.Job.
func (j *IngestJob) Run(ctx context.Context) error {
	return j.ingest(ctx, false)
}

// Prime runs one ingestion pass with publishing suppressed, warming the quote
// cache and the bar builder before the scheduler takes over.
func (j *IngestJob) Prime(ctx context.Context) error {
	return j.ingest(ctx, true)
}

// ingest is one ingestion pass. suppress disables event publishing; cache
// writes still happen so a warm-up pass leaves usable state behind.
func (j *IngestJob) ingest(ctx context.Context, suppress bool) error {
	p := j.p
	now := p.now()
	snap := p.catalog.Snapshot()

	symbols := p.openSymbols(snap, now)
	if len(symbols) == 0 {
		return nil
	}

	quotes, err := p.source.Quotes(ctx, symbols)
	if err != nil {
		p.count(func(m *Metrics) { m.FeedMisses++ })
		if errors.Is(err, feed.ErrNoData) {
			return nil
		}
		return fmt.Errorf("fetching quotes: %w", err)
	}

	var (
		ingested, stale int64
		errs            []error
	)
	for _, q := range quotes {
		if !q.FreshAt(now, p.cfg.Freshness) {
			stale++
			continue
		}

		p.builder.Append(q, now)

		payload, err := json.Marshal(q)
		if err != nil {
			errs = append(errs, fmt.Errorf("symbol %s: encoding quote: %w", q.Symbol, err))
			continue
		}
		if err := p.gateway.Set(ctx, gateway.LatestQuoteKey(q.Symbol), payload, p.cfg.QuoteTTL); err != nil {
			errs = append(errs, fmt.Errorf("symbol %s: caching quote: %w", q.Symbol, err))
			continue
		}
		ingested++

		if suppress {
			continue
		}
		event, err := json.Marshal(model.NewQuoteEvent(q))
		if err != nil {
			errs = append(errs, fmt.Errorf("symbol %s: encoding quote event: %w", q.Symbol, err))
			continue
		}
		if err := p.gateway.Publish(ctx, gateway.ChannelQuotes, event); err != nil {
			// Cache write landed; the announcement is at-most-once.
			p.logger.Warn("quote cached but publish failed", "symbol", q.Symbol, "error", err)
		}
	}

	p.count(func(m *Metrics) {
		m.QuotesIngested += ingested
		m.QuotesStale += stale
		m.Errors += int64(len(errs))
	})

	if stale > 0 {
		p.logger.Debug("stale quotes skipped", "count", stale, "window", p.cfg.Freshness)
	}
	return errors.Join(errs...)
}
