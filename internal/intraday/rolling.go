package intraday

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finpulse/marketpulse/internal/gateway"
	"github.com/finpulse/marketpulse/internal/model"
)

// week52Lookback is how far back the extremes query reaches.
const week52Lookback = 52 * 7 * 24 * time.Hour

// VWAPStat is the cached rolling-VWAP figure for one window.
type VWAPStat struct {
	Symbol        string          `json:"symbol"`
	WindowMinutes int             `json:"window_minutes"`
	VWAP          decimal.Decimal `json:"vwap"`
	Bars          int             `json:"bars"`
	AsOf          time.Time       `json:"as_of"`
}

// ChangeStat is the cached 24-hour price change.
type ChangeStat struct {
	Symbol    string          `json:"symbol"`
	ChangePct decimal.Decimal `json:"change_pct"`
	FromClose decimal.Decimal `json:"from_close"`
	ToClose   decimal.Decimal `json:"to_close"`
	AsOf      time.Time       `json:"as_of"`
}

// Week52Stat is the cached 52-week extremes.
type Week52Stat struct {
	Symbol string          `json:"symbol"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	AsOf   time.Time       `json:"as_of"`
}

// RollingJob recomputes windowed statistics from closed bars only and writes
// each with a TTL bounding its staleness. In-progress bars never reach an
// aggregate. Symbols without closed history are skipped, leaving any cached
// figure to expire on its own.
type RollingJob struct {
	p        *Pipeline
	interval time.Duration
}

// NewRollingJob creates the rolling-window statistics job.
func NewRollingJob(p *Pipeline, interval time.Duration) *RollingJob {
	return &RollingJob{p: p, interval: interval}
}

// Name implements heartbeat.Job.
func (j *RollingJob) Name() string { return "rolling_stats" }

// Interval implements heartbeat.Job.
func (j *RollingJob) Interval() time.Duration { return j.interval }

// Run implements heartbeat.Job.
func (j *RollingJob) Run(ctx context.Context) error {
	p := j.p
	now := p.now()
	snap := p.catalog.Snapshot()

	var written int64
	var errs []error
	for _, symbol := range snap.Symbols() {
		n, err := j.recompute(ctx, symbol, now)
		written += n
		if err != nil {
			errs = append(errs, fmt.Errorf("symbol %s: %w", symbol, err))
		}
	}

	p.count(func(m *Metrics) {
		m.StatsWritten += written
		m.Errors += int64(len(errs))
	})
	return errors.Join(errs...)
}

// recompute writes all of one symbol's statistics, reporting how many landed.
// The first gateway failure aborts the symbol; later symbols still run.
func (j *RollingJob) recompute(ctx context.Context, symbol string, now time.Time) (int64, error) {
	p := j.p
	var written int64

	for _, minutes := range p.cfg.VWAPWindows {
		cutoff := now.Add(-time.Duration(minutes) * time.Minute)
		bars := p.history.Since(symbol, cutoff)
		if len(bars) == 0 {
			continue
		}
		stat := VWAPStat{
			Symbol:        symbol,
			WindowMinutes: minutes,
			VWAP:          windowVWAP(bars),
			Bars:          len(bars),
			AsOf:          now,
		}
		if err := j.writeStat(ctx, gateway.RollingVWAPKey(symbol, minutes), stat); err != nil {
			return written, err
		}
		written++
	}

	if stat, ok := change24h(symbol, p.history, now); ok {
		if err := j.writeStat(ctx, gateway.Change24hKey(symbol), stat); err != nil {
			return written, err
		}
		written++
	}

	if p.extremes != nil {
		high, low, ok, err := p.extremes.Week52(ctx, symbol, now.Add(-week52Lookback))
		if err != nil {
			return written, fmt.Errorf("52-week extremes: %w", err)
		}
		if ok {
			stat := Week52Stat{Symbol: symbol, High: high, Low: low, AsOf: now}
			if err := j.writeStat(ctx, gateway.Week52Key(symbol), stat); err != nil {
				return written, err
			}
			written++
		}
	}
	return written, nil
}

func (j *RollingJob) writeStat(ctx context.Context, key string, stat any) error {
	payload, err := json.Marshal(stat)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	if err := j.p.gateway.Set(ctx, key, payload, j.p.cfg.StatTTL); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// windowVWAP aggregates per-bar VWAPs weighted by volume. With no volume in
// the window it degrades to the mean of bar closes.
func windowVWAP(bars []model.Bar) decimal.Decimal {
	var sumPV, sumVol decimal.Decimal
	for _, b := range bars {
		vol := decimal.NewFromInt(b.Volume)
		sumPV = sumPV.Add(b.VWAP.Mul(vol))
		sumVol = sumVol.Add(vol)
	}
	if sumVol.IsPositive() {
		return sumPV.Div(sumVol)
	}
	var sum decimal.Decimal
	for _, b := range bars {
		sum = sum.Add(b.Close)
	}
	return sum.Div(decimal.NewFromInt(int64(len(bars))))
}

// change24h compares the newest close against the oldest close within the
// trailing 24 hours. It needs at least two bars and a positive baseline.
func change24h(symbol string, h *History, now time.Time) (ChangeStat, bool) {
	bars := h.Since(symbol, now.Add(-24*time.Hour))
	if len(bars) < 2 {
		return ChangeStat{}, false
	}
	from, to := bars[0].Close, bars[len(bars)-1].Close
	if !from.IsPositive() {
		return ChangeStat{}, false
	}
	pct := to.Sub(from).Div(from).Mul(decimal.NewFromInt(100))
	return ChangeStat{
		Symbol:    symbol,
		ChangePct: pct,
		FromClose: from,
		ToClose:   to,
		AsOf:      now,
	}, true
}
