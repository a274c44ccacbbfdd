package intraday

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finpulse/marketpulse/internal/model"
)

// accum is one in-progress bar plus its VWAP running sums.
type accum struct {
	bar    model.Bar
	sumPV  decimal.Decimal // Σ last × volume
	sumVol decimal.Decimal // Σ volume
	ticks  int64           // quotes folded in
}

// barKey identifies an in-progress bar. Keying on the period start lets a new
// period accumulate while the previous bar waits for its flush.
type barKey struct {
	symbol string
	start  int64 // period start, unix nanos
}

// Builder accumulates quotes into in-progress bars bucketed by arrival
// period. Bars leave the builder only through Flush, which closes and removes
// them; a flushed period can never be recreated, so at most one closed bar
// exists per (symbol, period start).
type Builder struct {
	mu     sync.Mutex
	period time.Duration
	open   map[barKey]*accum
	lastTS map[string]time.Time // newest quote timestamp folded in, per symbol
}

// NewBuilder creates a builder producing bars of the given period.
func NewBuilder(period time.Duration) *Builder {
	if period <= 0 {
		period = time.Minute
	}
	return &Builder{
		period: period,
		open:   make(map[barKey]*accum),
		lastTS: make(map[string]time.Time),
	}
}

// Period returns the bar period.
func (b *Builder) Period() time.Duration { return b.period }

// Append folds a quote into the symbol's bar for the current period, starting
// one if needed. Bars bucket by arrival time (now truncated to the period),
// never by quote timestamp, so a late quote cannot target an already-flushed
// period. A quote no newer than the last one folded in for the symbol is a
// duplicate and is dropped. Returns whether the quote was applied.
func (b *Builder) Append(q model.Quote, now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if last, ok := b.lastTS[q.Symbol]; ok && !q.Timestamp.After(last) {
		return false
	}
	b.lastTS[q.Symbol] = q.Timestamp

	periodStart := now.Truncate(b.period)
	key := barKey{symbol: q.Symbol, start: periodStart.UnixNano()}

	a, ok := b.open[key]
	if !ok {
		a = &accum{bar: model.Bar{
			Symbol:      q.Symbol,
			PeriodStart: periodStart,
			Period:      b.period,
			Open:        q.Last,
			High:        q.Last,
			Low:         q.Last,
			Close:       q.Last,
		}}
		b.open[key] = a
	} else {
		if q.Last.GreaterThan(a.bar.High) {
			a.bar.High = q.Last
		}
		if q.Last.LessThan(a.bar.Low) {
			a.bar.Low = q.Last
		}
		a.bar.Close = q.Last
	}

	vol := decimal.NewFromInt(q.Volume)
	a.sumPV = a.sumPV.Add(q.Last.Mul(vol))
	a.sumVol = a.sumVol.Add(vol)
	a.bar.Volume += q.Volume
	a.ticks++
	a.bar.VWAP = a.vwap()
	return true
}

// vwap is Σ(last×volume)/Σvolume, falling back to the bar close when no
// volume was reported.
func (a *accum) vwap() decimal.Decimal {
	if a.sumVol.IsPositive() {
		return a.sumPV.Div(a.sumVol)
	}
	return a.bar.Close
}

// Flush closes every bar whose period has fully elapsed at now and removes it
// from the builder. Returned bars are marked Closed, ordered by symbol then
// period start. A second flush with the same now returns nothing.
func (b *Builder) Flush(now time.Time) []model.Bar {
	b.mu.Lock()
	defer b.mu.Unlock()

	var closed []model.Bar
	for key, a := range b.open {
		if a.bar.End().After(now) {
			continue
		}
		a.bar.Closed = true
		closed = append(closed, a.bar)
		delete(b.open, key)
	}
	sort.Slice(closed, func(i, j int) bool {
		if closed[i].Symbol != closed[j].Symbol {
			return closed[i].Symbol < closed[j].Symbol
		}
		return closed[i].PeriodStart.Before(closed[j].PeriodStart)
	})
	return closed
}

// InProgress returns a copy of the symbol's newest in-progress bar, if any.
func (b *Builder) InProgress(symbol string) (model.Bar, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var (
		newest model.Bar
		found  bool
	)
	for key, a := range b.open {
		if key.symbol != symbol {
			continue
		}
		if !found || a.bar.PeriodStart.After(newest.PeriodStart) {
			newest = a.bar
			found = true
		}
	}
	return newest, found
}

// Len reports how many bars are currently in progress.
func (b *Builder) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.open)
}
