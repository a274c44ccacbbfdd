package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------
// Market Types
// -----------------------------------------------------------------------------

// Status is the trading-session state of a market.
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// MarketDefinition describes one market's trading calendar. Definitions are
// immutable once loaded for a scheduling cycle; jobs read them via catalog
// snapshots and never mutate them.
type MarketDefinition struct {
	Code        string         // Exchange code, unique (e.g., "US")
	Timezone    string         // IANA zone name (e.g., "America/New_York")
	Location    *time.Location // Resolved zone, set by the loader
	Open        TimeOfDay      // Session open, local time
	Close       TimeOfDay      // Session close, local time (exclusive)
	Weekdays    WeekdaySet     // Trading days
	CalendarMIC string         // Optional ISO 10383 MIC for holiday calendars (lowercase, e.g., "xnys")
	Holidays    []time.Time    // Optional explicit extra holiday dates
}

// Overnight reports whether the session wraps midnight (open after close).
func (d MarketDefinition) Overnight() bool {
	return d.Open.Minutes() > d.Close.Minutes()
}

// MarketStatus is the derived session state for one market at one instant.
// It is recomputed fresh on every reconciliation, never mutated in place.
type MarketStatus struct {
	ExchangeCode string    `json:"exchange_code"`
	Status       Status    `json:"status"`
	AsOf         time.Time `json:"as_of"`
}

// Instrument binds a tradable symbol to the market that gates its session.
type Instrument struct {
	Symbol     string // Feed symbol (e.g., "AAPL")
	MarketCode string // MarketDefinition.Code this symbol trades on
}

// -----------------------------------------------------------------------------
// Quote / Bar Types
// -----------------------------------------------------------------------------

// Quote is the latest observed price set for a symbol. Quotes are transient
// inputs from the external feed; they are never persisted directly.
type Quote struct {
	Symbol    string          `json:"symbol"`
	Bid       decimal.Decimal `json:"bid"`
	Ask       decimal.Decimal `json:"ask"`
	Last      decimal.Decimal `json:"last"`
	Volume    int64           `json:"volume"`
	Timestamp time.Time       `json:"timestamp"`
}

// FreshAt reports whether the quote is inside the freshness window at now.
// A zero-timestamp quote is never fresh.
func (q Quote) FreshAt(now time.Time, window time.Duration) bool {
	if q.Timestamp.IsZero() {
		return false
	}
	return now.Sub(q.Timestamp) <= window
}

// Bar is an OHLC aggregation of quotes over a fixed period. A bar is mutable
// while in progress and append-only once Closed: exactly one closed bar may
// exist per (symbol, period start).
type Bar struct {
	Symbol      string          `json:"symbol"`
	PeriodStart time.Time       `json:"period_start"`
	Period      time.Duration   `json:"period"`
	Open        decimal.Decimal `json:"open"`
	High        decimal.Decimal `json:"high"`
	Low         decimal.Decimal `json:"low"`
	Close       decimal.Decimal `json:"close"`
	Volume      int64           `json:"volume"`
	VWAP        decimal.Decimal `json:"vwap"`
	Closed      bool            `json:"closed"`
}

// End returns the first instant after the bar's period.
func (b Bar) End() time.Time {
	return b.PeriodStart.Add(b.Period)
}

// -----------------------------------------------------------------------------
// Grading
// -----------------------------------------------------------------------------

// Grade classifies an instrument's session performance against its
// session-open snapshot.
type Grade string

const (
	GradeA Grade = "A" // strong gain
	GradeB Grade = "B" // gain
	GradeC Grade = "C" // flat
	GradeD Grade = "D" // loss
	GradeF Grade = "F" // strong loss
)
