package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------
// Published Event Envelopes
// -----------------------------------------------------------------------------
// Every envelope carries a unique event_id so subscribers can deduplicate.
// Delivery is fire-and-forget, at-most-once.

// StatusEvent announces an OPEN/CLOSED transition (or cold-start write) for a
// market.
type StatusEvent struct {
	EventID      string    `json:"event_id"`
	ExchangeCode string    `json:"exchange_code"`
	OldStatus    Status    `json:"old_status,omitempty"`
	NewStatus    Status    `json:"new_status"`
	AsOf         time.Time `json:"as_of"`
}

// NewStatusEvent builds a StatusEvent with a fresh event ID. OldStatus is
// empty on a cold-start write.
func NewStatusEvent(code string, old, next Status, asOf time.Time) StatusEvent {
	return StatusEvent{
		EventID:      uuid.NewString(),
		ExchangeCode: code,
		OldStatus:    old,
		NewStatus:    next,
		AsOf:         asOf,
	}
}

// QuoteEvent announces a refreshed latest quote for a symbol.
type QuoteEvent struct {
	EventID string          `json:"event_id"`
	Symbol  string          `json:"symbol"`
	Bid     decimal.Decimal `json:"bid"`
	Ask     decimal.Decimal `json:"ask"`
	Last    decimal.Decimal `json:"last"`
	Volume  int64           `json:"volume"`
	AsOf    time.Time       `json:"as_of"`
}

// NewQuoteEvent builds a QuoteEvent from a quote.
func NewQuoteEvent(q Quote) QuoteEvent {
	return QuoteEvent{
		EventID: uuid.NewString(),
		Symbol:  q.Symbol,
		Bid:     q.Bid,
		Ask:     q.Ask,
		Last:    q.Last,
		Volume:  q.Volume,
		AsOf:    q.Timestamp,
	}
}

// GradeEvent announces a session-grade change for a symbol.
type GradeEvent struct {
	EventID   string          `json:"event_id"`
	Symbol    string          `json:"symbol"`
	Grade     Grade           `json:"grade"`
	ChangePct decimal.Decimal `json:"change_pct"`
	AsOf      time.Time       `json:"as_of"`
}

// NewGradeEvent builds a GradeEvent with a fresh event ID.
func NewGradeEvent(symbol string, grade Grade, changePct decimal.Decimal, asOf time.Time) GradeEvent {
	return GradeEvent{
		EventID:   uuid.NewString(),
		Symbol:    symbol,
		Grade:     grade,
		ChangePct: changePct,
		AsOf:      asOf,
	}
}
