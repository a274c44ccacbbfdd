package feed

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finpulse/marketpulse/internal/model"
)

// Errors surfaced to consuming jobs. Both mean "skip this tick's work and
// leave cached values untouched"; neither is ever converted to zeroed data.
var (
	// ErrFeedUnavailable indicates the quote source could not be reached.
	ErrFeedUnavailable = errors.New("quote feed unavailable")

	// ErrNoData indicates the feed responded but had nothing fresh for the
	// requested symbols.
	ErrNoData = errors.New("no fresh quote data")
)

// Source provides the latest quote per subscribed symbol. Symbols the feed
// has nothing for are omitted from the result, not zero-filled.
type Source interface {
	Quotes(ctx context.Context, symbols []string) ([]model.Quote, error)
}

// quotePayload is the feed's wire form of a quote, shared by the REST and
// WebSocket adapters.
type quotePayload struct {
	Symbol    string          `json:"symbol"`
	Bid       decimal.Decimal `json:"bid"`
	Ask       decimal.Decimal `json:"ask"`
	Last      decimal.Decimal `json:"last"`
	Volume    int64           `json:"volume"`
	Timestamp time.Time       `json:"timestamp"`
}

func (p quotePayload) toModel() model.Quote {
	return model.Quote{
		Symbol:    p.Symbol,
		Bid:       p.Bid,
		Ask:       p.Ask,
		Last:      p.Last,
		Volume:    p.Volume,
		Timestamp: p.Timestamp,
	}
}
