package intraday

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finpulse/marketpulse/internal/feed"
	"github.com/finpulse/marketpulse/internal/gateway"
	"github.com/finpulse/marketpulse/internal/model"
)

func TestIngestJobIdentity(t *testing.T) {
	p, _ := newTestPipeline(t, tradeOpen, pipelineOpts{})
	job := NewIngestJob(p, 5*time.Second)

	if got := job.Name(); got != "quote_ingest" {
		t.Errorf("Name() = %q, want quote_ingest", got)
	}
	if got := job.Interval(); got != 5*time.Second {
		t.Errorf("Interval() = %v, want 5s", got)
	}
	if !job.ShouldRun(tradeOpen) {
		t.Error("ShouldRun(open) = false, want true")
	}
	if job.ShouldRun(tradeClosed) {
		t.Error("ShouldRun(closed) = true, want false")
	}
}

func TestIngestFreshQuote(t *testing.T) {
	ff := &fakeFeed{quotes: []model.Quote{mkQuote("AAPL", 101.5, 500, tradeOpen.Add(-time.Second))}}
	p, mem := newTestPipeline(t, tradeOpen, pipelineOpts{feed: ff})
	events := mem.Subscribe(gateway.ChannelQuotes, 4)
	job := NewIngestJob(p, 5*time.Second)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var cached model.Quote
	if !getJSON(t, mem, gateway.LatestQuoteKey("AAPL"), &cached) {
		t.Fatal("latest quote not cached")
	}
	if !cached.Last.Equal(decimal.NewFromFloat(101.5)) {
		t.Errorf("cached Last = %s, want 101.5", cached.Last)
	}

	select {
	case raw := <-events:
		var ev model.QuoteEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		if ev.EventID == "" || ev.Symbol != "AAPL" {
			t.Errorf("event = %+v, want AAPL with event_id", ev)
		}
	default:
		t.Fatal("no quote event published")
	}

	if _, ok := p.builder.InProgress("AAPL"); !ok {
		t.Error("fresh quote not folded into a bar")
	}
	if got := p.Stats().QuotesIngested; got != 1 {
		t.Errorf("QuotesIngested = %d, want 1", got)
	}
}

func TestIngestStaleQuoteSkipped(t *testing.T) {
	ff := &fakeFeed{quotes: []model.Quote{mkQuote("AAPL", 90, 500, tradeOpen.Add(-2*time.Minute))}}
	p, mem := newTestPipeline(t, tradeOpen, pipelineOpts{feed: ff})
	job := NewIngestJob(p, 5*time.Second)

	// A prior cached value must survive a stale tick untouched.
	prior := mkQuote("AAPL", 100, 100, tradeOpen.Add(-time.Minute))
	setJSON(t, mem, gateway.LatestQuoteKey("AAPL"), prior, time.Minute)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var cached model.Quote
	if !getJSON(t, mem, gateway.LatestQuoteKey("AAPL"), &cached) {
		t.Fatal("prior quote evicted")
	}
	if !cached.Last.Equal(decimal.NewFromInt(100)) {
		t.Errorf("cached Last = %s, want prior 100", cached.Last)
	}
	if _, ok := p.builder.InProgress("AAPL"); ok {
		t.Error("stale quote reached the bar builder")
	}

	stats := p.Stats()
	if stats.QuotesStale != 1 || stats.QuotesIngested != 0 {
		t.Errorf("Stats() = %+v, want 1 stale, 0 ingested", stats)
	}
}

func TestIngestPrimeSuppressesPublish(t *testing.T) {
	ff := &fakeFeed{quotes: []model.Quote{mkQuote("AAPL", 101.5, 500, tradeOpen.Add(-time.Second))}}
	p, mem := newTestPipeline(t, tradeOpen, pipelineOpts{feed: ff})
	job := NewIngestJob(p, 5*time.Second)

	if err := job.Prime(context.Background()); err != nil {
		t.Fatalf("Prime() error = %v", err)
	}

	var cached model.Quote
	if !getJSON(t, mem, gateway.LatestQuoteKey("AAPL"), &cached) {
		t.Fatal("prime did not warm the quote cache")
	}
	if got := mem.Stats().Publishes; got != 0 {
		t.Errorf("Publishes = %d, want 0 during prime", got)
	}
	if _, ok := p.builder.InProgress("AAPL"); !ok {
		t.Error("prime did not warm the bar builder")
	}
}

func TestIngestFeedUnavailable(t *testing.T) {
	ff := &fakeFeed{err: feed.ErrFeedUnavailable}
	p, mem := newTestPipeline(t, tradeOpen, pipelineOpts{feed: ff})
	job := NewIngestJob(p, 5*time.Second)

	err := job.Run(context.Background())
	if !errors.Is(err, feed.ErrFeedUnavailable) {
		t.Errorf("Run() error = %v, want ErrFeedUnavailable", err)
	}
	if got := mem.Stats().Sets; got != 0 {
		t.Errorf("Sets = %d, want 0 when the feed is down", got)
	}
	if got := p.Stats().FeedMisses; got != 1 {
		t.Errorf("FeedMisses = %d, want 1", got)
	}
}

func TestIngestNoDataIsNotAnError(t *testing.T) {
	ff := &fakeFeed{err: feed.ErrNoData}
	p, _ := newTestPipeline(t, tradeOpen, pipelineOpts{feed: ff})
	job := NewIngestJob(p, 5*time.Second)

	if err := job.Run(context.Background()); err != nil {
		t.Errorf("Run() error = %v, want nil on ErrNoData", err)
	}
	if got := p.Stats().FeedMisses; got != 1 {
		t.Errorf("FeedMisses = %d, want 1", got)
	}
}

func TestIngestRequestsOnlyOpenSymbols(t *testing.T) {
	ff := &fakeFeed{}
	p, _ := newTestPipeline(t, tradeOpen, pipelineOpts{
		feed: ff,
		defs: []model.MarketDefinition{usDef(), eveningDef()},
		insts: []model.Instrument{
			{Symbol: "AAPL", MarketCode: "US"},
			{Symbol: "SAP", MarketCode: "EU"},
		},
	})
	job := NewIngestJob(p, 5*time.Second)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(ff.lastSymbols) != 1 || ff.lastSymbols[0] != "AAPL" {
		t.Errorf("requested symbols = %v, want [AAPL] only", ff.lastSymbols)
	}
}

func TestIngestSkipsFeedWhenNothingOpen(t *testing.T) {
	ff := &fakeFeed{}
	p, _ := newTestPipeline(t, tradeClosed, pipelineOpts{feed: ff})
	job := NewIngestJob(p, 5*time.Second)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if ff.calls != 0 {
		t.Errorf("feed calls = %d, want 0 while everything is closed", ff.calls)
	}
}
