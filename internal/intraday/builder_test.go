package intraday

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finpulse/marketpulse/internal/model"
)

var barBase = time.Date(2025, 6, 3, 12, 0, 0, 0, time.UTC)

func mkQuote(symbol string, last float64, volume int64, ts time.Time) model.Quote {
	d := decimal.NewFromFloat(last)
	return model.Quote{
		Symbol:    symbol,
		Bid:       d.Sub(decimal.NewFromFloat(0.01)),
		Ask:       d.Add(decimal.NewFromFloat(0.01)),
		Last:      d,
		Volume:    volume,
		Timestamp: ts,
	}
}

func TestBuilderAppend(t *testing.T) {
	b := NewBuilder(time.Minute)

	if !b.Append(mkQuote("AAPL", 100, 10, barBase), barBase) {
		t.Fatal("first Append() = false, want true")
	}
	if !b.Append(mkQuote("AAPL", 105, 20, barBase.Add(5*time.Second)), barBase.Add(5*time.Second)) {
		t.Fatal("second Append() = false, want true")
	}
	if !b.Append(mkQuote("AAPL", 95, 10, barBase.Add(10*time.Second)), barBase.Add(10*time.Second)) {
		t.Fatal("third Append() = false, want true")
	}

	bar, ok := b.InProgress("AAPL")
	if !ok {
		t.Fatal("InProgress(AAPL) not found")
	}
	if !bar.Open.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Open = %s, want 100", bar.Open)
	}
	if !bar.High.Equal(decimal.NewFromInt(105)) {
		t.Errorf("High = %s, want 105", bar.High)
	}
	if !bar.Low.Equal(decimal.NewFromInt(95)) {
		t.Errorf("Low = %s, want 95", bar.Low)
	}
	if !bar.Close.Equal(decimal.NewFromInt(95)) {
		t.Errorf("Close = %s, want 95", bar.Close)
	}
	if bar.Volume != 40 {
		t.Errorf("Volume = %d, want 40", bar.Volume)
	}
	// (100*10 + 105*20 + 95*10) / 40 = 101.25
	if !bar.VWAP.Equal(decimal.NewFromFloat(101.25)) {
		t.Errorf("VWAP = %s, want 101.25", bar.VWAP)
	}
	if bar.Closed {
		t.Error("in-progress bar marked Closed")
	}
	if !bar.PeriodStart.Equal(barBase) {
		t.Errorf("PeriodStart = %v, want %v", bar.PeriodStart, barBase)
	}
}

func TestBuilderDuplicateQuoteDropped(t *testing.T) {
	b := NewBuilder(time.Minute)
	q := mkQuote("AAPL", 100, 10, barBase)

	if !b.Append(q, barBase) {
		t.Fatal("first Append() = false, want true")
	}
	if b.Append(q, barBase.Add(5*time.Second)) {
		t.Error("duplicate Append() = true, want false")
	}
	if b.Append(mkQuote("AAPL", 101, 5, barBase.Add(-time.Second)), barBase.Add(6*time.Second)) {
		t.Error("older-timestamp Append() = true, want false")
	}

	bar, _ := b.InProgress("AAPL")
	if bar.Volume != 10 {
		t.Errorf("Volume = %d, want 10 (duplicates folded in)", bar.Volume)
	}
}

func TestBuilderBucketsByArrival(t *testing.T) {
	b := NewBuilder(time.Minute)

	// A fresh-but-lagging quote arrives after its own period rolled; it
	// lands in the current period, never a flushed one.
	arrival := barBase.Add(time.Minute + 10*time.Second)
	if !b.Append(mkQuote("AAPL", 100, 10, barBase.Add(55*time.Second)), arrival) {
		t.Fatal("Append() = false, want true")
	}
	bar, ok := b.InProgress("AAPL")
	if !ok {
		t.Fatal("InProgress(AAPL) not found")
	}
	if want := barBase.Add(time.Minute); !bar.PeriodStart.Equal(want) {
		t.Errorf("PeriodStart = %v, want %v", bar.PeriodStart, want)
	}
}

func TestBuilderZeroVolumeVWAP(t *testing.T) {
	b := NewBuilder(time.Minute)
	b.Append(mkQuote("FX", 1.25, 0, barBase), barBase)
	b.Append(mkQuote("FX", 1.35, 0, barBase.Add(time.Second)), barBase.Add(time.Second))

	bar, _ := b.InProgress("FX")
	if !bar.VWAP.Equal(decimal.NewFromFloat(1.35)) {
		t.Errorf("VWAP = %s, want close 1.35 when no volume", bar.VWAP)
	}
}

func TestBuilderFlush(t *testing.T) {
	b := NewBuilder(time.Minute)
	b.Append(mkQuote("AAPL", 100, 10, barBase), barBase)
	b.Append(mkQuote("MSFT", 300, 5, barBase.Add(time.Second)), barBase.Add(time.Second))

	// Nothing to close while the period is still running.
	if got := b.Flush(barBase.Add(30 * time.Second)); len(got) != 0 {
		t.Fatalf("mid-period Flush() closed %d bars, want 0", len(got))
	}

	closed := b.Flush(barBase.Add(time.Minute))
	if len(closed) != 2 {
		t.Fatalf("Flush() closed %d bars, want 2", len(closed))
	}
	if closed[0].Symbol != "AAPL" || closed[1].Symbol != "MSFT" {
		t.Errorf("Flush() order = %s, %s, want AAPL, MSFT", closed[0].Symbol, closed[1].Symbol)
	}
	for _, bar := range closed {
		if !bar.Closed {
			t.Errorf("flushed bar %s not marked Closed", bar.Symbol)
		}
	}

	// Idempotent: the period is gone from the builder.
	if got := b.Flush(barBase.Add(2 * time.Minute)); len(got) != 0 {
		t.Errorf("second Flush() closed %d bars, want 0", len(got))
	}
	if b.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after flush", b.Len())
	}
}

func TestBuilderAdjacentPeriodsAccumulate(t *testing.T) {
	b := NewBuilder(time.Minute)
	b.Append(mkQuote("AAPL", 100, 10, barBase.Add(50*time.Second)), barBase.Add(50*time.Second))

	// The next period starts before the previous bar is flushed.
	next := barBase.Add(time.Minute + 5*time.Second)
	if !b.Append(mkQuote("AAPL", 101, 5, next), next) {
		t.Fatal("Append() into new period = false, want true")
	}
	if b.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 in-progress periods", b.Len())
	}

	closed := b.Flush(barBase.Add(time.Minute + 10*time.Second))
	if len(closed) != 1 {
		t.Fatalf("Flush() closed %d bars, want only the elapsed one", len(closed))
	}
	if !closed[0].PeriodStart.Equal(barBase) {
		t.Errorf("closed PeriodStart = %v, want %v", closed[0].PeriodStart, barBase)
	}

	bar, ok := b.InProgress("AAPL")
	if !ok {
		t.Fatal("new period's bar missing after flush")
	}
	if want := barBase.Add(time.Minute); !bar.PeriodStart.Equal(want) {
		t.Errorf("in-progress PeriodStart = %v, want %v", bar.PeriodStart, want)
	}
}
