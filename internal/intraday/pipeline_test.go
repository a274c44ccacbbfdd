package intraday

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finpulse/marketpulse/internal/catalog"
	"github.com/finpulse/marketpulse/internal/gateway"
	"github.com/finpulse/marketpulse/internal/model"
)

// Tuesday. The US test market trades 09:00-17:00 UTC.
var (
	tradeOpen   = time.Date(2025, 6, 3, 12, 0, 0, 0, time.UTC)
	tradeClosed = time.Date(2025, 6, 3, 18, 0, 0, 0, time.UTC)
)

func usDef() model.MarketDefinition {
	var days model.WeekdaySet
	for d := time.Monday; d <= time.Friday; d++ {
		days = days.Add(d)
	}
	return model.MarketDefinition{
		Code:     "US",
		Timezone: "UTC",
		Open:     model.TimeOfDay{Hour: 9},
		Close:    model.TimeOfDay{Hour: 17},
		Weekdays: days,
	}
}

// eveningDef trades 20:00-23:00 UTC, closed at tradeOpen.
func eveningDef() model.MarketDefinition {
	def := usDef()
	def.Code = "EU"
	def.Open = model.TimeOfDay{Hour: 20}
	def.Close = model.TimeOfDay{Hour: 23}
	return def
}

type fakeFeed struct {
	mu          sync.Mutex
	quotes      []model.Quote
	err         error
	calls       int
	lastSymbols []string
}

func (f *fakeFeed) Quotes(ctx context.Context, symbols []string) ([]model.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastSymbols = append([]string(nil), symbols...)
	if f.err != nil {
		return nil, f.err
	}
	return f.quotes, nil
}

type fakeSink struct {
	mu    sync.Mutex
	seen  map[string]int
	calls int
	err   error
}

func newFakeSink() *fakeSink {
	return &fakeSink{seen: make(map[string]int)}
}

func (f *fakeSink) InsertBars(ctx context.Context, bars []model.Bar) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return 0, 0, f.err
	}
	inserted, conflicts := 0, 0
	for _, b := range bars {
		key := b.Symbol + "|" + b.PeriodStart.UTC().Format(time.RFC3339)
		if f.seen[key] > 0 {
			conflicts++
		} else {
			inserted++
		}
		f.seen[key]++
	}
	return inserted, conflicts, nil
}

type fakeExtremes struct {
	high, low decimal.Decimal
	ok        bool
	err       error
	calls     int
}

func (f *fakeExtremes) Week52(ctx context.Context, symbol string, since time.Time) (decimal.Decimal, decimal.Decimal, bool, error) {
	f.calls++
	return f.high, f.low, f.ok, f.err
}

type pipelineOpts struct {
	feed     *fakeFeed
	sink     BarSink
	extremes ExtremesSource
	defs     []model.MarketDefinition
	insts    []model.Instrument
}

func newTestPipeline(t *testing.T, at time.Time, opts pipelineOpts) (*Pipeline, *gateway.Memory) {
	t.Helper()

	if opts.defs == nil {
		opts.defs = []model.MarketDefinition{usDef()}
	}
	if opts.insts == nil {
		opts.insts = []model.Instrument{{Symbol: "AAPL", MarketCode: "US"}}
	}
	if opts.feed == nil {
		opts.feed = &fakeFeed{}
	}

	snap, err := catalog.NewSnapshot(opts.defs, opts.insts, at)
	if err != nil {
		t.Fatalf("NewSnapshot() error = %v", err)
	}
	c := catalog.New()
	c.Swap(snap)

	mem := gateway.NewMemory()
	p := NewPipeline(c, mem, opts.feed, opts.sink, opts.extremes, Config{}, nil)
	p.now = func() time.Time { return at }
	return p, mem
}

func getJSON(t *testing.T, mem *gateway.Memory, key string, v any) bool {
	t.Helper()
	raw, ok, err := mem.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get(%s) error = %v", key, err)
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("unmarshal %s: %v", key, err)
	}
	return true
}

func setJSON(t *testing.T, mem *gateway.Memory, key string, v any, ttl time.Duration) {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal %s: %v", key, err)
	}
	if err := mem.Set(context.Background(), key, raw, ttl); err != nil {
		t.Fatalf("Set(%s) error = %v", key, err)
	}
}
