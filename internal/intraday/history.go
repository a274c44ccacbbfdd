package intraday

import (
	"sync"
	"time"

	"github.com/finpulse/marketpulse/internal/model"
)

// DefaultHistoryDepth bounds per-symbol closed-bar history. At one-minute
// bars it covers a bit over 34 hours, enough for every 24-hour window.
const DefaultHistoryDepth = 2048

// ring is a fixed-capacity circular buffer of closed bars. When full, the
// oldest bar is overwritten.
type ring struct {
	buf   []model.Bar
	head  int // oldest element
	count int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]model.Bar, capacity)}
}

func (r *ring) push(bar model.Bar) {
	if r.count < len(r.buf) {
		r.buf[(r.head+r.count)%len(r.buf)] = bar
		r.count++
		return
	}
	// Full: overwrite the oldest slot and advance.
	r.buf[r.head] = bar
	r.head = (r.head + 1) % len(r.buf)
}

// scan visits bars oldest to newest.
func (r *ring) scan(visit func(model.Bar) bool) {
	for i := 0; i < r.count; i++ {
		if !visit(r.buf[(r.head+i)%len(r.buf)]) {
			return
		}
	}
}

func (r *ring) last() (model.Bar, bool) {
	if r.count == 0 {
		return model.Bar{}, false
	}
	return r.buf[(r.head+r.count-1)%len(r.buf)], true
}

// History is the bounded store of closed bars, one ring per symbol. Rolling
// aggregates read from it; only FlushJob appends. In-progress bars never
// enter the history.
type History struct {
	mu    sync.RWMutex
	depth int
	rings map[string]*ring
}

// NewHistory creates a history retaining up to depth closed bars per symbol.
func NewHistory(depth int) *History {
	if depth <= 0 {
		depth = DefaultHistoryDepth
	}
	return &History{
		depth: depth,
		rings: make(map[string]*ring),
	}
}

// Append records a closed bar. Open bars are rejected.
func (h *History) Append(bar model.Bar) bool {
	if !bar.Closed {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rings[bar.Symbol]
	if !ok {
		r = newRing(h.depth)
		h.rings[bar.Symbol] = r
	}
	r.push(bar)
	return true
}

// Since returns the symbol's closed bars with PeriodStart at or after cutoff,
// oldest first.
func (h *History) Since(symbol string, cutoff time.Time) []model.Bar {
	h.mu.RLock()
	defer h.mu.RUnlock()

	r, ok := h.rings[symbol]
	if !ok {
		return nil
	}
	var bars []model.Bar
	r.scan(func(b model.Bar) bool {
		if !b.PeriodStart.Before(cutoff) {
			bars = append(bars, b)
		}
		return true
	})
	return bars
}

// Last returns the symbol's newest closed bar.
func (h *History) Last(symbol string) (model.Bar, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	r, ok := h.rings[symbol]
	if !ok {
		return model.Bar{}, false
	}
	return r.last()
}

// Len reports the number of retained bars for a symbol.
func (h *History) Len(symbol string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	r, ok := h.rings[symbol]
	if !ok {
		return 0
	}
	return r.count
}
