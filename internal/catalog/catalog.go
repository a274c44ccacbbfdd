// Package catalog holds the configuration snapshot every job reads: market
// definitions and the instruments that trade on them.
//
// Snapshots are immutable; a refresh builds a complete new snapshot and swaps
// it in under the catalog's lock. Jobs grab the current snapshot once per run
// and see a consistent view for the whole run regardless of concurrent
// refreshes.
package catalog

import (
	"fmt"
	"sync"
	"time"

	"github.com/finpulse/marketpulse/internal/model"
)

// Snapshot is one immutable-per-cycle view of definitions and instruments.
type Snapshot struct {
	definitions []model.MarketDefinition
	instruments []model.Instrument
	byCode      map[string]model.MarketDefinition
	bySymbol    map[string]model.Instrument
	loadedAt    time.Time
}

// NewSnapshot builds a snapshot and validates referential integrity:
// UNIQUE market codes, unique symbols, and every instrument bound to a
// defined market.
func NewSnapshot(defs []model.MarketDefinition, instruments []model.Instrument, loadedAt time.Time) (*Snapshot, error) {
	byCode := make(map[string]model.MarketDefinition, len(defs))
	for _, d := range defs {
		if d.Code == "" {
			return nil, fmt.Errorf("market definition with empty code")
		}
		if _, exists := byCode[d.Code]; exists {
			return nil, fmt.Errorf("duplicate market code %q", d.Code)
		}
		byCode[d.Code] = d
	}

	bySymbol := make(map[string]model.Instrument, len(instruments))
	for _, inst := range instruments {
		if inst.Symbol == "" {
			return nil, fmt.Errorf("instrument with empty symbol")
		}
		if _, exists := bySymbol[inst.Symbol]; exists {
			return nil, fmt.Errorf("duplicate instrument symbol %q", inst.Symbol)
		}
		if _, ok := byCode[inst.MarketCode]; !ok {
			return nil, fmt.Errorf("instrument %q references undefined market %q", inst.Symbol, inst.MarketCode)
		}
		bySymbol[inst.Symbol] = inst
	}

	return &Snapshot{
		definitions: defs,
		instruments: instruments,
		byCode:      byCode,
		bySymbol:    bySymbol,
		loadedAt:    loadedAt,
	}, nil
}

// Definitions returns all market definitions in load order.
func (s *Snapshot) Definitions() []model.MarketDefinition {
	return s.definitions
}

// Instruments returns all instruments in load order.
func (s *Snapshot) Instruments() []model.Instrument {
	return s.instruments
}

// Definition looks up a market by exchange code.
func (s *Snapshot) Definition(code string) (model.MarketDefinition, bool) {
	d, ok := s.byCode[code]
	return d, ok
}

// MarketFor returns the definition gating a symbol's session.
func (s *Snapshot) MarketFor(symbol string) (model.MarketDefinition, bool) {
	inst, ok := s.bySymbol[symbol]
	if !ok {
		return model.MarketDefinition{}, false
	}
	return s.byCode[inst.MarketCode], true
}

// Symbols returns all instrument symbols in load order.
func (s *Snapshot) Symbols() []string {
	symbols := make([]string, len(s.instruments))
	for i, inst := range s.instruments {
		symbols[i] = inst.Symbol
	}
	return symbols
}

// LoadedAt reports when the snapshot was built.
func (s *Snapshot) LoadedAt() time.Time {
	return s.loadedAt
}

// Catalog holds the current snapshot. Reads take the RLock only long enough
// to copy the pointer; all data behind it is immutable.
type Catalog struct {
	mu   sync.RWMutex
	snap *Snapshot
}

// New creates a catalog holding an empty snapshot.
func New() *Catalog {
	empty, _ := NewSnapshot(nil, nil, time.Time{})
	return &Catalog{snap: empty}
}

// Snapshot returns the current snapshot.
func (c *Catalog) Snapshot() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// Swap installs a new snapshot and returns the previous one.
func (c *Catalog) Swap(snap *Snapshot) *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.snap
	c.snap = snap
	return prev
}
