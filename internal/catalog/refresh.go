package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/finpulse/marketpulse/internal/model"
)

// Source loads definitions and instruments from a backing store.
type Source interface {
	LoadDefinitions(ctx context.Context) ([]model.MarketDefinition, error)
	LoadInstruments(ctx context.Context) ([]model.Instrument, error)
}

// StaticSource serves a fixed set of definitions and instruments, used when
// the catalog comes straight from configuration instead of a database.
type StaticSource struct {
	Defs  []model.MarketDefinition
	Insts []model.Instrument
}

// LoadDefinitions returns the configured definitions.
func (s StaticSource) LoadDefinitions(ctx context.Context) ([]model.MarketDefinition, error) {
	return s.Defs, nil
}

// LoadInstruments returns the configured instruments.
func (s StaticSource) LoadInstruments(ctx context.Context) ([]model.Instrument, error) {
	return s.Insts, nil
}

// RefreshJob reloads the catalog from its source on each heartbeat dispatch.
// A failed load leaves the previous snapshot in place.
type RefreshJob struct {
	catalog  *Catalog
	source   Source
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewRefreshJob creates the periodic catalog reload job.
func NewRefreshJob(c *Catalog, source Source, interval time.Duration, logger *slog.Logger) *RefreshJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &RefreshJob{
		catalog:  c,
		source:   source,
		interval: interval,
		logger:   logger.With("job", "catalog_refresh"),
		now:      time.Now,
	}
}

// Name implements heartbeat.Job.
func (j *RefreshJob) Name() string { return "catalog_refresh" }

// Interval implements heartbeat.Job.
func (j *RefreshJob) Interval() time.Duration { return j.interval }

// Run loads a fresh snapshot and swaps it in. Load or validation errors are
// returned to the scheduler and the catalog keeps serving the old snapshot.
func (j *RefreshJob) Run(ctx context.Context) error {
	defs, err := j.source.LoadDefinitions(ctx)
	if err != nil {
		return fmt.Errorf("loading market definitions: %w", err)
	}
	insts, err := j.source.LoadInstruments(ctx)
	if err != nil {
		return fmt.Errorf("loading instruments: %w", err)
	}

	snap, err := NewSnapshot(defs, insts, j.now())
	if err != nil {
		return fmt.Errorf("building catalog snapshot: %w", err)
	}

	prev := j.catalog.Swap(snap)
	if len(snap.Definitions()) != len(prev.Definitions()) || len(snap.Instruments()) != len(prev.Instruments()) {
		j.logger.Info("catalog reloaded",
			"markets", len(snap.Definitions()),
			"instruments", len(snap.Instruments()))
	} else {
		j.logger.Debug("catalog refreshed",
			"markets", len(snap.Definitions()),
			"instruments", len(snap.Instruments()))
	}
	return nil
}
