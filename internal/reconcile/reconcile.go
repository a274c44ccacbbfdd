// Package reconcile keeps cached market status in line with the session
// clock. Each pass recomputes every market's desired status, compares it to
// the cached value, and writes plus publishes only on a transition or a cold
// start. A steady state writes nothing.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/finpulse/marketpulse/internal/catalog"
	"github.com/finpulse/marketpulse/internal/clock"
	"github.com/finpulse/marketpulse/internal/gateway"
	"github.com/finpulse/marketpulse/internal/model"
)

// Metrics counts reconciler activity since startup.
type Metrics struct {
	Passes      int64 // completed reconciliation passes
	Checked     int64 // market comparisons performed
	Transitions int64 // status flips written
	ColdStarts  int64 // writes with no prior cached status
	Errors      int64 // per-market failures (gateway or decode)
}

// Reconciler is the market-status heartbeat job.
type Reconciler struct {
	catalog  *catalog.Catalog
	gateway  gateway.Gateway
	interval time.Duration
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	metrics Metrics
}

// New creates the reconciler. ttl bounds how long a cached status survives
// without a rewrite; after expiry the next pass takes the cold-start path.
func New(c *catalog.Catalog, gw gateway.Gateway, interval, ttl time.Duration, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = gateway.DefaultStatusTTL
	}
	return &Reconciler{
		catalog:  c,
		gateway:  gw,
		interval: interval,
		ttl:      ttl,
		logger:   logger.With("job", "market_status_reconcile"),
		now:      time.Now,
	}
}

// Name implements heartbeat.Job.
func (r *Reconciler) Name() string { return "market_status_reconcile" }

// Interval implements heartbeat.Job.
func (r *Reconciler) Interval() time.Duration { return r.interval }

// Run reconciles every market in the current catalog snapshot. Failures are
// isolated per market: a broken gateway read or write skips that market for
// this pass and the rest still reconcile. The joined error surfaces in the
// scheduler's failure count.
func (r *Reconciler) Run(ctx context.Context) error {
	snap := r.catalog.Snapshot()
	now := r.now()

	var errs []error
	var checked, transitions, coldStarts int64

	for _, def := range snap.Definitions() {
		checked++
		transitioned, cold, err := r.reconcileMarket(ctx, def, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("market %s: %w", def.Code, err))
			continue
		}
		if cold {
			coldStarts++
		}
		if transitioned {
			transitions++
		}
	}

	r.mu.Lock()
	r.metrics.Passes++
	r.metrics.Checked += checked
	r.metrics.Transitions += transitions
	r.metrics.ColdStarts += coldStarts
	r.metrics.Errors += int64(len(errs))
	r.mu.Unlock()

	if len(errs) > 0 {
		r.logger.Warn("reconcile pass finished with errors",
			"markets", checked,
			"errors", len(errs),
			"first_error", errs[0])
	}
	return errors.Join(errs...)
}

// reconcileMarket compares the clock's status with the cached one and writes
// on difference. Returns whether a transition was published and whether this
// was a cold start.
func (r *Reconciler) reconcileMarket(ctx context.Context, def model.MarketDefinition, now time.Time) (transitioned, cold bool, err error) {
	desired := clock.StatusAt(def, now)
	key := gateway.MarketStatusKey(def.Code)

	raw, ok, err := r.gateway.Get(ctx, key)
	if err != nil {
		return false, false, fmt.Errorf("reading cached status: %w", err)
	}

	var oldStatus model.Status
	if ok {
		var cached model.MarketStatus
		if err := json.Unmarshal(raw, &cached); err != nil {
			// Corrupt entry: take the cold-start path and overwrite it.
			r.logger.Warn("discarding undecodable cached status",
				"market", def.Code, "error", err)
			ok = false
		} else {
			oldStatus = cached.Status
		}
	}

	if ok && oldStatus == desired.Status {
		return false, false, nil
	}

	payload, err := json.Marshal(desired)
	if err != nil {
		return false, false, fmt.Errorf("encoding status: %w", err)
	}
	if err := r.gateway.Set(ctx, key, payload, r.ttl); err != nil {
		return false, false, fmt.Errorf("writing status: %w", err)
	}

	event := model.NewStatusEvent(def.Code, oldStatus, desired.Status, now)
	eventPayload, err := json.Marshal(event)
	if err != nil {
		return false, false, fmt.Errorf("encoding status event: %w", err)
	}
	if err := r.gateway.Publish(ctx, gateway.ChannelMarketStatus, eventPayload); err != nil {
		// The write landed; the announcement is at-most-once and is not
		// replayed on the next pass.
		r.logger.Warn("status written but publish failed",
			"market", def.Code, "status", desired.Status, "error", err)
		return true, !ok, nil
	}

	r.logger.Info("market status changed",
		"market", def.Code,
		"old", string(oldStatus),
		"new", string(desired.Status))
	return true, !ok, nil
}

// Stats returns a copy of the reconciler's counters.
func (r *Reconciler) Stats() Metrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.metrics
}
