package intraday

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finpulse/marketpulse/internal/clock"
	"github.com/finpulse/marketpulse/internal/gateway"
	"github.com/finpulse/marketpulse/internal/model"
)

// Grade thresholds in percent change from the session open.
var (
	gradeStrongGain = decimal.NewFromFloat(2.0)
	gradeGain       = decimal.NewFromFloat(0.5)
	gradeLoss       = decimal.NewFromFloat(-0.5)
	gradeStrongLoss = decimal.NewFromFloat(-2.0)
)

// classify maps percent change to a session grade. Boundaries fall toward
// the better label on gains and the worse one on losses.
func classify(changePct decimal.Decimal) model.Grade {
	switch {
	case changePct.GreaterThanOrEqual(gradeStrongGain):
		return model.GradeA
	case changePct.GreaterThanOrEqual(gradeGain):
		return model.GradeB
	case changePct.GreaterThan(gradeLoss):
		return model.GradeC
	case changePct.GreaterThan(gradeStrongLoss):
		return model.GradeD
	default:
		return model.GradeF
	}
}

// SessionOpen is the write-once per (symbol, session date) opening snapshot
// grades are measured against.
type SessionOpen struct {
	Symbol      string          `json:"symbol"`
	Price       decimal.Decimal `json:"price"`
	SessionDate string          `json:"session_date"` // YYYY-MM-DD, market zone
	CapturedAt  time.Time       `json:"captured_at"`
}

// GradeStat is the cached grade entry, rewritten on every pass.
type GradeStat struct {
	Symbol    string          `json:"symbol"`
	Grade     model.Grade     `json:"grade"`
	ChangePct decimal.Decimal `json:"change_pct"`
	Session   string          `json:"session"` // YYYY-MM-DD
	AsOf      time.Time       `json:"as_of"`
}

// GradeJob classifies each open symbol's performance against its session-open
// snapshot. The snapshot is captured at most once per (symbol, session date)
// and never mutated; the grade entry is rewritten every pass but a GradeEvent
// is published only when the label changes.
type GradeJob struct {
	p        *Pipeline
	interval time.Duration
}

// NewGradeJob creates the session grading job.
func NewGradeJob(p *Pipeline, interval time.Duration) *GradeJob {
	return &GradeJob{p: p, interval: interval}
}

// Name implements heartbeat.Job.
func (j *GradeJob) Name() string { return "session_grade" }

// Interval implements heartbeat.Job.
func (j *GradeJob) Interval() time.Duration { return j.interval }

// ShouldRun implements heartbeat.Gater: grading is session work.
func (j *GradeJob) ShouldRun(now time.Time) bool {
	return j.p.anyOpen(now)
}

// Run implements heartbeat.Job.
func (j *GradeJob) Run(ctx context.Context) error {
	p := j.p
	now := p.now()
	snap := p.catalog.Snapshot()

	var snapshots, changes int64
	var errs []error
	for _, inst := range snap.Instruments() {
		def, ok := snap.Definition(inst.MarketCode)
		if !ok {
			continue
		}
		if clock.StatusAt(def, now).Status != model.StatusOpen {
			continue
		}

		captured, changed, err := j.gradeSymbol(ctx, inst.Symbol, def, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("symbol %s: %w", inst.Symbol, err))
			continue
		}
		if captured {
			snapshots++
		}
		if changed {
			changes++
		}
	}

	p.count(func(m *Metrics) {
		m.Snapshots += snapshots
		m.GradeChanges += changes
		m.Errors += int64(len(errs))
	})
	return errors.Join(errs...)
}

// gradeSymbol grades one symbol. Reports whether a session-open snapshot was
// captured and whether the grade label changed.
func (j *GradeJob) gradeSymbol(ctx context.Context, symbol string, def model.MarketDefinition, now time.Time) (captured, changed bool, err error) {
	p := j.p

	quote, ok, err := p.cachedQuote(ctx, symbol)
	if err != nil {
		return false, false, fmt.Errorf("reading cached quote: %w", err)
	}
	if !ok {
		// Nothing ingested yet this session; try again next pass.
		return false, false, nil
	}

	sessionDate := clock.SessionDate(def, now)
	open, captured, err := j.sessionOpen(ctx, symbol, sessionDate, quote, now)
	if err != nil {
		return false, false, err
	}
	if !open.Price.IsPositive() {
		return captured, false, nil
	}

	changePct := quote.Last.Sub(open.Price).Div(open.Price).Mul(decimal.NewFromInt(100))
	grade := classify(changePct)

	prev, havePrev, err := j.previousGrade(ctx, symbol)
	if err != nil {
		return captured, false, err
	}

	stat := GradeStat{
		Symbol:    symbol,
		Grade:     grade,
		ChangePct: changePct,
		Session:   open.SessionDate,
		AsOf:      now,
	}
	payload, err := json.Marshal(stat)
	if err != nil {
		return captured, false, fmt.Errorf("encoding grade: %w", err)
	}
	if err := p.gateway.Set(ctx, gateway.GradeKey(symbol), payload, p.cfg.GradeTTL); err != nil {
		return captured, false, fmt.Errorf("writing grade: %w", err)
	}

	if havePrev && prev == grade {
		return captured, false, nil
	}

	event, err := json.Marshal(model.NewGradeEvent(symbol, grade, changePct, now))
	if err != nil {
		return captured, false, fmt.Errorf("encoding grade event: %w", err)
	}
	if err := p.gateway.Publish(ctx, gateway.ChannelGrades, event); err != nil {
		// Grade entry landed; the announcement is at-most-once.
		p.logger.Warn("grade written but publish failed", "symbol", symbol, "error", err)
		return captured, true, nil
	}

	p.logger.Info("session grade changed",
		"symbol", symbol,
		"grade", string(grade),
		"change_pct", changePct.StringFixed(2))
	return captured, true, nil
}

// sessionOpen returns the symbol's snapshot for the session date, capturing
// it from the current quote when absent. An existing snapshot is never
// overwritten.
func (j *GradeJob) sessionOpen(ctx context.Context, symbol string, sessionDate time.Time, quote model.Quote, now time.Time) (SessionOpen, bool, error) {
	p := j.p
	key := gateway.SessionOpenKey(symbol, sessionDate)

	raw, ok, err := p.gateway.Get(ctx, key)
	if err != nil {
		return SessionOpen{}, false, fmt.Errorf("reading session open: %w", err)
	}
	if ok {
		var snap SessionOpen
		if err := json.Unmarshal(raw, &snap); err != nil {
			return SessionOpen{}, false, fmt.Errorf("decoding session open: %w", err)
		}
		return snap, false, nil
	}

	snap := SessionOpen{
		Symbol:      symbol,
		Price:       quote.Last,
		SessionDate: sessionDate.Format("2006-01-02"),
		CapturedAt:  now,
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return SessionOpen{}, false, fmt.Errorf("encoding session open: %w", err)
	}
	if err := p.gateway.Set(ctx, key, payload, p.cfg.SnapshotTTL); err != nil {
		return SessionOpen{}, false, fmt.Errorf("writing session open: %w", err)
	}
	p.logger.Debug("session open captured",
		"symbol", symbol,
		"session", snap.SessionDate,
		"price", snap.Price.String())
	return snap, true, nil
}

// previousGrade reads the cached grade label, if any.
func (j *GradeJob) previousGrade(ctx context.Context, symbol string) (model.Grade, bool, error) {
	raw, ok, err := j.p.gateway.Get(ctx, gateway.GradeKey(symbol))
	if err != nil {
		return "", false, fmt.Errorf("reading previous grade: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	var stat GradeStat
	if err := json.Unmarshal(raw, &stat); err != nil {
		// Corrupt entry: treat as absent and overwrite below.
		return "", false, nil
	}
	return stat.Grade, true, nil
}
