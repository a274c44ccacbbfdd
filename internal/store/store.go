package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/finpulse/marketpulse/internal/model"
)

// Store wraps a pgx pool with the daemon's queries.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger

	metricsMu  sync.Mutex
	barMetrics BarMetrics
}

// Connect creates a connection pool and verifies it with a ping.
func Connect(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	poolCfg, err := pgxpool.ParseConfig(BuildConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{pool: pool, logger: logger}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping verifies the connection is healthy.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// definitionRow is the wire form of one markets-table row.
type definitionRow struct {
	Code        string
	Timezone    string
	OpenTime    string // "HH:MM"
	CloseTime   string // "HH:MM"
	Weekdays    []string
	CalendarMIC string
	Holidays    []time.Time
}

// toModel resolves the row's raw fields into a MarketDefinition.
func (r definitionRow) toModel() (model.MarketDefinition, error) {
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return model.MarketDefinition{}, fmt.Errorf("market %s: timezone %q: %w", r.Code, r.Timezone, err)
	}
	open, err := model.ParseTimeOfDay(r.OpenTime)
	if err != nil {
		return model.MarketDefinition{}, fmt.Errorf("market %s: open: %w", r.Code, err)
	}
	clos, err := model.ParseTimeOfDay(r.CloseTime)
	if err != nil {
		return model.MarketDefinition{}, fmt.Errorf("market %s: close: %w", r.Code, err)
	}
	weekdays, err := model.ParseWeekdays(r.Weekdays)
	if err != nil {
		return model.MarketDefinition{}, fmt.Errorf("market %s: %w", r.Code, err)
	}

	return model.MarketDefinition{
		Code:        r.Code,
		Timezone:    r.Timezone,
		Location:    loc,
		Open:        open,
		Close:       clos,
		Weekdays:    weekdays,
		CalendarMIC: r.CalendarMIC,
		Holidays:    r.Holidays,
	}, nil
}

// LoadDefinitions reads all market definitions. The result is an
// immutable-per-cycle configuration snapshot for the catalog.
func (s *Store) LoadDefinitions(ctx context.Context) ([]model.MarketDefinition, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT code, timezone, open_time, close_time, weekdays, calendar_mic, holidays
		FROM markets
		ORDER BY code
	`)
	if err != nil {
		return nil, fmt.Errorf("query markets: %w", err)
	}
	defer rows.Close()

	var defs []model.MarketDefinition
	for rows.Next() {
		var r definitionRow
		if err := rows.Scan(&r.Code, &r.Timezone, &r.OpenTime, &r.CloseTime, &r.Weekdays, &r.CalendarMIC, &r.Holidays); err != nil {
			return nil, fmt.Errorf("scan market row: %w", err)
		}
		def, err := r.toModel()
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read markets: %w", err)
	}

	s.logger.Debug("loaded market definitions", "count", len(defs))
	return defs, nil
}

// LoadInstruments reads all instruments and the market each trades on.
func (s *Store) LoadInstruments(ctx context.Context) ([]model.Instrument, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT symbol, market_code
		FROM instruments
		ORDER BY symbol
	`)
	if err != nil {
		return nil, fmt.Errorf("query instruments: %w", err)
	}
	defer rows.Close()

	var instruments []model.Instrument
	for rows.Next() {
		var inst model.Instrument
		if err := rows.Scan(&inst.Symbol, &inst.MarketCode); err != nil {
			return nil, fmt.Errorf("scan instrument row: %w", err)
		}
		instruments = append(instruments, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read instruments: %w", err)
	}

	s.logger.Debug("loaded instruments", "count", len(instruments))
	return instruments, nil
}

// Week52 returns the high/low extremes over the lookback window ending now.
// ok=false means no bars exist for the symbol in the window.
func (s *Store) Week52(ctx context.Context, symbol string, since time.Time) (high, low decimal.Decimal, ok bool, err error) {
	var h, l decimal.NullDecimal
	err = s.pool.QueryRow(ctx, `
		SELECT MAX(high), MIN(low)
		FROM bars
		WHERE symbol = $1 AND period_start >= $2
	`, symbol, since).Scan(&h, &l)
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, false, fmt.Errorf("query week52 %s: %w", symbol, err)
	}
	if !h.Valid || !l.Valid {
		return decimal.Decimal{}, decimal.Decimal{}, false, nil
	}
	return h.Decimal, l.Decimal, true, nil
}
