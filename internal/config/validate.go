package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
// Call after applyDefaults; zero intervals are rejected, not defaulted here.
func (c *Config) Validate() error {
	if c.Heartbeat.TickInterval <= 0 {
		return errors.New("heartbeat.tick_interval must be positive")
	}
	if c.Heartbeat.JobTimeout <= 0 {
		return errors.New("heartbeat.job_timeout must be positive")
	}

	if c.Database.Enabled() {
		if err := c.Database.validate(); err != nil {
			return err
		}
	}

	if err := c.Feed.validate(); err != nil {
		return err
	}
	if err := c.Pipeline.validate(); err != nil {
		return err
	}
	if err := c.validateCatalog(); err != nil {
		return err
	}

	if c.Heartbeat.Enabled && !c.Database.Enabled() && len(c.Instruments) == 0 {
		return errors.New("instruments must not be empty when the heartbeat is enabled without a database")
	}
	return nil
}

func (d DatabaseConfig) validate() error {
	if d.User == "" {
		return errors.New("database.user is required")
	}
	if d.Password == "" {
		return errors.New("database.password is required")
	}
	if d.DBName == "" {
		return errors.New("database.dbname is required")
	}
	if d.MaxConns < 1 {
		return errors.New("database.max_conns must be >= 1")
	}
	if d.MinConns < 0 {
		return errors.New("database.min_conns must be >= 0")
	}
	if d.MinConns > d.MaxConns {
		return fmt.Errorf("database.min_conns (%d) cannot exceed max_conns (%d)", d.MinConns, d.MaxConns)
	}
	return nil
}

func (f FeedConfig) validate() error {
	switch f.Mode {
	case FeedModeHTTP:
		if f.BaseURL == "" {
			return errors.New("feed.base_url is required in http mode")
		}
	case FeedModeWebSocket:
		if f.WSURL == "" {
			return errors.New("feed.ws_url is required in websocket mode")
		}
	default:
		return fmt.Errorf("feed.mode must be %q or %q, got %q", FeedModeHTTP, FeedModeWebSocket, f.Mode)
	}
	if f.Timeout <= 0 {
		return errors.New("feed.timeout must be positive")
	}
	if f.MaxRetries < 0 {
		return errors.New("feed.max_retries must be >= 0")
	}
	if f.Freshness <= 0 {
		return errors.New("feed.freshness must be positive")
	}
	return nil
}

func (p PipelineConfig) validate() error {
	if p.IngestInterval <= 0 {
		return errors.New("pipeline.ingest_interval must be positive")
	}
	if p.FlushInterval <= 0 {
		return errors.New("pipeline.flush_interval must be positive")
	}
	if p.RollingInterval <= 0 {
		return errors.New("pipeline.rolling_interval must be positive")
	}
	if p.GradingInterval <= 0 {
		return errors.New("pipeline.grading_interval must be positive")
	}
	if p.ReconcileInterval <= 0 {
		return errors.New("pipeline.reconcile_interval must be positive")
	}
	if p.RefreshInterval <= 0 {
		return errors.New("pipeline.refresh_interval must be positive")
	}
	if p.BarPeriod <= 0 {
		return errors.New("pipeline.bar_period must be positive")
	}
	if p.QuoteTTL <= 0 || p.StatusTTL <= 0 || p.StatTTL <= 0 || p.GradeTTL <= 0 || p.SnapshotTTL <= 0 {
		return errors.New("pipeline ttls must be positive")
	}
	if p.HistoryDepth < 1 {
		return errors.New("pipeline.history_depth must be >= 1")
	}
	for _, w := range p.VWAPWindows {
		if w < 1 {
			return fmt.Errorf("pipeline.vwap_windows entries must be >= 1 minute, got %d", w)
		}
	}
	return nil
}

// validateCatalog parses every market and checks referential integrity of the
// YAML catalog.
func (c *Config) validateCatalog() error {
	codes := make(map[string]bool, len(c.Markets))
	for _, m := range c.Markets {
		if m.Code == "" {
			return errors.New("markets entries need a code")
		}
		if codes[m.Code] {
			return fmt.Errorf("duplicate market code %q", m.Code)
		}
		codes[m.Code] = true
		if _, err := m.toModel(); err != nil {
			return err
		}
	}

	symbols := make(map[string]bool, len(c.Instruments))
	for _, inst := range c.Instruments {
		if inst.Symbol == "" {
			return errors.New("instruments entries need a symbol")
		}
		if symbols[inst.Symbol] {
			return fmt.Errorf("duplicate instrument symbol %q", inst.Symbol)
		}
		symbols[inst.Symbol] = true
		if !c.Database.Enabled() && !codes[inst.Market] {
			return fmt.Errorf("instrument %q references undefined market %q", inst.Symbol, inst.Market)
		}
	}
	return nil
}
