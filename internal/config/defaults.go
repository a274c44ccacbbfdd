package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultLogLevel = "info"

	DefaultTickInterval = 1 * time.Second
	DefaultJobTimeout   = 10 * time.Second

	DefaultDBPort     = 5432
	DefaultDBName     = "marketpulse"
	DefaultDBSSLMode  = "prefer"
	DefaultDBMaxConns = 4
	DefaultDBMinConns = 1

	DefaultFeedMode       = FeedModeHTTP
	DefaultFeedTimeout    = 5 * time.Second
	DefaultFeedMaxRetries = 3
	DefaultFreshness      = 30 * time.Second

	DefaultIngestInterval    = 5 * time.Second
	DefaultFlushInterval     = 15 * time.Second
	DefaultRollingInterval   = 60 * time.Second
	DefaultGradingInterval   = 60 * time.Second
	DefaultReconcileInterval = 30 * time.Second
	DefaultRefreshInterval   = 15 * time.Minute

	DefaultBarPeriod    = 1 * time.Minute
	DefaultHistoryDepth = 2048

	DefaultQuoteTTL    = 60 * time.Second
	DefaultStatusTTL   = 48 * time.Hour
	DefaultStatTTL     = 5 * time.Minute
	DefaultGradeTTL    = 10 * time.Minute
	DefaultSnapshotTTL = 30 * time.Hour
)

// DefaultVWAPWindows are the rolling VWAP windows in minutes.
var DefaultVWAPWindows = []int{15, 60}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}

	// Heartbeat defaults
	if c.Heartbeat.TickInterval == 0 {
		c.Heartbeat.TickInterval = DefaultTickInterval
	}
	if c.Heartbeat.JobTimeout == 0 {
		c.Heartbeat.JobTimeout = DefaultJobTimeout
	}

	// Database defaults
	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.DBName == "" {
		c.Database.DBName = DefaultDBName
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultDBMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultDBMinConns
	}

	// Feed defaults
	if c.Feed.Mode == "" {
		c.Feed.Mode = DefaultFeedMode
	}
	if c.Feed.Timeout == 0 {
		c.Feed.Timeout = DefaultFeedTimeout
	}
	if c.Feed.MaxRetries == 0 {
		c.Feed.MaxRetries = DefaultFeedMaxRetries
	}
	if c.Feed.Freshness == 0 {
		c.Feed.Freshness = DefaultFreshness
	}

	// Pipeline defaults
	if c.Pipeline.IngestInterval == 0 {
		c.Pipeline.IngestInterval = DefaultIngestInterval
	}
	if c.Pipeline.FlushInterval == 0 {
		c.Pipeline.FlushInterval = DefaultFlushInterval
	}
	if c.Pipeline.RollingInterval == 0 {
		c.Pipeline.RollingInterval = DefaultRollingInterval
	}
	if c.Pipeline.GradingInterval == 0 {
		c.Pipeline.GradingInterval = DefaultGradingInterval
	}
	if c.Pipeline.ReconcileInterval == 0 {
		c.Pipeline.ReconcileInterval = DefaultReconcileInterval
	}
	if c.Pipeline.RefreshInterval == 0 {
		c.Pipeline.RefreshInterval = DefaultRefreshInterval
	}
	if c.Pipeline.BarPeriod == 0 {
		c.Pipeline.BarPeriod = DefaultBarPeriod
	}
	if len(c.Pipeline.VWAPWindows) == 0 {
		c.Pipeline.VWAPWindows = append([]int(nil), DefaultVWAPWindows...)
	}
	if c.Pipeline.HistoryDepth == 0 {
		c.Pipeline.HistoryDepth = DefaultHistoryDepth
	}
	if c.Pipeline.QuoteTTL == 0 {
		c.Pipeline.QuoteTTL = DefaultQuoteTTL
	}
	if c.Pipeline.StatusTTL == 0 {
		c.Pipeline.StatusTTL = DefaultStatusTTL
	}
	if c.Pipeline.StatTTL == 0 {
		c.Pipeline.StatTTL = DefaultStatTTL
	}
	if c.Pipeline.GradeTTL == 0 {
		c.Pipeline.GradeTTL = DefaultGradeTTL
	}
	if c.Pipeline.SnapshotTTL == 0 {
		c.Pipeline.SnapshotTTL = DefaultSnapshotTTL
	}
}
