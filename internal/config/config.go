package config

import "time"

// Feed transport modes.
const (
	FeedModeHTTP      = "http"
	FeedModeWebSocket = "websocket"
)

// Config is the root configuration for a pulsed instance.
type Config struct {
	LogLevel    string             `yaml:"log_level"`
	Heartbeat   HeartbeatConfig    `yaml:"heartbeat"`
	Gateway     GatewayConfig      `yaml:"gateway"`
	Database    DatabaseConfig     `yaml:"database"`
	Feed        FeedConfig         `yaml:"feed"`
	Pipeline    PipelineConfig     `yaml:"pipeline"`
	Markets     []MarketConfig     `yaml:"markets"`
	Instruments []InstrumentConfig `yaml:"instruments"`
}

// HeartbeatConfig holds the scheduler settings. Enabled is explicit: a
// disabled heartbeat leaves only the health endpoint running.
type HeartbeatConfig struct {
	Enabled      bool          `yaml:"enabled"`
	TickInterval time.Duration `yaml:"tick_interval"`
	JobTimeout   time.Duration `yaml:"job_timeout"`
}

// GatewayConfig holds the Redis connection. An empty addr selects the
// in-process memory gateway, for local runs without a broker.
type GatewayConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// DatabaseConfig holds the optional PostgreSQL connection. An empty host
// disables persistence; the catalog then comes from the YAML lists below.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// Enabled reports whether a database is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

// FeedConfig holds the quote feed settings.
type FeedConfig struct {
	Mode       string        `yaml:"mode"` // http | websocket
	BaseURL    string        `yaml:"base_url"`
	WSURL      string        `yaml:"ws_url"`
	APIKey     string        `yaml:"api_key"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	Freshness  time.Duration `yaml:"freshness"`
}

// PipelineConfig holds job intervals, bar parameters, and cache TTLs.
type PipelineConfig struct {
	IngestInterval    time.Duration `yaml:"ingest_interval"`
	FlushInterval     time.Duration `yaml:"flush_interval"`
	RollingInterval   time.Duration `yaml:"rolling_interval"`
	GradingInterval   time.Duration `yaml:"grading_interval"`
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	RefreshInterval   time.Duration `yaml:"refresh_interval"`

	BarPeriod    time.Duration `yaml:"bar_period"`
	VWAPWindows  []int         `yaml:"vwap_windows"` // minutes
	HistoryDepth int           `yaml:"history_depth"`

	QuoteTTL    time.Duration `yaml:"quote_ttl"`
	StatusTTL   time.Duration `yaml:"status_ttl"`
	StatTTL     time.Duration `yaml:"stat_ttl"`
	GradeTTL    time.Duration `yaml:"grade_ttl"`
	SnapshotTTL time.Duration `yaml:"snapshot_ttl"`
}

// MarketConfig is one market's trading calendar as written in YAML.
type MarketConfig struct {
	Code        string   `yaml:"code"`
	Timezone    string   `yaml:"timezone"`
	Open        string   `yaml:"open"`  // HH:MM local
	Close       string   `yaml:"close"` // HH:MM local, exclusive
	Weekdays    []string `yaml:"weekdays"`
	CalendarMIC string   `yaml:"calendar_mic"`
	Holidays    []string `yaml:"holidays"` // YYYY-MM-DD
}

// InstrumentConfig binds one symbol to its market.
type InstrumentConfig struct {
	Symbol string `yaml:"symbol"`
	Market string `yaml:"market"`
}
