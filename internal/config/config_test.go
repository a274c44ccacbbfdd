package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalYAML = `
heartbeat:
  enabled: true
feed:
  base_url: https://feed.example.com
markets:
  - code: US
    timezone: America/New_York
    open: "09:30"
    close: "16:00"
    weekdays: [mon, tue, wed, thu, fri]
    calendar_mic: XNYS
    holidays: ["2025-12-25"]
instruments:
  - symbol: AAPL
    market: US
`

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	yaml := `
log_level: debug
heartbeat:
  enabled: true
  tick_interval: 2s
  job_timeout: 20s
gateway:
  addr: localhost:6379
  db: 3
feed:
  mode: websocket
  ws_url: wss://feed.example.com/stream
  freshness: 45s
pipeline:
  ingest_interval: 10s
  vwap_windows: [5, 30]
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if !cfg.Heartbeat.Enabled {
		t.Error("Heartbeat.Enabled = false, want true")
	}
	if cfg.Heartbeat.TickInterval != 2*time.Second {
		t.Errorf("TickInterval = %v, want 2s", cfg.Heartbeat.TickInterval)
	}
	if cfg.Gateway.Addr != "localhost:6379" || cfg.Gateway.DB != 3 {
		t.Errorf("Gateway = %+v, want localhost:6379 db 3", cfg.Gateway)
	}
	if cfg.Feed.Mode != FeedModeWebSocket {
		t.Errorf("Feed.Mode = %q, want websocket", cfg.Feed.Mode)
	}
	if cfg.Feed.Freshness != 45*time.Second {
		t.Errorf("Feed.Freshness = %v, want 45s", cfg.Feed.Freshness)
	}
	if cfg.Pipeline.IngestInterval != 10*time.Second {
		t.Errorf("IngestInterval = %v, want 10s", cfg.Pipeline.IngestInterval)
	}
	if len(cfg.Pipeline.VWAPWindows) != 2 || cfg.Pipeline.VWAPWindows[0] != 5 {
		t.Errorf("VWAPWindows = %v, want [5 30]", cfg.Pipeline.VWAPWindows)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_FEED_KEY", "secret123")

	yaml := `
feed:
  base_url: https://feed.example.com
  api_key: ${TEST_FEED_KEY}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Feed.APIKey != "secret123" {
		t.Errorf("Feed.APIKey = %q, want secret123", cfg.Feed.APIKey)
	}
}

func TestLoadWithDefaults(t *testing.T) {
	path := writeTempFile(t, minimalYAML)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.LogLevel != DefaultLogLevel {
		t.Errorf("LogLevel = %q, want default %q", cfg.LogLevel, DefaultLogLevel)
	}
	if cfg.Heartbeat.TickInterval != DefaultTickInterval {
		t.Errorf("TickInterval = %v, want default %v", cfg.Heartbeat.TickInterval, DefaultTickInterval)
	}
	if cfg.Heartbeat.JobTimeout != DefaultJobTimeout {
		t.Errorf("JobTimeout = %v, want default %v", cfg.Heartbeat.JobTimeout, DefaultJobTimeout)
	}
	if cfg.Feed.Mode != DefaultFeedMode {
		t.Errorf("Feed.Mode = %q, want default %q", cfg.Feed.Mode, DefaultFeedMode)
	}
	if cfg.Feed.Freshness != DefaultFreshness {
		t.Errorf("Feed.Freshness = %v, want default %v", cfg.Feed.Freshness, DefaultFreshness)
	}
	if cfg.Pipeline.BarPeriod != DefaultBarPeriod {
		t.Errorf("BarPeriod = %v, want default %v", cfg.Pipeline.BarPeriod, DefaultBarPeriod)
	}
	if got := cfg.Pipeline.VWAPWindows; len(got) != 2 || got[0] != 15 || got[1] != 60 {
		t.Errorf("VWAPWindows = %v, want default [15 60]", got)
	}
	if cfg.Pipeline.StatusTTL != DefaultStatusTTL {
		t.Errorf("StatusTTL = %v, want default %v", cfg.Pipeline.StatusTTL, DefaultStatusTTL)
	}
	if cfg.Database.Port != DefaultDBPort {
		t.Errorf("Database.Port = %d, want default %d", cfg.Database.Port, DefaultDBPort)
	}
	if cfg.Database.Enabled() {
		t.Error("Database.Enabled() = true with empty host")
	}
}

func TestLoadAndValidate(t *testing.T) {
	path := writeTempFile(t, minimalYAML)
	cfg, err := LoadAndValidate(path)
	if err != nil {
		t.Fatalf("LoadAndValidate failed: %v", err)
	}
	if len(cfg.Markets) != 1 || cfg.Markets[0].Code != "US" {
		t.Errorf("Markets = %+v, want one US entry", cfg.Markets)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{
			Heartbeat: HeartbeatConfig{Enabled: true},
			Feed:      FeedConfig{BaseURL: "https://feed.example.com"},
			Markets: []MarketConfig{{
				Code:     "US",
				Timezone: "America/New_York",
				Open:     "09:30",
				Close:    "16:00",
				Weekdays: []string{"mon", "tue", "wed", "thu", "fri"},
			}},
			Instruments: []InstrumentConfig{{Symbol: "AAPL", Market: "US"}},
		}
		cfg.applyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: "",
		},
		{
			name:    "zero tick interval",
			mutate:  func(c *Config) { c.Heartbeat.TickInterval = 0 },
			wantErr: "heartbeat.tick_interval must be positive",
		},
		{
			name:    "unknown feed mode",
			mutate:  func(c *Config) { c.Feed.Mode = "carrier-pigeon" },
			wantErr: `feed.mode must be "http" or "websocket", got "carrier-pigeon"`,
		},
		{
			name:    "http mode needs base url",
			mutate:  func(c *Config) { c.Feed.BaseURL = "" },
			wantErr: "feed.base_url is required in http mode",
		},
		{
			name:    "websocket mode needs ws url",
			mutate:  func(c *Config) { c.Feed.Mode = FeedModeWebSocket },
			wantErr: "feed.ws_url is required in websocket mode",
		},
		{
			name:    "negative bar period",
			mutate:  func(c *Config) { c.Pipeline.BarPeriod = -time.Minute },
			wantErr: "pipeline.bar_period must be positive",
		},
		{
			name:    "bad vwap window",
			mutate:  func(c *Config) { c.Pipeline.VWAPWindows = []int{15, 0} },
			wantErr: "pipeline.vwap_windows entries must be >= 1 minute, got 0",
		},
		{
			name:    "bad timezone",
			mutate:  func(c *Config) { c.Markets[0].Timezone = "Mars/Olympus" },
			wantErr: "market US: timezone",
		},
		{
			name:    "bad open time",
			mutate:  func(c *Config) { c.Markets[0].Open = "9am" },
			wantErr: "market US: open",
		},
		{
			name:    "bad weekday",
			mutate:  func(c *Config) { c.Markets[0].Weekdays = []string{"mon", "noday"} },
			wantErr: "market US: weekdays",
		},
		{
			name:    "bad holiday date",
			mutate:  func(c *Config) { c.Markets[0].Holidays = []string{"25/12/2025"} },
			wantErr: "market US: holiday",
		},
		{
			name: "duplicate market code",
			mutate: func(c *Config) {
				c.Markets = append(c.Markets, c.Markets[0])
			},
			wantErr: `duplicate market code "US"`,
		},
		{
			name: "instrument references undefined market",
			mutate: func(c *Config) {
				c.Instruments = []InstrumentConfig{{Symbol: "7203.T", Market: "JP"}}
			},
			wantErr: `instrument "7203.T" references undefined market "JP"`,
		},
		{
			name: "empty instruments with heartbeat enabled",
			mutate: func(c *Config) {
				c.Instruments = nil
			},
			wantErr: "instruments must not be empty",
		},
		{
			name: "empty instruments allowed when heartbeat disabled",
			mutate: func(c *Config) {
				c.Heartbeat.Enabled = false
				c.Instruments = nil
			},
			wantErr: "",
		},
		{
			name: "database needs user",
			mutate: func(c *Config) {
				c.Database.Host = "localhost"
				c.Database.User = ""
			},
			wantErr: "database.user is required",
		},
		{
			name: "database min conns exceeds max",
			mutate: func(c *Config) {
				c.Database.Host = "localhost"
				c.Database.User = "pulse"
				c.Database.Password = "pass"
				c.Database.MinConns = 10
				c.Database.MaxConns = 5
			},
			wantErr: "database.min_conns (10) cannot exceed max_conns (5)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
			} else if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want containing %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestMarketDefinitions(t *testing.T) {
	path := writeTempFile(t, minimalYAML)
	cfg, err := LoadAndValidate(path)
	if err != nil {
		t.Fatalf("LoadAndValidate failed: %v", err)
	}

	defs, err := cfg.MarketDefinitions()
	if err != nil {
		t.Fatalf("MarketDefinitions() error = %v", err)
	}
	if len(defs) != 1 {
		t.Fatalf("got %d definitions, want 1", len(defs))
	}

	def := defs[0]
	if def.Code != "US" {
		t.Errorf("Code = %q, want US", def.Code)
	}
	if def.Location == nil || def.Location.String() != "America/New_York" {
		t.Errorf("Location = %v, want America/New_York", def.Location)
	}
	if def.Open.Hour != 9 || def.Open.Minute != 30 {
		t.Errorf("Open = %v, want 09:30", def.Open)
	}
	if !def.Weekdays.Has(time.Wednesday) || def.Weekdays.Has(time.Saturday) {
		t.Errorf("Weekdays = %v, want mon-fri", def.Weekdays)
	}
	if def.CalendarMIC != "xnys" {
		t.Errorf("CalendarMIC = %q, want lowercased xnys", def.CalendarMIC)
	}
	if len(def.Holidays) != 1 {
		t.Fatalf("Holidays = %v, want one entry", def.Holidays)
	}
	h := def.Holidays[0]
	if h.Year() != 2025 || h.Month() != time.December || h.Day() != 25 {
		t.Errorf("holiday = %v, want 2025-12-25", h)
	}
	if h.Location().String() != "America/New_York" {
		t.Errorf("holiday zone = %v, want market zone", h.Location())
	}

	insts := cfg.InstrumentList()
	if len(insts) != 1 || insts[0].Symbol != "AAPL" || insts[0].MarketCode != "US" {
		t.Errorf("InstrumentList() = %+v, want AAPL on US", insts)
	}
}
