package gateway

import (
	"testing"
	"time"
)

func TestKeyBuilders(t *testing.T) {
	sessionDate := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"market status", MarketStatusKey("US"), "market_status:US"},
		{"latest quote", LatestQuoteKey("AAPL"), "latest_quote:AAPL"},
		{"bar", BarKey("AAPL"), "bar:AAPL"},
		{"rolling vwap", RollingVWAPKey("AAPL", 15), "rolling_vwap:AAPL:15"},
		{"change 24h", Change24hKey("AAPL"), "change_24h:AAPL"},
		{"week52", Week52Key("AAPL"), "week52:AAPL"},
		{"session open", SessionOpenKey("AAPL", sessionDate), "session_open:AAPL:2026-03-04"},
		{"grade", GradeKey("AAPL"), "grade:AAPL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("key = %q, want %q", tt.got, tt.want)
			}
		})
	}
}
