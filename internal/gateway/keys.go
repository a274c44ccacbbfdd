package gateway

import (
	"fmt"
	"time"
)

// Publish channels.
const (
	ChannelMarketStatus = "market_status"
	ChannelQuotes       = "quotes"
	ChannelGrades       = "grades"
)

// Default TTLs per data class. Each bounds how stale its class may become
// before the owning job's next scheduled write; all are overridable in
// configuration.
const (
	DefaultQuoteTTL    = time.Minute      // refreshed on every ingest pass
	DefaultStatusTTL   = 48 * time.Hour   // rewritten on transition or after expiry
	DefaultStatTTL     = 5 * time.Minute  // rolling statistics
	DefaultGradeTTL    = 10 * time.Minute // session grades
	DefaultSnapshotTTL = 30 * time.Hour   // session-open snapshots, one per date
	DefaultBarTTL      = 10 * time.Minute // latest closed bar
)

// Key builders. One writer job per prefix.

func MarketStatusKey(exchangeCode string) string {
	return "market_status:" + exchangeCode
}

func LatestQuoteKey(symbol string) string {
	return "latest_quote:" + symbol
}

func BarKey(symbol string) string {
	return "bar:" + symbol
}

func RollingVWAPKey(symbol string, windowMinutes int) string {
	return fmt.Sprintf("rolling_vwap:%s:%d", symbol, windowMinutes)
}

func Change24hKey(symbol string) string {
	return "change_24h:" + symbol
}

func Week52Key(symbol string) string {
	return "week52:" + symbol
}

func SessionOpenKey(symbol string, sessionDate time.Time) string {
	return fmt.Sprintf("session_open:%s:%s", symbol, sessionDate.Format("2006-01-02"))
}

func GradeKey(symbol string) string {
	return "grade:" + symbol
}
