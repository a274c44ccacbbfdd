// Package intraday implements the tick pipeline: quote ingestion, bar
// building and flushing, rolling-window statistics, and session grading.
//
// The pipeline is a family of heartbeat jobs sharing one Pipeline value.
// Ingestion appends fresh quotes to in-progress bars; flush closes bars on
// period rollover exactly once per (symbol, period start); rolling capture
// and grading consume closed bars and cached quotes only. Every aggregate is
// written to the gateway with a TTL bounding how stale it may become before
// the owning job's next pass.
package intraday
