// Package feed provides read access to the external quote feed.
//
// Source is the single consumption interface: the latest quotes per
// subscribed symbol. Two adapters implement it:
//   - Client: polls the feed's REST endpoint with retry and backoff
//   - Stream: holds a WebSocket subscription and serves quotes from an
//     in-memory latest-quote table, reconnecting with backoff on drops
//
// Staleness policy lives with the consumer: adapters return whatever the
// feed last reported, and the ingestion job decides whether a quote is fresh
// enough to use. Feed unreachability surfaces as ErrFeedUnavailable so
// callers skip the tick's work and leave cached values untouched.
package feed
