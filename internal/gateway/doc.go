// Package gateway provides the cache/broadcast substrate shared by all jobs.
//
// The Gateway interface exposes exactly three operations:
//   - Set: write a serialized value under a structured key with a TTL
//   - Get: read a value, reporting absence without error
//   - Publish: fire-and-forget fan-out to currently subscribed listeners
//
// Two implementations:
//   - Redis (go-redis/v9): production; SET PX / GET / PUBLISH
//   - Memory: in-process with real TTL semantics, for tests and local runs
//
// Keys are partitioned by convention (one writer job per key prefix), so the
// gateway needs no locking or transactions beyond what the backend provides.
// TTL expiry is the only eviction policy.
package gateway
