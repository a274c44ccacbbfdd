package gateway

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable indicates the backend could not be reached. Callers drop the
// write for that attempt and retry on their next natural interval; no retry
// loop sits at this boundary.
var ErrUnavailable = errors.New("gateway unavailable")

// Gateway is the external key/value cache plus publish channel. Values are
// opaque serialized payloads; callers own serialization.
type Gateway interface {
	// Set writes value under key with the given TTL. A non-positive TTL
	// stores the entry without expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get returns the value for key. Absence (including TTL expiry) is
	// reported via ok=false with a nil error.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Publish sends payload to the channel's current subscribers,
	// at-most-once. Missed messages are not replayed.
	Publish(ctx context.Context, channel string, payload []byte) error
}
