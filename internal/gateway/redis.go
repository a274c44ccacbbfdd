package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config configures the Redis gateway.
type Config struct {
	Addr     string // host:port
	Password string
	DB       int
}

// DefaultConfig returns sensible defaults for a local Redis.
func DefaultConfig() Config {
	return Config{
		Addr: "localhost:6379",
		DB:   0,
	}
}

// Redis implements Gateway on a Redis backend.
type Redis struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedis creates a Redis gateway. The connection is established lazily;
// call Ping to verify reachability at startup.
func NewRedis(cfg Config, logger *slog.Logger) *Redis {
	if logger == nil {
		logger = slog.Default()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Redis{client: client, logger: logger}
}

// Ping verifies the backend is reachable.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping: %w: %w", ErrUnavailable, err)
	}
	return nil
}

// Close releases the client's connections.
func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("set %q: %w: %w", key, ErrUnavailable, err)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %q: %w: %w", key, ErrUnavailable, err)
	}
	return value, true, nil
}

func (r *Redis) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := r.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %q: %w: %w", channel, ErrUnavailable, err)
	}
	return nil
}
