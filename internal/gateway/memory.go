package gateway

import (
	"bytes"
	"context"
	"sync"
	"time"
)

// MemoryStats counts memory-gateway operations.
type MemoryStats struct {
	Sets      uint64 // successful writes
	Gets      uint64 // lookups, hit or miss
	Hits      uint64 // lookups that returned a live value
	Publishes uint64 // publish calls
	Dropped   uint64 // messages dropped on full subscriber buffers
}

type memEntry struct {
	value     []byte
	expiresAt time.Time // zero = no expiry
}

// Memory implements Gateway in-process with real TTL semantics. It backs
// tests and gateway-less local runs.
type Memory struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]memEntry
	subs    map[string][]chan []byte
	stats   MemoryStats
}

// NewMemory creates an empty in-memory gateway.
func NewMemory() *Memory {
	return &Memory{
		now:     time.Now,
		entries: make(map[string]memEntry),
		subs:    make(map[string][]chan []byte),
	}
}

func (m *Memory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := memEntry{value: bytes.Clone(value)}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.entries[key] = e
	m.stats.Sets++
	return nil
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.Gets++
	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		delete(m.entries, key)
		return nil, false, nil
	}
	m.stats.Hits++
	return bytes.Clone(e.value), true, nil
}

func (m *Memory) Publish(ctx context.Context, channel string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.Publishes++
	for _, ch := range m.subs[channel] {
		select {
		case ch <- bytes.Clone(payload):
		default:
			// Slow subscriber: at-most-once delivery drops the message.
			m.stats.Dropped++
		}
	}
	return nil
}

// Subscribe registers a buffered listener on a channel. Messages that arrive
// while the buffer is full are dropped, matching the broadcast contract.
func (m *Memory) Subscribe(channel string, buffer int) <-chan []byte {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan []byte, buffer)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[channel] = append(m.subs[channel], ch)
	return ch
}

// Stats returns a snapshot of operation counters.
func (m *Memory) Stats() MemoryStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Len reports the number of live (unexpired) entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	now := m.now()
	for key, e := range m.entries {
		if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
			delete(m.entries, key)
			continue
		}
		n++
	}
	return n
}
