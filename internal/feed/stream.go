package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/finpulse/marketpulse/internal/model"
)

// StreamConfig configures the WebSocket feed adapter.
type StreamConfig struct {
	URL               string        // WebSocket URL (e.g., wss://feed.example.com/stream)
	APIKey            string        // Bearer token, empty = no auth
	PingTimeout       time.Duration // Max time without ping/pong before the connection is stale
	WriteTimeout      time.Duration // Write deadline for sends
	ReconnectBaseWait time.Duration // Base wait before a reconnect attempt
	ReconnectMaxWait  time.Duration // Cap for the reconnect backoff
}

// DefaultStreamConfig returns sensible defaults.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		PingTimeout:       60 * time.Second,
		WriteTimeout:      5 * time.Second,
		ReconnectBaseWait: time.Second,
		ReconnectMaxWait:  60 * time.Second,
	}
}

// StreamStats counts stream activity.
type StreamStats struct {
	Connects   uint64 // successful dials
	Quotes     uint64 // quote messages applied to the table
	Dropped    uint64 // messages that failed to parse
	Reconnects uint64 // reconnect attempts after a drop
}

// subscribeCommand is the wire form of a stream subscription request.
type subscribeCommand struct {
	ID     int64           `json:"id"`
	Cmd    string          `json:"cmd"`
	Params subscribeParams `json:"params"`
}

type subscribeParams struct {
	Channels []string `json:"channels"`
	Symbols  []string `json:"symbols"`
}

// streamMessage is a data message from the feed server.
type streamMessage struct {
	Type string          `json:"type"` // "quote"
	Msg  json.RawMessage `json:"msg"`
}

// Stream implements Source over a WebSocket subscription. Incoming quote
// messages land in an in-memory latest-quote table; Quotes serves reads from
// that table without touching the network. The connection is maintained in
// the background with exponential-backoff reconnects.
type Stream struct {
	cfg     StreamConfig
	symbols []string
	logger  *slog.Logger

	mu         sync.RWMutex
	latest     map[string]model.Quote
	connected  bool
	lastPingAt time.Time
	stats      StreamStats

	conn    *websocket.Conn
	writeMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewStream creates a streaming feed adapter subscribed to the given symbols.
func NewStream(cfg StreamConfig, symbols []string, logger *slog.Logger) *Stream {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stream{
		cfg:     cfg,
		symbols: symbols,
		logger:  logger,
		latest:  make(map[string]model.Quote),
	}
}

// Start dials the feed and begins maintaining the latest-quote table. A
// failed initial dial is not fatal: the background loop keeps retrying and
// Quotes reports ErrFeedUnavailable until a connection is up.
func (s *Stream) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.runLoop()

	s.logger.Info("feed stream started", "url", s.cfg.URL, "symbols", len(s.symbols))
	return nil
}

// Stop closes the connection and waits for the background loop to exit.
func (s *Stream) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	s.closeConn()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("feed stream stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Quotes returns the latest table entry for each requested symbol. Symbols
// the stream has not seen yet are omitted. While disconnected the whole call
// fails with ErrFeedUnavailable so callers skip the tick instead of reading
// a table that may be arbitrarily old.
func (s *Stream) Quotes(ctx context.Context, symbols []string) ([]model.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.connected {
		return nil, ErrFeedUnavailable
	}

	quotes := make([]model.Quote, 0, len(symbols))
	for _, sym := range symbols {
		if q, ok := s.latest[sym]; ok {
			quotes = append(quotes, q)
		}
	}
	return quotes, nil
}

// IsConnected reports whether a live connection is up.
func (s *Stream) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Stats returns a snapshot of stream counters.
func (s *Stream) Stats() StreamStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// runLoop dials, reads until the connection drops, then reconnects with
// exponential backoff. It exits only on shutdown.
func (s *Stream) runLoop() {
	defer s.wg.Done()

	wait := s.cfg.ReconnectBaseWait
	for {
		if s.ctx.Err() != nil {
			return
		}

		if err := s.connect(); err != nil {
			s.logger.Warn("feed dial failed", "error", err, "retry_in", wait)

			select {
			case <-s.ctx.Done():
				return
			case <-time.After(wait):
			}
			wait *= 2
			if wait > s.cfg.ReconnectMaxWait {
				wait = s.cfg.ReconnectMaxWait
			}

			s.mu.Lock()
			s.stats.Reconnects++
			s.mu.Unlock()
			continue
		}

		// Connected: reset backoff and read until the connection drops.
		wait = s.cfg.ReconnectBaseWait
		s.readLoop()

		s.mu.Lock()
		s.connected = false
		s.mu.Unlock()

		if s.ctx.Err() != nil {
			return
		}
		s.logger.Warn("feed stream dropped, reconnecting")
	}
}

// connect dials the feed and subscribes to the configured symbols.
func (s *Stream) connect() error {
	header := http.Header{}
	header.Set("Accept", "application/json")
	if s.cfg.APIKey != "" {
		header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	conn, _, err := dialer.DialContext(s.ctx, s.cfg.URL, header)
	if err != nil {
		return err
	}

	// Server pings keep the connection alive; both directions refresh the
	// staleness clock.
	conn.SetPingHandler(func(data string) error {
		s.touchPing()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})
	conn.SetPongHandler(func(string) error {
		s.touchPing()
		return nil
	})

	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.lastPingAt = time.Now()
	s.stats.Connects++
	s.mu.Unlock()

	if err := s.subscribe(); err != nil {
		s.closeConn()
		s.mu.Lock()
		s.connected = false
		s.mu.Unlock()
		return err
	}

	s.logger.Debug("feed stream connected", "url", s.cfg.URL)
	return nil
}

// subscribe sends the quote subscription for all configured symbols.
func (s *Stream) subscribe() error {
	cmd := subscribeCommand{
		ID:  1,
		Cmd: "subscribe",
		Params: subscribeParams{
			Channels: []string{"quote"},
			Symbols:  s.symbols,
		},
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	return s.send(data)
}

// send writes raw bytes under the write deadline.
func (s *Stream) send(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop consumes messages until the connection drops or shutdown.
func (s *Stream) readLoop() {
	for {
		if s.ctx.Err() != nil {
			return
		}

		s.conn.SetReadDeadline(time.Now().Add(s.cfg.PingTimeout))
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		s.handleMessage(data)
	}
}

// handleMessage parses one wire message and applies quote updates to the
// latest-quote table. Unknown message types are ignored; malformed payloads
// are counted and dropped.
func (s *Stream) handleMessage(data []byte) {
	var msg streamMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.mu.Lock()
		s.stats.Dropped++
		s.mu.Unlock()
		s.logger.Warn("unparseable stream message", "len", len(data))
		return
	}
	if msg.Type != "quote" {
		return
	}

	var p quotePayload
	if err := json.Unmarshal(msg.Msg, &p); err != nil {
		s.mu.Lock()
		s.stats.Dropped++
		s.mu.Unlock()
		s.logger.Warn("unparseable quote payload", "error", err)
		return
	}

	s.mu.Lock()
	s.latest[p.Symbol] = p.toModel()
	s.stats.Quotes++
	s.mu.Unlock()
}

func (s *Stream) touchPing() {
	s.mu.Lock()
	s.lastPingAt = time.Now()
	s.mu.Unlock()
}

func (s *Stream) closeConn() {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()

	if conn != nil {
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		conn.Close()
	}
}
