package kraken

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// BookUpdate is a single incremental order-book message delivered by the
// public WebSocket feed.
type BookUpdate struct {
	Pair      string
	Bids      [][2]float64 // price, volume
	Asks      [][2]float64
	Timestamp time.Time
}

// Stream is an optional live order-book subscription layered on top of the
// REST Provider. It is not part of the Provider interface: callers that want
// push updates opt in explicitly, while GetOrderBook continues to poll REST.
type Stream struct {
	url string

	mu       sync.Mutex
	conn     *websocket.Conn
	handlers map[string]func(BookUpdate)
}

// NewStream returns a Stream pointed at Kraken's public WebSocket endpoint.
func NewStream() *Stream {
	return &Stream{
		url:      "wss://ws.kraken.com",
		handlers: make(map[string]func(BookUpdate)),
	}
}

// Connect dials the WebSocket endpoint. The returned error wraps any dial
// failure; callers typically retry with backoff via the same scheduler used
// for REST calls.
func (s *Stream) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("kraken: websocket dial: %w", err)
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	return nil
}

// SubscribeBook subscribes to book updates for the given wire pair and
// registers a handler invoked for every update until the stream is closed.
func (s *Stream) SubscribeBook(pair string, depth int, handler func(BookUpdate)) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("kraken: stream not connected")
	}

	req := map[string]interface{}{
		"event": "subscribe",
		"pair":  []string{pair},
		"subscription": map[string]interface{}{
			"name":  "book",
			"depth": depth,
		},
	}
	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("kraken: subscribe book: %w", err)
	}

	s.mu.Lock()
	s.handlers[pair] = handler
	s.mu.Unlock()
	return nil
}

// Run reads messages until ctx is done or the connection errors, dispatching
// book updates to registered handlers. It is meant to run in its own
// goroutine.
func (s *Stream) Run(ctx context.Context) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("kraken: stream not connected")
	}

	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		conn.Close()
		close(done)
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-done:
				return ctx.Err()
			default:
				return fmt.Errorf("kraken: websocket read: %w", err)
			}
		}
		s.dispatch(raw)
	}
}

func (s *Stream) dispatch(raw []byte) {
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil || len(arr) < 4 {
		return // non-book-update frames (heartbeats, subscription acks)
	}

	var pair string
	if err := json.Unmarshal(arr[len(arr)-1], &pair); err != nil {
		return
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(arr[1], &payload); err != nil {
		return
	}

	s.mu.Lock()
	handler, ok := s.handlers[pair]
	s.mu.Unlock()
	if !ok {
		return
	}

	update := BookUpdate{Pair: pair, Timestamp: time.Now().UTC()}
	update.Bids = extractBookSide(payload, "b")
	update.Asks = extractBookSide(payload, "a")
	handler(update)
}

func extractBookSide(payload map[string]interface{}, key string) [][2]float64 {
	raw, ok := payload[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([][2]float64, 0, len(raw))
	for _, r := range raw {
		lvl, ok := r.([]interface{})
		if !ok || len(lvl) < 2 {
			continue
		}
		price, pOK := lvl[0].(string)
		size, sOK := lvl[1].(string)
		if !pOK || !sOK {
			continue
		}
		var p, v float64
		if _, err := fmt.Sscanf(price, "%f", &p); err != nil {
			continue
		}
		if _, err := fmt.Sscanf(size, "%f", &v); err != nil {
			continue
		}
		out = append(out, [2]float64{p, v})
	}
	return out
}

// Close shuts down the underlying connection.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
