// Package market provides Polymarket market-data access
//
// stream.go - Websocket quote stream from the CLOB market channel.
// Maintains an in-memory best bid/ask per token so scans can read live
// quotes without a REST round trip. Purely an accelerator: every caller
// must handle the stream being disconnected and fall back to REST.
package market

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const (
	reconnectDelay = 5 * time.Second
	pingInterval   = 30 * time.Second
)

type quote struct {
	bid     decimal.Decimal
	ask     decimal.Decimal
	updated time.Time
}

// Stream maintains a websocket connection to the CLOB market channel
// and caches the latest best bid/ask per subscribed token.
type Stream struct {
	mu sync.RWMutex

	wsURL     string
	conn      *websocket.Conn
	connected bool
	running   bool
	stopCh    chan struct{}

	quotes     map[string]quote
	subscribed map[string]bool
}

// NewStream creates a quote stream for the given websocket endpoint.
func NewStream(wsURL string) *Stream {
	return &Stream{
		wsURL:      wsURL,
		stopCh:     make(chan struct{}),
		quotes:     make(map[string]quote),
		subscribed: make(map[string]bool),
	}
}

// Start connects and begins processing updates.
func (s *Stream) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	go s.connectionLoop()
	log.Info().Msg("Quote stream started")
}

// Stop closes the connection.
func (s *Stream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	close(s.stopCh)

	if s.conn != nil {
		s.conn.Close()
	}
}

// IsConnected reports whether the websocket is currently up.
func (s *Stream) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Subscribe asks the stream for book updates on a token. Safe to call
// repeatedly; duplicate subscriptions are ignored.
func (s *Stream) Subscribe(tokenID string) {
	s.SubscribeAll([]string{tokenID})
}

// SubscribeAll subscribes every not-yet-subscribed token in one
// websocket message. Tokens registered while disconnected are replayed
// on the next connect.
func (s *Stream) SubscribeAll(tokenIDs []string) {
	s.mu.Lock()
	var fresh []string
	for _, tok := range tokenIDs {
		if tok == "" || s.subscribed[tok] {
			continue
		}
		s.subscribed[tok] = true
		fresh = append(fresh, tok)
	}
	conn := s.conn
	connected := s.connected
	s.mu.Unlock()

	if len(fresh) == 0 || !connected || conn == nil {
		return
	}
	s.sendSubscribe(conn, fresh)
}

// Quote returns the latest best bid/ask for a token. ok is false when
// the token has never ticked or the last tick is older than a minute.
func (s *Stream) Quote(tokenID string) (bid, ask decimal.Decimal, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, found := s.quotes[tokenID]
	if !found || time.Since(q.updated) > time.Minute {
		return decimal.Zero, decimal.Zero, false
	}
	return q.bid, q.ask, true
}

func (s *Stream) connectionLoop() {
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		if err := s.connect(); err != nil {
			log.Error().Err(err).Msg("Quote stream connect failed, retrying...")
			time.Sleep(reconnectDelay)
			continue
		}

		s.readLoop()

		s.mu.Lock()
		s.connected = false
		s.mu.Unlock()
		time.Sleep(reconnectDelay)
	}
}

func (s *Stream) connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(s.wsURL, nil)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.connected = true
	tokens := make([]string, 0, len(s.subscribed))
	for t := range s.subscribed {
		tokens = append(tokens, t)
	}
	s.mu.Unlock()

	log.Info().Int("tokens", len(tokens)).Msg("Quote stream connected")

	if len(tokens) > 0 {
		s.sendSubscribe(conn, tokens)
	}

	go s.pingLoop(conn)
	return nil
}

func (s *Stream) sendSubscribe(conn *websocket.Conn, tokens []string) {
	msg := map[string]interface{}{
		"type":       "market",
		"assets_ids": tokens,
	}
	if err := conn.WriteJSON(msg); err != nil {
		log.Debug().Err(err).Msg("Subscribe write failed")
	}
}

func (s *Stream) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.stopCh:
			return
		}
	}
}

// bookMessage covers both "book" snapshots and "price_change" events;
// only the fields we read are declared.
type bookMessage struct {
	EventType string `json:"event_type"`
	AssetID   string `json:"asset_id"`
	Bids      []struct {
		Price string `json:"price"`
	} `json:"bids"`
	Asks []struct {
		Price string `json:"price"`
	} `json:"asks"`
	Changes []struct {
		Price string `json:"price"`
		Side  string `json:"side"`
	} `json:"changes"`
}

func (s *Stream) readLoop() {
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		_, data, err := s.conn.ReadMessage()
		if err != nil {
			log.Debug().Err(err).Msg("Quote stream read failed")
			return
		}
		s.handleMessage(data)
	}
}

func (s *Stream) handleMessage(data []byte) {
	// The channel sends either a single event or an array of events.
	var msgs []bookMessage
	if err := json.Unmarshal(data, &msgs); err != nil {
		var single bookMessage
		if err := json.Unmarshal(data, &single); err != nil {
			return
		}
		msgs = []bookMessage{single}
	}

	for _, m := range msgs {
		if m.EventType != "book" || m.AssetID == "" {
			continue
		}

		bid := decimal.Zero
		for _, b := range m.Bids {
			if p, err := decimal.NewFromString(b.Price); err == nil && p.GreaterThan(bid) {
				bid = p
			}
		}
		ask := decimal.Zero
		for _, a := range m.Asks {
			if p, err := decimal.NewFromString(a.Price); err == nil && (ask.IsZero() || p.LessThan(ask)) {
				ask = p
			}
		}
		if bid.IsZero() && ask.IsZero() {
			continue
		}

		s.mu.Lock()
		s.quotes[m.AssetID] = quote{bid: bid, ask: ask, updated: time.Now()}
		s.mu.Unlock()
	}
}
