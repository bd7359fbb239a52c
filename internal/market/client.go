// Package market provides Polymarket market-data access
//
// client.go - Gamma/CLOB REST client with a short-lived snapshot cache.
// The cache bounds request volume and carries the last good result
// through fetch failures and rate limiting; snapshots served that way
// are explicitly marked Stale.
package market

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// ErrRateLimited signals the local rate limiter (or an HTTP 429) blocked
// a refresh. Callers should fall back to cached data.
var ErrRateLimited = errors.New("market data rate limited")

const (
	fetchLimit   = 500
	cacheTTL     = 10 * time.Second
	requestBurst = 2
)

// Client fetches markets from the Gamma API and orderbooks from the
// CLOB API.
type Client struct {
	gammaURL   string
	clobURL    string
	httpClient *http.Client
	limiter    *rate.Limiter

	// Fresh bid/ask overlay; nil when no websocket stream is wired.
	stream *Stream

	mu          sync.Mutex
	cached      []Snapshot
	lastFetched time.Time
}

// NewClient creates a market data client.
func NewClient(gammaURL, clobURL string) *Client {
	return &Client{
		gammaURL:   gammaURL,
		clobURL:    clobURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(2*time.Second), requestBurst),
	}
}

// SetStream wires a websocket quote stream. When connected, FetchAll
// overlays its live best bid/ask over the slower REST figures.
func (c *Client) SetStream(s *Stream) {
	c.stream = s
}

// FetchAll returns snapshots of all open markets. Results may come from
// the cache: within cacheTTL they are served as-is, and after a fetch
// failure or rate limit the last good result is returned with Stale set.
func (c *Client) FetchAll() ([]Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Since(c.lastFetched) < cacheTTL && len(c.cached) > 0 {
		return c.cached, nil
	}

	snaps, err := c.fetchMarkets()
	if err != nil {
		if len(c.cached) > 0 {
			log.Warn().Err(err).Msg("Market fetch failed, serving stale cache")
			return markStale(c.cached), nil
		}
		return nil, err
	}

	c.subscribeStream(snaps)
	c.overlayStreamQuotes(snaps)

	c.cached = snaps
	c.lastFetched = time.Now()
	return snaps, nil
}

func (c *Client) fetchMarkets() ([]Snapshot, error) {
	if !c.limiter.Allow() {
		return nil, ErrRateLimited
	}

	u := fmt.Sprintf("%s/markets?closed=false&limit=%d", c.gammaURL, fetchLimit)
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gamma request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gamma API error %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var raws []RawMarket
	if err := json.Unmarshal(body, &raws); err != nil {
		return nil, fmt.Errorf("parse markets: %w", err)
	}

	now := time.Now()
	snaps := make([]Snapshot, 0, len(raws))
	skipped := 0
	for _, raw := range raws {
		snap, err := Normalize(raw, now)
		if err != nil {
			skipped++
			log.Debug().Err(err).Msg("Skipping unparseable market")
			continue
		}
		snaps = append(snaps, snap)
	}
	if skipped > 0 {
		log.Debug().Int("skipped", skipped).Int("kept", len(snaps)).Msg("Markets normalized")
	}

	return snaps, nil
}

// subscribeStream registers freshly fetched tokens with the quote
// stream so subsequent fetches can overlay live quotes.
func (c *Client) subscribeStream(snaps []Snapshot) {
	if c.stream == nil {
		return
	}
	tokens := make([]string, 0, len(snaps))
	for _, s := range snaps {
		if len(s.TokenIDs) > 0 {
			tokens = append(tokens, s.TokenIDs[0])
		}
	}
	c.stream.SubscribeAll(tokens)
}

// overlayStreamQuotes replaces REST bid/ask with live websocket quotes
// where available. REST remains the fallback for unsubscribed tokens.
func (c *Client) overlayStreamQuotes(snaps []Snapshot) {
	if c.stream == nil || !c.stream.IsConnected() {
		return
	}
	for i := range snaps {
		if len(snaps[i].TokenIDs) == 0 {
			continue
		}
		bid, ask, ok := c.stream.Quote(snaps[i].TokenIDs[0])
		if ok && !bid.IsZero() {
			snaps[i].BestBid = bid
			snaps[i].BestAsk = ask
		}
	}
}

// Orderbook returns the live book for a token, or nil when the book is
// empty or the venue errors. A nil book is not an error for callers;
// exit pricing simply skips the tick.
func (c *Client) Orderbook(tokenID string) *Orderbook {
	u := fmt.Sprintf("%s/book?token_id=%s", c.clobURL, url.QueryEscape(tokenID))

	resp, err := c.httpClient.Get(u)
	if err != nil {
		log.Debug().Err(err).Str("token", shortToken(tokenID)).Msg("Orderbook fetch failed")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var data struct {
		Bids []struct {
			Price string `json:"price"`
			Size  string `json:"size"`
		} `json:"bids"`
		Asks []struct {
			Price string `json:"price"`
			Size  string `json:"size"`
		} `json:"asks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		log.Debug().Err(err).Msg("Orderbook parse failed")
		return nil
	}

	book := &Orderbook{}
	for _, b := range data.Bids {
		if lvl, ok := parseLevel(b.Price, b.Size); ok {
			book.Bids = append(book.Bids, lvl)
		}
	}
	for _, a := range data.Asks {
		if lvl, ok := parseLevel(a.Price, a.Size); ok {
			book.Asks = append(book.Asks, lvl)
		}
	}

	if len(book.Bids) == 0 && len(book.Asks) == 0 {
		return nil
	}
	return book
}

func parseLevel(priceStr, sizeStr string) (BookLevel, bool) {
	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return BookLevel{}, false
	}
	size, err := decimal.NewFromString(sizeStr)
	if err != nil {
		return BookLevel{}, false
	}
	return BookLevel{Price: price, Size: size}, true
}

func markStale(snaps []Snapshot) []Snapshot {
	out := make([]Snapshot, len(snaps))
	copy(out, snaps)
	for i := range out {
		out[i].Stale = true
	}
	return out
}

func shortToken(tokenID string) string {
	if len(tokenID) <= 16 {
		return tokenID
	}
	return tokenID[:16] + "..."
}
