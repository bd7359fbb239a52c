// Package market provides Polymarket market-data access
//
// types.go - Canonical price snapshot model plus the raw Gamma API shape.
// Raw markets arrive with inconsistently encoded fields (JSON arrays,
// JSON-encoded-string arrays, bare strings); the Normalizer in this
// package converts them into the canonical Snapshot used by the engine.
package market

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// RawMarket mirrors a market record from the Gamma API. Fields that the
// API encodes inconsistently are kept as json.RawMessage and decoded by
// the Normalizer.
type RawMarket struct {
	ID              string          `json:"id"`
	Slug            string          `json:"slug"`
	Question        string          `json:"question"`
	Outcomes        json.RawMessage `json:"outcomes"`
	OutcomePrices   json.RawMessage `json:"outcomePrices"`
	ClobTokenIDs    json.RawMessage `json:"clobTokenIds"`
	BestBid         json.RawMessage `json:"bestBid"`
	BestAsk         json.RawMessage `json:"bestAsk"`
	Volume24h       json.RawMessage `json:"volume24hr"`
	Liquidity       json.RawMessage `json:"liquidity"`
	EndDate         string          `json:"endDate"`
	Closed          bool            `json:"closed"`
	EnableOrderBook bool            `json:"enableOrderBook"`
}

// Snapshot is the canonical view of one market at one poll instant.
// Snapshots are immutable; each poll produces fresh ones.
type Snapshot struct {
	ID       string
	Slug     string
	Question string

	Outcomes      []string
	OutcomePrices []decimal.Decimal
	TokenIDs      []string

	BestBid decimal.Decimal
	BestAsk decimal.Decimal

	Volume24h decimal.Decimal
	Liquidity decimal.Decimal

	Closed          bool
	EnableOrderBook bool

	FetchedAt time.Time
	// Stale marks a snapshot served from cache after a fetch failure or
	// rate limit. Callers may still use it but must know it is old.
	Stale bool
}

// PriceSum returns the sum of all outcome prices and whether every
// outcome price was known. Deviation from 1.00 is only meaningful when
// ok is true.
func (s Snapshot) PriceSum() (sum decimal.Decimal, ok bool) {
	if len(s.OutcomePrices) < 2 {
		return decimal.Zero, false
	}
	for _, p := range s.OutcomePrices {
		sum = sum.Add(p)
	}
	return sum, true
}

// Spread returns ask - bid, or zero when the quote is invalid.
func (s Snapshot) Spread() decimal.Decimal {
	if s.BestAsk.GreaterThan(s.BestBid) {
		return s.BestAsk.Sub(s.BestBid)
	}
	return decimal.Zero
}

// SpreadPct returns the spread as a percentage of the ask.
func (s Snapshot) SpreadPct() decimal.Decimal {
	if s.BestAsk.IsZero() {
		return decimal.Zero
	}
	return s.Spread().Div(s.BestAsk).Mul(decimal.NewFromInt(100))
}

// BookLevel is one price level of an orderbook side.
type BookLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// Orderbook holds both sides of a token's book.
type Orderbook struct {
	Bids []BookLevel
	Asks []BookLevel
}

// BestBid returns the highest bid, or zero on an empty side.
func (b Orderbook) BestBid() decimal.Decimal {
	best := decimal.Zero
	for _, l := range b.Bids {
		if l.Price.GreaterThan(best) {
			best = l.Price
		}
	}
	return best
}

// BestAsk returns the lowest ask, or zero on an empty side.
func (b Orderbook) BestAsk() decimal.Decimal {
	best := decimal.Zero
	for _, l := range b.Asks {
		if best.IsZero() || l.Price.LessThan(best) {
			best = l.Price
		}
	}
	return best
}
