package market

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// NormalizationError reports a raw market that cannot be turned into a
// usable Snapshot. The scan skips that single market and continues.
type NormalizationError struct {
	MarketID string
	Field    string
	Reason   string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("market %s: bad %s: %s", e.MarketID, e.Field, e.Reason)
}

// Normalize converts a raw Gamma market into a canonical Snapshot.
//
// Outcome prices are required: fewer than two parseable prices is an
// error because the parity check is meaningless without the full set.
// Everything else (bid, ask, volume, liquidity, token IDs) is optional
// and defaults to zero/empty when absent or malformed.
func Normalize(raw RawMarket, now time.Time) (Snapshot, error) {
	prices, err := decodePriceList(raw.OutcomePrices)
	if err != nil {
		return Snapshot{}, &NormalizationError{MarketID: raw.ID, Field: "outcomePrices", Reason: err.Error()}
	}
	if len(prices) < 2 {
		return Snapshot{}, &NormalizationError{
			MarketID: raw.ID,
			Field:    "outcomePrices",
			Reason:   fmt.Sprintf("need at least 2 outcomes, got %d", len(prices)),
		}
	}

	snap := Snapshot{
		ID:              raw.ID,
		Slug:            raw.Slug,
		Question:        raw.Question,
		OutcomePrices:   prices,
		Outcomes:        decodeStringList(raw.Outcomes),
		TokenIDs:        decodeStringList(raw.ClobTokenIDs),
		BestBid:         decodeDecimal(raw.BestBid),
		BestAsk:         decodeDecimal(raw.BestAsk),
		Volume24h:       decodeDecimal(raw.Volume24h),
		Liquidity:       decodeDecimal(raw.Liquidity),
		Closed:          raw.Closed,
		EnableOrderBook: raw.EnableOrderBook,
		FetchedAt:       now,
	}
	return snap, nil
}

// decodePriceList handles the three encodings Gamma uses for outcome
// prices: a JSON array of numbers, a JSON array of numeric strings, or
// a JSON string containing one of the above.
func decodePriceList(raw json.RawMessage) ([]decimal.Decimal, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("missing")
	}

	// JSON-in-string: unwrap once, then fall through to array decoding.
	var inner string
	if err := json.Unmarshal(raw, &inner); err == nil {
		raw = json.RawMessage(inner)
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, fmt.Errorf("not an array: %w", err)
	}

	prices := make([]decimal.Decimal, 0, len(elems))
	for i, el := range elems {
		var num float64
		if err := json.Unmarshal(el, &num); err == nil {
			prices = append(prices, decimal.NewFromFloat(num))
			continue
		}
		var str string
		if err := json.Unmarshal(el, &str); err != nil {
			return nil, fmt.Errorf("element %d is neither number nor string", i)
		}
		d, err := decimal.NewFromString(str)
		if err != nil {
			return nil, fmt.Errorf("element %d: %q is not numeric", i, str)
		}
		prices = append(prices, d)
	}
	return prices, nil
}

// decodeStringList handles a string list encoded as a JSON array or as
// a JSON string containing a JSON array. Malformed input yields nil;
// token lists are optional.
func decodeStringList(raw json.RawMessage) []string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var inner string
	if err := json.Unmarshal(raw, &inner); err == nil {
		raw = json.RawMessage(inner)
	}

	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// decodeDecimal parses a numeric field that may arrive as a JSON number
// or a numeric string. Malformed or missing values default to zero.
func decodeDecimal(raw json.RawMessage) decimal.Decimal {
	if len(raw) == 0 || string(raw) == "null" {
		return decimal.Zero
	}

	var num float64
	if err := json.Unmarshal(raw, &num); err == nil {
		return decimal.NewFromFloat(num)
	}

	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(str)
	if err != nil {
		return decimal.Zero
	}
	return d
}
