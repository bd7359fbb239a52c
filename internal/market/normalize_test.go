package market

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func rawWith(prices string) RawMarket {
	return RawMarket{
		ID:            "m1",
		Question:      "Will it rain tomorrow?",
		OutcomePrices: json.RawMessage(prices),
	}
}

func TestNormalizePriceArrayOfNumbers(t *testing.T) {
	snap, err := Normalize(rawWith(`[0.45, 0.55]`), time.Now())
	require.NoError(t, err)

	require.Len(t, snap.OutcomePrices, 2)
	assert.True(t, snap.OutcomePrices[0].Equal(dec("0.45")))
	assert.True(t, snap.OutcomePrices[1].Equal(dec("0.55")))
}

func TestNormalizePriceArrayOfStrings(t *testing.T) {
	snap, err := Normalize(rawWith(`["0.45", "0.55"]`), time.Now())
	require.NoError(t, err)

	require.Len(t, snap.OutcomePrices, 2)
	assert.True(t, snap.OutcomePrices[0].Equal(dec("0.45")))
}

func TestNormalizePricesEncodedAsJSONString(t *testing.T) {
	// Gamma sometimes double-encodes: a JSON string containing an array
	snap, err := Normalize(rawWith(`"[\"0.45\", \"0.55\"]"`), time.Now())
	require.NoError(t, err)

	require.Len(t, snap.OutcomePrices, 2)
	assert.True(t, snap.OutcomePrices[1].Equal(dec("0.55")))
}

func TestNormalizeRejectsSingleOutcome(t *testing.T) {
	_, err := Normalize(rawWith(`[0.45]`), time.Now())

	var nerr *NormalizationError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, "m1", nerr.MarketID)
	assert.Equal(t, "outcomePrices", nerr.Field)
}

func TestNormalizeRejectsMissingPrices(t *testing.T) {
	_, err := Normalize(RawMarket{ID: "m1"}, time.Now())
	assert.Error(t, err)

	_, err = Normalize(rawWith(`null`), time.Now())
	assert.Error(t, err)
}

func TestNormalizeRejectsNonNumericPrices(t *testing.T) {
	_, err := Normalize(rawWith(`["abc", "0.55"]`), time.Now())

	var nerr *NormalizationError
	require.ErrorAs(t, err, &nerr)
}

func TestNormalizeOptionalFieldsDefaultToZero(t *testing.T) {
	raw := rawWith(`[0.45, 0.55]`)
	raw.BestBid = json.RawMessage(`"not a number"`)
	raw.Volume24h = nil
	raw.ClobTokenIDs = json.RawMessage(`{"bad": "shape"}`)

	// Malformed optional fields never fail the whole market
	snap, err := Normalize(raw, time.Now())
	require.NoError(t, err)

	assert.True(t, snap.BestBid.IsZero())
	assert.True(t, snap.Volume24h.IsZero())
	assert.Empty(t, snap.TokenIDs)
}

func TestNormalizeDecodesTokenListVariants(t *testing.T) {
	raw := rawWith(`[0.45, 0.55]`)
	raw.ClobTokenIDs = json.RawMessage(`"[\"111\", \"222\"]"`)

	snap, err := Normalize(raw, time.Now())
	require.NoError(t, err)

	assert.Equal(t, []string{"111", "222"}, snap.TokenIDs)
}

func TestNormalizeNumericFieldsAcceptStringsAndNumbers(t *testing.T) {
	raw := rawWith(`[0.45, 0.55]`)
	raw.BestBid = json.RawMessage(`0.44`)
	raw.BestAsk = json.RawMessage(`"0.46"`)
	raw.Volume24h = json.RawMessage(`"123456.78"`)

	snap, err := Normalize(raw, time.Now())
	require.NoError(t, err)

	assert.True(t, snap.BestBid.Equal(dec("0.44")))
	assert.True(t, snap.BestAsk.Equal(dec("0.46")))
	assert.True(t, snap.Volume24h.Equal(dec("123456.78")))
}

func TestPriceSum(t *testing.T) {
	snap := Snapshot{OutcomePrices: []decimal.Decimal{dec("0.45"), dec("0.50")}}
	sum, ok := snap.PriceSum()
	assert.True(t, ok)
	assert.True(t, sum.Equal(dec("0.95")))

	_, ok = Snapshot{}.PriceSum()
	assert.False(t, ok)
}

func TestSpreadPct(t *testing.T) {
	snap := Snapshot{BestBid: dec("0.45"), BestAsk: dec("0.50")}

	// (0.50 - 0.45) / 0.50 * 100 = 10
	assert.True(t, snap.Spread().Equal(dec("0.05")))
	assert.True(t, snap.SpreadPct().Equal(dec("10")))

	inverted := Snapshot{BestBid: dec("0.50"), BestAsk: dec("0.45")}
	assert.True(t, inverted.Spread().IsZero())
}

func TestOrderbookBestLevels(t *testing.T) {
	book := Orderbook{
		Bids: []BookLevel{
			{Price: dec("0.40"), Size: dec("10")},
			{Price: dec("0.44"), Size: dec("5")},
		},
		Asks: []BookLevel{
			{Price: dec("0.50"), Size: dec("10")},
			{Price: dec("0.47"), Size: dec("5")},
		},
	}

	assert.True(t, book.BestBid().Equal(dec("0.44")))
	assert.True(t, book.BestAsk().Equal(dec("0.47")))

	empty := Orderbook{}
	assert.True(t, empty.BestBid().IsZero())
	assert.True(t, empty.BestAsk().IsZero())
}
