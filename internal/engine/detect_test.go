package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/web3guy0/paritybot/internal/config"
	"github.com/web3guy0/paritybot/internal/market"
)

func testConfig() *config.Config {
	return &config.Config{
		MinDeviation: dec("0.01"),
		MinSpreadPct: dec("3"),
		MinVolume24h: dec("10000"),
		PriceFloor:   dec("0.05"),
		PriceCeiling: dec("0.95"),
	}
}

func paritySnap(yes, no string) market.Snapshot {
	return market.Snapshot{
		ID:            "m1",
		Question:      "Will it rain tomorrow?",
		OutcomePrices: []decimal.Decimal{dec(yes), dec(no)},
		TokenIDs:      []string{"tok-yes", "tok-no"},
		FetchedAt:     time.Now(),
	}
}

func spreadSnap(bid, ask, volume string) market.Snapshot {
	return market.Snapshot{
		ID:            "m2",
		Question:      "Will the metric exceed the bar?",
		OutcomePrices: []decimal.Decimal{dec("0.50"), dec("0.50")},
		TokenIDs:      []string{"tok-1"},
		BestBid:       dec(bid),
		BestAsk:       dec(ask),
		Volume24h:     dec(volume),
		FetchedAt:     time.Now(),
	}
}

func TestDetectParityLong(t *testing.T) {
	d := NewDetector(testConfig())

	// 0.45 + 0.50 = 0.95, deviation 0.05 above the 0.01 threshold
	opp, ok := d.Detect(paritySnap("0.45", "0.50"))

	assert.True(t, ok)
	assert.Equal(t, DirectionLong, opp.Direction)
	assert.True(t, opp.Magnitude.Equal(dec("0.05")), "magnitude %s", opp.Magnitude)
	assert.Equal(t, "tok-yes", opp.TokenID)
}

func TestDetectParityShort(t *testing.T) {
	d := NewDetector(testConfig())

	// 0.55 + 0.50 = 1.05, deviation 0.05
	opp, ok := d.Detect(paritySnap("0.55", "0.50"))

	assert.True(t, ok)
	assert.Equal(t, DirectionShort, opp.Direction)
	assert.True(t, opp.Magnitude.Equal(dec("0.05")), "magnitude %s", opp.Magnitude)
}

func TestDetectParityWithinThreshold(t *testing.T) {
	d := NewDetector(testConfig())

	// 0.495 + 0.50 = 0.995, deviation 0.005 < 0.01
	_, ok := d.Detect(paritySnap("0.495", "0.50"))

	assert.False(t, ok)
}

func TestDetectParityExactBoundaryIsNotAnOpportunity(t *testing.T) {
	d := NewDetector(testConfig())

	// 0.49 + 0.50 = 0.99 = exactly 1 - minDeviation; strict inequality
	// means no opportunity, so orders never thrash at the threshold
	_, ok := d.Detect(paritySnap("0.49", "0.50"))
	assert.False(t, ok)

	// Same at the upper boundary: 0.51 + 0.50 = 1.01
	_, ok = d.Detect(paritySnap("0.51", "0.50"))
	assert.False(t, ok)
}

func TestDetectSpread(t *testing.T) {
	d := NewDetector(testConfig())

	// spread = 0.05, spreadPct = 0.05/0.50 * 100 = 10% >= 3%
	opp, ok := d.Detect(spreadSnap("0.45", "0.50", "50000"))

	assert.True(t, ok)
	assert.Equal(t, DirectionSpread, opp.Direction)
	assert.True(t, opp.SpreadPct.Equal(dec("10")), "spreadPct %s", opp.SpreadPct)
	assert.True(t, opp.Magnitude.Equal(dec("5")), "magnitude %s", opp.Magnitude)
	assert.True(t, opp.Executable())
}

func TestDetectSpreadFilters(t *testing.T) {
	d := NewDetector(testConfig())

	tests := []struct {
		name string
		snap market.Snapshot
	}{
		{"below volume floor", spreadSnap("0.45", "0.50", "9999")},
		{"bid below price floor", spreadSnap("0.04", "0.10", "50000")},
		{"ask above price ceiling", spreadSnap("0.90", "0.96", "50000")},
		{"spread too tight", spreadSnap("0.49", "0.50", "50000")},
		{"zero bid", spreadSnap("0", "0.50", "50000")},
		{"inverted book", spreadSnap("0.50", "0.45", "50000")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := d.Detect(tt.snap)
			assert.False(t, ok)
		})
	}
}

func TestDetectAllRanksByVolume(t *testing.T) {
	d := NewDetector(testConfig())

	quiet := spreadSnap("0.40", "0.50", "15000")
	quiet.ID = "quiet"
	busy := spreadSnap("0.45", "0.50", "500000")
	busy.ID = "busy"

	// The wider spread sits on the quieter market; the liquid market
	// must still rank first
	opps := d.DetectAll([]market.Snapshot{quiet, busy})

	assert.Len(t, opps, 2)
	assert.Equal(t, "busy", opps[0].MarketID)
	assert.Equal(t, "quiet", opps[1].MarketID)
}

func TestDetectAllSkipsClosedMarkets(t *testing.T) {
	d := NewDetector(testConfig())

	snap := spreadSnap("0.45", "0.50", "50000")
	snap.Closed = true

	assert.Empty(t, d.DetectAll([]market.Snapshot{snap}))
}
