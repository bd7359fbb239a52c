// Package engine implements opportunity detection, capital accounting,
// order lifecycle tracking and the scan loop
//
// detect.go - Pure opportunity detection over market snapshots.
// Two signals: parity deviation (complementary outcome prices summing
// away from 1.00) and wide bid/ask spreads on liquid books.
package engine

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/paritybot/internal/config"
	"github.com/web3guy0/paritybot/internal/market"
)

// Direction classifies an opportunity.
type Direction string

const (
	// DirectionLong: outcome prices sum below 1, buy the complementary set.
	DirectionLong Direction = "long"
	// DirectionShort: outcome prices sum above 1, sell held outcomes.
	DirectionShort Direction = "short"
	// DirectionSpread: buy at bid, exit at ask on a wide book.
	DirectionSpread Direction = "spread"
)

// Opportunity is a detected mispricing. Derived, never stored; a pure
// function of one snapshot and the configured thresholds.
type Opportunity struct {
	MarketID string
	Question string
	TokenID  string

	Direction Direction
	// Magnitude is the parity deviation, or spread x 100 (profit per
	// 100 units of notional) for spread opportunities.
	Magnitude decimal.Decimal

	BidPrice  decimal.Decimal
	AskPrice  decimal.Decimal
	SpreadPct decimal.Decimal
	Volume24h decimal.Decimal

	// Score ranks by executability: log10(volume+1). A wide spread on
	// a dead market ranks below a decent spread on a liquid one.
	Score float64

	Stale bool
}

// Executable reports whether the opportunity carries everything needed
// to place an entry order.
func (o Opportunity) Executable() bool {
	return o.TokenID != "" &&
		o.BidPrice.IsPositive() &&
		o.AskPrice.GreaterThan(o.BidPrice)
}

// Detector applies configured thresholds to snapshots.
type Detector struct {
	minDeviation decimal.Decimal
	minSpreadPct decimal.Decimal
	minVolume24h decimal.Decimal
	priceFloor   decimal.Decimal
	priceCeiling decimal.Decimal
}

// NewDetector creates a detector from the configured thresholds.
func NewDetector(cfg *config.Config) *Detector {
	return &Detector{
		minDeviation: cfg.MinDeviation,
		minSpreadPct: cfg.MinSpreadPct,
		minVolume24h: cfg.MinVolume24h,
		priceFloor:   cfg.PriceFloor,
		priceCeiling: cfg.PriceCeiling,
	}
}

// Detect checks one snapshot for a single best opportunity. The parity
// signal wins over the spread signal when both fire; parity deviations
// are rarer and carry a harder edge.
func (d *Detector) Detect(snap market.Snapshot) (Opportunity, bool) {
	if opp, ok := d.detectParity(snap); ok {
		return opp, true
	}
	return d.detectSpread(snap)
}

// DetectAll scans a batch and returns opportunities ranked best-first.
func (d *Detector) DetectAll(snaps []market.Snapshot) []Opportunity {
	var opps []Opportunity
	for _, snap := range snaps {
		if snap.Closed {
			continue
		}
		if opp, ok := d.Detect(snap); ok {
			opps = append(opps, opp)
		}
	}
	sort.SliceStable(opps, func(i, j int) bool {
		return opps[i].Score > opps[j].Score
	})
	return opps
}

// detectParity fires when the outcome prices sum strictly outside
// 1 +/- minDeviation. Landing exactly on the boundary is not an
// opportunity; placing orders there thrashes against the threshold.
func (d *Detector) detectParity(snap market.Snapshot) (Opportunity, bool) {
	total, ok := snap.PriceSum()
	if !ok {
		return Opportunity{}, false
	}

	one := decimal.NewFromInt(1)
	low := one.Sub(d.minDeviation)
	high := one.Add(d.minDeviation)

	var direction Direction
	var magnitude decimal.Decimal
	switch {
	case total.LessThan(low):
		direction = DirectionLong
		magnitude = one.Sub(total)
	case total.GreaterThan(high):
		direction = DirectionShort
		magnitude = total.Sub(one)
	default:
		return Opportunity{}, false
	}

	opp := Opportunity{
		MarketID:  snap.ID,
		Question:  snap.Question,
		Direction: direction,
		Magnitude: magnitude,
		BidPrice:  snap.BestBid,
		AskPrice:  snap.BestAsk,
		Volume24h: snap.Volume24h,
		Score:     volumeScore(snap.Volume24h),
		Stale:     snap.Stale,
	}
	if len(snap.TokenIDs) > 0 {
		opp.TokenID = snap.TokenIDs[0]
	}
	return opp, true
}

// detectSpread fires on wide spreads away from the price extremes.
// Near 0 or 1 the outcome is close to decided and resting inside the
// spread is adverse selection, not edge.
func (d *Detector) detectSpread(snap market.Snapshot) (Opportunity, bool) {
	bid, ask := snap.BestBid, snap.BestAsk

	if !bid.IsPositive() || !ask.GreaterThan(bid) {
		return Opportunity{}, false
	}
	if bid.LessThan(d.priceFloor) || ask.GreaterThan(d.priceCeiling) {
		return Opportunity{}, false
	}
	if snap.Volume24h.LessThan(d.minVolume24h) {
		return Opportunity{}, false
	}

	spreadPct := snap.SpreadPct()
	if spreadPct.LessThan(d.minSpreadPct) {
		return Opportunity{}, false
	}

	opp := Opportunity{
		MarketID:  snap.ID,
		Question:  snap.Question,
		Direction: DirectionSpread,
		Magnitude: snap.Spread().Mul(decimal.NewFromInt(100)),
		BidPrice:  bid,
		AskPrice:  ask,
		SpreadPct: spreadPct,
		Volume24h: snap.Volume24h,
		Score:     volumeScore(snap.Volume24h),
		Stale:     snap.Stale,
	}
	if len(snap.TokenIDs) > 0 {
		opp.TokenID = snap.TokenIDs[0]
	}
	return opp, true
}

func volumeScore(volume decimal.Decimal) float64 {
	v, _ := volume.Float64()
	if v < 0 {
		v = 0
	}
	return math.Log10(v + 1)
}
