// Package engine implements opportunity detection, capital accounting,
// order lifecycle tracking and the scan loop
//
// ledger.go - Derived available-capital and available-share figures.
// The venue owns the authoritative totals; the ledger only subtracts
// commitments already sitting in open orders, reconciling the local
// tracking map against the venue's live order list so orders placed by
// a previous process instance are not missed.
package engine

import (
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/paritybot/internal/venue"
)

// Balance is a reconciled view of one asset.
type Balance struct {
	Total     decimal.Decimal
	Committed decimal.Decimal
	Available decimal.Decimal
}

// Ledger computes spendable balances net of open-order commitments.
type Ledger struct {
	venue Venue
}

// NewLedger creates a ledger over the given venue.
func NewLedger(v Venue) *Ledger {
	return &Ledger{venue: v}
}

// AvailableCapital returns the USDC balance net of capital committed to
// open buy orders. Local commitments are merged with the venue's open
// order list keyed by order ID, so an order appearing in both is
// counted exactly once. A failed open-orders query degrades to
// local-only accounting with a warning; a failed balance query is an
// error because there is no total to net against.
func (l *Ledger) AvailableCapital(tracked []*ActiveOrder) (Balance, error) {
	total, err := l.venue.AvailableBalance()
	if err != nil {
		return Balance{}, err
	}

	committed := decimal.Zero
	seen := make(map[string]bool, len(tracked))
	for _, o := range tracked {
		if o.Side != venue.SideBuy {
			continue
		}
		committed = committed.Add(o.Price.Mul(o.Size))
		seen[o.ID] = true
	}

	remote, err := l.venue.OpenOrders()
	if err != nil {
		log.Warn().Err(err).Msg("⚠️ Open orders query failed, capital accounting degraded to local tracking")
	} else {
		for _, o := range remote {
			if o.Side != venue.SideBuy || seen[o.ID] {
				continue
			}
			remaining := o.OriginalSize.Sub(o.SizeMatched)
			if remaining.IsPositive() {
				committed = committed.Add(o.Price.Mul(remaining))
			}
		}
	}

	return balanceOf(total, committed), nil
}

// AvailableShares returns the share inventory for one token net of
// shares committed to open sell orders. localHolding is the tracked
// position size; it stands in for the venue balance in dry-run mode
// and whenever the venue query fails.
func (l *Ledger) AvailableShares(tokenID string, localHolding decimal.Decimal, tracked []*ActiveOrder) Balance {
	total := localHolding
	if !l.venue.DryRun() {
		remote, err := l.venue.TokenBalance(tokenID)
		if err != nil {
			log.Warn().Err(err).Msg("⚠️ Token balance query failed, share accounting degraded to local tracking")
		} else {
			total = remote
		}
	}

	committed := decimal.Zero
	seen := make(map[string]bool, len(tracked))
	for _, o := range tracked {
		if o.Side != venue.SideSell || o.TokenID != tokenID {
			continue
		}
		committed = committed.Add(o.Size)
		seen[o.ID] = true
	}

	if !l.venue.DryRun() {
		remote, err := l.venue.OpenOrders()
		if err != nil {
			log.Warn().Err(err).Msg("⚠️ Open orders query failed, share accounting degraded to local tracking")
		} else {
			for _, o := range remote {
				if o.Side != venue.SideSell || o.TokenID != tokenID || seen[o.ID] {
					continue
				}
				remaining := o.OriginalSize.Sub(o.SizeMatched)
				if remaining.IsPositive() {
					committed = committed.Add(remaining)
				}
			}
		}
	}

	return balanceOf(total, committed)
}

func balanceOf(total, committed decimal.Decimal) Balance {
	available := total.Sub(committed)
	if available.IsNegative() {
		available = decimal.Zero
	}
	return Balance{Total: total, Committed: committed, Available: available}
}
