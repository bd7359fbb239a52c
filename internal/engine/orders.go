// Package engine implements opportunity detection, capital accounting,
// order lifecycle tracking and the scan loop
//
// orders.go - Per-order state machine and position tracking.
// An order is Placed until exactly one terminal transition happens:
// Filled, Cancelled or Expired. Filled buys become Positions awaiting
// an exit; filled sells realize P&L. Orders past their TTL get
// cancelled. Dry-run sentinel orders never touch the venue and are
// deemed filled after two scan ticks so downstream logic still runs.
package engine

import (
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/paritybot/internal/config"
	"github.com/web3guy0/paritybot/internal/venue"
)

// dryRunFillTicks is how many scans a simulated order stays open
// before it is deemed filled.
const dryRunFillTicks = 2

// ActiveOrder is a locally tracked in-flight order.
type ActiveOrder struct {
	ID      string
	TokenID string
	Market  string
	Side    venue.Side
	Price   decimal.Decimal
	Size    decimal.Decimal

	PlacedAt time.Time

	// TargetExit is the intended exit price, recorded on buys.
	TargetExit decimal.Decimal
	// EntryPrice is the original entry, recorded on sells for P&L.
	EntryPrice decimal.Decimal

	ticksOpen int
}

// Notional returns price x size.
func (o *ActiveOrder) Notional() decimal.Decimal {
	return o.Price.Mul(o.Size)
}

// Position is a confirmed holding awaiting an exit order.
type Position struct {
	TokenID    string
	Market     string
	Size       decimal.Decimal
	EntryPrice decimal.Decimal // zero when recovered without history
	TargetExit decimal.Decimal // zero when unknown; resolved from the book
	AcquiredAt time.Time
}

// Tracker owns the order and position maps. All mutation happens from
// the scan loop goroutine, one step at a time, so no lock is needed.
type Tracker struct {
	venue      Venue
	marketData MarketData
	ledger     *Ledger
	stats      *RunStats
	recorder   Recorder
	notifier   Notifier

	orderTTL      time.Duration
	maxOrderSize  decimal.Decimal
	minOrderValue decimal.Decimal

	orders    map[string]*ActiveOrder
	positions map[string]*Position

	now func() time.Time
}

// NewTracker creates an order tracker.
func NewTracker(cfg *config.Config, v Venue, md MarketData, ledger *Ledger, stats *RunStats, rec Recorder, notif Notifier) *Tracker {
	return &Tracker{
		venue:         v,
		marketData:    md,
		ledger:        ledger,
		stats:         stats,
		recorder:      rec,
		notifier:      notif,
		orderTTL:      cfg.OrderTTL,
		maxOrderSize:  cfg.MaxOrderSize,
		minOrderValue: cfg.MinOrderValue,
		orders:        make(map[string]*ActiveOrder),
		positions:     make(map[string]*Position),
		now:           time.Now,
	}
}

// OpenOrders returns the tracked in-flight orders.
func (t *Tracker) OpenOrders() []*ActiveOrder {
	out := make([]*ActiveOrder, 0, len(t.orders))
	for _, o := range t.orders {
		out = append(out, o)
	}
	return out
}

// OpenBuyCount returns how many tracked buy orders are open.
func (t *Tracker) OpenBuyCount() int {
	n := 0
	for _, o := range t.orders {
		if o.Side == venue.SideBuy {
			n++
		}
	}
	return n
}

// PositionCount returns how many positions await an exit.
func (t *Tracker) PositionCount() int {
	return len(t.positions)
}

// ReconcileFills polls the venue for every open order and applies the
// resulting transition. A failed status query leaves the order Placed;
// it will be polled again next tick.
func (t *Tracker) ReconcileFills() {
	for _, id := range t.orderIDs() {
		o := t.orders[id]

		if venue.IsDryRunOrderID(o.ID) {
			o.ticksOpen++
			if o.ticksOpen >= dryRunFillTicks {
				t.applyFill(o)
			}
			continue
		}

		remote, err := t.venue.Order(o.ID)
		if err != nil {
			if errors.Is(err, venue.ErrNotFound) {
				delete(t.orders, o.ID)
				t.stats.OrdersExpired++
				log.Info().Str("order_id", o.ID).Msg("Order no longer known to venue, treating as expired")
				continue
			}
			log.Warn().Err(err).Str("order_id", o.ID).Msg("⚠️ Order status query failed, keeping order tracked")
			continue
		}

		switch remote.Status {
		case "FILLED", "MATCHED":
			t.applyFill(o)
		case "CANCELED", "CANCELLED":
			delete(t.orders, o.ID)
			t.stats.OrdersCancelled++
			log.Info().Str("order_id", o.ID).Msg("Order cancelled on venue")
		case "EXPIRED":
			delete(t.orders, o.ID)
			t.stats.OrdersExpired++
			log.Info().Str("order_id", o.ID).Msg("Order expired on venue")
		default:
			// still live
		}
	}
}

// applyFill performs the Filled transition: buys promote into a
// Position, sells realize P&L against the recorded entry price.
func (t *Tracker) applyFill(o *ActiveOrder) {
	delete(t.orders, o.ID)
	t.stats.OrdersFilled++

	if o.Side == venue.SideBuy {
		t.positions[o.TokenID] = &Position{
			TokenID:    o.TokenID,
			Market:     o.Market,
			Size:       o.Size,
			EntryPrice: o.Price,
			TargetExit: o.TargetExit,
			AcquiredAt: t.now(),
		}
		log.Info().
			Str("market", o.Market).
			Str("size", o.Size.String()).
			Str("entry", o.Price.String()).
			Str("target", o.TargetExit.String()).
			Msg("💰 Buy filled, position opened")
		t.recorder.RecordFill(o, decimal.Zero)
		t.notifier.OrderFilled(o, decimal.Zero)
		return
	}

	profit := o.Price.Sub(o.EntryPrice).Mul(o.Size)
	t.stats.AddRealized(profit)
	log.Info().
		Str("market", o.Market).
		Str("size", o.Size.String()).
		Str("exit", o.Price.String()).
		Str("entry", o.EntryPrice.String()).
		Str("profit", profit.String()).
		Msg("💰 Sell filled, P&L realized")
	t.recorder.RecordFill(o, profit)
	t.notifier.OrderFilled(o, profit)
}

// PlaceExits places a sell order for every position that can resolve an
// exit price this tick. Positions whose sellable size falls below one
// share are treated as already covered and dropped.
func (t *Tracker) PlaceExits() {
	for _, tokenID := range t.positionTokens() {
		pos := t.positions[tokenID]

		price := pos.TargetExit
		if !price.IsPositive() {
			price = t.exitPriceFromBook(tokenID)
			if !price.IsPositive() {
				log.Debug().Str("market", pos.Market).Msg("No exit price available, retrying next tick")
				continue
			}
		}

		shares := t.ledger.AvailableShares(tokenID, pos.Size, t.OpenOrders())
		size := decimal.Min(pos.Size, shares.Available).Floor()
		if size.LessThan(decimal.NewFromInt(1)) {
			log.Info().Str("market", pos.Market).Msg("Position already covered by open orders, dropping")
			delete(t.positions, tokenID)
			continue
		}

		orderID, err := t.venue.PlaceLimitOrder(tokenID, venue.SideSell, price, size)
		if err != nil {
			log.Warn().Err(err).Str("market", pos.Market).Msg("⚠️ Exit order rejected, keeping position")
			continue
		}

		order := &ActiveOrder{
			ID:         orderID,
			TokenID:    tokenID,
			Market:     pos.Market,
			Side:       venue.SideSell,
			Price:      price,
			Size:       size,
			PlacedAt:   t.now(),
			EntryPrice: pos.EntryPrice,
		}
		t.orders[orderID] = order
		delete(t.positions, tokenID)
		t.stats.OrdersPlaced++
		t.recorder.RecordOrder(order)

		log.Info().
			Str("market", pos.Market).
			Str("price", price.String()).
			Str("size", size.String()).
			Msg("📤 Exit order placed")
	}
}

// exitPriceFromBook resolves an exit price from the live book: best
// ask when one exists, else best bid plus 2% to capture part of the
// spread, else zero (no book, skip this tick).
func (t *Tracker) exitPriceFromBook(tokenID string) decimal.Decimal {
	book := t.marketData.Orderbook(tokenID)
	if book == nil {
		return decimal.Zero
	}
	if ask := book.BestAsk(); ask.IsPositive() {
		return ask
	}
	if bid := book.BestBid(); bid.IsPositive() {
		return bid.Mul(decimal.NewFromFloat(1.02))
	}
	return decimal.Zero
}

// CancelStale cancels orders older than the TTL. A failed cancel keeps
// the order tracked so the next tick retries it.
func (t *Tracker) CancelStale() {
	for _, id := range t.orderIDs() {
		o := t.orders[id]
		if t.now().Sub(o.PlacedAt) <= t.orderTTL {
			continue
		}

		if venue.IsDryRunOrderID(o.ID) {
			delete(t.orders, o.ID)
			t.stats.OrdersCancelled++
			log.Info().Str("order_id", o.ID).Msg("🧪 [DRY RUN] Stale order removed")
			continue
		}

		if err := t.venue.CancelOrder(o.ID); err != nil {
			if errors.Is(err, venue.ErrNotFound) {
				delete(t.orders, o.ID)
				t.stats.OrdersCancelled++
				log.Info().Str("order_id", o.ID).Msg("Stale order already gone from venue")
				continue
			}
			log.Warn().Err(err).Str("order_id", o.ID).Msg("⚠️ Cancel failed, will retry next tick")
			continue
		}
		delete(t.orders, o.ID)
		t.stats.OrdersCancelled++
		log.Info().Str("order_id", o.ID).Str("market", o.Market).Msg("🗑️ Stale order cancelled")
	}
}

// PlaceEntry sizes and places a buy for the given opportunity. Sizing
// floors shares so the order never overspends available capital, and
// orders below the venue minimum notional are skipped entirely.
func (t *Tracker) PlaceEntry(opp Opportunity) bool {
	if opp.Direction == DirectionShort {
		// An overpriced market is exited by selling outcomes already
		// held. With no inventory on that side there is nothing to
		// sell; buying in would add exposure to the overpricing.
		log.Info().
			Str("market", opp.Question).
			Str("magnitude", opp.Magnitude.String()).
			Msg("Market overpriced but no inventory to sell, skipping entry")
		return false
	}
	if !opp.Executable() {
		log.Debug().Str("market", opp.Question).Msg("Opportunity lacks a tradable quote, skipping")
		return false
	}

	capital, err := t.ledger.AvailableCapital(t.OpenOrders())
	if err != nil {
		log.Warn().Err(err).Msg("⚠️ Balance query failed, skipping entry")
		return false
	}

	budget := decimal.Min(t.maxOrderSize, capital.Available)
	shares := budget.Div(opp.BidPrice).Floor()
	notional := shares.Mul(opp.BidPrice)
	if notional.LessThan(t.minOrderValue) {
		log.Info().
			Str("market", opp.Question).
			Str("available", capital.Available.String()).
			Str("notional", notional.String()).
			Msg("Insufficient capital for minimum order, skipping entry")
		return false
	}

	orderID, err := t.venue.PlaceLimitOrder(opp.TokenID, venue.SideBuy, opp.BidPrice, shares)
	if err != nil {
		log.Warn().Err(err).Str("market", opp.Question).Msg("⚠️ Entry order rejected")
		return false
	}

	order := &ActiveOrder{
		ID:         orderID,
		TokenID:    opp.TokenID,
		Market:     opp.Question,
		Side:       venue.SideBuy,
		Price:      opp.BidPrice,
		Size:       shares,
		PlacedAt:   t.now(),
		TargetExit: opp.AskPrice,
	}
	t.orders[orderID] = order
	t.stats.OrdersPlaced++
	t.recorder.RecordOrder(order)

	log.Info().
		Str("market", opp.Question).
		Str("direction", string(opp.Direction)).
		Str("bid", opp.BidPrice.String()).
		Str("target", opp.AskPrice.String()).
		Str("size", shares.String()).
		Str("notional", notional.String()).
		Msg("📥 Entry order placed")

	return true
}

// RecoverPositions rebuilds positions from venue trade history at
// startup. Entry prices come from the most recent buy fill per token;
// sizes come from the live token balance so resolved or transferred
// shares are not resurrected. Best effort: any failure logs and moves
// on with whatever was recovered.
func (t *Tracker) RecoverPositions() {
	trades, err := t.venue.Trades()
	if err != nil {
		log.Warn().Err(err).Msg("⚠️ Trade history query failed, skipping position recovery")
		return
	}
	if len(trades) == 0 {
		return
	}

	wallet := strings.ToLower(t.venue.WalletAddress())

	// Trades arrive newest first, so the first buy seen per token is
	// the most recent entry.
	entryPrices := make(map[string]decimal.Decimal)
	for _, tr := range trades {
		if tr.Side == venue.SideBuy && tr.AssetID != "" {
			if _, seen := entryPrices[tr.AssetID]; !seen {
				entryPrices[tr.AssetID] = tr.Price
			}
		}
		for _, mf := range tr.MakerOrders {
			if !strings.EqualFold(mf.MakerAddress, wallet) || !strings.EqualFold(mf.Side, string(venue.SideBuy)) {
				continue
			}
			if _, seen := entryPrices[mf.AssetID]; !seen {
				if p, perr := decimal.NewFromString(mf.Price); perr == nil {
					entryPrices[mf.AssetID] = p
				}
			}
		}
	}

	recovered := 0
	for tokenID, entry := range entryPrices {
		if _, exists := t.positions[tokenID]; exists {
			continue
		}
		if t.hasOpenSell(tokenID) {
			continue
		}

		balance, err := t.venue.TokenBalance(tokenID)
		if err != nil {
			log.Warn().Err(err).Str("token", tokenID).Msg("⚠️ Token balance query failed during recovery")
			continue
		}
		size := balance.Floor()
		if size.LessThan(decimal.NewFromInt(1)) {
			continue
		}

		t.positions[tokenID] = &Position{
			TokenID:    tokenID,
			Market:     tokenID[:min(len(tokenID), 16)],
			Size:       size,
			EntryPrice: entry,
			AcquiredAt: t.now(),
		}
		recovered++
		log.Info().
			Str("token", tokenID).
			Str("size", size.String()).
			Str("entry", entry.String()).
			Msg("📦 Recovered position from trade history")
	}

	if recovered > 0 {
		log.Info().Int("positions", recovered).Msg("Startup position recovery complete")
	}
}

func (t *Tracker) hasOpenSell(tokenID string) bool {
	for _, o := range t.orders {
		if o.Side == venue.SideSell && o.TokenID == tokenID {
			return true
		}
	}
	return false
}

func (t *Tracker) orderIDs() []string {
	ids := make([]string, 0, len(t.orders))
	for id := range t.orders {
		ids = append(ids, id)
	}
	return ids
}

func (t *Tracker) positionTokens() []string {
	tokens := make([]string, 0, len(t.positions))
	for tok := range t.positions {
		tokens = append(tokens, tok)
	}
	return tokens
}
