package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/paritybot/internal/config"
	"github.com/web3guy0/paritybot/internal/market"
	"github.com/web3guy0/paritybot/internal/venue"
)

func newTestGovernor(fv *fakeVenue, fm *fakeMarket, notif Notifier) (*Governor, *Tracker, *RunStats) {
	cfg := &config.Config{
		MinDeviation:  dec("0.01"),
		MinSpreadPct:  dec("3"),
		MinVolume24h:  dec("10000"),
		PriceFloor:    dec("0.05"),
		PriceCeiling:  dec("0.95"),
		MaxOrderSize:  dec("5"),
		MaxOpenOrders: 2,
		MinOrderValue: dec("1"),
		MaxDailyLoss:  dec("50"),
		OrderTTL:      5 * time.Minute,
		PollInterval:  time.Minute,
	}
	stats := &RunStats{}
	tr := NewTracker(cfg, fv, fm, NewLedger(fv), stats, NopRecorder{}, notif)
	g := NewGovernor(cfg, fm, NewDetector(cfg), tr, stats, NopRecorder{}, notif)
	return g, tr, stats
}

func liquidSpreadMarket(id string) market.Snapshot {
	return market.Snapshot{
		ID:            id,
		Question:      "q-" + id,
		OutcomePrices: []decimal.Decimal{dec("0.50"), dec("0.50")},
		TokenIDs:      []string{"tok-" + id},
		BestBid:       dec("0.40"),
		BestAsk:       dec("0.50"),
		Volume24h:     dec("50000"),
		FetchedAt:     time.Now(),
	}
}

func TestCircuitBreakerHaltsNewEntries(t *testing.T) {
	fv := &fakeVenue{balance: dec("100")}
	fm := &fakeMarket{snaps: []market.Snapshot{liquidSpreadMarket("m1")}}
	notif := &captureNotifier{}
	g, _, stats := newTestGovernor(fv, fm, notif)

	// Net P&L of -60 is past the -50 limit
	stats.AddRealized(dec("-60"))

	g.scan()
	g.scan()
	g.scan()

	// Stats are monotonic, so the halt never clears: no market fetch,
	// no orders, across every subsequent tick
	assert.Equal(t, 0, fm.fetchCalls)
	assert.Empty(t, fv.placed)
	assert.Equal(t, 1, notif.breakerTrips, "breaker alert fires once, not per tick")
}

func TestCircuitBreakerStillManagesOpenOrders(t *testing.T) {
	fv := &fakeVenue{
		balance: dec("100"),
		orderStates: map[string]venue.RemoteOrder{
			"order-1": {ID: "order-1", Status: "FILLED"},
		},
	}
	g, tr, stats := newTestGovernor(fv, &fakeMarket{}, &captureNotifier{})
	stats.AddRealized(dec("-60"))
	tr.orders["order-1"] = &ActiveOrder{
		ID: "order-1", TokenID: "tok-1", Side: venue.SideSell,
		Price: dec("0.5"), Size: dec("10"), EntryPrice: dec("0.4"), PlacedAt: time.Now(),
	}

	g.scan()

	// The halt blocks entries only; reconciliation still runs
	assert.Equal(t, 1, stats.OrdersFilled)
}

func TestCapacityGateSkipsEntrySearch(t *testing.T) {
	fv := &fakeVenue{balance: dec("100")}
	fm := &fakeMarket{snaps: []market.Snapshot{liquidSpreadMarket("m1")}}
	g, tr, _ := newTestGovernor(fv, fm, &captureNotifier{})

	tr.orders["a"] = &ActiveOrder{ID: "a", Side: venue.SideBuy, PlacedAt: time.Now()}
	tr.orders["b"] = &ActiveOrder{ID: "b", Side: venue.SideBuy, PlacedAt: time.Now()}
	fv.orderStates = map[string]venue.RemoteOrder{
		"a": {ID: "a", Status: "LIVE"},
		"b": {ID: "b", Status: "LIVE"},
	}

	g.scan()

	assert.Equal(t, 0, fm.fetchCalls, "no entry search at capacity")
	assert.Empty(t, fv.placed)
}

func TestScanPlacesAtMostOneEntry(t *testing.T) {
	fv := &fakeVenue{balance: dec("100")}
	fm := &fakeMarket{snaps: []market.Snapshot{
		liquidSpreadMarket("m1"),
		liquidSpreadMarket("m2"),
		liquidSpreadMarket("m3"),
	}}
	g, tr, stats := newTestGovernor(fv, fm, &captureNotifier{})

	g.scan()

	require.Len(t, fv.placed, 1, "one entry per tick bounds exposure growth")
	assert.Equal(t, 1, stats.OrdersPlaced)
	assert.Len(t, tr.orders, 1)
	assert.Equal(t, 3, stats.OpportunitiesFound)
}

func TestScanDoesNotBuyIntoOverpricedMarket(t *testing.T) {
	// Prices sum to 1.05, past the 1.01 threshold: the market is
	// collectively overpriced and the right trade is selling held
	// outcomes, not buying more. The quote is perfectly tradable,
	// which is exactly what must not tempt an entry.
	snap := market.Snapshot{
		ID:            "m1",
		Question:      "q-m1",
		OutcomePrices: []decimal.Decimal{dec("0.55"), dec("0.50")},
		TokenIDs:      []string{"tok-m1"},
		BestBid:       dec("0.40"),
		BestAsk:       dec("0.50"),
		Volume24h:     dec("50000"),
		FetchedAt:     time.Now(),
	}
	fv := &fakeVenue{balance: dec("100")}
	fm := &fakeMarket{snaps: []market.Snapshot{snap}}
	notif := &captureNotifier{}
	g, tr, stats := newTestGovernor(fv, fm, notif)

	g.scan()

	assert.Empty(t, fv.placed, "sum above parity means sell, never buy")
	assert.Empty(t, tr.orders)
	assert.Equal(t, 0, stats.OrdersPlaced)

	// The signal itself is still surfaced
	assert.Equal(t, 1, stats.OpportunitiesFound)
	assert.Equal(t, 1, notif.opportunities)
}

func TestScanCountsEveryTick(t *testing.T) {
	fv := &fakeVenue{balance: dec("100")}
	fm := &fakeMarket{}
	g, _, stats := newTestGovernor(fv, fm, &captureNotifier{})

	g.scan()
	g.scan()

	assert.Equal(t, 2, stats.Scans)
	assert.Equal(t, 2, fm.fetchCalls)
}
