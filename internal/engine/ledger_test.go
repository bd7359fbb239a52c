package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/paritybot/internal/venue"
)

func trackedBuy(id, price, size string) *ActiveOrder {
	return &ActiveOrder{
		ID:       id,
		TokenID:  "tok-1",
		Side:     venue.SideBuy,
		Price:    dec(price),
		Size:     dec(size),
		PlacedAt: time.Now(),
	}
}

func TestAvailableCapitalReconcilesLocalAndRemote(t *testing.T) {
	fv := &fakeVenue{
		balance: dec("100"),
		openOrders: []venue.RemoteOrder{
			// Same order the tracker already knows, must not double-count
			{ID: "ord-1", TokenID: "tok-1", Side: venue.SideBuy, Price: dec("0.4"), OriginalSize: dec("50")},
			// Left over from a previous process instance
			{ID: "ord-2", TokenID: "tok-2", Side: venue.SideBuy, Price: dec("0.5"), OriginalSize: dec("10")},
		},
	}
	l := NewLedger(fv)

	bal, err := l.AvailableCapital([]*ActiveOrder{trackedBuy("ord-1", "0.4", "50")})
	require.NoError(t, err)

	// committed = 0.4*50 + 0.5*10 = 25, available = 100 - 25 = 75
	assert.True(t, bal.Committed.Equal(dec("25")), "committed %s", bal.Committed)
	assert.True(t, bal.Available.Equal(dec("75")), "available %s", bal.Available)
}

func TestAvailableCapitalNeverNegative(t *testing.T) {
	fv := &fakeVenue{balance: dec("10")}
	l := NewLedger(fv)

	bal, err := l.AvailableCapital([]*ActiveOrder{trackedBuy("ord-1", "0.5", "100")})
	require.NoError(t, err)

	assert.True(t, bal.Committed.Equal(dec("50")))
	assert.True(t, bal.Available.IsZero(), "available %s", bal.Available)
}

func TestAvailableCapitalDegradesWhenRemoteFails(t *testing.T) {
	fv := &fakeVenue{
		balance: dec("100"),
		openErr: errors.New("venue down"),
	}
	l := NewLedger(fv)

	// Falls back to local tracking instead of aborting
	bal, err := l.AvailableCapital([]*ActiveOrder{trackedBuy("ord-1", "0.4", "50")})
	require.NoError(t, err)

	assert.True(t, bal.Committed.Equal(dec("20")))
	assert.True(t, bal.Available.Equal(dec("80")))
}

func TestAvailableCapitalFailsWithoutTotal(t *testing.T) {
	fv := &fakeVenue{balanceErr: errors.New("balance unavailable")}
	l := NewLedger(fv)

	_, err := l.AvailableCapital(nil)
	assert.Error(t, err)
}

func TestAvailableCapitalIgnoresSellOrders(t *testing.T) {
	fv := &fakeVenue{balance: dec("100")}
	l := NewLedger(fv)

	sell := &ActiveOrder{ID: "ord-s", TokenID: "tok-1", Side: venue.SideSell, Price: dec("0.6"), Size: dec("40")}
	bal, err := l.AvailableCapital([]*ActiveOrder{sell})
	require.NoError(t, err)

	assert.True(t, bal.Committed.IsZero())
	assert.True(t, bal.Available.Equal(dec("100")))
}

func TestAvailableSharesDryRunUsesLocalHolding(t *testing.T) {
	fv := &fakeVenue{dryRun: true}
	l := NewLedger(fv)

	bal := l.AvailableShares("tok-1", dec("30"), nil)

	assert.True(t, bal.Total.Equal(dec("30")))
	assert.True(t, bal.Available.Equal(dec("30")))
}

func TestAvailableSharesNetsSellCommitments(t *testing.T) {
	fv := &fakeVenue{
		tokenBalances: map[string]decimal.Decimal{"tok-1": dec("50")},
	}
	l := NewLedger(fv)

	sell := &ActiveOrder{ID: "ord-s", TokenID: "tok-1", Side: venue.SideSell, Price: dec("0.6"), Size: dec("20")}
	bal := l.AvailableShares("tok-1", dec("50"), []*ActiveOrder{sell})

	assert.True(t, bal.Total.Equal(dec("50")))
	assert.True(t, bal.Committed.Equal(dec("20")))
	assert.True(t, bal.Available.Equal(dec("30")))
}
