package venue

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDryRunOrderIDs(t *testing.T) {
	id := NewDryRunOrderID()

	assert.True(t, IsDryRunOrderID(id))
	assert.NotEqual(t, id, NewDryRunOrderID(), "sentinel IDs must be unique")

	assert.False(t, IsDryRunOrderID("0x8a3f2b1c"))
	assert.False(t, IsDryRunOrderID(""))
}

func TestToTokenUnitsTruncates(t *testing.T) {
	// USDC notional: max 2 decimals, then scaled to 6 decimal units.
	// 4.9985 truncates to 4.99, never rounds up past the budget
	assert.Equal(t, "4990000", toTokenUnits(decimal.RequireFromString("4.9985"), 2).String())

	// Share amounts: max 4 decimals
	assert.Equal(t, "3030100", toTokenUnits(decimal.RequireFromString("3.030125"), 4).String())

	assert.Equal(t, "0", toTokenUnits(decimal.Zero, 2).String())
}

func TestWireOrderConversion(t *testing.T) {
	w := wireOrder{
		ID:           "ord-1",
		AssetID:      "tok-1",
		Side:         "buy",
		Price:        "0.45",
		OriginalSize: "50",
		SizeMatched:  "10",
		Status:       "live",
	}

	o := w.toRemote()

	assert.Equal(t, "ord-1", o.ID)
	assert.Equal(t, SideBuy, o.Side)
	assert.Equal(t, "LIVE", o.Status)
	assert.True(t, o.Price.Equal(decimal.RequireFromString("0.45")))
	assert.True(t, o.OriginalSize.Equal(decimal.RequireFromString("50")))
	assert.True(t, o.SizeMatched.Equal(decimal.RequireFromString("10")))
}

func TestPrunedOrderSurfacesNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := &Client{baseURL: srv.URL, httpClient: &http.Client{Timeout: 5 * time.Second}}

	_, err := c.Order("0xgone")
	assert.ErrorIs(t, err, ErrNotFound)

	err = c.CancelOrder("0xgone")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSignedOrderAmounts(t *testing.T) {
	s := &orderSigner{signatureType: 0}

	// Buying 12 shares at 0.40: spend 4.80 USDC, receive 12 shares
	order, err := s.buildOrderAmounts("123456789", SideBuy, decimal.RequireFromString("0.40"), decimal.RequireFromString("12"))
	assert.NoError(t, err)
	assert.Equal(t, "4800000", order.MakerAmount.String())
	assert.Equal(t, "12000000", order.TakerAmount.String())
	assert.Equal(t, uint8(0), order.Side)

	// Selling 12 shares at 0.50: give 12 shares, receive 6 USDC
	order, err = s.buildOrderAmounts("123456789", SideSell, decimal.RequireFromString("0.50"), decimal.RequireFromString("12"))
	assert.NoError(t, err)
	assert.Equal(t, "12000000", order.MakerAmount.String())
	assert.Equal(t, "6000000", order.TakerAmount.String())
	assert.Equal(t, uint8(1), order.Side)
}
