// Package venue provides order execution against the Polymarket CLOB
//
// venue.go - Shared order types and the dry-run order ID scheme.
// Dry-run orders never touch the network; they get a sentinel ID so the
// rest of the system can track them exactly like live orders.
package venue

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrNotFound signals the venue no longer knows the requested resource.
// The data API prunes settled and long-cancelled orders, so a 404 on an
// order lookup means the order is gone for good, not temporarily
// unavailable.
var ErrNotFound = errors.New("not found on venue")

// Side represents buy or sell
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// dryRunPrefix marks simulated order IDs. Anything carrying this prefix
// must never be sent to the venue.
const dryRunPrefix = "dry-run-"

// NewDryRunOrderID returns a fresh sentinel order ID.
func NewDryRunOrderID() string {
	return dryRunPrefix + uuid.New().String()
}

// IsDryRunOrderID reports whether an order ID is a simulation sentinel.
func IsDryRunOrderID(orderID string) bool {
	return strings.HasPrefix(orderID, dryRunPrefix)
}

// RemoteOrder is an order as the venue reports it.
type RemoteOrder struct {
	ID           string
	TokenID      string
	Side         Side
	Price        decimal.Decimal
	OriginalSize decimal.Decimal
	SizeMatched  decimal.Decimal
	Status       string
}

// MakerFill is one maker order inside a trade.
type MakerFill struct {
	OrderID       string `json:"order_id"`
	MakerAddress  string `json:"maker_address"`
	AssetID       string `json:"asset_id"`
	Side          string `json:"side"`
	Price         string `json:"price"`
	MatchedAmount string `json:"matched_amount"`
}

// RemoteTrade is a trade from the venue's history endpoint. Used at
// startup to reconstruct positions left over from a previous run.
type RemoteTrade struct {
	ID          string
	AssetID     string
	Side        Side
	Size        decimal.Decimal
	Price       decimal.Decimal
	Status      string
	MatchTime   string
	MakerOrders []MakerFill
}
