package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/paritybot/internal/market"
	"github.com/web3guy0/paritybot/internal/venue"
)

// fakeVenue scripts venue responses and records calls.
type fakeVenue struct {
	dryRun bool
	wallet string

	balance    decimal.Decimal
	balanceErr error

	tokenBalances map[string]decimal.Decimal
	tokenErr      error

	openOrders []venue.RemoteOrder
	openErr    error

	orderStates map[string]venue.RemoteOrder
	orderErr    error

	trades    []venue.RemoteTrade
	tradesErr error

	placed   []placedCall
	placeErr error
	nextID   int

	cancelled []string
	cancelErr error
}

type placedCall struct {
	tokenID string
	side    venue.Side
	price   decimal.Decimal
	size    decimal.Decimal
}

func (f *fakeVenue) DryRun() bool          { return f.dryRun }
func (f *fakeVenue) WalletAddress() string { return f.wallet }

func (f *fakeVenue) AvailableBalance() (decimal.Decimal, error) {
	return f.balance, f.balanceErr
}

func (f *fakeVenue) TokenBalance(tokenID string) (decimal.Decimal, error) {
	if f.tokenErr != nil {
		return decimal.Zero, f.tokenErr
	}
	return f.tokenBalances[tokenID], nil
}

func (f *fakeVenue) PlaceLimitOrder(tokenID string, side venue.Side, price, size decimal.Decimal) (string, error) {
	if f.placeErr != nil {
		return "", f.placeErr
	}
	f.placed = append(f.placed, placedCall{tokenID: tokenID, side: side, price: price, size: size})
	f.nextID++
	if f.dryRun {
		return venue.NewDryRunOrderID(), nil
	}
	return fmt.Sprintf("order-%d", f.nextID), nil
}

func (f *fakeVenue) OpenOrders() ([]venue.RemoteOrder, error) {
	return f.openOrders, f.openErr
}

func (f *fakeVenue) Order(orderID string) (venue.RemoteOrder, error) {
	if f.orderErr != nil {
		return venue.RemoteOrder{}, f.orderErr
	}
	return f.orderStates[orderID], nil
}

func (f *fakeVenue) Trades() ([]venue.RemoteTrade, error) {
	return f.trades, f.tradesErr
}

func (f *fakeVenue) CancelOrder(orderID string) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, orderID)
	return nil
}

func (f *fakeVenue) CancelAll() error { return nil }

// fakeMarket scripts snapshots and orderbooks.
type fakeMarket struct {
	snaps      []market.Snapshot
	fetchErr   error
	fetchCalls int
	books      map[string]*market.Orderbook
}

func (f *fakeMarket) FetchAll() ([]market.Snapshot, error) {
	f.fetchCalls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.snaps, nil
}

func (f *fakeMarket) Orderbook(tokenID string) *market.Orderbook {
	return f.books[tokenID]
}

// captureNotifier counts alerts.
type captureNotifier struct {
	opportunities int
	fills         int
	breakerTrips  int
}

func (c *captureNotifier) OpportunityFound(Opportunity)              { c.opportunities++ }
func (c *captureNotifier) OrderFilled(*ActiveOrder, decimal.Decimal) { c.fills++ }
func (c *captureNotifier) CircuitBreakerTripped(decimal.Decimal)     { c.breakerTrips++ }

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
