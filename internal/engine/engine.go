// Package engine implements opportunity detection, capital accounting,
// order lifecycle tracking and the scan loop
//
// engine.go - Collaborator contracts. The engine talks to market data
// and the execution venue only through these interfaces so tests can
// substitute fakes.
package engine

import (
	"github.com/shopspring/decimal"

	"github.com/web3guy0/paritybot/internal/market"
	"github.com/web3guy0/paritybot/internal/venue"
)

// MarketData supplies market snapshots and orderbooks.
type MarketData interface {
	FetchAll() ([]market.Snapshot, error)
	Orderbook(tokenID string) *market.Orderbook
}

// Venue executes and reports orders.
type Venue interface {
	DryRun() bool
	WalletAddress() string
	AvailableBalance() (decimal.Decimal, error)
	TokenBalance(tokenID string) (decimal.Decimal, error)
	PlaceLimitOrder(tokenID string, side venue.Side, price, size decimal.Decimal) (string, error)
	OpenOrders() ([]venue.RemoteOrder, error)
	Order(orderID string) (venue.RemoteOrder, error)
	Trades() ([]venue.RemoteTrade, error)
	CancelOrder(orderID string) error
	CancelAll() error
}

// Recorder persists engine events. Implementations must swallow their
// own storage errors; persistence is never allowed to break a scan.
type Recorder interface {
	RecordOpportunity(opp Opportunity)
	RecordOrder(order *ActiveOrder)
	RecordFill(order *ActiveOrder, profit decimal.Decimal)
}

// Notifier pushes alerts to an external channel. Implementations are
// best-effort and must not block the scan loop.
type Notifier interface {
	OpportunityFound(opp Opportunity)
	OrderFilled(order *ActiveOrder, profit decimal.Decimal)
	CircuitBreakerTripped(netPnL decimal.Decimal)
}

// NopRecorder discards all events.
type NopRecorder struct{}

func (NopRecorder) RecordOpportunity(Opportunity)            {}
func (NopRecorder) RecordOrder(*ActiveOrder)                 {}
func (NopRecorder) RecordFill(*ActiveOrder, decimal.Decimal) {}

// NopNotifier discards all alerts.
type NopNotifier struct{}

func (NopNotifier) OpportunityFound(Opportunity)              {}
func (NopNotifier) OrderFilled(*ActiveOrder, decimal.Decimal) {}
func (NopNotifier) CircuitBreakerTripped(decimal.Decimal)     {}
