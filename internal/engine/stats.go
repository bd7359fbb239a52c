package engine

import "github.com/shopspring/decimal"

// RunStats accumulates process-wide counters. Owned by the scan loop
// goroutine; reset only on restart.
type RunStats struct {
	Scans              int
	OpportunitiesFound int
	OrdersPlaced       int
	OrdersFilled       int
	OrdersCancelled    int
	OrdersExpired      int

	GrossProfit decimal.Decimal
	GrossLoss   decimal.Decimal
}

// NetPnL returns realized profit minus realized loss.
func (s *RunStats) NetPnL() decimal.Decimal {
	return s.GrossProfit.Sub(s.GrossLoss)
}

// AddRealized books a realized trade result into the profit or loss
// accumulator depending on sign.
func (s *RunStats) AddRealized(pnl decimal.Decimal) {
	if pnl.IsNegative() {
		s.GrossLoss = s.GrossLoss.Add(pnl.Abs())
		return
	}
	s.GrossProfit = s.GrossProfit.Add(pnl)
}
