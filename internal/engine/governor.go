// Package engine implements opportunity detection, capital accounting,
// order lifecycle tracking and the scan loop
//
// governor.go - The top-level scan loop and its safety gates. One scan
// runs to completion inside the loop goroutine before the next tick is
// taken, so scans never overlap and ledger state is never mutated
// concurrently. Step order inside a scan is fixed: freed capital from
// fills must be visible before new orders are sized.
package engine

import (
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/paritybot/internal/config"
	"github.com/web3guy0/paritybot/internal/market"
)

// Governor drives the scan-detect-act loop with the circuit breaker
// and capacity gates.
type Governor struct {
	marketData MarketData
	detector   *Detector
	tracker    *Tracker
	stats      *RunStats
	recorder   Recorder
	notifier   Notifier

	pollInterval  time.Duration
	maxDailyLoss  decimal.Decimal
	maxOpenOrders int

	running        bool
	breakerAlerted bool
	stopCh         chan struct{}
	doneCh         chan struct{}
}

// NewGovernor creates the scan loop.
func NewGovernor(cfg *config.Config, md MarketData, det *Detector, tr *Tracker, stats *RunStats, rec Recorder, notif Notifier) *Governor {
	return &Governor{
		marketData:    md,
		detector:      det,
		tracker:       tr,
		stats:         stats,
		recorder:      rec,
		notifier:      notif,
		pollInterval:  cfg.PollInterval,
		maxDailyLoss:  cfg.MaxDailyLoss,
		maxOpenOrders: cfg.MaxOpenOrders,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

// Stats exposes the run counters for shutdown reporting.
func (g *Governor) Stats() *RunStats {
	return g.stats
}

// Start recovers positions from history and begins scanning.
func (g *Governor) Start() {
	if g.running {
		return
	}
	g.running = true

	go g.run()
	log.Info().Dur("interval", g.pollInterval).Msg("🚀 Scan loop started")
}

// Stop halts the loop, draining any scan already in flight.
func (g *Governor) Stop() {
	if !g.running {
		return
	}
	g.running = false
	close(g.stopCh)
	<-g.doneCh
}

func (g *Governor) run() {
	defer close(g.doneCh)

	g.tracker.RecoverPositions()
	g.scan()

	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-g.stopCh:
			return
		case <-ticker.C:
			g.scan()
		}
	}
}

// scan is one full iteration. The step order is load-bearing:
// reconcile fills, place exits, cancel stale, then gate new entries on
// the circuit breaker and open-order capacity before searching.
func (g *Governor) scan() {
	g.stats.Scans++

	g.tracker.ReconcileFills()
	g.tracker.PlaceExits()
	g.tracker.CancelStale()

	if g.breakerTripped() {
		log.Warn().
			Str("net_pnl", g.stats.NetPnL().String()).
			Str("max_daily_loss", g.maxDailyLoss.String()).
			Msg("🚨 Circuit breaker active, new entries halted")
	} else if g.tracker.OpenBuyCount() >= g.maxOpenOrders {
		log.Info().
			Int("open_buys", g.tracker.OpenBuyCount()).
			Int("max", g.maxOpenOrders).
			Msg("Order capacity reached, skipping entry search")
	} else {
		g.searchAndEnter()
	}

	g.logSummary()
}

// breakerTripped checks cumulative P&L against the max daily loss.
// Stats are monotonic, so once tripped the halt is permanent for this
// process; existing orders still get reconciled and cancelled.
func (g *Governor) breakerTripped() bool {
	if g.stats.NetPnL().GreaterThanOrEqual(g.maxDailyLoss.Neg()) {
		return false
	}
	if !g.breakerAlerted {
		g.breakerAlerted = true
		g.notifier.CircuitBreakerTripped(g.stats.NetPnL())
	}
	return true
}

// searchAndEnter refreshes market data, detects opportunities and
// attempts at most one entry, the top-ranked one. Single entry per
// tick bounds how fast exposure can grow.
func (g *Governor) searchAndEnter() {
	snaps, err := g.marketData.FetchAll()
	if err != nil {
		if errors.Is(err, market.ErrRateLimited) {
			log.Info().Msg("Rate limited, skipping market refresh this tick")
		} else {
			log.Warn().Err(err).Msg("⚠️ Market fetch failed, skipping entry search")
		}
		return
	}

	opps := g.detector.DetectAll(snaps)
	if len(opps) == 0 {
		log.Debug().Int("markets", len(snaps)).Msg("No opportunities this tick")
		return
	}
	g.stats.OpportunitiesFound += len(opps)

	top := opps[0]
	log.Info().
		Int("count", len(opps)).
		Str("market", top.Question).
		Str("direction", string(top.Direction)).
		Str("magnitude", top.Magnitude.String()).
		Bool("stale_data", top.Stale).
		Msg("🎯 Opportunities detected")
	g.recorder.RecordOpportunity(top)
	g.notifier.OpportunityFound(top)

	g.tracker.PlaceEntry(top)
}

// logSummary emits the per-scan structured summary.
func (g *Governor) logSummary() {
	log.Info().
		Int("scan", g.stats.Scans).
		Int("opportunities", g.stats.OpportunitiesFound).
		Int("open_orders", len(g.tracker.orders)).
		Int("positions", g.tracker.PositionCount()).
		Int("placed", g.stats.OrdersPlaced).
		Int("filled", g.stats.OrdersFilled).
		Int("cancelled", g.stats.OrdersCancelled).
		Str("net_pnl", g.stats.NetPnL().String()).
		Msg("📊 Scan complete")
}
