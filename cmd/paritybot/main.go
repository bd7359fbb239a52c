// Paritybot - Parity & Spread Arbitrage Bot for Polymarket
//
// The bot polls binary prediction markets and looks for two kinds of
// mispricing:
//
// 1. Parity deviation: complementary outcome prices summing away from
//    $1.00 (a violation of the no-arbitrage bound for binary bets)
// 2. Wide bid/ask spreads on liquid books, captured by resting a buy
//    at the bid and exiting at the ask
//
// Entries are sized against available capital net of open-order
// commitments, tracked through a fill lifecycle with TTL cancellation,
// and gated by a max-daily-loss circuit breaker.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/paritybot/internal/config"
	"github.com/web3guy0/paritybot/internal/database"
	"github.com/web3guy0/paritybot/internal/engine"
	"github.com/web3guy0/paritybot/internal/market"
	"github.com/web3guy0/paritybot/internal/notify"
	"github.com/web3guy0/paritybot/internal/venue"
)

const version = "1.2.0"

func main() {
	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Load environment
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found, using environment variables")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Info().
		Str("version", version).
		Bool("dry_run", cfg.DryRun).
		Dur("poll_interval", cfg.PollInterval).
		Msg("⚡ Paritybot starting...")

	// ====== CORE COMPONENTS ======

	// 1. Database - order/fill/opportunity history
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if pnl, err := db.GetTotalProfitLoss(); err == nil && !pnl.IsZero() {
		log.Info().Str("all_time_pnl", pnl.StringFixed(4)).Msg("📒 Historical P&L loaded")
	}

	// 2. Websocket quote stream - live best bid/ask overlay
	stream := market.NewStream(cfg.CLOBWSURL)
	stream.Start()

	// 3. Market data client - Gamma markets + CLOB orderbooks
	marketClient := market.NewClient(cfg.GammaAPIURL, cfg.CLOBAPIURL)
	marketClient.SetStream(stream)

	// 4. Execution venue - CLOB trading client (sentinel orders in dry run)
	venueClient, err := venue.NewClient(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize CLOB client")
	}
	if err := venueClient.TestConnection(); err != nil {
		log.Fatal().Err(err).Msg("CLOB API unreachable")
	}

	// 5. Telegram alerts (optional)
	notifier, err := notify.New(cfg.TelegramToken, cfg.TelegramChatID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Telegram notifier")
	}

	// 6. Engine - detector, ledger, order tracker, scan loop
	stats := &engine.RunStats{}
	detector := engine.NewDetector(cfg)
	ledger := engine.NewLedger(venueClient)
	tracker := engine.NewTracker(cfg, venueClient, marketClient, ledger, stats, db, notifier)
	governor := engine.NewGovernor(cfg, marketClient, detector, tracker, stats, db, notifier)
	governor.Start()

	// ====== STARTUP COMPLETE ======
	mode := "LIVE TRADING"
	if cfg.DryRun {
		mode = "DRY RUN"
	}
	log.Info().Msg("✅ All systems online")
	log.Info().Msg("")
	log.Info().Msg("╔══════════════════════════════════════════╗")
	log.Info().Msg("║     PARITY & SPREAD ARBITRAGE ACTIVE     ║")
	log.Info().Msg("║                                          ║")
	log.Info().Msgf("║  Mode: %-33s ║", mode)
	log.Info().Msg("║  → Scan outcome prices for parity gaps   ║")
	log.Info().Msg("║  → Rest bids inside wide spreads         ║")
	log.Info().Msg("║  → Exit at ask, cancel stale after TTL   ║")
	log.Info().Msg("╚══════════════════════════════════════════╝")
	log.Info().Msg("")

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("🛑 Received shutdown signal")

	// Graceful shutdown: drain the in-flight scan, then pull all
	// resting orders so nothing outlives the process.
	log.Info().Msg("Shutting down...")
	governor.Stop()
	stream.Stop()

	if err := venueClient.CancelAll(); err != nil {
		log.Warn().Err(err).Msg("⚠️ Failed to cancel open orders on shutdown")
	}

	final := governor.Stats()
	log.Info().
		Int("scans", final.Scans).
		Int("placed", final.OrdersPlaced).
		Int("filled", final.OrdersFilled).
		Int("cancelled", final.OrdersCancelled).
		Str("net_pnl", final.NetPnL().StringFixed(4)).
		Msg("📊 Final session stats")

	log.Info().Msg("👋 Goodbye!")
}
