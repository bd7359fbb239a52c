package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all configuration for the bot
type Config struct {
	// Mode
	DryRun bool
	Debug  bool

	// Polymarket API
	GammaAPIURL string
	CLOBAPIURL  string
	CLOBWSURL   string

	// CLOB Credentials
	CLOBApiKey     string
	CLOBApiSecret  string
	CLOBPassphrase string

	// Wallet
	PrivateKey    string // hex private key for order signing
	SignerAddress string // Address that signed/derived the API credentials
	FunderAddress string // Address that holds funds (may differ from signing key)
	SignatureType int    // 0=EOA, 1=Magic/Email, 2=Proxy

	// Detection thresholds
	MinDeviation decimal.Decimal // parity deviation from 1.00, e.g. 0.01 = 1 cent
	MinSpreadPct decimal.Decimal // e.g. 3 = 3% of ask
	MinVolume24h decimal.Decimal // 24h USDC volume floor
	PriceFloor   decimal.Decimal // skip near-certain outcomes below this bid
	PriceCeiling decimal.Decimal // skip near-certain outcomes above this ask

	// Order limits
	MaxOrderSize  decimal.Decimal // USDC budget per entry order
	MaxOpenOrders int             // max concurrent open BUY orders
	MinOrderValue decimal.Decimal // venue minimum notional per order

	// Safety
	MaxDailyLoss decimal.Decimal // halt new entries when net P&L drops below -this
	OrderTTL     time.Duration   // cancel unfilled orders older than this
	PollInterval time.Duration   // scan cadence

	// Database
	DatabasePath string

	// Telegram (optional alerts)
	TelegramToken  string
	TelegramChatID int64
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		DryRun: getEnvBool("DRY_RUN", true),
		Debug:  getEnvBool("DEBUG", false),

		GammaAPIURL: getEnv("GAMMA_API_URL", "https://gamma-api.polymarket.com"),
		CLOBAPIURL:  getEnv("CLOB_API_URL", "https://clob.polymarket.com"),
		CLOBWSURL:   getEnv("CLOB_WS_URL", "wss://ws-subscriptions-clob.polymarket.com/ws/market"),

		CLOBApiKey:     os.Getenv("CLOB_API_KEY"),
		CLOBApiSecret:  os.Getenv("CLOB_API_SECRET"),
		CLOBPassphrase: os.Getenv("CLOB_PASSPHRASE"),

		PrivateKey:    os.Getenv("PRIVATE_KEY"),
		SignerAddress: os.Getenv("SIGNER_ADDRESS"),
		FunderAddress: os.Getenv("FUNDER_ADDRESS"),
		SignatureType: getEnvInt("SIGNATURE_TYPE", 0),

		MinDeviation: getEnvDecimal("MIN_DEVIATION", decimal.NewFromFloat(0.01)),
		MinSpreadPct: getEnvDecimal("MIN_SPREAD_PCT", decimal.NewFromInt(3)),
		MinVolume24h: getEnvDecimal("MIN_VOLUME_24H", decimal.NewFromInt(10000)),
		PriceFloor:   getEnvDecimal("PRICE_FLOOR", decimal.NewFromFloat(0.05)),
		PriceCeiling: getEnvDecimal("PRICE_CEILING", decimal.NewFromFloat(0.95)),

		MaxOrderSize:  getEnvDecimal("MAX_ORDER_SIZE", decimal.NewFromInt(5)),
		MaxOpenOrders: getEnvInt("MAX_OPEN_ORDERS", 2),
		MinOrderValue: getEnvDecimal("MIN_ORDER_VALUE", decimal.NewFromInt(1)),

		MaxDailyLoss: getEnvDecimal("MAX_DAILY_LOSS", decimal.NewFromInt(50)),
		OrderTTL:     getEnvDuration("ORDER_TTL", 5*time.Minute),
		PollInterval: getEnvDuration("POLL_INTERVAL", 60*time.Second),

		DatabasePath: getEnv("DATABASE_PATH", "data/paritybot.db"),

		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
	}

	// Parse chat ID
	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	// Live trading needs venue credentials; dry run works without them
	if !cfg.DryRun {
		if cfg.CLOBApiKey == "" || cfg.CLOBApiSecret == "" {
			return nil, fmt.Errorf("CLOB_API_KEY and CLOB_API_SECRET are required for live trading")
		}
		if cfg.SignerAddress == "" {
			return nil, fmt.Errorf("SIGNER_ADDRESS is required for live trading")
		}
		if cfg.PrivateKey == "" {
			return nil, fmt.Errorf("PRIVATE_KEY is required for live trading")
		}
	}

	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("POLL_INTERVAL must be positive")
	}

	return cfg, nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}
