// Package notify pushes trading alerts to Telegram
//
// Send-only: no command handling, just opportunity, fill and circuit
// breaker messages. Disabled cleanly when no token is configured, so
// callers never need a nil check.
package notify

import (
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/paritybot/internal/engine"
)

// opportunityCooldown throttles repeat opportunity alerts so a wide
// spread that persists across scans does not spam the chat.
const opportunityCooldown = 5 * time.Minute

// Telegram sends alerts to a single chat.
type Telegram struct {
	mu        sync.Mutex
	api       *tgbotapi.BotAPI
	chatID    int64
	enabled   bool
	lastAlert map[string]time.Time
}

// New creates a Telegram notifier. An empty token or chat ID yields a
// disabled notifier whose methods do nothing.
func New(token string, chatID int64) (*Telegram, error) {
	if token == "" || chatID == 0 {
		log.Info().Msg("Telegram alerts disabled (no token configured)")
		return &Telegram{lastAlert: make(map[string]time.Time)}, nil
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	log.Info().Str("username", api.Self.UserName).Msg("🤖 Telegram alerts enabled")
	return &Telegram{
		api:       api,
		chatID:    chatID,
		enabled:   true,
		lastAlert: make(map[string]time.Time),
	}, nil
}

// OpportunityFound alerts on a freshly detected mispricing.
func (t *Telegram) OpportunityFound(opp engine.Opportunity) {
	if !t.throttle("opp:" + opp.MarketID) {
		return
	}
	msg := fmt.Sprintf("🎯 *Opportunity* (%s)\n%s\nmagnitude: %s\nbid %s / ask %s\n24h vol: %s",
		opp.Direction, opp.Question, opp.Magnitude.StringFixed(4),
		opp.BidPrice.StringFixed(3), opp.AskPrice.StringFixed(3),
		opp.Volume24h.StringFixed(0))
	t.send(msg)
}

// OrderFilled alerts on a fill, with realized P&L for sells.
func (t *Telegram) OrderFilled(order *engine.ActiveOrder, profit decimal.Decimal) {
	msg := fmt.Sprintf("💰 *%s filled*\n%s\n%s shares @ %s",
		order.Side, order.Market, order.Size.String(), order.Price.StringFixed(3))
	if !profit.IsZero() {
		msg += fmt.Sprintf("\nrealized P&L: %s", profit.StringFixed(4))
	}
	t.send(msg)
}

// CircuitBreakerTripped alerts that new entries are halted.
func (t *Telegram) CircuitBreakerTripped(netPnL decimal.Decimal) {
	t.send(fmt.Sprintf("🚨 *Circuit breaker tripped*\nnet P&L: %s\nNew entries halted; open orders still managed.",
		netPnL.StringFixed(4)))
}

// throttle reports whether an alert under this key may be sent now.
func (t *Telegram) throttle(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if time.Since(t.lastAlert[key]) < opportunityCooldown {
		return false
	}
	t.lastAlert[key] = time.Now()
	return true
}

// send fires the message from a goroutine so a slow Telegram API call
// never stalls a scan.
func (t *Telegram) send(text string) {
	if !t.enabled {
		return
	}
	go func() {
		msg := tgbotapi.NewMessage(t.chatID, text)
		msg.ParseMode = tgbotapi.ModeMarkdown
		if _, err := t.api.Send(msg); err != nil {
			log.Warn().Err(err).Msg("⚠️ Telegram send failed")
		}
	}()
}
