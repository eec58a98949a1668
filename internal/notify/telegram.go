package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/oblik/seda-project/internal/report"
)

type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts a short summary of every outcome to one chat
type TelegramNotifier struct {
	bot    messageSender
	chatID int64
	logger zerolog.Logger
}

// NewTelegramNotifier authorizes the bot and returns a notifier for chatID.
// Every Bot API call, the authorization included, is bounded by timeout.
func NewTelegramNotifier(token string, chatID int64, timeout time.Duration) (*TelegramNotifier, error) {
	return dialTelegram(token, tgbotapi.APIEndpoint, chatID, timeout)
}

func dialTelegram(token, endpoint string, chatID int64, timeout time.Duration) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Telegram bot: %w", err)
	}

	n := newTelegramNotifier(bot, chatID)
	n.logger.Info().Str("username", bot.Self.UserName).Msg("Authorized on Telegram")
	return n, nil
}

func newTelegramNotifier(bot messageSender, chatID int64) *TelegramNotifier {
	return &TelegramNotifier{
		bot:    bot,
		chatID: chatID,
		logger: log.With().Str("component", "telegram_notifier").Logger(),
	}
}

// Record implements report.Sink
func (n *TelegramNotifier) Record(ctx context.Context, o report.Outcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(n.chatID, FormatOutcome(o))
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("sending Telegram message: %w", err)
	}

	n.logger.Debug().Int64("chat_id", n.chatID).Msg("Outcome sent")
	return nil
}

// FormatOutcome renders an outcome as a one-line message
func FormatOutcome(o report.Outcome) string {
	var b strings.Builder

	label := o.Phase
	if o.Symbol != "" && o.Convert != "" {
		label = fmt.Sprintf("%s/%s %s", o.Symbol, o.Convert, o.Phase)
	}
	label = strings.TrimSpace(label)

	if o.ExitCode != report.ExitSuccess {
		fmt.Fprintf(&b, "❌ %s failed: %s", label, string(o.Payload))
		return b.String()
	}

	v, err := report.DecodeLTV(o.Payload)
	if err != nil {
		fmt.Fprintf(&b, "⚠️ %s reported an unreadable payload (%d bytes)", label, len(o.Payload))
		return b.String()
	}

	fmt.Fprintf(&b, "✅ %s LTV: %d%%", label, v)
	if o.Result != nil {
		c := o.Result.Components
		fmt.Fprintf(&b, " (base %d%%, volume +%d%%, volatility -%d%%, trend +%d%%)",
			c.Base, c.Volume, c.Volatility, c.Trend)
	}
	return b.String()
}
