// Package notify sends run summaries to a Telegram chat.
//
// Messages use MarkdownV2. Delivery is retried with a linearly growing delay;
// callers treat a final failure as a warning, not as a failed run.
package notify

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rewired-gh/ldarsim/internal/models"
	"github.com/rewired-gh/ldarsim/internal/strategy"
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Client handles Telegram notifications
type Client struct {
	bot            sender
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
	sleep          func(time.Duration)
}

// NewClient creates a new Telegram client
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	return newClient(bot, chatIDInt, maxRetries, retryDelayBase), nil
}

func newClient(bot sender, chatID int64, maxRetries int, retryDelayBase time.Duration) *Client {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}
	return &Client{
		bot:            bot,
		chatID:         chatID,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
		sleep:          time.Sleep,
	}
}

// Send sends the summary of a finished run
func (c *Client) Send(r *models.RunReport) error {
	msg := tgbotapi.NewMessage(c.chatID, formatMessage(r))
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		if i < c.maxRetries-1 {
			c.sleep(c.retryDelayBase * time.Duration(i+1))
		}
	}
	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

func formatMessage(r *models.RunReport) string {
	var b strings.Builder
	b.WriteString("🛰 *LDAR survey simulation*\n\n")

	fmt.Fprintf(&b, "🆔 Run: `%s`\n", escapeMarkdownV2(r.ID))
	fmt.Fprintf(&b, "📅 %s\n\n", escapeMarkdownV2(r.CreatedAt.Format("2006-01-02 15:04:05")))

	fmt.Fprintf(&b, "🏭 Portfolio: %s sites, %s\n",
		escapeMarkdownV2(strconv.Itoa(r.Portfolio.Sites)),
		escapeMarkdownV2(fmt.Sprintf("%.1f kg/h", r.Portfolio.TotalEmissionsKgph)))
	fmt.Fprintf(&b, "📍 Clusters: %s \\(%s noise sites\\)\n",
		escapeMarkdownV2(strconv.Itoa(r.Clustering.Clusters)),
		escapeMarkdownV2(strconv.Itoa(r.Clustering.NoiseSites)))

	fmt.Fprintf(&b, "🔎 Detected per event: *%s* ± %s\n",
		escapeMarkdownV2(fmt.Sprintf("%.1f kg/h", r.Summary.MeanDetectedKgph)),
		escapeMarkdownV2(fmt.Sprintf("%.1f", r.Summary.StdDetectedKgph)))
	fmt.Fprintf(&b, "   %s events at %s coverage, %s mode\n",
		escapeMarkdownV2(strconv.Itoa(r.Summary.Events)),
		escapeMarkdownV2(fmt.Sprintf("%.0f%%", r.Survey.Coverage*100)),
		escapeMarkdownV2(string(r.Survey.Mode)))

	if r.Wind.Degraded {
		fmt.Fprintf(&b, "⚠️ Wind: %s\n", escapeMarkdownV2(r.Wind.Reason))
	}

	if best, ok := strategy.Best(r.Strategies); ok {
		fmt.Fprintf(&b, "\n🏆 Best policy: %s\n", escapeMarkdownV2(best.Strategy))
		fmt.Fprintf(&b, "   %s over %s years \\(%s of portfolio\\)\n",
			escapeMarkdownV2(fmt.Sprintf("%.0f kg/h", best.CumulativeDetectedKgph)),
			escapeMarkdownV2(strconv.Itoa(best.Years)),
			escapeMarkdownV2(fmt.Sprintf("%.1f%%", best.CumulativeMitigationPct)))
	}
	return b.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
