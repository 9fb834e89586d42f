// Package telegram provides a client for operator alerts via the Telegram
// Bot API: reservoir empty/restored transitions and predictor outage and
// recovery notices. Delivery uses retry with linear backoff; alerts are
// best-effort and never block the control loop.
package telegram

import (
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Client handles Telegram notifications
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// SendReservoirEmpty alerts that the safety interlock has engaged.
func (c *Client) SendReservoirEmpty() error {
	return c.send("🚱 *Reservoir empty* — pump locked off until refilled\\.")
}

// SendReservoirRestored notifies that water is available again.
func (c *Client) SendReservoirRestored() error {
	return c.send("💧 Reservoir refilled — normal operation resumed\\.")
}

// SendPredictorError notifies the first prediction failure after a healthy
// stretch. The caller owns deduplication; this is one message per call.
func (c *Client) SendPredictorError(err error) error {
	return c.send(fmt.Sprintf("⚠️ Prediction service unreachable, using light fallback:\n`%s`",
		escapeMarkdownV2(err.Error())))
}

// SendPredictorRecovery notifies that predictions are flowing again after
// the given number of consecutive failures.
func (c *Client) SendPredictorRecovery(failures int) error {
	return c.send(fmt.Sprintf("✅ Prediction service recovered after %d failed attempt\\(s\\)\\.", failures))
}

func (c *Client) send(message string) error {
	msg := tgbotapi.NewMessage(c.chatID, message)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}

	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	result := ""
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			result += "\\" + string(char)
		default:
			result += string(char)
		}
	}
	return result
}
