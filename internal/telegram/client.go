// Package telegram provides a client for sending notifications via Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/dexrisk/internal/logger"
	"github.com/rewired-gh/dexrisk/internal/models"
)

// lastDecisionCount is how many journal entries /last replies with.
const lastDecisionCount = 5

// DecisionLog is the read side of the decision journal used by /last.
type DecisionLog interface {
	GetRecentDecisions(k int) ([]models.Outcome, error)
	CountDecisions(kind models.OutcomeKind) (int, error)
}

type journalSummary struct {
	Total    int
	Executed int
	Errors   int
}

// Client handles Telegram notifications.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
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

// ListenForCommands starts a goroutine that polls for Telegram updates and handles bot commands.
// It returns immediately; the goroutine stops when ctx is cancelled.
func (c *Client) ListenForCommands(ctx context.Context, journal DecisionLog) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message != nil && update.Message.IsCommand() {
					c.handleCommand(update.Message, journal)
				}
			}
		}
	}()
}

func (c *Client) handleCommand(msg *tgbotapi.Message, journal DecisionLog) {
	switch msg.Command() {
	case "ping":
		reply := tgbotapi.NewMessage(msg.Chat.ID, "Pong")
		c.bot.Send(reply) //nolint:errcheck
	case "last":
		if journal == nil {
			return
		}
		text, err := lastReply(journal)
		if err != nil {
			logger.Warn("Failed to read journal for /last: %v", err)
			return
		}
		reply := tgbotapi.NewMessage(msg.Chat.ID, text)
		reply.ParseMode = "MarkdownV2"
		c.bot.Send(reply) //nolint:errcheck
	}
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (c *Client) sendMarkdownV2(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if _, err := c.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// SendError sends a cycle error notification.
// Call this only on the first occurrence of a consecutive error sequence.
func (c *Client) SendError(cycleErr error) error {
	text := fmt.Sprintf("⚠️ *Strategy cycle error*\n`%s`", escapeMarkdownV2(cycleErr.Error()))
	return c.sendMarkdownV2(text)
}

// SendRecovery sends a recovery notification after consecutive failures.
func (c *Client) SendRecovery(failureCount int) error {
	text := fmt.Sprintf("✅ *Strategy recovered* after %d consecutive failure\\(s\\)", failureCount)
	return c.sendMarkdownV2(text)
}

// SendOutcome pushes executed orders and error outcomes. No-action outcomes are
// not sent.
func (c *Client) SendOutcome(o models.Outcome) error {
	if !Notable(o) {
		return nil
	}
	return c.sendMarkdownV2(formatOutcome(o))
}

// Notable reports whether an outcome is worth a push notification.
func Notable(o models.Outcome) bool {
	return o.Kind == models.OutcomeExecuted || o.Kind == models.OutcomeError
}

// formatOutcome formats a single decision into a Telegram MarkdownV2 message.
func formatOutcome(o models.Outcome) string {
	var b strings.Builder
	switch o.Kind {
	case models.OutcomeExecuted:
		b.WriteString("💱 *Order placed*\n\n")
	case models.OutcomeError:
		b.WriteString("❌ *Strategy error*\n\n")
	default:
		b.WriteString("💤 *No action*\n\n")
	}

	fmt.Fprintf(&b, "Market: `%s`\n", escapeMarkdownV2(o.Symbol))
	if !o.At.IsZero() {
		fmt.Fprintf(&b, "📅 %s\n", escapeMarkdownV2(o.At.UTC().Format("2006-01-02 15:04:05")))
	}

	if o.Intent != nil {
		emoji := "📈"
		if o.Intent.Side == models.SideSell {
			emoji = "📉"
		}
		fmt.Fprintf(&b, "%s *%s* %s @ %s\n",
			emoji,
			escapeMarkdownV2(string(o.Intent.Side)),
			escapeMarkdownV2(o.Intent.Quantity.String()),
			escapeMarkdownV2(o.Intent.Price.String()))
	}
	if o.Reason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", escapeMarkdownV2(o.Reason))
	}
	if o.Stats != nil {
		fmt.Fprintf(&b, "Average %s, volatility %s\n",
			escapeMarkdownV2(o.Stats.Average.StringFixed(6)),
			escapeMarkdownV2(o.Stats.Volatility.StringFixed(4)))
	}
	return b.String()
}

// lastReply builds the /last message from the journal.
func lastReply(journal DecisionLog) (string, error) {
	decisions, err := journal.GetRecentDecisions(lastDecisionCount)
	if err != nil {
		return "", err
	}
	var sum journalSummary
	if sum.Total, err = journal.CountDecisions(""); err != nil {
		return "", err
	}
	if sum.Executed, err = journal.CountDecisions(models.OutcomeExecuted); err != nil {
		return "", err
	}
	if sum.Errors, err = journal.CountDecisions(models.OutcomeError); err != nil {
		return "", err
	}
	return formatDecisions(decisions, sum), nil
}

// formatDecisions renders journal entries for the /last command.
func formatDecisions(decisions []models.Outcome, sum journalSummary) string {
	if len(decisions) == 0 {
		return "No decisions recorded yet"
	}
	var b strings.Builder
	b.WriteString("🗒 *Recent decisions*\n")
	fmt.Fprintf(&b, "%d journaled, %d executed, %d errors\n\n", sum.Total, sum.Executed, sum.Errors)
	for i, d := range decisions {
		line := fmt.Sprintf("%s %s", d.At.UTC().Format("01-02 15:04"), d.String())
		fmt.Fprintf(&b, "%d\\. %s\n", i+1, escapeMarkdownV2(line))
	}
	return b.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4) // pre-allocate with room for escapes
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
