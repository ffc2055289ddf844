// Package notify pushes new insights to a Telegram chat.
package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/cppla/learnsprint/models"
)

// Sender is the part of the bot API the notifier needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends one HTML message per insight to a fixed chat.
type Telegram struct {
	api    Sender
	chatID int64
	log    *zap.Logger
}

// NewTelegram authorizes the bot token against the Telegram API.
func NewTelegram(token string, chatID int64, log *zap.Logger) (*Telegram, error) {
	if token == "" || chatID == 0 {
		return nil, fmt.Errorf("telegram: bot token and chat id are required")
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	log.Info("telegram notifier authorized", zap.String("bot", api.Self.UserName))
	return NewTelegramWithSender(api, chatID, log), nil
}

// NewTelegramWithSender uses an existing bot client.
func NewTelegramWithSender(api Sender, chatID int64, log *zap.Logger) *Telegram {
	if log == nil {
		log = zap.NewNop()
	}
	return &Telegram{api: api, chatID: chatID, log: log}
}

// NotifyInsight sends the insight summary. The bot API call itself is not context aware.
func (t *Telegram) NotifyInsight(ctx context.Context, sprint models.Sprint, insight models.SprintInsight) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(t.chatID, FormatInsight(sprint, insight))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("send insight: %w", err)
	}
	return nil
}

// FormatInsight renders an insight as Telegram HTML.
func FormatInsight(sprint models.Sprint, insight models.SprintInsight) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n", html.EscapeString(sprint.Title))
	fmt.Fprintf(&b, "Suggested: <b>%s</b>\n%s\n", html.EscapeString(insight.AdjustmentType), html.EscapeString(insight.Rationale))
	if len(insight.Patterns) > 0 {
		b.WriteString("\nPatterns:\n")
		for _, p := range insight.Patterns {
			fmt.Fprintf(&b, "• %s\n", html.EscapeString(p))
		}
	}
	if len(insight.SuggestedActions) > 0 {
		b.WriteString("\nNext steps:\n")
		for i, a := range insight.SuggestedActions {
			fmt.Fprintf(&b, "%d. %s\n", i+1, html.EscapeString(a))
		}
	}
	return strings.TrimSpace(b.String())
}
