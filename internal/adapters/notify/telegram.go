package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/alejandrodnm/butterfly/internal/domain"
)

// Sender es la parte del BotAPI que usa Telegram. *tgbotapi.BotAPI la implementa.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram implementa ports.Notifier enviando las alertas a un chat.
type Telegram struct {
	sender     Sender
	chatID     int64
	maxRetries int
	retryWait  time.Duration
}

// NewTelegram conecta con el bot (hace una llamada getMe) y valida el chat ID.
func NewTelegram(botToken, chatID string) (*Telegram, error) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("notify.NewTelegram: invalid chat ID %q: %w", chatID, err)
	}
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("notify.NewTelegram: create bot: %w", err)
	}
	return NewTelegramSender(bot, id), nil
}

// NewTelegramSender crea el notificador sobre un Sender ya construido.
func NewTelegramSender(sender Sender, chatID int64) *Telegram {
	return &Telegram{sender: sender, chatID: chatID, maxRetries: 3, retryWait: time.Second}
}

// Notify envía la alerta con reintentos lineales.
func (t *Telegram) Notify(ctx context.Context, alert domain.Alert) error {
	msg := tgbotapi.NewMessage(t.chatID, FormatAlert(alert))
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	var lastErr error
	for i := 0; i < t.maxRetries; i++ {
		_, err := t.sender.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		if i == t.maxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("notify.Telegram: %w", ctx.Err())
		case <-time.After(t.retryWait * time.Duration(i+1)):
		}
	}
	return fmt.Errorf("notify.Telegram: send failed after %d retries: %w", t.maxRetries, lastErr)
}

// FormatAlert da formato MarkdownV2 a una alerta.
func FormatAlert(a domain.Alert) string {
	icon := "🔔"
	switch a.Kind {
	case domain.AlertTopBucketChanged:
		icon = "📊"
	case domain.AlertInfeasible:
		icon = "⚠️"
	case domain.AlertRebalance:
		icon = "🔁"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s *%s*\n", icon, escapeMarkdownV2(a.Title))
	if a.Message != "" {
		sb.WriteString(escapeMarkdownV2(a.Message))
		sb.WriteString("\n")
	}
	if !a.Time.IsZero() {
		fmt.Fprintf(&sb, "_%s_", escapeMarkdownV2(a.Time.UTC().Format("2006-01-02 15:04 UTC")))
	}
	return sb.String()
}

// escapeMarkdownV2 escapa los caracteres reservados de MarkdownV2.
func escapeMarkdownV2(text string) string {
	var sb strings.Builder
	for _, r := range text {
		switch r {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
