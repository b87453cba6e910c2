package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"linklens/internal/models"
	"linklens/internal/storage"
)

// sendMessage sends a message, logging failures
func (b *Bot) sendMessage(msg tgbotapi.Chattable) {
	if b.api == nil {
		return // For testing
	}
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message", zap.Error(err))
	}
}

// requireAccount resolves the sender's account, prompting for /start when
// they are not registered yet
func (b *Bot) requireAccount(ctx context.Context, message *tgbotapi.Message) (*models.Account, bool) {
	account, err := b.ledger.Account(ctx, message.From.ID)
	if err == nil {
		return account, true
	}
	if errors.Is(err, storage.ErrNotFound) {
		b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "Сначала зарегистрируйся: /start"))
	} else {
		b.logger.Error("Failed to look up account", zap.Error(err), zap.Int64("user_id", message.From.ID))
		b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "Похоже у нас ошибочка. Попробуй позже."))
	}
	return nil, false
}

// displayName builds a human-readable name for the Telegram user
func displayName(user *tgbotapi.User) string {
	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if name == "" {
		name = user.UserName
	}
	return name
}

var monthsRu = [...]string{
	"января", "февраля", "марта", "апреля", "мая", "июня",
	"июля", "августа", "сентября", "октября", "ноября", "декабря",
}

// formatDate renders a date as Russian prose, e.g. "5 марта 2026"
func formatDate(t time.Time) string {
	return fmt.Sprintf("%d %s %d", t.Day(), monthsRu[t.Month()-1], t.Year())
}
