package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"linklens/internal/ledger"
)

// handleTokensCallback credits the purchased token amount.
// The callback is the at-most-once boundary for the payment event.
func (b *Bot) handleTokensCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	amount, err := strconv.ParseInt(strings.TrimPrefix(query.Data, "tokens:"), 10, 64)
	if err != nil {
		return
	}
	chatID := query.Message.Chat.ID

	if err := b.ledger.Credit(ctx, query.From.ID, amount); err != nil {
		b.logger.Error("Failed to credit tokens",
			zap.Error(err),
			zap.Int64("user_id", query.From.ID),
			zap.Int64("amount", amount),
		)
		b.sendMessage(tgbotapi.NewMessage(chatID, "Не получилось пополнить баланс. Попробуй позже."))
		return
	}
	b.sendMessage(tgbotapi.NewMessage(chatID,
		fmt.Sprintf("Баланс пополнен на %d токенов.", amount)))
}

// handleSubscriptionCallback purchases a subscription period
func (b *Bot) handleSubscriptionCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	// data is "sub:<amount>:<unit>"
	parts := strings.Split(query.Data, ":")
	if len(parts) != 3 {
		return
	}
	amount, err := strconv.Atoi(parts[1])
	if err != nil {
		return
	}
	unit := ledger.SubscriptionUnit(parts[2])
	chatID := query.Message.Chat.ID

	end, err := b.ledger.Subscribe(ctx, query.From.ID, amount, unit)
	switch {
	case err == nil:
		b.sendMessage(tgbotapi.NewMessage(chatID,
			fmt.Sprintf("Подписка оформлена до %s", formatDate(end))))
	case errors.Is(err, ledger.ErrAlreadySubscribed):
		b.sendMessage(tgbotapi.NewMessage(chatID,
			fmt.Sprintf("Подписка уже активна до %s", formatDate(end))))
	default:
		b.logger.Error("Failed to subscribe",
			zap.Error(err),
			zap.Int64("user_id", query.From.ID),
		)
		b.sendMessage(tgbotapi.NewMessage(chatID, "Не получилось оформить подписку. Попробуй позже."))
	}
}

// handleUnlinkCallback detaches a linked member from the caller's ledger
func (b *Bot) handleUnlinkCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	memberID, err := strconv.ParseInt(strings.TrimPrefix(query.Data, "unlink:"), 10, 64)
	if err != nil {
		return
	}
	chatID := query.Message.Chat.ID

	err = b.ledger.Detach(ctx, query.From.ID, memberID)
	switch {
	case err == nil:
		b.sendMessage(tgbotapi.NewMessage(chatID, "Пользователь отвязан от твоего баланса."))
	case errors.Is(err, ledger.ErrNotLinked):
		b.sendMessage(tgbotapi.NewMessage(chatID, "Этот пользователь уже не привязан к твоему балансу."))
	default:
		b.logger.Error("Failed to detach account",
			zap.Error(err),
			zap.Int64("user_id", query.From.ID),
			zap.Int64("member_id", memberID),
		)
		b.sendMessage(tgbotapi.NewMessage(chatID, "Не получилось отвязать пользователя. Попробуй позже."))
	}
}

// handleMoreInfoCallback explains how to get started
func (b *Bot) handleMoreInfoCallback(query *tgbotapi.CallbackQuery) {
	b.sendMessage(tgbotapi.NewMessage(query.Message.Chat.ID,
		"Чтобы получить токены, купи их через меню или попроси секретный код у владельца корпоративного баланса."))
}
