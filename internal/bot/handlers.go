package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// handleMessage processes a single message
func (b *Bot) handleMessage(message *tgbotapi.Message) {
	// Recover from panics to prevent bot crashes
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in handleMessage", zap.Any("panic", r))
			msg := tgbotapi.NewMessage(message.Chat.ID, "Произошла ошибка при обработке сообщения. Попробуйте еще раз.")
			b.sendMessage(msg)
		}
	}()

	userID := message.From.ID
	ctx := context.Background()

	if message.IsCommand() {
		// Any command interrupts an ongoing conversation
		b.clearState(userID)

		switch message.Command() {
		case "start":
			b.handleStart(ctx, message)
		case "cancel":
			b.handleCancel(message)
		case "analyze":
			b.handleAnalyzeStart(ctx, message)
		case "balance":
			b.handleBalance(ctx, message)
		default:
			msg := tgbotapi.NewMessage(message.Chat.ID, "Неизвестная команда. Используй /start")
			b.sendMessage(msg)
		}
		return
	}

	// Non-command text: an active conversation claims it first
	if state := b.sessionState(userID); state != StateIdle {
		b.handleConversation(ctx, message, state)
		return
	}

	// Idle: interpret the text as a main menu button
	switch message.Text {
	case btnAnalyze:
		b.handleAnalyzeStart(ctx, message)
	case btnBuyTokens:
		b.handleBuyTokens(ctx, message)
	case btnBalance:
		b.handleBalance(ctx, message)
	case btnSubscribe:
		b.handleSubscribeStart(ctx, message)
	case btnCheckSub:
		b.handleCheckSubscription(ctx, message)
	case btnSendCode:
		b.handleSendCodeStart(ctx, message)
	case btnMyCode:
		b.handleMyCode(ctx, message)
	case btnLinkedUsers:
		b.handleLinkedUsers(ctx, message)
	default:
		msg := tgbotapi.NewMessage(message.Chat.ID, "Не понимаю. Выбери действие на клавиатуре или используй /start")
		b.sendMessage(msg)
	}
}

// handleCallbackQuery processes inline keyboard button clicks
func (b *Bot) handleCallbackQuery(query *tgbotapi.CallbackQuery) {
	// Recover from panics
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in handleCallbackQuery", zap.Any("panic", r))
		}
	}()

	ctx := context.Background()

	// Answer the callback query to remove loading state
	callback := tgbotapi.NewCallback(query.ID, "")
	if b.api != nil {
		b.api.Request(callback)
	}

	data := query.Data
	switch {
	case strings.HasPrefix(data, "tokens:"):
		b.handleTokensCallback(ctx, query)
	case strings.HasPrefix(data, "sub:"):
		b.handleSubscriptionCallback(ctx, query)
	case strings.HasPrefix(data, "unlink:"):
		b.handleUnlinkCallback(ctx, query)
	case data == "more_info":
		b.handleMoreInfoCallback(query)
	}
}
