package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"linklens/internal/storage"
)

// handleStart greets the user. A new user is asked to choose a plan; an
// existing one just gets their menu back (the plan is never rewritten).
func (b *Bot) handleStart(ctx context.Context, message *tgbotapi.Message) {
	userID := message.From.ID

	account, err := b.ledger.Account(ctx, userID)
	switch {
	case err == nil:
		msg := tgbotapi.NewMessage(message.Chat.ID, "Ты уже зарегистрирован. Выбери действие на клавиатуре.")
		msg.ReplyMarkup = mainKeyboard(account.Plan)
		b.sendMessage(msg)
		return
	case errors.Is(err, storage.ErrNotFound):
		// first contact, continue to registration
	default:
		b.logger.Error("Failed to look up account", zap.Error(err), zap.Int64("user_id", userID))
		b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "Похоже у нас ошибочка. Попробуй позже."))
		return
	}

	b.setState(userID, StateAwaitingPlanChoice)

	text := fmt.Sprintf(`Привет, %s!
LinkLens — это помощник для HR по созданию профиля человека на основе его поведения в соцсетях, построенный на базе технологии искусственного интеллекта.
Для начала выбери тарифный план.`, displayName(message.From))
	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ReplyMarkup = planKeyboard
	b.sendMessage(msg)
}

// handleCancel returns the chat to the idle state
func (b *Bot) handleCancel(message *tgbotapi.Message) {
	// clearState already ran in the command dispatch; just confirm
	b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "Отменено."))
}

// handleAnalyzeStart initiates the profile analysis conversation
func (b *Bot) handleAnalyzeStart(ctx context.Context, message *tgbotapi.Message) {
	if _, ok := b.requireAccount(ctx, message); !ok {
		return
	}
	b.setState(message.From.ID, StateAwaitingProfileURL)
	b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "Пришли ссылку на профиль VK"))
}

// handleBalance shows the current token balance
func (b *Bot) handleBalance(ctx context.Context, message *tgbotapi.Message) {
	if _, ok := b.requireAccount(ctx, message); !ok {
		return
	}
	balance, err := b.ledger.Balance(ctx, message.From.ID)
	if err != nil {
		b.logger.Error("Failed to get balance", zap.Error(err), zap.Int64("user_id", message.From.ID))
		b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "Не получилось узнать баланс. Попробуй позже."))
		return
	}
	b.sendMessage(tgbotapi.NewMessage(message.Chat.ID,
		fmt.Sprintf("Твой баланс: %d токенов", balance.Amount)))
}

// handleBuyTokens shows the token purchase options
func (b *Bot) handleBuyTokens(ctx context.Context, message *tgbotapi.Message) {
	if _, ok := b.requireAccount(ctx, message); !ok {
		return
	}
	msg := tgbotapi.NewMessage(message.Chat.ID, "Сколько токенов купить?")
	msg.ReplyMarkup = tokensKeyboard
	b.sendMessage(msg)
}

// handleSubscribeStart shows subscription options, refusing while an
// unexpired subscription exists
func (b *Bot) handleSubscribeStart(ctx context.Context, message *tgbotapi.Message) {
	if _, ok := b.requireAccount(ctx, message); !ok {
		return
	}
	balance, err := b.ledger.Balance(ctx, message.From.ID)
	if err != nil {
		b.logger.Error("Failed to get balance", zap.Error(err), zap.Int64("user_id", message.From.ID))
		b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "Похоже у нас ошибочка. Попробуй позже."))
		return
	}
	if balance.Subscribed(time.Now()) {
		b.sendMessage(tgbotapi.NewMessage(message.Chat.ID,
			fmt.Sprintf("Подписка уже активна до %s", formatDate(*balance.SubscriptionEnd))))
		return
	}
	msg := tgbotapi.NewMessage(message.Chat.ID, "Выбери срок подписки:")
	msg.ReplyMarkup = subscriptionKeyboard
	b.sendMessage(msg)
}

// handleCheckSubscription reports the subscription expiry date
func (b *Bot) handleCheckSubscription(ctx context.Context, message *tgbotapi.Message) {
	if _, ok := b.requireAccount(ctx, message); !ok {
		return
	}
	balance, err := b.ledger.Balance(ctx, message.From.ID)
	if err != nil {
		b.logger.Error("Failed to get balance", zap.Error(err), zap.Int64("user_id", message.From.ID))
		b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "Похоже у нас ошибочка. Попробуй позже."))
		return
	}
	if balance.Subscribed(time.Now()) {
		b.sendMessage(tgbotapi.NewMessage(message.Chat.ID,
			fmt.Sprintf("Подписка активна до %s", formatDate(*balance.SubscriptionEnd))))
	} else {
		b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "Активной подписки нет."))
	}
}

// handleSendCodeStart initiates the link-code conversation
func (b *Bot) handleSendCodeStart(ctx context.Context, message *tgbotapi.Message) {
	if _, ok := b.requireAccount(ctx, message); !ok {
		return
	}
	b.setState(message.From.ID, StateAwaitingLinkCode)
	b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "Пришли секретный код владельца баланса"))
}

// handleMyCode issues (or recalls) the ledger's link code
func (b *Bot) handleMyCode(ctx context.Context, message *tgbotapi.Message) {
	if _, ok := b.requireAccount(ctx, message); !ok {
		return
	}
	code, err := b.ledger.IssueLinkCode(ctx, message.From.ID)
	if err != nil {
		b.logger.Error("Failed to issue link code", zap.Error(err), zap.Int64("user_id", message.From.ID))
		b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "Не получилось выдать код. Попробуй позже."))
		return
	}
	b.sendMessage(tgbotapi.NewMessage(message.Chat.ID,
		fmt.Sprintf("Твой секретный код: %s\nОтправь его сотруднику, чтобы привязать его к общему балансу.", code)))
}

// handleLinkedUsers lists the accounts sharing the caller's ledger with
// per-user unlink buttons
func (b *Bot) handleLinkedUsers(ctx context.Context, message *tgbotapi.Message) {
	if _, ok := b.requireAccount(ctx, message); !ok {
		return
	}
	linked, err := b.ledger.LinkedAccounts(ctx, message.From.ID)
	if err != nil {
		b.logger.Error("Failed to list linked accounts", zap.Error(err), zap.Int64("user_id", message.From.ID))
		b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "Похоже у нас ошибочка. Попробуй позже."))
		return
	}
	if len(linked) == 0 {
		b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "К твоему балансу пока никто не привязан."))
		return
	}

	var text strings.Builder
	text.WriteString("Привязанные пользователи:\n\n")
	for i, account := range linked {
		name := account.FullName
		if name == "" {
			name = fmt.Sprintf("%d", account.ID)
		}
		text.WriteString(fmt.Sprintf("%d. %s\n", i+1, name))
	}
	text.WriteString("\nНажми на пользователя, чтобы отвязать его.")

	msg := tgbotapi.NewMessage(message.Chat.ID, text.String())
	msg.ReplyMarkup = linkedUsersKeyboard(linked)
	b.sendMessage(msg)
}
