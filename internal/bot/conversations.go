package bot

import (
	"context"
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"linklens/internal/analysis"
	"linklens/internal/ledger"
	"linklens/internal/models"
	"linklens/internal/storage"
)

// handleConversation routes free text to the active conversation state
func (b *Bot) handleConversation(ctx context.Context, message *tgbotapi.Message, state State) {
	switch state {
	case StateAwaitingPlanChoice:
		b.handlePlanChoice(ctx, message)
	case StateAwaitingLinkCode:
		b.handleLinkCode(ctx, message)
	case StateAwaitingProfileURL:
		b.handleProfileURL(ctx, message)
	}
}

// handlePlanChoice finishes registration with the chosen plan. Unrecognized
// text re-prompts and keeps the state.
func (b *Bot) handlePlanChoice(ctx context.Context, message *tgbotapi.Message) {
	userID := message.From.ID

	plan, ok := models.ParsePlan(message.Text)
	if !ok {
		msg := tgbotapi.NewMessage(message.Chat.ID, "Выбери тарифный план на клавиатуре.")
		msg.ReplyMarkup = planKeyboard
		b.sendMessage(msg)
		return
	}

	created, err := b.ledger.Register(ctx, userID, message.From.UserName, displayName(message.From), plan)
	if err != nil {
		b.logger.Error("Failed to register account", zap.Error(err), zap.Int64("user_id", userID))
		b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "Похоже у нас ошибочка. Попробуй еще раз."))
		return
	}
	b.setState(userID, StateIdle)

	text := "Прекрасно, теперь можешь присылать ссылку на профиль VK"
	if !created {
		// Registered in a parallel chat turn; the existing plan stands
		account, err := b.ledger.Account(ctx, userID)
		if err == nil {
			plan = account.Plan
		}
		text = "Ты уже зарегистрирован."
	}
	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ReplyMarkup = mainKeyboard(plan)
	b.sendMessage(msg)

	if plan == models.PlanIndividual && created {
		info := tgbotapi.NewMessage(message.Chat.ID, "Каждый анализ стоит 1 токен. Купи токены, чтобы начать.")
		info.ReplyMarkup = moreInfoKeyboard
		b.sendMessage(info)
	}
}

// handleLinkCode makes exactly one attempt with whatever was sent; the state
// is cleared regardless of the outcome
func (b *Bot) handleLinkCode(ctx context.Context, message *tgbotapi.Message) {
	userID := message.From.ID
	b.setState(userID, StateIdle)

	err := b.ledger.Attach(ctx, userID, message.Text)
	switch {
	case err == nil:
		b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "Готово! Теперь у тебя общий баланс с владельцем кода."))
	case errors.Is(err, storage.ErrNotFound):
		b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "Неверный код. Проверь его у владельца баланса."))
	case errors.Is(err, ledger.ErrAlreadyLinked):
		b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "Ты уже привязан к этому балансу."))
	default:
		b.logger.Error("Failed to attach to ledger", zap.Error(err), zap.Int64("user_id", userID))
		b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "Не получилось привязаться. Попробуй позже."))
	}
}

// handleProfileURL validates the link shape and runs one analysis.
// Text that is not a recognized profile URL re-prompts and keeps the state.
func (b *Bot) handleProfileURL(ctx context.Context, message *tgbotapi.Message) {
	userID := message.From.ID

	if !analysis.ValidProfileURL(message.Text) {
		b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "Пришли ссылку на профиль VK"))
		return
	}
	b.setState(userID, StateIdle)

	b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "Обрабатываем профиль, подожди немного"))

	result, err := b.analyzer.Analyze(ctx, userID, message.Text)
	switch {
	case errors.Is(err, analysis.ErrNoBalance):
		b.sendMessage(tgbotapi.NewMessage(message.Chat.ID,
			"Недостаточно токенов. Купи токены или оформи подписку."))
		return
	case err != nil:
		b.logger.Error("Analysis failed", zap.Error(err), zap.Int64("user_id", userID))
		b.sendMessage(tgbotapi.NewMessage(message.Chat.ID,
			"Произошла ошибка при обработке ссылки. Попробуйте еще раз."))
		return
	}

	if result.InsufficientData {
		b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, result.Text))
		return
	}
	b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, "Готово!"))
	b.sendMessage(tgbotapi.NewMessage(message.Chat.ID, result.Text))
}
