package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"linklens/internal/models"
)

// Main menu button labels
const (
	btnAnalyze     = "Анализ 🔎"
	btnBuyTokens   = "Купить токены 💸"
	btnBalance     = "Баланс 💰"
	btnSubscribe   = "Оформить подписку ✅"
	btnCheckSub    = "Проверить подписку 💰"
	btnSendCode    = "Прислать секретный код 🙈"
	btnMyCode      = "Мой секретный код"
	btnLinkedUsers = "Привязанные пользователи 👤"

	planIndividualLabel = "Персональный"
	planCorporateLabel  = "Корпоративный"
)

var planKeyboard = tgbotapi.NewReplyKeyboard(
	tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(planIndividualLabel)),
	tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(planCorporateLabel)),
)

var personKeyboard = tgbotapi.NewReplyKeyboard(
	tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(btnAnalyze),
	),
	tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(btnBuyTokens),
		tgbotapi.NewKeyboardButton(btnBalance),
	),
)

var corporateKeyboard = tgbotapi.NewReplyKeyboard(
	tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(btnAnalyze),
	),
	tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(btnSubscribe),
		tgbotapi.NewKeyboardButton(btnCheckSub),
	),
	tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(btnSendCode),
		tgbotapi.NewKeyboardButton(btnMyCode),
	),
	tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(btnLinkedUsers),
	),
)

// mainKeyboard returns the menu matching the account's plan
func mainKeyboard(plan models.Plan) tgbotapi.ReplyKeyboardMarkup {
	if plan == models.PlanCorporate {
		return corporateKeyboard
	}
	return personKeyboard
}

var tokensKeyboard = tgbotapi.NewInlineKeyboardMarkup(
	tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("10 токенов", "tokens:10"),
	),
	tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("50 токенов", "tokens:50"),
	),
	tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("100 токенов", "tokens:100"),
	),
	tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("1000 токенов", "tokens:1000"),
	),
)

var subscriptionKeyboard = tgbotapi.NewInlineKeyboardMarkup(
	tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Подписка 1 месяц", "sub:1:month"),
	),
	tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Подписка 3 месяца", "sub:3:month"),
	),
	tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Подписка 1 год", "sub:1:year"),
	),
)

var moreInfoKeyboard = tgbotapi.NewInlineKeyboardMarkup(
	tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Подробнее", "more_info"),
	),
)

// linkedUsersKeyboard builds one unlink button per linked account
func linkedUsersKeyboard(accounts []models.Account) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(accounts))
	for _, account := range accounts {
		label := account.FullName
		if label == "" {
			label = fmt.Sprintf("%d", account.ID)
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("unlink:%d", account.ID)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
