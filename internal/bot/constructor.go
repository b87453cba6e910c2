package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"linklens/internal/analysis"
	"linklens/internal/ledger"
)

// NewBot creates a new Telegram bot
func NewBot(token string, ledgerSvc *ledger.Service, analyzer *analysis.Orchestrator, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		logger.Error("Failed to create bot API", zap.Error(err))
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	logger.Info("Bot created", zap.String("bot_username", api.Self.UserName))

	return &Bot{
		api:      api,
		ledger:   ledgerSvc,
		analyzer: analyzer,
		states:   make(map[int64]*Session),
		logger:   logger,
	}, nil
}
