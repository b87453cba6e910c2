package bot

import (
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"linklens/internal/analysis"
	"linklens/internal/ledger"
)

// State tags what free-text input a chat currently accepts
type State int

const (
	StateIdle State = iota
	StateAwaitingPlanChoice
	StateAwaitingLinkCode
	StateAwaitingProfileURL
)

// Session is the per-chat conversation state. It is ephemeral: lost on
// restart, which only affects how the next free-text message is read.
type Session struct {
	State State
}

// Bot represents the Telegram bot wrapper
type Bot struct {
	api      *tgbotapi.BotAPI
	ledger   *ledger.Service
	analyzer *analysis.Orchestrator
	states   map[int64]*Session
	statesMu sync.Mutex
	logger   *zap.Logger
}

// sessionState returns the chat's current state, Idle when none exists
func (b *Bot) sessionState(userID int64) State {
	b.statesMu.Lock()
	defer b.statesMu.Unlock()

	if session, ok := b.states[userID]; ok {
		return session.State
	}
	return StateIdle
}

// setState moves the chat into the given state
func (b *Bot) setState(userID int64, state State) {
	b.statesMu.Lock()
	defer b.statesMu.Unlock()

	if state == StateIdle {
		delete(b.states, userID)
		return
	}
	b.states[userID] = &Session{State: state}
}

// clearState returns the chat to Idle; reports whether anything was cleared
func (b *Bot) clearState(userID int64) bool {
	b.statesMu.Lock()
	defer b.statesMu.Unlock()

	_, ok := b.states[userID]
	delete(b.states, userID)
	return ok
}
