package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"linklens/internal/ledger"
	"linklens/internal/parser"
	"linklens/internal/storage"
)

// InsufficientDataMarker is the phrase the model returns when it found too
// little personal data. An analysis carrying it is never billed.
const InsufficientDataMarker = "Недостаточно данных о пользователе"

var (
	// ErrInvalidURL means the submitted text is not an acceptable profile link
	ErrInvalidURL = errors.New("invalid profile url")

	// ErrNoBalance means the account has no tokens and no active subscription
	ErrNoBalance = errors.New("no tokens and no active subscription")
)

// Scraper fetches structured profile data for a URL
type Scraper interface {
	Scrape(ctx context.Context, profileURL string) (*parser.Profile, error)
}

// Analyzer turns scraped profile data into a prose summary
type Analyzer interface {
	Analyze(ctx context.Context, profile *parser.Profile) (string, error)
}

// Result is the outcome of one analysis request
type Result struct {
	Text             string
	Charged          bool // exactly one token was debited
	InsufficientData bool // the model returned the no-data marker; not billed
}

// Orchestrator coordinates a single profile analysis: URL validation,
// eligibility, scrape, inference and the debit-on-success policy.
type Orchestrator struct {
	ledger   *ledger.Service
	scraper  Scraper
	analyzer Analyzer
	logger   *zap.Logger
}

// NewOrchestrator creates an analysis orchestrator
func NewOrchestrator(ledgerSvc *ledger.Service, scraper Scraper, analyzer Analyzer, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		ledger:   ledgerSvc,
		scraper:  scraper,
		analyzer: analyzer,
		logger:   logger,
	}
}

// Analyze runs one analysis for the account. At most one token is debited,
// and only for a successful non-sentinel result funded by balance; a
// subscription-funded analysis is not metered. Every error path and the
// insufficient-data path leave the balance untouched.
func (o *Orchestrator) Analyze(ctx context.Context, accountID int64, rawURL string) (*Result, error) {
	if !ValidProfileURL(rawURL) {
		return nil, ErrInvalidURL
	}

	balance, err := o.ledger.Balance(ctx, accountID)
	if err != nil {
		return nil, err
	}
	subscribed := balance.Subscribed(time.Now())
	if !subscribed && balance.Amount <= 0 {
		return nil, ErrNoBalance
	}

	profile, err := o.scraper.Scrape(ctx, rawURL)
	if err != nil {
		o.logger.Error("Profile scrape failed",
			zap.Error(err),
			zap.Int64("account_id", accountID),
		)
		return nil, fmt.Errorf("scrape: %w", err)
	}

	text, err := o.analyzer.Analyze(ctx, profile)
	if err != nil {
		o.logger.Error("Profile inference failed",
			zap.Error(err),
			zap.Int64("account_id", accountID),
		)
		return nil, fmt.Errorf("inference: %w", err)
	}

	if strings.Contains(text, InsufficientDataMarker) {
		return &Result{Text: text, InsufficientData: true}, nil
	}

	if subscribed {
		return &Result{Text: text}, nil
	}

	if err := o.ledger.Debit(ctx, accountID); err != nil {
		if errors.Is(err, storage.ErrInsufficientFunds) {
			// A concurrent analysis drained the balance between the
			// eligibility check and the debit
			return nil, ErrNoBalance
		}
		return nil, fmt.Errorf("debit: %w", err)
	}

	return &Result{Text: text, Charged: true}, nil
}
