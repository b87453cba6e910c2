package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"linklens/internal/models"
	"linklens/internal/storage"
)

var (
	// ErrInvalidAmount is returned for non-positive credit amounts
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrAlreadySubscribed is returned when a purchase is attempted while
	// an unexpired subscription exists
	ErrAlreadySubscribed = errors.New("subscription still active")

	// ErrAlreadyLinked is returned when the code resolves to the ledger
	// the account already draws from
	ErrAlreadyLinked = errors.New("already on this ledger")

	// ErrNotLinked is returned by Detach when the target account does not
	// draw from the caller's ledger
	ErrNotLinked = errors.New("account is not linked to this ledger")

	// ErrCodeExhausted is returned when link-code generation keeps
	// colliding with existing codes
	ErrCodeExhausted = errors.New("could not generate a unique link code")
)

// SubscriptionUnit is the granularity of a subscription purchase
type SubscriptionUnit string

const (
	UnitMonth SubscriptionUnit = "month"
	UnitYear  SubscriptionUnit = "year"
)

// codeAttempts bounds retries when a generated link code collides
const codeAttempts = 5

// Service implements the business operations over the account store.
// All balance mutations go through here; handlers never touch the store.
type Service struct {
	store  storage.Storage
	logger *zap.Logger
}

// NewService creates a ledger service
func NewService(store storage.Storage, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Register creates an account with its own zero-balance ledger. A repeated
// registration is reported as created=false and changes nothing.
func (s *Service) Register(ctx context.Context, id int64, username, fullName string, plan models.Plan) (bool, error) {
	created, err := s.store.CreateAccount(ctx, id, username, fullName, plan)
	if err != nil {
		return false, fmt.Errorf("register: %w", err)
	}
	if created {
		s.logger.Info("Account registered",
			zap.Int64("account_id", id),
			zap.String("plan", string(plan)),
		)
	}
	return created, nil
}

// Account returns the registration record for the identity
func (s *Service) Account(ctx context.Context, id int64) (*models.Account, error) {
	return s.store.GetAccount(ctx, id)
}

// Balance returns the ledger the identity draws from
func (s *Service) Balance(ctx context.Context, id int64) (*models.Ledger, error) {
	return s.store.GetLedger(ctx, id)
}

// Credit adds tokens to the identity's ledger. At-most-once per payment
// event is the caller's responsibility.
func (s *Service) Credit(ctx context.Context, id int64, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if err := s.store.Credit(ctx, id, amount); err != nil {
		return fmt.Errorf("credit: %w", err)
	}
	s.logger.Info("Balance credited", zap.Int64("account_id", id), zap.Int64("amount", amount))
	return nil
}

// Debit removes exactly one token; storage.ErrInsufficientFunds when the
// balance is zero. The decrement is atomic, there is no separate pre-check.
func (s *Service) Debit(ctx context.Context, id int64) error {
	return s.store.Debit(ctx, id)
}

// IssueLinkCode returns the ledger's 4-digit link code, generating one on
// first call. Issuance is first-call-wins: a present code is never replaced.
// Collisions with other ledgers' codes are retried with a fresh draw; the
// store's uniqueness guarantee is authoritative.
func (s *Service) IssueLinkCode(ctx context.Context, id int64) (string, error) {
	ledger, err := s.store.GetLedger(ctx, id)
	if err != nil {
		return "", err
	}
	if ledger.LinkCode != "" {
		return ledger.LinkCode, nil
	}

	for attempt := 0; attempt < codeAttempts; attempt++ {
		code := fmt.Sprintf("%04d", rand.IntN(10000))
		set, err := s.store.SetLinkCode(ctx, ledger.ID, code)
		if errors.Is(err, storage.ErrCodeTaken) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("issue link code: %w", err)
		}
		if !set {
			// A concurrent call won the compare-and-set; return its code
			current, err := s.store.GetLedger(ctx, id)
			if err != nil {
				return "", err
			}
			return current.LinkCode, nil
		}
		return code, nil
	}
	return "", ErrCodeExhausted
}

// ResolveLinkCode finds the ledger a code belongs to.
// storage.ErrNotFound means a wrong code; any other error is a storage fault.
func (s *Service) ResolveLinkCode(ctx context.Context, code string) (*models.Ledger, error) {
	return s.store.GetLedgerByCode(ctx, code)
}

// Attach repoints the identity to the ledger the code belongs to, joining
// its shared balance
func (s *Service) Attach(ctx context.Context, id int64, code string) error {
	target, err := s.store.GetLedgerByCode(ctx, code)
	if err != nil {
		return err
	}
	current, err := s.store.GetLedger(ctx, id)
	if err != nil {
		return err
	}
	if current.ID == target.ID {
		return ErrAlreadyLinked
	}
	if err := s.store.RepointLedger(ctx, id, target.ID); err != nil {
		return fmt.Errorf("attach: %w", err)
	}
	s.logger.Info("Account linked to shared ledger",
		zap.Int64("account_id", id),
		zap.Int64("ledger_id", target.ID),
	)
	return nil
}

// LinkedAccounts lists the other accounts drawing from the identity's ledger
func (s *Service) LinkedAccounts(ctx context.Context, id int64) ([]models.Account, error) {
	ledger, err := s.store.GetLedger(ctx, id)
	if err != nil {
		return nil, err
	}
	accounts, err := s.store.ListAccountsOnLedger(ctx, ledger.ID)
	if err != nil {
		return nil, err
	}
	linked := accounts[:0]
	for _, account := range accounts {
		if account.ID != id {
			linked = append(linked, account)
		}
	}
	return linked, nil
}

// Detach removes a linked member from the owner's shared ledger. The member
// account is repointed to a fresh personal zero-balance ledger, never left
// without one.
func (s *Service) Detach(ctx context.Context, ownerID, memberID int64) error {
	if ownerID == memberID {
		return ErrNotLinked
	}
	ownerLedger, err := s.store.GetLedger(ctx, ownerID)
	if err != nil {
		return err
	}
	member, err := s.store.GetAccount(ctx, memberID)
	if err != nil {
		return err
	}
	if member.LedgerID != ownerLedger.ID {
		return ErrNotLinked
	}
	newLedgerID, err := s.store.DetachToPersonalLedger(ctx, memberID)
	if err != nil {
		return fmt.Errorf("detach: %w", err)
	}
	s.logger.Info("Account detached to personal ledger",
		zap.Int64("account_id", memberID),
		zap.Int64("ledger_id", newLedgerID),
	)
	return nil
}

// Subscribe sets the subscription expiry to today plus the purchased period.
// A purchase while an unexpired subscription exists is refused; expiry is
// recomputed from today, never stacked.
func (s *Service) Subscribe(ctx context.Context, id int64, amount int, unit SubscriptionUnit) (time.Time, error) {
	ledger, err := s.store.GetLedger(ctx, id)
	if err != nil {
		return time.Time{}, err
	}
	now := time.Now()
	if ledger.Subscribed(now) {
		return *ledger.SubscriptionEnd, ErrAlreadySubscribed
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	var end time.Time
	switch unit {
	case UnitMonth:
		end = today.AddDate(0, amount, 0)
	case UnitYear:
		end = today.AddDate(amount, 0, 0)
	default:
		return time.Time{}, fmt.Errorf("unknown subscription unit %q", unit)
	}

	if err := s.store.SetSubscriptionEnd(ctx, id, end); err != nil {
		return time.Time{}, fmt.Errorf("subscribe: %w", err)
	}
	s.logger.Info("Subscription extended",
		zap.Int64("account_id", id),
		zap.Time("subscription_end", end),
	)
	return end, nil
}
