package storage

import (
	"context"
	"errors"
	"time"

	"linklens/internal/models"
)

var (
	// ErrNotFound means the requested account or ledger does not exist.
	// A failed lookup is distinct from a storage fault: callers get
	// ErrNotFound for a miss and the underlying error for everything else.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientFunds is returned by Debit when the balance is zero
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrCodeTaken is returned by SetLinkCode when the code already
	// belongs to another ledger
	ErrCodeTaken = errors.New("link code already taken")
)

// Storage defines the interface for account and ledger persistence
type Storage interface {
	// CreateAccount inserts an account together with a fresh zero-balance
	// ledger it owns, as one atomic unit. Returns false without error when
	// the account already exists; the existing ledger is left untouched.
	CreateAccount(ctx context.Context, id int64, username, fullName string, plan models.Plan) (bool, error)

	// GetAccount returns the account or ErrNotFound
	GetAccount(ctx context.Context, id int64) (*models.Account, error)

	// GetLedger resolves account -> ledger in one read; ErrNotFound when
	// the account does not exist
	GetLedger(ctx context.Context, accountID int64) (*models.Ledger, error)

	// GetLedgerByCode looks a ledger up by its link code; ErrNotFound on a miss
	GetLedgerByCode(ctx context.Context, code string) (*models.Ledger, error)

	// ListAccountsOnLedger returns every account drawing from the ledger
	ListAccountsOnLedger(ctx context.Context, ledgerID int64) ([]models.Account, error)

	// RepointLedger changes which ledger an account draws from
	RepointLedger(ctx context.Context, accountID, ledgerID int64) error

	// DetachToPersonalLedger creates a fresh zero-balance ledger owned by
	// the account and repoints the account to it, in one transaction.
	// Returns the new ledger ID.
	DetachToPersonalLedger(ctx context.Context, accountID int64) (int64, error)

	// Credit adds amount tokens to the account's ledger
	Credit(ctx context.Context, accountID int64, amount int64) error

	// Debit removes exactly one token, atomically and only if the balance
	// is positive; ErrInsufficientFunds otherwise. The balance can never
	// go negative.
	Debit(ctx context.Context, accountID int64) error

	// SetLinkCode sets the ledger's link code if it has none yet
	// (compare-and-set). Returns false when a code was already present.
	// ErrCodeTaken when another ledger holds this code.
	SetLinkCode(ctx context.Context, ledgerID int64, code string) (bool, error)

	// SetSubscriptionEnd overwrites the subscription expiry on the
	// account's ledger
	SetSubscriptionEnd(ctx context.Context, accountID int64, end time.Time) error

	// Lifecycle
	Initialize(ctx context.Context) error
	Close() error
}
