package stubs

import (
	"context"
	"sort"
	"sync"
	"time"

	"linklens/internal/models"
	"linklens/internal/storage"
)

// MockDB is an in-memory implementation of the Storage interface for testing.
// It mirrors the transactional semantics of the Postgres implementation:
// conditional debit, compare-and-set link codes, unique code enforcement.
type MockDB struct {
	mu       sync.Mutex
	accounts map[int64]*models.Account
	ledgers  map[int64]*models.Ledger
	nextID   int64
}

// NewMockDB creates a new mock database
func NewMockDB() *MockDB {
	return &MockDB{
		accounts: make(map[int64]*models.Account),
		ledgers:  make(map[int64]*models.Ledger),
		nextID:   1,
	}
}

// Initialize does nothing for mock DB
func (m *MockDB) Initialize(ctx context.Context) error {
	return nil
}

// CreateAccount inserts an account with a fresh zero-balance ledger
func (m *MockDB) CreateAccount(ctx context.Context, id int64, username, fullName string, plan models.Plan) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.accounts[id]; exists {
		return false, nil
	}

	ledger := &models.Ledger{ID: m.nextID, OwnerID: id}
	m.nextID++
	m.ledgers[ledger.ID] = ledger
	m.accounts[id] = &models.Account{
		ID:       id,
		LedgerID: ledger.ID,
		Username: username,
		FullName: fullName,
		Plan:     plan,
	}
	return true, nil
}

// GetAccount returns the account or ErrNotFound
func (m *MockDB) GetAccount(ctx context.Context, id int64) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *account
	return &copied, nil
}

// GetLedger resolves account -> ledger
func (m *MockDB) GetLedger(ctx context.Context, accountID int64) (*models.Ledger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledgerOf(accountID)
}

func (m *MockDB) ledgerOf(accountID int64) (*models.Ledger, error) {
	account, ok := m.accounts[accountID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	ledger, ok := m.ledgers[account.LedgerID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *ledger
	return &copied, nil
}

// GetLedgerByCode looks a ledger up by its link code
func (m *MockDB) GetLedgerByCode(ctx context.Context, code string) (*models.Ledger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if code == "" {
		return nil, storage.ErrNotFound
	}
	for _, ledger := range m.ledgers {
		if ledger.LinkCode == code {
			copied := *ledger
			return &copied, nil
		}
	}
	return nil, storage.ErrNotFound
}

// ListAccountsOnLedger returns accounts drawing from the ledger, sorted by ID
func (m *MockDB) ListAccountsOnLedger(ctx context.Context, ledgerID int64) ([]models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var accounts []models.Account
	for _, account := range m.accounts {
		if account.LedgerID == ledgerID {
			accounts = append(accounts, *account)
		}
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].ID < accounts[j].ID
	})
	return accounts, nil
}

// RepointLedger changes which ledger an account draws from
func (m *MockDB) RepointLedger(ctx context.Context, accountID, ledgerID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[accountID]
	if !ok {
		return storage.ErrNotFound
	}
	if _, ok := m.ledgers[ledgerID]; !ok {
		return storage.ErrNotFound
	}
	account.LedgerID = ledgerID
	return nil
}

// DetachToPersonalLedger creates a fresh personal ledger and repoints the account
func (m *MockDB) DetachToPersonalLedger(ctx context.Context, accountID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[accountID]
	if !ok {
		return 0, storage.ErrNotFound
	}
	ledger := &models.Ledger{ID: m.nextID, OwnerID: accountID}
	m.nextID++
	m.ledgers[ledger.ID] = ledger
	account.LedgerID = ledger.ID
	return ledger.ID, nil
}

// Credit adds tokens to the account's ledger
func (m *MockDB) Credit(ctx context.Context, accountID int64, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[accountID]
	if !ok {
		return storage.ErrNotFound
	}
	m.ledgers[account.LedgerID].Amount += amount
	return nil
}

// Debit removes one token only if the balance is positive
func (m *MockDB) Debit(ctx context.Context, accountID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[accountID]
	if !ok {
		return storage.ErrNotFound
	}
	ledger := m.ledgers[account.LedgerID]
	if ledger.Amount <= 0 {
		return storage.ErrInsufficientFunds
	}
	ledger.Amount--
	return nil
}

// SetLinkCode sets the code if the ledger has none yet
func (m *MockDB) SetLinkCode(ctx context.Context, ledgerID int64, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ledger, ok := m.ledgers[ledgerID]
	if !ok {
		return false, storage.ErrNotFound
	}
	for _, other := range m.ledgers {
		if other.ID != ledgerID && other.LinkCode == code {
			return false, storage.ErrCodeTaken
		}
	}
	if ledger.LinkCode != "" {
		return false, nil
	}
	ledger.LinkCode = code
	return true, nil
}

// SetSubscriptionEnd overwrites the subscription expiry
func (m *MockDB) SetSubscriptionEnd(ctx context.Context, accountID int64, end time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[accountID]
	if !ok {
		return storage.ErrNotFound
	}
	m.ledgers[account.LedgerID].SubscriptionEnd = &end
	return nil
}

// Close does nothing for mock DB
func (m *MockDB) Close() error {
	return nil
}
