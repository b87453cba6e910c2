package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"linklens/internal/models"
	"linklens/internal/storage"
)

const uniqueViolation = "23505"

type PostgresDB struct {
	pool *pgxpool.Pool
}

// NewPostgresDB creates a new Postgres connection pool
func NewPostgresDB(ctx context.Context, connString string) (*PostgresDB, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &PostgresDB{pool: pool}, nil
}

// Initialize is a no-op - tables are managed via migrations
func (db *PostgresDB) Initialize(ctx context.Context) error {
	// Tables are managed via migrations (see migrations/ directory)
	return nil
}

// CreateAccount inserts an account and its zero-balance ledger in one
// transaction. A duplicate account is reported as created=false, not an error.
func (db *PostgresDB) CreateAccount(ctx context.Context, id int64, username, fullName string, plan models.Plan) (bool, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO accounts (id, username, full_name, plan) VALUES ($1, $2, $3, $4)`,
		id, username, fullName, string(plan))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return false, nil
		}
		return false, fmt.Errorf("failed to insert account: %w", err)
	}

	var ledgerID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO ledgers (owner_id, amount) VALUES ($1, 0) RETURNING id`,
		id).Scan(&ledgerID)
	if err != nil {
		return false, fmt.Errorf("failed to insert ledger: %w", err)
	}

	_, err = tx.Exec(ctx, `UPDATE accounts SET ledger_id = $1 WHERE id = $2`, ledgerID, id)
	if err != nil {
		return false, fmt.Errorf("failed to attach ledger: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("tx commit failed: %w", err)
	}
	return true, nil
}

// GetAccount retrieves a single account by Telegram user ID
func (db *PostgresDB) GetAccount(ctx context.Context, id int64) (*models.Account, error) {
	var account models.Account
	var plan string
	err := db.pool.QueryRow(ctx,
		`SELECT id, COALESCE(ledger_id, 0), username, full_name, plan FROM accounts WHERE id = $1`,
		id).Scan(&account.ID, &account.LedgerID, &account.Username, &account.FullName, &plan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	account.Plan = models.Plan(plan)
	return &account, nil
}

// GetLedger resolves account -> ledger in one read
func (db *PostgresDB) GetLedger(ctx context.Context, accountID int64) (*models.Ledger, error) {
	var ledger models.Ledger
	err := db.pool.QueryRow(ctx,
		`SELECT l.id, l.owner_id, l.amount, COALESCE(l.link_code, ''), l.subscription_end
		 FROM ledgers l JOIN accounts a ON a.ledger_id = l.id
		 WHERE a.id = $1`,
		accountID).Scan(&ledger.ID, &ledger.OwnerID, &ledger.Amount, &ledger.LinkCode, &ledger.SubscriptionEnd)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get ledger: %w", err)
	}
	return &ledger, nil
}

// GetLedgerByCode looks a ledger up by its link code
func (db *PostgresDB) GetLedgerByCode(ctx context.Context, code string) (*models.Ledger, error) {
	var ledger models.Ledger
	err := db.pool.QueryRow(ctx,
		`SELECT id, owner_id, amount, COALESCE(link_code, ''), subscription_end
		 FROM ledgers WHERE link_code = $1`,
		code).Scan(&ledger.ID, &ledger.OwnerID, &ledger.Amount, &ledger.LinkCode, &ledger.SubscriptionEnd)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get ledger by code: %w", err)
	}
	return &ledger, nil
}

// ListAccountsOnLedger returns every account drawing from the ledger
func (db *PostgresDB) ListAccountsOnLedger(ctx context.Context, ledgerID int64) ([]models.Account, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, COALESCE(ledger_id, 0), username, full_name, plan
		 FROM accounts WHERE ledger_id = $1 ORDER BY id`,
		ledgerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		var account models.Account
		var plan string
		if err := rows.Scan(&account.ID, &account.LedgerID, &account.Username, &account.FullName, &plan); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		account.Plan = models.Plan(plan)
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// RepointLedger changes which ledger an account draws from
func (db *PostgresDB) RepointLedger(ctx context.Context, accountID, ledgerID int64) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE accounts SET ledger_id = $1 WHERE id = $2`, ledgerID, accountID)
	if err != nil {
		return fmt.Errorf("failed to repoint ledger: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DetachToPersonalLedger creates a fresh personal ledger for the account and
// repoints the account to it, in one transaction
func (db *PostgresDB) DetachToPersonalLedger(ctx context.Context, accountID int64) (int64, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	var ledgerID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO ledgers (owner_id, amount) VALUES ($1, 0) RETURNING id`,
		accountID).Scan(&ledgerID)
	if err != nil {
		return 0, fmt.Errorf("failed to create personal ledger: %w", err)
	}

	tag, err := tx.Exec(ctx, `UPDATE accounts SET ledger_id = $1 WHERE id = $2`, ledgerID, accountID)
	if err != nil {
		return 0, fmt.Errorf("failed to repoint account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return 0, storage.ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("tx commit failed: %w", err)
	}
	return ledgerID, nil
}

// Credit adds tokens to the account's ledger
func (db *PostgresDB) Credit(ctx context.Context, accountID int64, amount int64) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE ledgers SET amount = amount + $1
		 WHERE id = (SELECT ledger_id FROM accounts WHERE id = $2)`,
		amount, accountID)
	if err != nil {
		return fmt.Errorf("failed to credit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Debit removes exactly one token. The decrement is conditional on a positive
// balance inside a single statement, so two concurrent debits can never drive
// the balance negative.
func (db *PostgresDB) Debit(ctx context.Context, accountID int64) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE ledgers SET amount = amount - 1
		 WHERE id = (SELECT ledger_id FROM accounts WHERE id = $1) AND amount > 0`,
		accountID)
	if err != nil {
		return fmt.Errorf("failed to debit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// No row updated: either the account is unknown or the balance is zero
		if _, err := db.GetAccount(ctx, accountID); err != nil {
			return err
		}
		return storage.ErrInsufficientFunds
	}
	return nil
}

// SetLinkCode sets the ledger's link code if it has none yet. The partial
// unique index on link_code is authoritative for collisions.
func (db *PostgresDB) SetLinkCode(ctx context.Context, ledgerID int64, code string) (bool, error) {
	tag, err := db.pool.Exec(ctx,
		`UPDATE ledgers SET link_code = $1 WHERE id = $2 AND link_code IS NULL`,
		code, ledgerID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return false, storage.ErrCodeTaken
		}
		return false, fmt.Errorf("failed to set link code: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// SetSubscriptionEnd overwrites the subscription expiry on the account's ledger
func (db *PostgresDB) SetSubscriptionEnd(ctx context.Context, accountID int64, end time.Time) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE ledgers SET subscription_end = $1
		 WHERE id = (SELECT ledger_id FROM accounts WHERE id = $2)`,
		end, accountID)
	if err != nil {
		return fmt.Errorf("failed to set subscription end: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Close closes the connection pool
func (db *PostgresDB) Close() error {
	if db.pool != nil {
		db.pool.Close()
	}
	return nil
}
