package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
	pgNumericOutOfRange    = "22003"
)

const (
	accountColumns     = `account_number, user_id::text, balance::text, created_at`
	transactionColumns = `id, account_number, kind, amount::text, COALESCE(counterparty_account_number, ''), created_at`
)

// PostgresStore persists accounts and their ledger in PostgreSQL.
type PostgresStore struct {
	db          *pgxpool.Pool
	lockTimeout time.Duration
}

// NewPostgresStore constructs a Postgres-backed store. A positive lockTimeout
// bounds how long a mutation waits for a row lock before failing with ErrConflict.
func NewPostgresStore(db *pgxpool.Pool, lockTimeout time.Duration) *PostgresStore {
	return &PostgresStore{db: db, lockTimeout: lockTimeout}
}

// CreateAccount inserts a new account row.
func (s *PostgresStore) CreateAccount(ctx context.Context, account Account) error {
	ownerID, err := uuid.Parse(account.OwnerID)
	if err != nil {
		return fmt.Errorf("parse owner id: %w", err)
	}
	_, err = s.db.Exec(ctx, `INSERT INTO accounts (account_number, user_id, balance, created_at)
        VALUES ($1, $2, $3::numeric, $4)`, account.Number, ownerID, account.Balance.String(), account.CreatedAt.UTC())
	if pgCode(err) == pgUniqueViolation {
		return ErrDuplicateAccount
	}
	return classify(err)
}

// GetAccount returns the committed state of an account.
func (s *PostgresStore) GetAccount(ctx context.Context, number string) (Account, error) {
	row := s.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE account_number = $1`, number)
	acc, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrAccountNotFound
	}
	if err != nil {
		return Account{}, classify(err)
	}
	return acc, nil
}

// ListAccounts returns the accounts owned by ownerID, oldest first.
func (s *PostgresStore) ListAccounts(ctx context.Context, ownerID string) ([]Account, error) {
	owner, err := uuid.Parse(ownerID)
	if err != nil {
		return []Account{}, nil
	}
	rows, err := s.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts
        WHERE user_id = $1 ORDER BY created_at, account_number`, owner)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	accounts := []Account{}
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}
	return accounts, classify(rows.Err())
}

// ListTransactions returns the ledger entries of an account ordered by id.
func (s *PostgresStore) ListTransactions(ctx context.Context, number string) ([]Transaction, error) {
	rows, err := s.db.Query(ctx, `SELECT `+transactionColumns+` FROM transactions
        WHERE account_number = $1 ORDER BY id`, number)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	entries := []Transaction{}
	for rows.Next() {
		entry, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, classify(rows.Err())
}

// WithinTx runs fn inside a READ COMMITTED transaction. Row locks taken through
// the Tx serialize concurrent mutations of the same account.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return classify(err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if s.lockTimeout > 0 {
		// SET does not accept bind parameters.
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = %d", s.lockTimeout.Milliseconds())); err != nil {
			return classify(err)
		}
	}

	if err := fn(&postgresTx{tx: tx, locked: make(map[string]struct{})}); err != nil {
		return classify(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return classify(err)
	}
	return nil
}

type postgresTx struct {
	tx     pgx.Tx
	locked map[string]struct{}
}

func (t *postgresTx) LockAccounts(ctx context.Context, numbers ...string) (map[string]Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM accounts WHERE account_number = $1 FOR UPDATE`

	found := make(map[string]Account, len(numbers))
	for _, number := range lockOrder(numbers) {
		acc, err := scanAccount(t.tx.QueryRow(ctx, query, number))
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, err
		}
		t.locked[number] = struct{}{}
		found[number] = acc
	}
	return found, nil
}

func (t *postgresTx) AdjustBalance(ctx context.Context, number string, delta decimal.Decimal) (decimal.Decimal, error) {
	if _, ok := t.locked[number]; !ok {
		return decimal.Zero, ErrNotLocked
	}

	var raw string
	err := t.tx.QueryRow(ctx, `UPDATE accounts SET balance = balance + $2::numeric
        WHERE account_number = $1 AND balance + $2::numeric >= 0
        RETURNING balance::text`, number, delta.String()).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, ErrInsufficientFunds
	}
	if pgCode(err) == pgNumericOutOfRange {
		return decimal.Zero, ErrBalanceLimit
	}
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(raw)
}

func (t *postgresTx) Append(ctx context.Context, entry Transaction) (Transaction, error) {
	if err := validateEntry(entry); err != nil {
		return Transaction{}, err
	}
	var counterparty *string
	if entry.Counterparty != "" {
		counterparty = &entry.Counterparty
	}
	err := t.tx.QueryRow(ctx, `INSERT INTO transactions (account_number, kind, amount, counterparty_account_number)
        VALUES ($1, $2, $3::numeric, $4)
        RETURNING id, created_at`, entry.AccountNumber, string(entry.Kind), entry.Amount.String(), counterparty).
		Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return Transaction{}, err
	}
	entry.CreatedAt = entry.CreatedAt.UTC()
	return entry, nil
}

func scanAccount(row pgx.Row) (Account, error) {
	var (
		acc     Account
		balance string
	)
	if err := row.Scan(&acc.Number, &acc.OwnerID, &balance, &acc.CreatedAt); err != nil {
		return Account{}, err
	}
	amount, err := decimal.NewFromString(balance)
	if err != nil {
		return Account{}, fmt.Errorf("parse balance of %s: %w", acc.Number, err)
	}
	acc.Balance = amount
	acc.CreatedAt = acc.CreatedAt.UTC()
	return acc, nil
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		entry  Transaction
		kind   string
		amount string
	)
	if err := row.Scan(&entry.ID, &entry.AccountNumber, &kind, &amount, &entry.Counterparty, &entry.CreatedAt); err != nil {
		return Transaction{}, err
	}
	value, err := decimal.NewFromString(amount)
	if err != nil {
		return Transaction{}, fmt.Errorf("parse amount of transaction %d: %w", entry.ID, err)
	}
	entry.Kind = Kind(kind)
	entry.Amount = value
	entry.CreatedAt = entry.CreatedAt.UTC()
	return entry, nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// classify marks lock timeouts, deadlocks and serialization failures as ErrConflict.
func classify(err error) error {
	if err == nil || errors.Is(err, ErrConflict) {
		return err
	}
	switch pgCode(err) {
	case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
	return err
}
