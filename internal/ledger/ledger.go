package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrAccountNotFound is returned by reads for an unknown account number.
	ErrAccountNotFound = errors.New("account not found")

	// ErrDuplicateAccount indicates the generated account number is already taken.
	ErrDuplicateAccount = errors.New("account number already exists")

	// ErrInsufficientFunds is returned by AdjustBalance when the resulting
	// balance would drop below zero. The balance is left untouched.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrBalanceLimit is returned by AdjustBalance when the resulting balance
	// would exceed MaxBalance. The balance is left untouched.
	ErrBalanceLimit = errors.New("balance limit exceeded")

	// ErrNotLocked is returned when a Tx mutates an account it has not locked.
	ErrNotLocked = errors.New("account not locked in transaction")

	// ErrConflict marks a concurrency-control failure (lock timeout, deadlock,
	// serialization failure). The transaction was rolled back and may be retried.
	ErrConflict = errors.New("transient conflict")

	// ErrInvalidEntry rejects ledger rows that would break the ledger invariants.
	ErrInvalidEntry = errors.New("invalid ledger entry")
)

// MaxBalance is the largest balance a NUMERIC(15,2) column can hold.
var MaxBalance = decimal.RequireFromString("9999999999999.99")

// Kind classifies a ledger entry.
type Kind string

const (
	KindDeposit     Kind = "deposit"
	KindWithdrawal  Kind = "withdrawal"
	KindTransferOut Kind = "transfer_out"
	KindTransferIn  Kind = "transfer_in"
)

// IsTransfer reports whether entries of this kind carry a counterparty.
func (k Kind) IsTransfer() bool {
	return k == KindTransferOut || k == KindTransferIn
}

// Account is a balance bucket owned by a single user.
type Account struct {
	Number    string
	OwnerID   string
	Balance   decimal.Decimal
	CreatedAt time.Time
}

// Transaction is an immutable ledger entry recorded against one account.
type Transaction struct {
	ID            int64
	AccountNumber string
	Kind          Kind
	Amount        decimal.Decimal
	// Counterparty is the other side of a transfer; empty for deposits and withdrawals.
	Counterparty string
	CreatedAt    time.Time
}

// Store defines the account and ledger storage contract used by the banking engine.
type Store interface {
	CreateAccount(ctx context.Context, account Account) error
	GetAccount(ctx context.Context, number string) (Account, error)
	ListAccounts(ctx context.Context, ownerID string) ([]Account, error)
	// ListTransactions returns the entries for an account in insertion order.
	ListTransactions(ctx context.Context, number string) ([]Transaction, error)
	// WithinTx runs fn inside one atomic unit. The unit commits when fn returns
	// nil and rolls back on any error or panic.
	WithinTx(ctx context.Context, fn func(Tx) error) error
}

// Tx is the view of the store available inside WithinTx.
type Tx interface {
	// LockAccounts locks the rows for the given account numbers in ascending
	// order and returns the ones that exist, keyed by number. Locks are held
	// until the enclosing unit ends.
	LockAccounts(ctx context.Context, numbers ...string) (map[string]Account, error)
	// AdjustBalance adds delta to a locked account and returns the new balance.
	// It fails with ErrInsufficientFunds below zero and ErrBalanceLimit above MaxBalance.
	AdjustBalance(ctx context.Context, number string, delta decimal.Decimal) (decimal.Decimal, error)
	// Append records a ledger entry and returns it with its id and timestamp.
	Append(ctx context.Context, entry Transaction) (Transaction, error)
}

// lockOrder returns the distinct non-empty numbers sorted ascending. Every
// backend acquires row locks in this order so that opposite-direction
// transfers cannot deadlock.
func lockOrder(numbers []string) []string {
	out := make([]string, 0, len(numbers))
	seen := make(map[string]struct{}, len(numbers))
	for _, n := range numbers {
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func validateEntry(entry Transaction) error {
	if entry.AccountNumber == "" {
		return fmt.Errorf("%w: missing account number", ErrInvalidEntry)
	}
	if !entry.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidEntry)
	}
	switch entry.Kind {
	case KindDeposit, KindWithdrawal:
		if entry.Counterparty != "" {
			return fmt.Errorf("%w: %s has no counterparty", ErrInvalidEntry, entry.Kind)
		}
	case KindTransferOut, KindTransferIn:
		if entry.Counterparty == "" {
			return fmt.Errorf("%w: %s requires a counterparty", ErrInvalidEntry, entry.Kind)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEntry, entry.Kind)
	}
	return nil
}
