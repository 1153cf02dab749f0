package banking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pocketbank/pocketbank/internal/ledger"
	"github.com/pocketbank/pocketbank/internal/logging"
	"github.com/pocketbank/pocketbank/internal/notification"
)

const (
	defaultRetryBackoff = 25 * time.Millisecond
	// createAccountAttempts covers the first insert plus one retry after a number collision.
	createAccountAttempts = 2
)

// Options tunes the engine. MaxConflictRetries of zero or below disables
// retries. A zero RetryBackoff or Logger selects the default.
type Options struct {
	MaxConflictRetries int
	RetryBackoff       time.Duration
	Logger             *slog.Logger
}

// Service is the balance mutation engine: it moves money between accounts and
// keeps every balance change paired with its ledger entries.
type Service struct {
	store      ledger.Store
	notifier   notification.Notifier
	logger     *slog.Logger
	maxRetries int
	backoff    time.Duration
	newNumber  func() string
	now        func() time.Time
}

// NewService builds the engine on top of an injected store.
func NewService(store ledger.Store, notifier notification.Notifier, opts Options) *Service {
	if opts.MaxConflictRetries < 0 {
		opts.MaxConflictRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = defaultRetryBackoff
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Service{
		store:      store,
		notifier:   notifier,
		logger:     opts.Logger,
		maxRetries: opts.MaxConflictRetries,
		backoff:    opts.RetryBackoff,
		newNumber:  newAccountNumber,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// MovementInput captures a deposit or withdrawal against one account.
type MovementInput struct {
	AccountNumber string
	Amount        decimal.Decimal
	CallerID      string
}

// TransferInput captures the data needed to move funds between two accounts.
type TransferInput struct {
	SourceAccountNumber string
	TargetAccountNumber string
	Amount              decimal.Decimal
	CallerID            string
}

// Balance is the committed balance of an account, read back after a mutation.
type Balance struct {
	AccountNumber string
	Amount        decimal.Decimal
	AsOf          time.Time
}

// CreateAccount opens a zero-balance account for the caller.
func (s *Service) CreateAccount(ctx context.Context, callerID string) (ledger.Account, error) {
	if callerID == "" {
		return ledger.Account{}, ErrAccessDenied
	}

	var err error
	for attempt := 0; attempt < createAccountAttempts; attempt++ {
		account := ledger.Account{
			Number:    s.newNumber(),
			OwnerID:   callerID,
			Balance:   decimal.Zero,
			CreatedAt: s.now(),
		}
		err = s.store.CreateAccount(ctx, account)
		if err == nil {
			s.logger.InfoContext(ctx, "account created",
				slog.String("user_id", callerID),
				slog.String("account_number", account.Number),
			)
			return account, nil
		}
		if !errors.Is(err, ledger.ErrDuplicateAccount) {
			break
		}
		s.logger.WarnContext(ctx, "account number collision", slog.String("account_number", account.Number))
	}
	return ledger.Account{}, s.persistence(ctx, "create account", err)
}

// ListAccounts returns every account owned by the caller.
func (s *Service) ListAccounts(ctx context.Context, callerID string) ([]ledger.Account, error) {
	accounts, err := s.store.ListAccounts(ctx, callerID)
	if err != nil {
		return nil, s.persistence(ctx, "list accounts", err)
	}
	return accounts, nil
}

// ListTransactions returns the ledger of an account owned by the caller, in insertion order.
func (s *Service) ListTransactions(ctx context.Context, accountNumber, callerID string) ([]ledger.Transaction, error) {
	account, err := s.store.GetAccount(ctx, accountNumber)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return nil, ErrAccessDenied
	}
	if err != nil {
		return nil, s.persistence(ctx, "get account", err)
	}
	if account.OwnerID != callerID {
		return nil, ErrAccessDenied
	}

	entries, err := s.store.ListTransactions(ctx, accountNumber)
	if err != nil {
		return nil, s.persistence(ctx, "list transactions", err)
	}
	return entries, nil
}

// Deposit credits an account owned by the caller.
func (s *Service) Deposit(ctx context.Context, input MovementInput) (Balance, error) {
	if err := validateAmount(input.Amount); err != nil {
		return Balance{}, err
	}

	err := s.mutate(ctx, "deposit", func(tx ledger.Tx) error {
		accounts, err := tx.LockAccounts(ctx, input.AccountNumber)
		if err != nil {
			return err
		}
		account, ok := accounts[input.AccountNumber]
		if !ok {
			return ErrAccountNotFound
		}
		if account.OwnerID != input.CallerID {
			return ErrAccessDenied
		}
		if _, err := tx.AdjustBalance(ctx, account.Number, input.Amount); err != nil {
			return err
		}
		_, err = tx.Append(ctx, ledger.Transaction{
			AccountNumber: account.Number,
			Kind:          ledger.KindDeposit,
			Amount:        input.Amount,
		})
		return err
	})
	if err != nil {
		return Balance{}, err
	}

	balance, err := s.readBack(ctx, input.AccountNumber)
	if err != nil {
		return Balance{}, err
	}
	s.logger.InfoContext(ctx, "deposit completed",
		slog.String("user_id", input.CallerID),
		slog.String("account_number", input.AccountNumber),
		slog.String("amount", input.Amount.String()),
		slog.String("balance", balance.Amount.String()),
	)
	return balance, nil
}

// Withdraw debits an account owned by the caller. A missing, foreign or
// underfunded account all fail with ErrInsufficientFundsOrUnauthorized.
func (s *Service) Withdraw(ctx context.Context, input MovementInput) (Balance, error) {
	if err := validateAmount(input.Amount); err != nil {
		return Balance{}, err
	}

	err := s.mutate(ctx, "withdraw", func(tx ledger.Tx) error {
		accounts, err := tx.LockAccounts(ctx, input.AccountNumber)
		if err != nil {
			return err
		}
		account, ok := accounts[input.AccountNumber]
		if !ok || account.OwnerID != input.CallerID || account.Balance.LessThan(input.Amount) {
			return ErrInsufficientFundsOrUnauthorized
		}
		if _, err := tx.AdjustBalance(ctx, account.Number, input.Amount.Neg()); err != nil {
			return err
		}
		_, err = tx.Append(ctx, ledger.Transaction{
			AccountNumber: account.Number,
			Kind:          ledger.KindWithdrawal,
			Amount:        input.Amount,
		})
		return err
	})
	if err != nil {
		return Balance{}, err
	}

	balance, err := s.readBack(ctx, input.AccountNumber)
	if err != nil {
		return Balance{}, err
	}
	s.logger.InfoContext(ctx, "withdrawal completed",
		slog.String("user_id", input.CallerID),
		slog.String("account_number", input.AccountNumber),
		slog.String("amount", input.Amount.String()),
		slog.String("balance", balance.Amount.String()),
	)
	return balance, nil
}

// Transfer moves funds from an account owned by the caller to any existing
// account. Both balances and both ledger rows are written in one unit.
func (s *Service) Transfer(ctx context.Context, input TransferInput) (Balance, error) {
	if err := validateAmount(input.Amount); err != nil {
		return Balance{}, err
	}
	if input.SourceAccountNumber == input.TargetAccountNumber {
		return Balance{}, ErrSameAccount
	}

	var recipient string
	err := s.mutate(ctx, "transfer", func(tx ledger.Tx) error {
		accounts, err := tx.LockAccounts(ctx, input.SourceAccountNumber, input.TargetAccountNumber)
		if err != nil {
			return err
		}
		source, ok := accounts[input.SourceAccountNumber]
		if !ok || source.OwnerID != input.CallerID || source.Balance.LessThan(input.Amount) {
			return ErrInsufficientFundsOrUnauthorized
		}
		target, ok := accounts[input.TargetAccountNumber]
		if !ok {
			return ErrTargetAccountNotFound
		}

		if _, err := tx.AdjustBalance(ctx, source.Number, input.Amount.Neg()); err != nil {
			return err
		}
		if _, err := tx.AdjustBalance(ctx, target.Number, input.Amount); err != nil {
			return err
		}
		if _, err := tx.Append(ctx, ledger.Transaction{
			AccountNumber: source.Number,
			Kind:          ledger.KindTransferOut,
			Amount:        input.Amount,
			Counterparty:  target.Number,
		}); err != nil {
			return err
		}
		if _, err := tx.Append(ctx, ledger.Transaction{
			AccountNumber: target.Number,
			Kind:          ledger.KindTransferIn,
			Amount:        input.Amount,
			Counterparty:  source.Number,
		}); err != nil {
			return err
		}
		recipient = target.OwnerID
		return nil
	})
	if err != nil {
		return Balance{}, err
	}

	balance, err := s.readBack(ctx, input.SourceAccountNumber)
	if err != nil {
		return Balance{}, err
	}
	s.logger.InfoContext(ctx, "transfer completed",
		slog.String("user_id", input.CallerID),
		slog.String("source_account", input.SourceAccountNumber),
		slog.String("target_account", input.TargetAccountNumber),
		slog.String("amount", input.Amount.String()),
		slog.String("balance", balance.Amount.String()),
	)

	if s.notifier != nil {
		msg := notification.Message{
			Kind:        notification.KindTransferReceived,
			Destination: recipient,
			Body:        fmt.Sprintf("You received %s on account %s from account %s", input.Amount.StringFixed(2), input.TargetAccountNumber, input.SourceAccountNumber),
		}
		if err := s.notifier.Send(ctx, msg); err != nil {
			s.logger.WarnContext(ctx, "transfer notification failed", slog.String("user_id", recipient), slog.Any("error", err))
		}
	}

	return balance, nil
}

// mutate runs fn as one atomic unit, retrying transient conflicts with a
// linear backoff before giving up with ErrTransientConflict.
func (s *Service) mutate(ctx context.Context, op string, fn func(ledger.Tx) error) error {
	for attempt := 1; ; attempt++ {
		err := s.store.WithinTx(ctx, fn)
		switch {
		case err == nil:
			return nil
		case isBusinessError(err):
			return err
		case errors.Is(err, ledger.ErrInsufficientFunds):
			// The guarded update refused a debit the pre-check allowed.
			return ErrInsufficientFundsOrUnauthorized
		case errors.Is(err, ledger.ErrBalanceLimit):
			return ErrBalanceLimitExceeded
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			return fmt.Errorf("%w: %w", ErrTransientConflict, err)
		case !errors.Is(err, ledger.ErrConflict):
			return s.persistence(ctx, op, err)
		}

		if attempt > s.maxRetries {
			s.logger.WarnContext(ctx, "giving up after conflicts",
				slog.String("operation", op),
				slog.Int("attempts", attempt),
				slog.Any("error", err),
			)
			return fmt.Errorf("%w: %w", ErrTransientConflict, err)
		}
		s.logger.DebugContext(ctx, "retrying after conflict", slog.String("operation", op), slog.Int("attempt", attempt))

		timer := time.NewTimer(time.Duration(attempt) * s.backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %w", ErrTransientConflict, ctx.Err())
		case <-timer.C:
		}
	}
}

// readBack returns the committed balance rather than the value computed inside the unit.
func (s *Service) readBack(ctx context.Context, accountNumber string) (Balance, error) {
	account, err := s.store.GetAccount(ctx, accountNumber)
	if err != nil {
		return Balance{}, s.persistence(ctx, "read back balance", err)
	}
	return Balance{AccountNumber: account.Number, Amount: account.Balance, AsOf: s.now()}, nil
}

func (s *Service) persistence(ctx context.Context, op string, err error) error {
	s.logger.ErrorContext(ctx, "store failure", slog.String("operation", op), slog.Any("error", err))
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

func isBusinessError(err error) bool {
	for _, target := range []error{
		ErrAccountNotFound,
		ErrAccessDenied,
		ErrInsufficientFundsOrUnauthorized,
		ErrTargetAccountNotFound,
		ErrBalanceLimitExceeded,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() || amount.GreaterThan(ledger.MaxBalance) {
		return ErrInvalidAmount
	}
	if !amount.Equal(amount.Truncate(2)) {
		return ErrInvalidAmount
	}
	return nil
}

// newAccountNumber returns the first group of a random UUID: 8 hex characters.
func newAccountNumber() string {
	return strings.SplitN(uuid.NewString(), "-", 2)[0]
}

// SumBalances totals the balances of accounts.
func SumBalances(accounts []ledger.Account) decimal.Decimal {
	total := decimal.Zero
	for _, a := range accounts {
		total = total.Add(a.Balance)
	}
	return total
}
