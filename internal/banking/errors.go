package banking

import "errors"

var (
	// ErrInvalidAmount rejects zero, negative, or sub-cent amounts.
	ErrInvalidAmount = errors.New("amount must be greater than zero with at most two decimal places")

	// ErrAccountNotFound indicates the account does not exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccessDenied indicates the caller does not own the account.
	ErrAccessDenied = errors.New("access denied")

	// ErrInsufficientFundsOrUnauthorized covers a missing, foreign or underfunded
	// source account. The three cases are reported identically on purpose.
	ErrInsufficientFundsOrUnauthorized = errors.New("insufficient funds or unauthorized access")

	// ErrTargetAccountNotFound indicates the transfer destination does not exist.
	ErrTargetAccountNotFound = errors.New("target account not found")

	// ErrSameAccount rejects transfers whose source and target are the same account.
	ErrSameAccount = errors.New("source and target accounts must differ")

	// ErrBalanceLimitExceeded rejects a credit that would push the balance past
	// ledger.MaxBalance.
	ErrBalanceLimitExceeded = errors.New("resulting balance exceeds the account limit")

	// ErrPersistence wraps store failures. The wrapped cause is for logs only.
	ErrPersistence = errors.New("database error")

	// ErrTransientConflict reports lock contention that outlasted the internal
	// retries. Nothing was written and the caller may retry.
	ErrTransientConflict = errors.New("account is busy, please retry")
)
