package domain

import "errors"

// Sentinel errors. Business conditions the engine resolves to a terminal
// transaction record are also exposed as errors for callers that hit them
// outside the transfer pipeline (e.g. a bare ApplyDelta or CloseAccount).
var (
	// ErrNotFound indicates an unknown account or transaction.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates a malformed request (bad amount, bad currency,
	// bad range). Maps to HTTP 400.
	ErrValidation = errors.New("validation error")
	// ErrInsufficientFunds indicates a debit that would take the balance
	// negative on an account type without overdraft.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrAccountNotActive indicates an operation against a closed account.
	ErrAccountNotActive = errors.New("account not active")
	// ErrCurrencyMismatch indicates a transfer between accounts of different
	// currencies; the engine does not convert.
	ErrCurrencyMismatch = errors.New("currency mismatch")
	// ErrIdempotencyConflict indicates a transaction number reused with a
	// different payload.
	ErrIdempotencyConflict = errors.New("transaction number used with different payload")
	// ErrTransactionInFlight indicates a resubmission while the original
	// attempt is still pending (or died before resolving).
	ErrTransactionInFlight = errors.New("transaction still pending")
	// ErrDuplicateTransaction is returned by the log when an append loses the
	// uniqueness race on the transaction number.
	ErrDuplicateTransaction = errors.New("transaction number already recorded")
	// ErrAccountNotEmpty rejects closing an account with a non-zero balance.
	ErrAccountNotEmpty = errors.New("account balance must be zero before closure")
	// ErrPendingTransactions rejects closing an account referenced by pending
	// transactions.
	ErrPendingTransactions = errors.New("account has pending transactions")
)

// Failure reason codes stamped on failed and cancelled transaction records.
// The API layer maps these to user-facing messages.
const (
	ReasonInvalidAmount     = "invalid_amount"
	ReasonSameAccount       = "same_account"
	ReasonAccountNotFound   = "account_not_found"
	ReasonAccountNotActive  = "account_not_active"
	ReasonCurrencyMismatch  = "currency_mismatch"
	ReasonInsufficientFunds = "insufficient_funds"
)
