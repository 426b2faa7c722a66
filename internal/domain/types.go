// Package domain defines the ledger's entities: accounts, transactions and
// the vocabulary of statuses, types and failure reasons shared by the engine,
// the store and the API layer.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AccountType string

const (
	AccountTypeChecking   AccountType = "checking"
	AccountTypeSavings    AccountType = "savings"
	AccountTypeInvestment AccountType = "investment"
)

func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeChecking, AccountTypeSavings, AccountTypeInvestment:
		return true
	}
	return false
}

// AllowsOverdraft reports whether balances of this account type may go
// negative. No current product allows it; the switch is the single place a
// future overdraft line would change.
func (t AccountType) AllowsOverdraft() bool {
	switch t {
	case AccountTypeChecking, AccountTypeSavings, AccountTypeInvestment:
		return false
	}
	return false
}

type AccountStatus string

const (
	AccountStatusActive AccountStatus = "active"
	AccountStatusClosed AccountStatus = "closed"
)

// Account is a single-currency balance owned by a user. Balance is a derived
// cache of all completed transaction effects plus the opening balance; the
// transaction log remains the source of record for audit and recovery.
type Account struct {
	ID             uuid.UUID       `json:"id"`
	Number         string          `json:"number"`
	UserID         uuid.UUID       `json:"user_id"`
	Type           AccountType     `json:"type"`
	Balance        decimal.Decimal `json:"balance"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	Currency       string          `json:"currency"`
	Status         AccountStatus   `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	ClosedAt       *time.Time      `json:"closed_at,omitempty"`
}

func (a Account) Active() bool { return a.Status == AccountStatusActive }

type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
	TransactionTypeTransfer   TransactionType = "transfer"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusCancelled TransactionStatus = "cancelled"
)

// Terminal reports whether the status admits no further transition.
func (s TransactionStatus) Terminal() bool {
	switch s {
	case TransactionStatusCompleted, TransactionStatusFailed, TransactionStatusCancelled:
		return true
	}
	return false
}

// Transaction is one attempt to move money. Number is the idempotency key:
// once assigned it never changes and is never reused for a different logical
// movement. FromBalance and ToBalance are post-commit checkpoints captured
// exactly once, when the transaction completes, and are immutable afterwards.
type Transaction struct {
	ID            uuid.UUID         `json:"id"`
	Number        string            `json:"number"`
	FromAccountID *uuid.UUID        `json:"from_account_id,omitempty"`
	ToAccountID   *uuid.UUID        `json:"to_account_id,omitempty"`
	Amount        decimal.Decimal   `json:"amount"`
	Type          TransactionType   `json:"type"`
	Status        TransactionStatus `json:"status"`
	Description   string            `json:"description,omitempty"`
	RequestHash   string            `json:"-"`
	FailureReason string            `json:"failure_reason,omitempty"`
	FromBalance   *decimal.Decimal  `json:"from_balance,omitempty"`
	ToBalance     *decimal.Decimal  `json:"to_balance,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	CompletedAt   *time.Time        `json:"completed_at,omitempty"`
}

// Resolution carries a pending transaction to its terminal state. Exactly one
// resolution is ever applied per transaction.
type Resolution struct {
	Status        TransactionStatus
	FailureReason string
	FromBalance   *decimal.Decimal
	ToBalance     *decimal.Decimal
	CompletedAt   time.Time
}
