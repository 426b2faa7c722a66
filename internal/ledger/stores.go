// Package ledger implements the transfer engine and statement generator on
// top of durable account and transaction stores.
package ledger

import (
	"context"
	"time"

	"ledger-engine/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -destination=mocks/mock_stores.go -package=mocks -source=stores.go AccountStore,TransactionLog

// AccountStore is durable keyed storage of accounts and their balances.
type AccountStore interface {
	Get(ctx context.Context, id uuid.UUID) (domain.Account, error)
	GetByNumber(ctx context.Context, number string) (domain.Account, error)
	Create(ctx context.Context, acc domain.Account) error

	// ApplyDelta atomically adds delta (negative for a debit) to the stored
	// balance and returns the new value. It fails with ErrNotFound for an
	// unknown id, ErrAccountNotActive for a closed account and
	// ErrInsufficientFunds when the result would go negative. Two concurrent
	// deltas on the same account serialize; a lost update is a store bug.
	ApplyDelta(ctx context.Context, id uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error)

	// Close marks an active, zero-balance account closed. ErrAccountNotEmpty
	// when the balance is non-zero.
	Close(ctx context.Context, id uuid.UUID, closedAt time.Time) error
}

// TransactionLog is the durable, append-mostly record of transfer attempts.
type TransactionLog interface {
	// Append durably records a transaction. The record may carry a terminal
	// status already (pre-flight cancellations are one atomic append);
	// otherwise it is pending and must be resolved exactly once. Returns
	// ErrDuplicateTransaction when the transaction number is already taken.
	Append(ctx context.Context, tx domain.Transaction) error

	// Resolve applies the pending -> terminal transition. It must refuse to
	// touch a row that is no longer pending.
	Resolve(ctx context.Context, id uuid.UUID, res domain.Resolution) error

	FindByNumber(ctx context.Context, number string) (domain.Transaction, error)

	// ListForAccount returns transactions referencing the account with
	// creation time in [from, to], ascending by creation time.
	ListForAccount(ctx context.Context, accountID uuid.UUID, from, to time.Time) ([]domain.Transaction, error)

	CountPending(ctx context.Context, accountID uuid.UUID) (int64, error)
}
