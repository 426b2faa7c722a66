package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ledger-engine/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Engine is the transfer processor. Every money movement goes through it:
// it enforces idempotent transaction identity, validates business invariants
// defensively, serializes access to the accounts it touches and always
// resolves a request to a durable terminal record. Only storage faults
// surface as errors without a record; those stay retriable under the same
// transaction number.
type Engine struct {
	accounts AccountStore
	txlog    TransactionLog
	locks    *accountLocks
}

func NewEngine(accounts AccountStore, txlog TransactionLog) *Engine {
	return &Engine{accounts: accounts, txlog: txlog, locks: newAccountLocks()}
}

type OpenAccountParams struct {
	UserID         uuid.UUID
	Type           domain.AccountType
	Currency       string
	OpeningBalance decimal.Decimal
}

// OpenAccount creates an active account with a generated Luhn-checked number.
func (e *Engine) OpenAccount(ctx context.Context, p OpenAccountParams) (domain.Account, error) {
	if p.UserID == uuid.Nil {
		return domain.Account{}, fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}
	if !p.Type.Valid() {
		return domain.Account{}, fmt.Errorf("%w: unknown account type %q", domain.ErrValidation, p.Type)
	}
	cur, err := domain.NormalizeCurrency(p.Currency)
	if err != nil {
		return domain.Account{}, err
	}
	if p.OpeningBalance.IsNegative() || p.OpeningBalance.Exponent() < -2 {
		return domain.Account{}, fmt.Errorf("%w: opening balance must be a non-negative amount", domain.ErrValidation)
	}

	number, err := domain.NewAccountNumber()
	if err != nil {
		return domain.Account{}, err
	}

	acc := domain.Account{
		ID:             uuid.New(),
		Number:         number,
		UserID:         p.UserID,
		Type:           p.Type,
		Balance:        p.OpeningBalance,
		OpeningBalance: p.OpeningBalance,
		Currency:       cur,
		Status:         domain.AccountStatusActive,
		CreatedAt:      time.Now().UTC(),
	}
	if err := e.accounts.Create(ctx, acc); err != nil {
		return domain.Account{}, err
	}
	return acc, nil
}

func (e *Engine) GetAccount(ctx context.Context, id uuid.UUID) (domain.Account, error) {
	return e.accounts.Get(ctx, id)
}

func (e *Engine) GetAccountByNumber(ctx context.Context, number string) (domain.Account, error) {
	return e.accounts.GetByNumber(ctx, strings.TrimSpace(number))
}

// CloseAccount closes an account whose balance is settled to zero and which
// no pending transaction references.
func (e *Engine) CloseAccount(ctx context.Context, id uuid.UUID) (domain.Account, error) {
	release := e.locks.acquire(id)
	defer release()

	acc, err := e.accounts.Get(ctx, id)
	if err != nil {
		return domain.Account{}, err
	}
	if !acc.Active() {
		return domain.Account{}, fmt.Errorf("%w: account %s", domain.ErrAccountNotActive, id)
	}
	if !acc.Balance.IsZero() {
		return domain.Account{}, fmt.Errorf("%w: balance is %s", domain.ErrAccountNotEmpty, acc.Balance)
	}
	pending, err := e.txlog.CountPending(ctx, id)
	if err != nil {
		return domain.Account{}, err
	}
	if pending > 0 {
		return domain.Account{}, fmt.Errorf("%w: %d pending", domain.ErrPendingTransactions, pending)
	}

	closedAt := time.Now().UTC()
	if err := e.accounts.Close(ctx, id, closedAt); err != nil {
		return domain.Account{}, err
	}
	acc.Status = domain.AccountStatusClosed
	acc.ClosedAt = &closedAt
	return acc, nil
}

type TransferParams struct {
	Number          string
	FromAccountID   uuid.UUID
	ToAccountNumber string
	Amount          decimal.Decimal
	Description     string
}

// Transfer moves Amount from the source account (by id) to the destination
// account (by number) as one double-entry effect: both legs apply or neither
// does. Resubmitting the same transaction number returns the recorded
// outcome without re-applying balance effects.
func (e *Engine) Transfer(ctx context.Context, p TransferParams) (domain.Transaction, error) {
	number := strings.TrimSpace(p.Number)
	if number == "" {
		return domain.Transaction{}, fmt.Errorf("%w: transaction number is required", domain.ErrValidation)
	}
	hash, err := hashRequest(requestShape{
		Kind:        string(domain.TransactionTypeTransfer),
		Number:      number,
		From:        p.FromAccountID.String(),
		To:          p.ToAccountNumber,
		Amount:      p.Amount.String(),
		Description: p.Description,
	})
	if err != nil {
		return domain.Transaction{}, err
	}

	if prior, err := e.priorOutcome(ctx, number, hash); err != nil {
		return domain.Transaction{}, err
	} else if prior != nil {
		return *prior, nil
	}

	rec := domain.Transaction{
		ID:          uuid.New(),
		Number:      number,
		Amount:      p.Amount,
		Type:        domain.TransactionTypeTransfer,
		Status:      domain.TransactionStatusPending,
		Description: p.Description,
		RequestHash: hash,
		CreatedAt:   time.Now().UTC(),
	}

	// Pre-flight rejections cancel the transaction before any balance is
	// touched; there is nothing to roll back.
	if !domain.ValidAmount(p.Amount) {
		return e.cancel(ctx, rec, domain.ReasonInvalidAmount)
	}

	from, err := e.accounts.Get(ctx, p.FromAccountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return e.cancel(ctx, rec, domain.ReasonAccountNotFound)
		}
		return domain.Transaction{}, err
	}
	rec.FromAccountID = &from.ID

	to, err := e.accounts.GetByNumber(ctx, strings.TrimSpace(p.ToAccountNumber))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return e.cancel(ctx, rec, domain.ReasonAccountNotFound)
		}
		return domain.Transaction{}, err
	}
	rec.ToAccountID = &to.ID

	switch {
	case from.ID == to.ID:
		return e.cancel(ctx, rec, domain.ReasonSameAccount)
	case !from.Active() || !to.Active():
		return e.cancel(ctx, rec, domain.ReasonAccountNotActive)
	case from.Currency != to.Currency:
		return e.cancel(ctx, rec, domain.ReasonCurrencyMismatch)
	}

	if err := e.txlog.Append(ctx, rec); err != nil {
		if errors.Is(err, domain.ErrDuplicateTransaction) {
			return e.settleRace(ctx, number, hash)
		}
		return domain.Transaction{}, err
	}

	release := e.locks.acquire(from.ID, to.ID)
	defer release()

	fromBal, err := e.accounts.ApplyDelta(ctx, from.ID, p.Amount.Neg())
	if err != nil {
		if reason := deltaReason(err); reason != "" {
			return e.fail(ctx, rec, reason)
		}
		return domain.Transaction{}, err
	}

	toBal, err := e.accounts.ApplyDelta(ctx, to.ID, p.Amount)
	if err != nil {
		// The debit landed, so it must be reversed before resolving; the
		// ledger never stays half-applied.
		if _, revErr := e.accounts.ApplyDelta(ctx, from.ID, p.Amount); revErr != nil {
			slog.Error("transfer reversal failed, balances need manual reconciliation",
				"tx_number", number, "from", from.ID, "to", to.ID, "error", revErr)
			return domain.Transaction{}, errors.Join(err, revErr)
		}
		slog.Warn("transfer credit leg failed, debit reversed",
			"tx_number", number, "from", from.ID, "to", to.ID, "error", err)
		if reason := deltaReason(err); reason != "" {
			return e.fail(ctx, rec, reason)
		}
		return domain.Transaction{}, err
	}

	return e.complete(ctx, rec, &fromBal, &toBal)
}

type DepositParams struct {
	Number        string
	AccountNumber string
	Amount        decimal.Decimal
	Description   string
}

// Deposit credits an account; the one-sided specialization of the transfer
// pipeline with only a destination leg.
func (e *Engine) Deposit(ctx context.Context, p DepositParams) (domain.Transaction, error) {
	number := strings.TrimSpace(p.Number)
	if number == "" {
		return domain.Transaction{}, fmt.Errorf("%w: transaction number is required", domain.ErrValidation)
	}
	hash, err := hashRequest(requestShape{
		Kind:        string(domain.TransactionTypeDeposit),
		Number:      number,
		To:          p.AccountNumber,
		Amount:      p.Amount.String(),
		Description: p.Description,
	})
	if err != nil {
		return domain.Transaction{}, err
	}

	if prior, err := e.priorOutcome(ctx, number, hash); err != nil {
		return domain.Transaction{}, err
	} else if prior != nil {
		return *prior, nil
	}

	rec := domain.Transaction{
		ID:          uuid.New(),
		Number:      number,
		Amount:      p.Amount,
		Type:        domain.TransactionTypeDeposit,
		Status:      domain.TransactionStatusPending,
		Description: p.Description,
		RequestHash: hash,
		CreatedAt:   time.Now().UTC(),
	}

	if !domain.ValidAmount(p.Amount) {
		return e.cancel(ctx, rec, domain.ReasonInvalidAmount)
	}

	acc, err := e.accounts.GetByNumber(ctx, strings.TrimSpace(p.AccountNumber))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return e.cancel(ctx, rec, domain.ReasonAccountNotFound)
		}
		return domain.Transaction{}, err
	}
	rec.ToAccountID = &acc.ID

	if !acc.Active() {
		return e.cancel(ctx, rec, domain.ReasonAccountNotActive)
	}

	if err := e.txlog.Append(ctx, rec); err != nil {
		if errors.Is(err, domain.ErrDuplicateTransaction) {
			return e.settleRace(ctx, number, hash)
		}
		return domain.Transaction{}, err
	}

	release := e.locks.acquire(acc.ID)
	defer release()

	bal, err := e.accounts.ApplyDelta(ctx, acc.ID, p.Amount)
	if err != nil {
		if reason := deltaReason(err); reason != "" {
			return e.fail(ctx, rec, reason)
		}
		return domain.Transaction{}, err
	}

	return e.complete(ctx, rec, nil, &bal)
}

type WithdrawParams struct {
	Number      string
	AccountID   uuid.UUID
	Amount      decimal.Decimal
	Description string
}

// Withdraw debits an account; the one-sided specialization with only a
// source leg.
func (e *Engine) Withdraw(ctx context.Context, p WithdrawParams) (domain.Transaction, error) {
	number := strings.TrimSpace(p.Number)
	if number == "" {
		return domain.Transaction{}, fmt.Errorf("%w: transaction number is required", domain.ErrValidation)
	}
	hash, err := hashRequest(requestShape{
		Kind:        string(domain.TransactionTypeWithdrawal),
		Number:      number,
		From:        p.AccountID.String(),
		Amount:      p.Amount.String(),
		Description: p.Description,
	})
	if err != nil {
		return domain.Transaction{}, err
	}

	if prior, err := e.priorOutcome(ctx, number, hash); err != nil {
		return domain.Transaction{}, err
	} else if prior != nil {
		return *prior, nil
	}

	rec := domain.Transaction{
		ID:          uuid.New(),
		Number:      number,
		Amount:      p.Amount,
		Type:        domain.TransactionTypeWithdrawal,
		Status:      domain.TransactionStatusPending,
		Description: p.Description,
		RequestHash: hash,
		CreatedAt:   time.Now().UTC(),
	}

	if !domain.ValidAmount(p.Amount) {
		return e.cancel(ctx, rec, domain.ReasonInvalidAmount)
	}

	acc, err := e.accounts.Get(ctx, p.AccountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return e.cancel(ctx, rec, domain.ReasonAccountNotFound)
		}
		return domain.Transaction{}, err
	}
	rec.FromAccountID = &acc.ID

	if !acc.Active() {
		return e.cancel(ctx, rec, domain.ReasonAccountNotActive)
	}

	if err := e.txlog.Append(ctx, rec); err != nil {
		if errors.Is(err, domain.ErrDuplicateTransaction) {
			return e.settleRace(ctx, number, hash)
		}
		return domain.Transaction{}, err
	}

	release := e.locks.acquire(acc.ID)
	defer release()

	bal, err := e.accounts.ApplyDelta(ctx, acc.ID, p.Amount.Neg())
	if err != nil {
		if reason := deltaReason(err); reason != "" {
			return e.fail(ctx, rec, reason)
		}
		return domain.Transaction{}, err
	}

	return e.complete(ctx, rec, &bal, nil)
}

// priorOutcome looks up an existing record for the transaction number. nil
// means the number is unused. A hash mismatch is an idempotency conflict; a
// matching but unresolved record means the original attempt is still in
// flight (or died mid-way and needs operator reconciliation).
func (e *Engine) priorOutcome(ctx context.Context, number, hash string) (*domain.Transaction, error) {
	prior, err := e.txlog.FindByNumber(ctx, number)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if prior.RequestHash != hash {
		return nil, fmt.Errorf("%w: %s", domain.ErrIdempotencyConflict, number)
	}
	if !prior.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s", domain.ErrTransactionInFlight, number)
	}
	return &prior, nil
}

// settleRace resolves an append that lost the uniqueness race to a
// concurrent submission of the same number.
func (e *Engine) settleRace(ctx context.Context, number, hash string) (domain.Transaction, error) {
	prior, err := e.priorOutcome(ctx, number, hash)
	if err != nil {
		return domain.Transaction{}, err
	}
	if prior == nil {
		return domain.Transaction{}, fmt.Errorf("%w: %s", domain.ErrTransactionInFlight, number)
	}
	return *prior, nil
}

// cancel records a pre-flight rejection as a single terminal append. No
// balance was touched.
func (e *Engine) cancel(ctx context.Context, rec domain.Transaction, reason string) (domain.Transaction, error) {
	rec.Status = domain.TransactionStatusCancelled
	rec.FailureReason = reason
	if err := e.txlog.Append(ctx, rec); err != nil {
		if errors.Is(err, domain.ErrDuplicateTransaction) {
			return e.settleRace(ctx, rec.Number, rec.RequestHash)
		}
		return domain.Transaction{}, err
	}
	return rec, nil
}

func (e *Engine) fail(ctx context.Context, rec domain.Transaction, reason string) (domain.Transaction, error) {
	now := time.Now().UTC()
	res := domain.Resolution{
		Status:        domain.TransactionStatusFailed,
		FailureReason: reason,
		CompletedAt:   now,
	}
	if err := e.txlog.Resolve(ctx, rec.ID, res); err != nil {
		return domain.Transaction{}, err
	}
	rec.Status = domain.TransactionStatusFailed
	rec.FailureReason = reason
	rec.CompletedAt = &now
	return rec, nil
}

func (e *Engine) complete(ctx context.Context, rec domain.Transaction, fromBal, toBal *decimal.Decimal) (domain.Transaction, error) {
	now := time.Now().UTC()
	res := domain.Resolution{
		Status:      domain.TransactionStatusCompleted,
		FromBalance: fromBal,
		ToBalance:   toBal,
		CompletedAt: now,
	}
	if err := e.txlog.Resolve(ctx, rec.ID, res); err != nil {
		return domain.Transaction{}, err
	}
	rec.Status = domain.TransactionStatusCompleted
	rec.FromBalance = fromBal
	rec.ToBalance = toBal
	rec.CompletedAt = &now
	return rec, nil
}

func deltaReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientFunds):
		return domain.ReasonInsufficientFunds
	case errors.Is(err, domain.ErrAccountNotActive):
		return domain.ReasonAccountNotActive
	case errors.Is(err, domain.ErrNotFound):
		return domain.ReasonAccountNotFound
	}
	return ""
}
