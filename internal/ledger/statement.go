package ledger

import (
	"context"
	"fmt"
	"time"

	"ledger-engine/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Statement is the reconstructed view of an account over a date range. Only
// completed transactions contribute to balances and totals.
type Statement struct {
	AccountID        uuid.UUID            `json:"account_id"`
	AccountNumber    string               `json:"account_number"`
	Currency         string               `json:"currency"`
	PeriodStart      time.Time            `json:"period_start"`
	PeriodEnd        time.Time            `json:"period_end"`
	OpeningBalance   decimal.Decimal      `json:"opening_balance"`
	ClosingBalance   decimal.Decimal      `json:"closing_balance"`
	TotalDeposits    decimal.Decimal      `json:"total_deposits"`
	TotalWithdrawals decimal.Decimal      `json:"total_withdrawals"`
	Transactions     []domain.Transaction `json:"transactions"`
}

// StatementGenerator reconstructs point-in-time balances from the
// transaction log and the live account balance. Read-only; it never mutates
// ledger state.
type StatementGenerator struct {
	accounts AccountStore
	txlog    TransactionLog
}

func NewStatementGenerator(accounts AccountStore, txlog TransactionLog) *StatementGenerator {
	return &StatementGenerator{accounts: accounts, txlog: txlog}
}

// Generate builds the statement for [start, end]. The opening balance is
// derived by backing the net effect of every completed transaction since
// start out of the current balance; the closing balance adds the in-range
// net back on top of it. That way the numbers stay correct even when more
// transactions landed after the requested range.
func (g *StatementGenerator) Generate(ctx context.Context, accountID uuid.UUID, start, end time.Time) (Statement, error) {
	if end.Before(start) {
		return Statement{}, fmt.Errorf("%w: statement start must not be after end", domain.ErrValidation)
	}

	acc, err := g.accounts.Get(ctx, accountID)
	if err != nil {
		return Statement{}, err
	}

	horizon := time.Now().UTC()
	if end.After(horizon) {
		horizon = end
	}
	since, err := g.txlog.ListForAccount(ctx, accountID, start, horizon)
	if err != nil {
		return Statement{}, err
	}

	var (
		netSince   = decimal.Zero
		netInRange = decimal.Zero
		deposits   = decimal.Zero
		withdrawal = decimal.Zero
		inRange    = make([]domain.Transaction, 0, len(since))
	)
	for _, tx := range since {
		if tx.Status != domain.TransactionStatusCompleted {
			continue
		}
		effect := accountEffect(acc.ID, tx)
		netSince = netSince.Add(effect)
		if tx.CreatedAt.After(end) {
			continue
		}
		netInRange = netInRange.Add(effect)
		if effect.IsPositive() {
			deposits = deposits.Add(tx.Amount)
		} else if effect.IsNegative() {
			withdrawal = withdrawal.Add(tx.Amount)
		}
		inRange = append(inRange, tx)
	}

	opening := acc.Balance.Sub(netSince)
	return Statement{
		AccountID:        acc.ID,
		AccountNumber:    acc.Number,
		Currency:         acc.Currency,
		PeriodStart:      start,
		PeriodEnd:        end,
		OpeningBalance:   opening,
		ClosingBalance:   opening.Add(netInRange),
		TotalDeposits:    deposits,
		TotalWithdrawals: withdrawal,
		Transactions:     inRange,
	}, nil
}

// accountEffect is the signed contribution of tx to the account's balance:
// positive when the account is the credit side, negative when it is the
// debit side.
func accountEffect(accountID uuid.UUID, tx domain.Transaction) decimal.Decimal {
	if tx.ToAccountID != nil && *tx.ToAccountID == accountID {
		return tx.Amount
	}
	if tx.FromAccountID != nil && *tx.FromAccountID == accountID {
		return tx.Amount.Neg()
	}
	return decimal.Zero
}
