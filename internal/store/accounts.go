package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ledger-engine/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const accountCols = `account_id, account_number, user_id, account_type,
	balance::text, opening_balance::text, currency, status, created_at, closed_at`

type accountOpenedPayload struct {
	AccountID      string `json:"account_id"`
	AccountNumber  string `json:"account_number"`
	UserID         string `json:"user_id"`
	AccountType    string `json:"account_type"`
	Currency       string `json:"currency"`
	OpeningBalance string `json:"opening_balance"`
}

type accountClosedPayload struct {
	AccountID string `json:"account_id"`
	ClosedAt  string `json:"closed_at"`
}

func (s *Store) Create(ctx context.Context, acc domain.Account) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO accounts(
			account_id, account_number, user_id, account_type,
			balance, opening_balance, currency, status, created_at
		) VALUES($1,$2,$3,$4,$5::numeric,$6::numeric,$7,$8,$9)`,
		acc.ID, acc.Number, acc.UserID, acc.Type,
		acc.Balance.String(), acc.OpeningBalance.String(), acc.Currency, acc.Status, acc.CreatedAt,
	)
	if err != nil {
		return err
	}

	payload := accountOpenedPayload{
		AccountID:      acc.ID.String(),
		AccountNumber:  acc.Number,
		UserID:         acc.UserID.String(),
		AccountType:    string(acc.Type),
		Currency:       acc.Currency,
		OpeningBalance: acc.OpeningBalance.String(),
	}
	if err := insertEvent(ctx, tx, "ACCOUNT_OPENED", "ACCOUNT", acc.ID.String(), payload); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (domain.Account, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+accountCols+` FROM accounts WHERE account_id=$1`, id)
	return scanAccount(row)
}

func (s *Store) GetByNumber(ctx context.Context, number string) (domain.Account, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+accountCols+` FROM accounts WHERE account_number=$1`, number)
	return scanAccount(row)
}

// ApplyDelta is a single conditional UPDATE: the row lock serializes
// concurrent deltas on the same account and the predicate rejects overdraft,
// so two callers can never both read a stale balance and lose an update.
func (s *Store) ApplyDelta(ctx context.Context, id uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	var balance string
	err := s.db.QueryRow(ctx,
		`UPDATE accounts
		    SET balance = balance + $2::numeric
		  WHERE account_id = $1
		    AND status = 'active'
		    AND balance + $2::numeric >= 0
		RETURNING balance::text`,
		id, delta.String(),
	).Scan(&balance)
	if err == nil {
		return parseDecimal(balance)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return decimal.Decimal{}, err
	}

	// The guarded update matched nothing; find out why.
	var status domain.AccountStatus
	err = s.db.QueryRow(ctx, `SELECT status FROM accounts WHERE account_id=$1`, id).Scan(&status)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return decimal.Decimal{}, fmt.Errorf("%w: account %s", domain.ErrNotFound, id)
	case err != nil:
		return decimal.Decimal{}, err
	case status != domain.AccountStatusActive:
		return decimal.Decimal{}, fmt.Errorf("%w: account %s", domain.ErrAccountNotActive, id)
	}
	return decimal.Decimal{}, fmt.Errorf("%w: account %s", domain.ErrInsufficientFunds, id)
}

func (s *Store) Close(ctx context.Context, id uuid.UUID, closedAt time.Time) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE accounts
		    SET status='closed', closed_at=$2
		  WHERE account_id=$1 AND status='active' AND balance = 0`,
		id, closedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var status domain.AccountStatus
		err := tx.QueryRow(ctx, `SELECT status FROM accounts WHERE account_id=$1`, id).Scan(&status)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return fmt.Errorf("%w: account %s", domain.ErrNotFound, id)
		case err != nil:
			return err
		case status != domain.AccountStatusActive:
			return fmt.Errorf("%w: account %s", domain.ErrAccountNotActive, id)
		}
		return fmt.Errorf("%w: account %s", domain.ErrAccountNotEmpty, id)
	}

	payload := accountClosedPayload{AccountID: id.String(), ClosedAt: closedAt.UTC().Format(time.RFC3339Nano)}
	if err := insertEvent(ctx, tx, "ACCOUNT_CLOSED", "ACCOUNT", id.String(), payload); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func scanAccount(row pgx.Row) (domain.Account, error) {
	var (
		acc              domain.Account
		balance, opening string
	)
	err := row.Scan(
		&acc.ID, &acc.Number, &acc.UserID, &acc.Type,
		&balance, &opening, &acc.Currency, &acc.Status, &acc.CreatedAt, &acc.ClosedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Account{}, fmt.Errorf("%w: account", domain.ErrNotFound)
	}
	if err != nil {
		return domain.Account{}, err
	}
	if acc.Balance, err = parseDecimal(balance); err != nil {
		return domain.Account{}, err
	}
	if acc.OpeningBalance, err = parseDecimal(opening); err != nil {
		return domain.Account{}, err
	}
	return acc, nil
}
