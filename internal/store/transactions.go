package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ledger-engine/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const txCols = `tx_id, tx_number, from_account_id, to_account_id, amount::text,
	tx_type, status, description, request_hash, failure_reason,
	from_balance::text, to_balance::text, created_at, completed_at`

type transactionRecordedPayload struct {
	TxID     string `json:"tx_id"`
	TxNumber string `json:"tx_number"`
	TxType   string `json:"tx_type"`
	Status   string `json:"status"`
	Amount   string `json:"amount"`
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

type transactionResolvedPayload struct {
	TxID   string `json:"tx_id"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Append inserts the record, claiming its transaction number. The unique
// constraint on tx_number is the idempotency backstop: a lost race comes
// back as ErrDuplicateTransaction and never as a second row.
func (s *Store) Append(ctx context.Context, rec domain.Transaction) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`INSERT INTO transactions(
			tx_id, tx_number, from_account_id, to_account_id, amount,
			tx_type, status, description, request_hash, failure_reason, created_at
		) VALUES($1,$2,$3,$4,$5::numeric,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (tx_number) DO NOTHING`,
		rec.ID, rec.Number, rec.FromAccountID, rec.ToAccountID, rec.Amount.String(),
		rec.Type, rec.Status, rec.Description, rec.RequestHash, rec.FailureReason, rec.CreatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateTransaction, rec.Number)
	}

	payload := transactionRecordedPayload{
		TxID:     rec.ID.String(),
		TxNumber: rec.Number,
		TxType:   string(rec.Type),
		Status:   string(rec.Status),
		Amount:   rec.Amount.String(),
		Reason:   rec.FailureReason,
	}
	if rec.FromAccountID != nil {
		payload.From = rec.FromAccountID.String()
	}
	if rec.ToAccountID != nil {
		payload.To = rec.ToAccountID.String()
	}
	if err := insertEvent(ctx, tx, "TRANSACTION_RECORDED", "TRANSACTION", rec.ID.String(), payload); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Resolve applies the single pending -> terminal transition. The status
// guard in the UPDATE makes the transition exactly-once: a row that already
// reached a terminal state is never touched again.
func (s *Store) Resolve(ctx context.Context, id uuid.UUID, res domain.Resolution) error {
	if !res.Status.Terminal() {
		return fmt.Errorf("%w: resolution status must be terminal, got %q", domain.ErrValidation, res.Status)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE transactions
		    SET status=$2, failure_reason=$3,
		        from_balance=$4::numeric, to_balance=$5::numeric, completed_at=$6
		  WHERE tx_id=$1 AND status='pending'`,
		id, res.Status, res.FailureReason,
		optNumArg(res.FromBalance), optNumArg(res.ToBalance), res.CompletedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var status domain.TransactionStatus
		err := tx.QueryRow(ctx, `SELECT status FROM transactions WHERE tx_id=$1`, id).Scan(&status)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return fmt.Errorf("%w: transaction %s", domain.ErrNotFound, id)
		case err != nil:
			return err
		}
		return fmt.Errorf("%w: transaction %s already %s", domain.ErrValidation, id, status)
	}

	payload := transactionResolvedPayload{
		TxID:   id.String(),
		Status: string(res.Status),
		Reason: res.FailureReason,
	}
	if err := insertEvent(ctx, tx, "TRANSACTION_RESOLVED", "TRANSACTION", id.String(), payload); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) FindByNumber(ctx context.Context, number string) (domain.Transaction, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+txCols+` FROM transactions WHERE tx_number=$1`, number)
	return scanTransaction(row)
}

func (s *Store) ListForAccount(ctx context.Context, accountID uuid.UUID, from, to time.Time) ([]domain.Transaction, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+txCols+`
		   FROM transactions
		  WHERE (from_account_id=$1 OR to_account_id=$1)
		    AND created_at >= $2 AND created_at <= $3
		  ORDER BY created_at ASC, tx_id ASC`,
		accountID, from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		rec, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) CountPending(ctx context.Context, accountID uuid.UUID) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx,
		`SELECT count(*) FROM transactions
		  WHERE status='pending' AND (from_account_id=$1 OR to_account_id=$1)`,
		accountID,
	).Scan(&n)
	return n, err
}

func scanTransaction(row pgx.Row) (domain.Transaction, error) {
	var (
		rec                    domain.Transaction
		amount                 string
		fromBalance, toBalance *string
	)
	err := row.Scan(
		&rec.ID, &rec.Number, &rec.FromAccountID, &rec.ToAccountID, &amount,
		&rec.Type, &rec.Status, &rec.Description, &rec.RequestHash, &rec.FailureReason,
		&fromBalance, &toBalance, &rec.CreatedAt, &rec.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Transaction{}, fmt.Errorf("%w: transaction", domain.ErrNotFound)
	}
	if err != nil {
		return domain.Transaction{}, err
	}
	if rec.Amount, err = parseDecimal(amount); err != nil {
		return domain.Transaction{}, err
	}
	if rec.FromBalance, err = parseOptDecimal(fromBalance); err != nil {
		return domain.Transaction{}, err
	}
	if rec.ToBalance, err = parseOptDecimal(toBalance); err != nil {
		return domain.Transaction{}, err
	}
	return rec, nil
}
