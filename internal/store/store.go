// Package store persists accounts and transactions in Postgres. One Store
// serves as both the engine's AccountStore and its TransactionLog; every
// row change is paired with an event_log append in the same database
// transaction so the audit trail can never drift from the ledger.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type Store struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store { return &Store{db: db} }

type jsonBytes = json.RawMessage

// jcsPayload returns both representations the event_log schema wants:
// regular JSON bytes (cast to jsonb in SQL) and the RFC 8785 canonical
// string.
func jcsPayload(v any) (payloadJSON jsonBytes, payloadCanonical string, err error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, "", err
	}
	canon, err := jcs.Transform(raw)
	if err != nil {
		return nil, "", err
	}
	return jsonBytes(raw), string(canon), nil
}

// insertEvent is the single entry point for event_log appends. Always called
// inside the transaction that performs the change being described.
func insertEvent(ctx context.Context, tx pgx.Tx, eventType, aggregateType, aggregateID string, payload any) error {
	payloadJSON, payloadCanonical, err := jcsPayload(payload)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO event_log(
			event_id, event_type, aggregate_type, aggregate_id, payload_json, payload_canonical
		) VALUES($1,$2,$3,$4,$5::jsonb,$6)`,
		uuid.New(), eventType, aggregateType, aggregateID, payloadJSON, payloadCanonical,
	)
	return err
}

// Money columns are selected as ::text and parsed here, so values never pass
// through a binary float representation.
func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("corrupt numeric %q: %w", s, err)
	}
	return d, nil
}

func parseOptDecimal(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := parseDecimal(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func optNumArg(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}
