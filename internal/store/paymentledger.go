package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PaymentLedger is the PaymentConsumptionLedger: it admits each payment_hash
// at most once, using the table's unique constraint as the sole source of
// truth for first-writer-wins.
type PaymentLedger struct {
	db *pgxpool.Pool
}

func NewPaymentLedger(db *DB) *PaymentLedger {
	return &PaymentLedger{db: db.pool}
}

// Admit attempts to insert paymentHash into the ledger. It returns true if
// this is the first admission (the caller may proceed), false if the hash
// was already consumed (a replay). It never reads before writing.
func (l *PaymentLedger) Admit(ctx context.Context, paymentHash string) (bool, error) {
	query := `INSERT INTO consumed_payments (payment_hash, consumed_at) VALUES ($1, $2)`

	_, err := l.db.Exec(ctx, query, paymentHash, time.Now().UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return false, nil
		}
		return false, fmt.Errorf("admit payment_hash: %w", err)
	}

	return true, nil
}
