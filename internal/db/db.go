package db

import (
	"context"
	"database/sql"
	"errors"
	"math/rand"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// TxRunner abstracts "run this in a transaction" so services can be
// unit tested without a live database.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error
}

type SQLXTxRunner struct {
	db *sqlx.DB
}

func NewTxRunner(db *sqlx.DB) SQLXTxRunner {
	return SQLXTxRunner{db: db}
}

func (r SQLXTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	return WithTx(ctx, r.db, fn)
}

func Connect(databaseURL string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetMaxIdleConns(5)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

const txMaxAttempts = 5

var errRetryLimit = errors.New("transaction retry limit exceeded")

// WithTx runs fn inside a serializable transaction, retrying on
// serialization failures and deadlocks. Settlement relies on this to
// reject the second of two concurrent purchases of the same listing.
func WithTx(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) error {
	for attempt := 1; attempt <= txMaxAttempts; attempt++ {
		err := runOnce(ctx, db, fn)
		if err == nil {
			return nil
		}
		if !retryable(err) || attempt == txMaxAttempts {
			return err
		}
		backoff(attempt)
	}
	return errRetryLimit
}

func runOnce(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// retryable matches serialization_failure and deadlock_detected.
func retryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "40001" || pqErr.Code == "40P01"
}

func backoff(attempt int) {
	base := 20 * time.Millisecond
	jitter := time.Duration(rand.Int63n(int64(10 * time.Millisecond)))
	time.Sleep(time.Duration(attempt*attempt)*base + jitter)
}
