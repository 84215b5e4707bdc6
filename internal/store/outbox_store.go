package store

import (
	"context"
	"time"
)

type OutboxStore struct {
	db DB
}

func NewOutboxStore(db DB) *OutboxStore {
	return &OutboxStore{db: db}
}

const (
	OutboxOpUpsert = "upsert"
	OutboxOpRemove = "remove"
)

const (
	OutboxStatusPending = "pending"
	OutboxStatusDone    = "done"
	OutboxStatusFailed  = "failed"
)

type OutboxEntry struct {
	ID        string    `db:"id"`
	ListingID string    `db:"listing_id"`
	Op        string    `db:"op"`
	Payload   []byte    `db:"payload"`
	Status    string    `db:"status"`
	Attempts  int       `db:"attempts"`
	CreatedAt time.Time `db:"created_at"`
}

// Enqueue appends an index intent inside the transaction that changed
// the listing, so the intent commits atomically with the change.
func (s *OutboxStore) Enqueue(ctx context.Context, tx Execer, id, listingID, op string, payload []byte) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO index_outbox (id, listing_id, op, payload, status, attempts)
		VALUES ($1, $2, $3, $4, 'pending', 0)
	`, id, listingID, op, payload)
	return err
}

func (s *OutboxStore) ListPending(ctx context.Context, limit int) ([]OutboxEntry, error) {
	var rows []OutboxEntry
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, listing_id, op, payload, status, attempts, created_at
		FROM index_outbox
		WHERE status = 'pending'
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *OutboxStore) MarkDone(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE index_outbox
		SET status = 'done', processed_at = NOW()
		WHERE id = $1
	`, id)
	return err
}

// MarkAttempt bumps the attempt counter and parks the entry as failed
// once maxAttempts is reached. Failed entries are left for a manual
// full resync.
func (s *OutboxStore) MarkAttempt(ctx context.Context, id string, maxAttempts int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE index_outbox
		SET attempts = attempts + 1,
		    status = CASE WHEN attempts + 1 >= $2 THEN 'failed' ELSE 'pending' END
		WHERE id = $1
	`, id, maxAttempts)
	return err
}

func (s *OutboxStore) CountPending(ctx context.Context) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(1) FROM index_outbox WHERE status = 'pending'
	`)
	return count, err
}
