package outbox

import (
	"context"
	"encoding/json"

	"marketplace/internal/models"
	"marketplace/internal/search"
	"marketplace/internal/store"

	"github.com/google/uuid"
)

// EnqueueStore is the slice of the outbox store needed to record an
// index intent inside a listing-mutating transaction.
type EnqueueStore interface {
	Enqueue(ctx context.Context, tx store.Execer, id, listingID, op string, payload []byte) error
}

// EnqueueUpsert records an intent to push the listing's full current
// projection to the index. The payload is captured at enqueue time, so
// a later mutation enqueues a later payload and the last write wins.
func EnqueueUpsert(ctx context.Context, tx store.Execer, s EnqueueStore, listing models.Listing) error {
	payload, err := json.Marshal(search.RecordFromListing(listing))
	if err != nil {
		return err
	}
	return s.Enqueue(ctx, tx, uuid.NewString(), listing.ID, store.OutboxOpUpsert, payload)
}

// EnqueueRemove records an intent to drop the listing from the index.
// It is enqueued in the same transaction that deletes the row, so the
// index removal can only happen after the authoritative row is gone.
func EnqueueRemove(ctx context.Context, tx store.Execer, s EnqueueStore, listingID string) error {
	return s.Enqueue(ctx, tx, uuid.NewString(), listingID, store.OutboxOpRemove, nil)
}
