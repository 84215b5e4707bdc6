package outbox

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"marketplace/internal/search"
	"marketplace/internal/store"
)

type DispatchStore interface {
	ListPending(ctx context.Context, limit int) ([]store.OutboxEntry, error)
	MarkDone(ctx context.Context, id string) error
	MarkAttempt(ctx context.Context, id string, maxAttempts int) error
}

// Dispatcher drains pending index intents against the search provider.
// Provider failures bump the attempt counter and are retried next
// cycle; they never reach the operation that enqueued the intent.
type Dispatcher struct {
	store       DispatchStore
	client      search.Client
	interval    time.Duration
	batch       int
	maxAttempts int
}

func NewDispatcher(dispatchStore DispatchStore, client search.Client, interval time.Duration, batch, maxAttempts int) *Dispatcher {
	return &Dispatcher{
		store:       dispatchStore,
		client:      client,
		interval:    interval,
		batch:       batch,
		maxAttempts: maxAttempts,
	}
}

func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.RunOnce(ctx); err != nil {
				log.Printf("outbox: cycle failed: %v", err)
			}
		}
	}
}

// RunOnce processes one batch oldest-first and reports how many intents
// were delivered.
func (d *Dispatcher) RunOnce(ctx context.Context) (int, error) {
	entries, err := d.store.ListPending(ctx, d.batch)
	if err != nil {
		return 0, err
	}
	delivered := 0
	for _, entry := range entries {
		if err := d.dispatch(ctx, entry); err != nil {
			log.Printf("outbox: %s %s failed (attempt %d): %v", entry.Op, entry.ListingID, entry.Attempts+1, err)
			if err := d.store.MarkAttempt(ctx, entry.ID, d.maxAttempts); err != nil {
				return delivered, err
			}
			continue
		}
		if err := d.store.MarkDone(ctx, entry.ID); err != nil {
			return delivered, err
		}
		delivered++
	}
	return delivered, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, entry store.OutboxEntry) error {
	switch entry.Op {
	case store.OutboxOpRemove:
		return d.client.Remove(ctx, entry.ListingID)
	default:
		var record search.Record
		if err := json.Unmarshal(entry.Payload, &record); err != nil {
			return err
		}
		return d.client.Upsert(ctx, record)
	}
}
