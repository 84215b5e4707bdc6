package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"marketplace/internal/search"
	"marketplace/internal/store"
)

type stubDispatchStore struct {
	pending  []store.OutboxEntry
	done     []string
	attempts []string
}

func (s *stubDispatchStore) ListPending(ctx context.Context, limit int) ([]store.OutboxEntry, error) {
	if limit < len(s.pending) {
		return s.pending[:limit], nil
	}
	return s.pending, nil
}

func (s *stubDispatchStore) MarkDone(ctx context.Context, id string) error {
	s.done = append(s.done, id)
	return nil
}

func (s *stubDispatchStore) MarkAttempt(ctx context.Context, id string, maxAttempts int) error {
	s.attempts = append(s.attempts, id)
	return nil
}

type stubClient struct {
	upserted  []search.Record
	removed   []string
	upsertErr error
	removeErr error
}

func (c *stubClient) Upsert(ctx context.Context, record search.Record) error {
	if c.upsertErr != nil {
		return c.upsertErr
	}
	c.upserted = append(c.upserted, record)
	return nil
}

func (c *stubClient) Remove(ctx context.Context, listingID string) error {
	if c.removeErr != nil {
		return c.removeErr
	}
	c.removed = append(c.removed, listingID)
	return nil
}

func (c *stubClient) UpsertMany(ctx context.Context, records []search.Record) (int, error) {
	return len(records), nil
}

func upsertEntry(t *testing.T, id, listingID string) store.OutboxEntry {
	t.Helper()
	payload, err := json.Marshal(search.Record{ObjectID: listingID, Title: "entry"})
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	return store.OutboxEntry{ID: id, ListingID: listingID, Op: store.OutboxOpUpsert, Payload: payload}
}

func TestRunOnceDeliversBatch(t *testing.T) {
	dispatchStore := &stubDispatchStore{
		pending: []store.OutboxEntry{
			upsertEntry(t, "i1", "l1"),
			{ID: "i2", ListingID: "l2", Op: store.OutboxOpRemove},
		},
	}
	client := &stubClient{}
	d := NewDispatcher(dispatchStore, client, time.Minute, 100, 10)

	delivered, err := d.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if delivered != 2 {
		t.Fatalf("expected 2 delivered, got %d", delivered)
	}
	if len(client.upserted) != 1 || client.upserted[0].ObjectID != "l1" {
		t.Fatalf("unexpected upserts: %+v", client.upserted)
	}
	if len(client.removed) != 1 || client.removed[0] != "l2" {
		t.Fatalf("unexpected removes: %v", client.removed)
	}
	if len(dispatchStore.done) != 2 {
		t.Fatalf("expected both intents marked done, got %v", dispatchStore.done)
	}
}

func TestRunOnceProviderFailureMarksAttempt(t *testing.T) {
	dispatchStore := &stubDispatchStore{
		pending: []store.OutboxEntry{
			upsertEntry(t, "i1", "l1"),
			{ID: "i2", ListingID: "l2", Op: store.OutboxOpRemove},
		},
	}
	client := &stubClient{upsertErr: errors.New("provider down")}
	d := NewDispatcher(dispatchStore, client, time.Minute, 100, 10)

	delivered, err := d.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("provider failure must not fail the cycle: %v", err)
	}
	if delivered != 1 {
		t.Fatalf("expected the remove to still deliver, got %d", delivered)
	}
	if len(dispatchStore.attempts) != 1 || dispatchStore.attempts[0] != "i1" {
		t.Fatalf("expected attempt mark on i1, got %v", dispatchStore.attempts)
	}
	if len(dispatchStore.done) != 1 || dispatchStore.done[0] != "i2" {
		t.Fatalf("expected i2 done, got %v", dispatchStore.done)
	}
}

func TestRunOnceCorruptPayloadMarksAttempt(t *testing.T) {
	dispatchStore := &stubDispatchStore{
		pending: []store.OutboxEntry{
			{ID: "i1", ListingID: "l1", Op: store.OutboxOpUpsert, Payload: []byte("{broken")},
		},
	}
	d := NewDispatcher(dispatchStore, &stubClient{}, time.Minute, 100, 10)

	delivered, err := d.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if delivered != 0 || len(dispatchStore.attempts) != 1 {
		t.Fatalf("expected attempt mark for corrupt payload")
	}
}

func TestRunOnceHonorsBatchLimit(t *testing.T) {
	dispatchStore := &stubDispatchStore{
		pending: []store.OutboxEntry{
			upsertEntry(t, "i1", "l1"),
			upsertEntry(t, "i2", "l2"),
			upsertEntry(t, "i3", "l3"),
		},
	}
	client := &stubClient{}
	d := NewDispatcher(dispatchStore, client, time.Minute, 2, 10)

	delivered, err := d.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if delivered != 2 {
		t.Fatalf("expected batch of 2, got %d", delivered)
	}
}
