package services

import (
	"context"
	"time"

	"marketplace/internal/models"
	"marketplace/internal/search"
	"marketplace/internal/store"
	"marketplace/internal/websocket"

	"github.com/jmoiron/sqlx"
)

type fakeTxRunner struct {
	err error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.err != nil {
		return f.err
	}
	return fn(nil)
}

type stubUsers struct {
	getByIDFn       func(ctx context.Context, userID string) (models.User, error)
	getForUpdateFn  func(ctx context.Context, tx store.Getter, userID string) (models.User, error)
	updateBalanceFn func(ctx context.Context, tx store.Execer, userID string, balance int64) error
	setBannedFn     func(ctx context.Context, tx store.Execer, userID string, banned bool) error
	deleteFn        func(ctx context.Context, tx store.Execer, userID string) error
	listFn          func(ctx context.Context, search string, limit, offset int) ([]store.UserSummary, error)
}

func (s stubUsers) GetByID(ctx context.Context, userID string) (models.User, error) {
	return s.getByIDFn(ctx, userID)
}

func (s stubUsers) GetForUpdate(ctx context.Context, tx store.Getter, userID string) (models.User, error) {
	return s.getForUpdateFn(ctx, tx, userID)
}

func (s stubUsers) UpdateBalance(ctx context.Context, tx store.Execer, userID string, balance int64) error {
	if s.updateBalanceFn == nil {
		return nil
	}
	return s.updateBalanceFn(ctx, tx, userID, balance)
}

func (s stubUsers) SetBanned(ctx context.Context, tx store.Execer, userID string, banned bool) error {
	if s.setBannedFn == nil {
		return nil
	}
	return s.setBannedFn(ctx, tx, userID, banned)
}

func (s stubUsers) Delete(ctx context.Context, tx store.Execer, userID string) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, tx, userID)
}

func (s stubUsers) List(ctx context.Context, search string, limit, offset int) ([]store.UserSummary, error) {
	return s.listFn(ctx, search, limit, offset)
}

type stubListings struct {
	createFn         func(ctx context.Context, tx store.Execer, input store.ListingInput) error
	getByIDFn        func(ctx context.Context, listingID string) (models.Listing, error)
	getForUpdateFn   func(ctx context.Context, tx store.Getter, listingID string) (models.Listing, error)
	setActiveFn      func(ctx context.Context, tx store.Execer, listingID string, active bool) error
	setExpiryFn      func(ctx context.Context, tx store.Execer, listingID string, expiresAt time.Time, active bool) error
	updateFn         func(ctx context.Context, tx store.Execer, listingID string, input store.ListingUpdate) error
	deleteFn         func(ctx context.Context, tx store.Execer, listingID string) error
	listByOwnerFn    func(ctx context.Context, userID string) ([]models.Listing, error)
	listAllFn        func(ctx context.Context) ([]models.Listing, error)
	listWithOwnersFn func(ctx context.Context, search string, limit, offset int) ([]store.ListingSummary, error)
}

func (s stubListings) Create(ctx context.Context, tx store.Execer, input store.ListingInput) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, input)
}

func (s stubListings) GetByID(ctx context.Context, listingID string) (models.Listing, error) {
	return s.getByIDFn(ctx, listingID)
}

func (s stubListings) GetForUpdate(ctx context.Context, tx store.Getter, listingID string) (models.Listing, error) {
	return s.getForUpdateFn(ctx, tx, listingID)
}

func (s stubListings) SetActive(ctx context.Context, tx store.Execer, listingID string, active bool) error {
	if s.setActiveFn == nil {
		return nil
	}
	return s.setActiveFn(ctx, tx, listingID, active)
}

func (s stubListings) SetExpiry(ctx context.Context, tx store.Execer, listingID string, expiresAt time.Time, active bool) error {
	if s.setExpiryFn == nil {
		return nil
	}
	return s.setExpiryFn(ctx, tx, listingID, expiresAt, active)
}

func (s stubListings) Update(ctx context.Context, tx store.Execer, listingID string, input store.ListingUpdate) error {
	if s.updateFn == nil {
		return nil
	}
	return s.updateFn(ctx, tx, listingID, input)
}

func (s stubListings) Delete(ctx context.Context, tx store.Execer, listingID string) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, tx, listingID)
}

func (s stubListings) ListByOwner(ctx context.Context, userID string) ([]models.Listing, error) {
	return s.listByOwnerFn(ctx, userID)
}

func (s stubListings) ListAll(ctx context.Context) ([]models.Listing, error) {
	return s.listAllFn(ctx)
}

func (s stubListings) ListWithOwners(ctx context.Context, search string, limit, offset int) ([]store.ListingSummary, error) {
	return s.listWithOwnersFn(ctx, search, limit, offset)
}

type stubOrders struct {
	createFn     func(ctx context.Context, tx store.Execer, input store.OrderInput) error
	listByBuyerFn func(ctx context.Context, buyerID string, limit, offset int) ([]store.OrderHistoryRow, error)
}

func (s stubOrders) Create(ctx context.Context, tx store.Execer, input store.OrderInput) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, input)
}

func (s stubOrders) ListByBuyer(ctx context.Context, buyerID string, limit, offset int) ([]store.OrderHistoryRow, error) {
	return s.listByBuyerFn(ctx, buyerID, limit, offset)
}

type enqueuedIntent struct {
	listingID string
	op        string
	payload   []byte
}

type stubOutbox struct {
	intents []enqueuedIntent
	err     error
}

func (s *stubOutbox) Enqueue(ctx context.Context, tx store.Execer, id, listingID, op string, payload []byte) error {
	if s.err != nil {
		return s.err
	}
	s.intents = append(s.intents, enqueuedIntent{listingID: listingID, op: op, payload: payload})
	return nil
}

type auditedEntry struct {
	action  string
	message string
	actor   string
}

type stubAudit struct {
	entries []auditedEntry
	listFn  func(ctx context.Context, limit, offset int) ([]map[string]any, error)
}

func (s *stubAudit) Log(ctx context.Context, tx store.Execer, action, message, actor string) error {
	s.entries = append(s.entries, auditedEntry{action: action, message: message, actor: actor})
	return nil
}

func (s *stubAudit) List(ctx context.Context, limit, offset int) ([]map[string]any, error) {
	return s.listFn(ctx, limit, offset)
}

type broadcast struct {
	userID string
	update websocket.BalanceUpdate
}

type stubHub struct {
	sent []broadcast
}

func (s *stubHub) BroadcastBalance(userID string, update websocket.BalanceUpdate) {
	s.sent = append(s.sent, broadcast{userID: userID, update: update})
}

type stubPhotos struct {
	addFn           func(ctx context.Context, tx store.Execer, id, listingID, path string, isMain bool) error
	listByListingFn func(ctx context.Context, listingID string) ([]models.ListingPhoto, error)
	listByOwnerFn   func(ctx context.Context, userID string) ([]models.ListingPhoto, error)
}

func (s stubPhotos) Add(ctx context.Context, tx store.Execer, id, listingID, path string, isMain bool) error {
	if s.addFn == nil {
		return nil
	}
	return s.addFn(ctx, tx, id, listingID, path, isMain)
}

func (s stubPhotos) ListByListing(ctx context.Context, listingID string) ([]models.ListingPhoto, error) {
	if s.listByListingFn == nil {
		return nil, nil
	}
	return s.listByListingFn(ctx, listingID)
}

func (s stubPhotos) ListByOwner(ctx context.Context, userID string) ([]models.ListingPhoto, error) {
	if s.listByOwnerFn == nil {
		return nil, nil
	}
	return s.listByOwnerFn(ctx, userID)
}

type stubFiles struct {
	deleted []string
	err     error
}

func (s *stubFiles) Delete(path string) error {
	s.deleted = append(s.deleted, path)
	return s.err
}

type stubSearch struct {
	upsertFn     func(ctx context.Context, record search.Record) error
	removeFn     func(ctx context.Context, listingID string) error
	upsertManyFn func(ctx context.Context, records []search.Record) (int, error)
}

func (s stubSearch) Upsert(ctx context.Context, record search.Record) error {
	if s.upsertFn == nil {
		return nil
	}
	return s.upsertFn(ctx, record)
}

func (s stubSearch) Remove(ctx context.Context, listingID string) error {
	if s.removeFn == nil {
		return nil
	}
	return s.removeFn(ctx, listingID)
}

func (s stubSearch) UpsertMany(ctx context.Context, records []search.Record) (int, error) {
	if s.upsertManyFn == nil {
		return len(records), nil
	}
	return s.upsertManyFn(ctx, records)
}
