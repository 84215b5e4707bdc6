package services

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"marketplace/internal/clock"
	"marketplace/internal/db"
	"marketplace/internal/files"
	"marketplace/internal/models"
	"marketplace/internal/outbox"
	"marketplace/internal/search"
	"marketplace/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type LifecycleStore interface {
	Create(ctx context.Context, tx store.Execer, input store.ListingInput) error
	GetByID(ctx context.Context, listingID string) (models.Listing, error)
	GetForUpdate(ctx context.Context, tx store.Getter, listingID string) (models.Listing, error)
	SetExpiry(ctx context.Context, tx store.Execer, listingID string, expiresAt time.Time, active bool) error
	Update(ctx context.Context, tx store.Execer, listingID string, input store.ListingUpdate) error
	Delete(ctx context.Context, tx store.Execer, listingID string) error
	ListByOwner(ctx context.Context, userID string) ([]models.Listing, error)
	ListAll(ctx context.Context) ([]models.Listing, error)
}

type PhotoStore interface {
	Add(ctx context.Context, tx store.Execer, id, listingID, path string, isMain bool) error
	ListByListing(ctx context.Context, listingID string) ([]models.ListingPhoto, error)
}

// ListingService owns the Active/Inactive lifecycle. Every mutation
// enqueues a fresh index projection in the same transaction.
type ListingService struct {
	txRunner    db.TxRunner
	listings    LifecycleStore
	photos      PhotoStore
	outbox      outbox.EnqueueStore
	audit       AuditStore
	fileStore   files.Store
	searchc     search.Client
	clk         clock.Clock
	period      time.Duration
	renewWindow time.Duration
}

func NewListingService(txRunner db.TxRunner, listings LifecycleStore, photos PhotoStore, outboxStore outbox.EnqueueStore, audit AuditStore, fileStore files.Store, searchc search.Client, clk clock.Clock, period, renewWindow time.Duration) *ListingService {
	return &ListingService{
		txRunner:    txRunner,
		listings:    listings,
		photos:      photos,
		outbox:      outboxStore,
		audit:       audit,
		fileStore:   fileStore,
		searchc:     searchc,
		clk:         clk,
		period:      period,
		renewWindow: renewWindow,
	}
}

type CreateListingInput struct {
	Title       string
	Description string
	PriceMinor  int64
	Category    string
	Location    string
	Facets      string
	PhotoPaths  []string
}

// Create inserts a new active listing expiring one period from now.
func (s *ListingService) Create(ctx context.Context, ownerID string, input CreateListingInput) (string, error) {
	now := s.clk.Now()
	listingID := uuid.NewString()
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.listings.Create(ctx, tx, store.ListingInput{
			ID:          listingID,
			UserID:      ownerID,
			Title:       input.Title,
			Description: input.Description,
			Price:       input.PriceMinor,
			Category:    input.Category,
			Location:    input.Location,
			Facets:      input.Facets,
			ExpiresAt:   now.Add(s.period),
		}); err != nil {
			return err
		}
		for i, path := range input.PhotoPaths {
			if err := s.photos.Add(ctx, tx, uuid.NewString(), listingID, path, i == 0); err != nil {
				return err
			}
		}
		return outbox.EnqueueUpsert(ctx, tx, s.outbox, models.Listing{
			ID:          listingID,
			UserID:      ownerID,
			Title:       input.Title,
			Description: input.Description,
			Price:       input.PriceMinor,
			Category:    input.Category,
			Location:    input.Location,
			Facets:      input.Facets,
			Active:      true,
			CreatedAt:   now,
			ExpiresAt:   now.Add(s.period),
		})
	})
	if err != nil {
		return "", err
	}
	return listingID, nil
}

// Renew resets the expiry to one full period from now. Only allowed
// when the listing is inside the renew window or already expired.
func (s *ListingService) Renew(ctx context.Context, listingID, ownerID string) (time.Time, error) {
	var newExpiry time.Time
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		listing, err := s.ownedForUpdate(ctx, tx, listingID, ownerID)
		if err != nil {
			return err
		}
		now := s.clk.Now()
		if listing.ExpiresAt.Sub(now) >= s.renewWindow {
			return ErrRenewTooEarly
		}
		newExpiry = now.Add(s.period)
		if err := s.listings.SetExpiry(ctx, tx, listingID, newExpiry, true); err != nil {
			return err
		}
		listing.ExpiresAt = newExpiry
		listing.Active = true
		return outbox.EnqueueUpsert(ctx, tx, s.outbox, listing)
	})
	if err != nil {
		return time.Time{}, err
	}
	return newExpiry, nil
}

// Activate reactivates a listing. An expired listing gets a fresh
// period from now; a live one has a period stacked onto its current
// expiry.
func (s *ListingService) Activate(ctx context.Context, listingID, ownerID string) (time.Time, error) {
	var newExpiry time.Time
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		listing, err := s.ownedForUpdate(ctx, tx, listingID, ownerID)
		if err != nil {
			return err
		}
		now := s.clk.Now()
		if listing.ExpiresAt.Before(now) {
			newExpiry = now.Add(s.period)
		} else {
			newExpiry = listing.ExpiresAt.Add(s.period)
		}
		if err := s.listings.SetExpiry(ctx, tx, listingID, newExpiry, true); err != nil {
			return err
		}
		listing.ExpiresAt = newExpiry
		listing.Active = true
		return outbox.EnqueueUpsert(ctx, tx, s.outbox, listing)
	})
	if err != nil {
		return time.Time{}, err
	}
	return newExpiry, nil
}

type UpdateListingInput struct {
	Title       string
	Description string
	PriceMinor  int64
	Location    string
	Facets      string
}

func (s *ListingService) Update(ctx context.Context, listingID, ownerID string, input UpdateListingInput) error {
	return s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		listing, err := s.ownedForUpdate(ctx, tx, listingID, ownerID)
		if err != nil {
			return err
		}
		if err := s.listings.Update(ctx, tx, listingID, store.ListingUpdate{
			Title:       input.Title,
			Description: input.Description,
			Price:       input.PriceMinor,
			Location:    input.Location,
			Facets:      input.Facets,
		}); err != nil {
			return err
		}
		listing.Title = input.Title
		listing.Description = input.Description
		listing.Price = input.PriceMinor
		listing.Location = input.Location
		listing.Facets = input.Facets
		return outbox.EnqueueUpsert(ctx, tx, s.outbox, listing)
	})
}

// Delete removes a listing for its owner or an administrator. Photo
// files go first and are non-fatal; the authoritative row and the
// index-removal intent commit together, so the index entry is only
// dropped once the row is durably gone.
func (s *ListingService) Delete(ctx context.Context, listingID string, actor Actor) error {
	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrListingNotFound
		}
		return err
	}
	if listing.UserID != actor.ID && !actor.Admin {
		return ErrForbidden
	}
	photos, err := s.photos.ListByListing(ctx, listingID)
	if err != nil {
		return err
	}
	for _, photo := range photos {
		if err := s.fileStore.Delete(photo.Path); err != nil {
			log.Printf("listing %s: failed to delete photo %s: %v", listingID, photo.Path, err)
		}
	}
	return s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.listings.Delete(ctx, tx, listingID); err != nil {
			return err
		}
		if err := outbox.EnqueueRemove(ctx, tx, s.outbox, listingID); err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, "DELETE_LISTING", "deleted listing "+listing.Title, actor.Name)
	})
}

type OwnedListing struct {
	models.Listing
	Purchasable bool `json:"purchasable"`
}

func (s *ListingService) ListByOwner(ctx context.Context, ownerID string) ([]OwnedListing, error) {
	rows, err := s.listings.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	now := s.clk.Now()
	owned := make([]OwnedListing, 0, len(rows))
	for _, row := range rows {
		owned = append(owned, OwnedListing{Listing: row, Purchasable: row.Purchasable(now)})
	}
	return owned, nil
}

func (s *ListingService) Get(ctx context.Context, listingID string) (models.Listing, []models.ListingPhoto, error) {
	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Listing{}, nil, ErrListingNotFound
		}
		return models.Listing{}, nil, err
	}
	photos, err := s.photos.ListByListing(ctx, listingID)
	if err != nil {
		return models.Listing{}, nil, err
	}
	return listing, photos, nil
}

// SyncAll pushes every listing's projection to the index in one batch.
// Manual recovery valve for prolonged divergence.
func (s *ListingService) SyncAll(ctx context.Context) (int, error) {
	rows, err := s.listings.ListAll(ctx)
	if err != nil {
		return 0, err
	}
	records := make([]search.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, search.RecordFromListing(row))
	}
	return s.searchc.UpsertMany(ctx, records)
}

func (s *ListingService) ownedForUpdate(ctx context.Context, tx *sqlx.Tx, listingID, ownerID string) (models.Listing, error) {
	listing, err := s.listings.GetForUpdate(ctx, tx, listingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Listing{}, ErrListingNotFound
		}
		return models.Listing{}, err
	}
	if listing.UserID != ownerID {
		return models.Listing{}, ErrForbidden
	}
	return listing, nil
}
