package store

import (
	"context"

	"marketplace/internal/models"
)

type PhotoStore struct {
	db DB
}

func NewPhotoStore(db DB) *PhotoStore {
	return &PhotoStore{db: db}
}

func (s *PhotoStore) Add(ctx context.Context, tx Execer, id, listingID, path string, isMain bool) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO listing_photos (id, listing_id, path, is_main)
		VALUES ($1, $2, $3, $4)
	`, id, listingID, path, isMain)
	return err
}

func (s *PhotoStore) ListByListing(ctx context.Context, listingID string) ([]models.ListingPhoto, error) {
	var rows []models.ListingPhoto
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, listing_id, path, is_main
		FROM listing_photos
		WHERE listing_id = $1
		ORDER BY is_main DESC, id
	`, listingID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *PhotoStore) ListByOwner(ctx context.Context, userID string) ([]models.ListingPhoto, error) {
	var rows []models.ListingPhoto
	err := s.db.SelectContext(ctx, &rows, `
		SELECT p.id, p.listing_id, p.path, p.is_main
		FROM listing_photos p
		JOIN listings l ON l.id = p.listing_id
		WHERE l.user_id = $1
	`, userID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
