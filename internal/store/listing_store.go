package store

import (
	"context"
	"time"

	"marketplace/internal/models"
)

type ListingStore struct {
	db DB
}

func NewListingStore(db DB) *ListingStore {
	return &ListingStore{db: db}
}

type ListingInput struct {
	ID          string
	UserID      string
	Title       string
	Description string
	Price       int64
	Category    string
	Location    string
	Facets      string
	ExpiresAt   time.Time
}

func (s *ListingStore) Create(ctx context.Context, tx Execer, input ListingInput) error {
	query := `
		INSERT INTO listings (id, user_id, title, description, price, category, location, facets, active, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE, $9)
	`
	_, err := tx.ExecContext(ctx, query,
		input.ID, input.UserID, input.Title, input.Description, input.Price,
		input.Category, input.Location, input.Facets, input.ExpiresAt,
	)
	return err
}

func (s *ListingStore) GetByID(ctx context.Context, listingID string) (models.Listing, error) {
	var row models.Listing
	err := s.db.GetContext(ctx, &row, `
		SELECT id, user_id, title, description, price, category, location, facets, active, created_at, expires_at
		FROM listings
		WHERE id = $1
	`, listingID)
	return row, err
}

// GetForUpdate locks the listing row so the active check and the
// active=false write of a sale happen against the same snapshot.
func (s *ListingStore) GetForUpdate(ctx context.Context, tx Getter, listingID string) (models.Listing, error) {
	var row models.Listing
	err := tx.GetContext(ctx, &row, `
		SELECT id, user_id, title, description, price, category, location, facets, active, created_at, expires_at
		FROM listings
		WHERE id = $1
		FOR UPDATE
	`, listingID)
	return row, err
}

func (s *ListingStore) SetActive(ctx context.Context, tx Execer, listingID string, active bool) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE listings
		SET active = $1, updated_at = NOW()
		WHERE id = $2
	`, active, listingID)
	return err
}

func (s *ListingStore) SetExpiry(ctx context.Context, tx Execer, listingID string, expiresAt time.Time, active bool) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE listings
		SET expires_at = $1, active = $2, updated_at = NOW()
		WHERE id = $3
	`, expiresAt, active, listingID)
	return err
}

type ListingUpdate struct {
	Title       string
	Description string
	Price       int64
	Location    string
	Facets      string
}

func (s *ListingStore) Update(ctx context.Context, tx Execer, listingID string, input ListingUpdate) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE listings
		SET title = $1, description = $2, price = $3, location = $4, facets = $5, updated_at = NOW()
		WHERE id = $6
	`, input.Title, input.Description, input.Price, input.Location, input.Facets, listingID)
	return err
}

func (s *ListingStore) Delete(ctx context.Context, tx Execer, listingID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM listings WHERE id = $1`, listingID)
	return err
}

func (s *ListingStore) ListByOwner(ctx context.Context, userID string) ([]models.Listing, error) {
	var rows []models.Listing
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, title, description, price, category, location, facets, active, created_at, expires_at
		FROM listings
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListExpiredActive returns listings whose expiry has passed but which
// are still flagged active. The sweeper is the only caller.
func (s *ListingStore) ListExpiredActive(ctx context.Context, tx Selecter, now time.Time) ([]models.Listing, error) {
	var rows []models.Listing
	err := tx.SelectContext(ctx, &rows, `
		SELECT id, user_id, title, description, price, category, location, facets, active, created_at, expires_at
		FROM listings
		WHERE expires_at < $1 AND active = TRUE
	`, now)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *ListingStore) ListAll(ctx context.Context) ([]models.Listing, error) {
	var rows []models.Listing
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, title, description, price, category, location, facets, active, created_at, expires_at
		FROM listings
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

type ListingSummary struct {
	ID        string    `db:"id"`
	Title     string    `db:"title"`
	Price     int64     `db:"price"`
	Category  string    `db:"category"`
	Active    bool      `db:"active"`
	Owner     string    `db:"owner"`
	CreatedAt time.Time `db:"created_at"`
}

func (s *ListingStore) ListWithOwners(ctx context.Context, search string, limit, offset int) ([]ListingSummary, error) {
	var rows []ListingSummary
	err := s.db.SelectContext(ctx, &rows, `
		SELECT l.id, l.title, l.price, l.category, l.active, u.username AS owner, l.created_at
		FROM listings l
		JOIN users u ON u.id = l.user_id
		WHERE ($1 = '' OR l.title ILIKE '%' || $1 || '%' OR u.username ILIKE '%' || $1 || '%')
		ORDER BY l.created_at DESC
		LIMIT $2 OFFSET $3
	`, search, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
