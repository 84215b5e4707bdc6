package store

import (
	"context"
	"time"
)

type OrderStore struct {
	db DB
}

func NewOrderStore(db DB) *OrderStore {
	return &OrderStore{db: db}
}

type OrderInput struct {
	ID              string
	BuyerID         string
	ListingID       string
	Amount          int64
	Status          string
	DeliveryMethod  string
	DeliveryPoint   *string
	DeliveryAddress *string
}

func (s *OrderStore) Create(ctx context.Context, tx Execer, input OrderInput) error {
	query := `
		INSERT INTO orders (id, buyer_id, listing_id, amount, status, delivery_method, delivery_point, delivery_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := tx.ExecContext(ctx, query,
		input.ID, input.BuyerID, input.ListingID, input.Amount, input.Status,
		input.DeliveryMethod, input.DeliveryPoint, input.DeliveryAddress,
	)
	return err
}

type OrderHistoryRow struct {
	ID              string    `db:"id"`
	Amount          int64     `db:"amount"`
	Status          string    `db:"status"`
	DeliveryMethod  string    `db:"delivery_method"`
	DeliveryPoint   *string   `db:"delivery_point"`
	DeliveryAddress *string   `db:"delivery_address"`
	ListingTitle    *string   `db:"listing_title"`
	CreatedAt       time.Time `db:"created_at"`
}

func (s *OrderStore) ListByBuyer(ctx context.Context, buyerID string, limit, offset int) ([]OrderHistoryRow, error) {
	var rows []OrderHistoryRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT o.id, o.amount, o.status, o.delivery_method, o.delivery_point, o.delivery_address,
		       l.title AS listing_title, o.created_at
		FROM orders o
		LEFT JOIN listings l ON l.id = o.listing_id
		WHERE o.buyer_id = $1
		ORDER BY o.created_at DESC
		LIMIT $2 OFFSET $3
	`, buyerID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
