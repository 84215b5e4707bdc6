package models

import "time"

type User struct {
	ID           string    `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	Banned       bool      `db:"banned" json:"banned"`
	Balance      int64     `db:"balance" json:"balance"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type Listing struct {
	ID          string    `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"user_id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	Price       int64     `db:"price" json:"price"`
	Category    string    `db:"category" json:"category"`
	Location    string    `db:"location" json:"location"`
	Facets      string    `db:"facets" json:"facets"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	ExpiresAt   time.Time `db:"expires_at" json:"expires_at"`
}

// Purchasable is the single derived predicate for "can this listing be
// bought at time now". The active flag and the expiry are independent
// columns; neither alone is trustworthy.
func (l Listing) Purchasable(now time.Time) bool {
	return l.Active && now.Before(l.ExpiresAt)
}

type ListingPhoto struct {
	ID        string `db:"id" json:"id"`
	ListingID string `db:"listing_id" json:"listing_id"`
	Path      string `db:"path" json:"path"`
	IsMain    bool   `db:"is_main" json:"is_main"`
}

const (
	CategoryVehicle = "vehicle"
	CategoryPart    = "part"
)

type Order struct {
	ID              string    `db:"id" json:"id"`
	BuyerID         string    `db:"buyer_id" json:"buyer_id"`
	ListingID       string    `db:"listing_id" json:"listing_id"`
	Amount          int64     `db:"amount" json:"amount"`
	Status          string    `db:"status" json:"status"`
	DeliveryMethod  string    `db:"delivery_method" json:"delivery_method"`
	DeliveryPoint   *string   `db:"delivery_point" json:"delivery_point,omitempty"`
	DeliveryAddress *string   `db:"delivery_address" json:"delivery_address,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

const OrderStatusPaid = "paid"
