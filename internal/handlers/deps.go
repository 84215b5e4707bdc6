package handlers

import (
	"context"
	"time"

	"marketplace/internal/models"
	"marketplace/internal/services"
	"marketplace/internal/store"
)

type UserStore interface {
	Create(ctx context.Context, tx store.Execer, id, username, email, passwordHash string) error
	GetByEmail(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, userID string) (models.User, error)
	IsAdmin(ctx context.Context, userID string) (bool, error)
	IsBanned(ctx context.Context, userID string) (bool, error)
}

type OutboxReader interface {
	CountPending(ctx context.Context) (int, error)
}

type SettlementService interface {
	Purchase(ctx context.Context, req services.PurchaseRequest) (services.PurchaseResult, error)
	TopUp(ctx context.Context, userID string, amountMinor int64) (int64, error)
	GetBalance(ctx context.Context, userID string) (int64, error)
	ListOrders(ctx context.Context, buyerID string, limit, offset int) ([]store.OrderHistoryRow, error)
}

type ListingService interface {
	Create(ctx context.Context, ownerID string, input services.CreateListingInput) (string, error)
	Get(ctx context.Context, listingID string) (models.Listing, []models.ListingPhoto, error)
	Renew(ctx context.Context, listingID, ownerID string) (time.Time, error)
	Activate(ctx context.Context, listingID, ownerID string) (time.Time, error)
	Update(ctx context.Context, listingID, ownerID string, input services.UpdateListingInput) error
	Delete(ctx context.Context, listingID string, actor services.Actor) error
	ListByOwner(ctx context.Context, ownerID string) ([]services.OwnedListing, error)
	SyncAll(ctx context.Context) (int, error)
}

type AdminService interface {
	DeleteUser(ctx context.Context, userID string, actor services.Actor) error
	ToggleBan(ctx context.Context, userID string, actor services.Actor) (bool, error)
	ListUsers(ctx context.Context, search string, limit, offset int) ([]store.UserSummary, error)
	ListListings(ctx context.Context, search string, limit, offset int) ([]store.ListingSummary, error)
	ListAuditLogs(ctx context.Context, limit, offset int) ([]map[string]any, error)
}
