package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"marketplace/internal/db"
	"marketplace/internal/files"
	"marketplace/internal/models"
	"marketplace/internal/outbox"
	"marketplace/internal/store"

	"github.com/jmoiron/sqlx"
)

type AdminUserStore interface {
	GetByID(ctx context.Context, userID string) (models.User, error)
	SetBanned(ctx context.Context, tx store.Execer, userID string, banned bool) error
	Delete(ctx context.Context, tx store.Execer, userID string) error
	List(ctx context.Context, search string, limit, offset int) ([]store.UserSummary, error)
}

type AdminListingStore interface {
	ListByOwner(ctx context.Context, userID string) ([]models.Listing, error)
	ListWithOwners(ctx context.Context, search string, limit, offset int) ([]store.ListingSummary, error)
}

type OwnerPhotoStore interface {
	ListByOwner(ctx context.Context, userID string) ([]models.ListingPhoto, error)
}

type AuditReader interface {
	AuditStore
	List(ctx context.Context, limit, offset int) ([]map[string]any, error)
}

// AdminService handles the destructive administrative paths: cascading
// user deletion and bans.
type AdminService struct {
	txRunner  db.TxRunner
	users     AdminUserStore
	listings  AdminListingStore
	photos    OwnerPhotoStore
	outbox    outbox.EnqueueStore
	audit     AuditReader
	fileStore files.Store
}

func NewAdminService(txRunner db.TxRunner, users AdminUserStore, listings AdminListingStore, photos OwnerPhotoStore, outboxStore outbox.EnqueueStore, audit AuditReader, fileStore files.Store) *AdminService {
	return &AdminService{
		txRunner:  txRunner,
		users:     users,
		listings:  listings,
		photos:    photos,
		outbox:    outboxStore,
		audit:     audit,
		fileStore: fileStore,
	}
}

// DeleteUser removes a user and fans out to their listings' photos and
// index entries. Photo failures are collected, not fatal; the row
// deletions and index-removal intents commit in one transaction.
func (s *AdminService) DeleteUser(ctx context.Context, userID string, actor Actor) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}
	if user.Role == models.RoleAdmin {
		return ErrAdminProtected
	}
	photos, err := s.photos.ListByOwner(ctx, userID)
	if err != nil {
		return err
	}
	for _, photo := range photos {
		if err := s.fileStore.Delete(photo.Path); err != nil {
			log.Printf("user %s: failed to delete photo %s: %v", userID, photo.Path, err)
		}
	}
	owned, err := s.listings.ListByOwner(ctx, userID)
	if err != nil {
		return err
	}
	return s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, listing := range owned {
			if err := outbox.EnqueueRemove(ctx, tx, s.outbox, listing.ID); err != nil {
				return err
			}
		}
		if err := s.users.Delete(ctx, tx, userID); err != nil {
			return err
		}
		message := fmt.Sprintf("deleted user %s with %d listings", user.Username, len(owned))
		return s.audit.Log(ctx, tx, "DELETE_USER", message, actor.Name)
	})
}

// ToggleBan flips the banned flag. Administrators cannot be banned.
func (s *AdminService) ToggleBan(ctx context.Context, userID string, actor Actor) (bool, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrUserNotFound
		}
		return false, err
	}
	if user.Role == models.RoleAdmin {
		return false, ErrAdminProtected
	}
	banned := !user.Banned
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.users.SetBanned(ctx, tx, userID, banned); err != nil {
			return err
		}
		action := "USER_UNBAN"
		if banned {
			action = "USER_BAN"
		}
		return s.audit.Log(ctx, tx, action, "user "+user.Username, actor.Name)
	})
	if err != nil {
		return false, err
	}
	return banned, nil
}

func (s *AdminService) ListUsers(ctx context.Context, search string, limit, offset int) ([]store.UserSummary, error) {
	return s.users.List(ctx, search, limit, offset)
}

func (s *AdminService) ListListings(ctx context.Context, search string, limit, offset int) ([]store.ListingSummary, error) {
	return s.listings.ListWithOwners(ctx, search, limit, offset)
}

func (s *AdminService) ListAuditLogs(ctx context.Context, limit, offset int) ([]map[string]any, error) {
	return s.audit.List(ctx, limit, offset)
}
