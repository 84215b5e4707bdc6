package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"marketplace/internal/clock"
	"marketplace/internal/db"
	"marketplace/internal/models"
	"marketplace/internal/money"
	"marketplace/internal/outbox"
	"marketplace/internal/store"
	"marketplace/internal/websocket"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type UserStore interface {
	GetByID(ctx context.Context, userID string) (models.User, error)
	GetForUpdate(ctx context.Context, tx store.Getter, userID string) (models.User, error)
	UpdateBalance(ctx context.Context, tx store.Execer, userID string, balance int64) error
}

type ListingStore interface {
	GetByID(ctx context.Context, listingID string) (models.Listing, error)
	GetForUpdate(ctx context.Context, tx store.Getter, listingID string) (models.Listing, error)
	SetActive(ctx context.Context, tx store.Execer, listingID string, active bool) error
}

type OrderStore interface {
	Create(ctx context.Context, tx store.Execer, input store.OrderInput) error
	ListByBuyer(ctx context.Context, buyerID string, limit, offset int) ([]store.OrderHistoryRow, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, action, message, actor string) error
}

type BalanceHub interface {
	BroadcastBalance(userID string, update websocket.BalanceUpdate)
}

// SettlementService moves money. Every mutation it performs runs inside
// a single store transaction; the search index only ever sees the
// result through the outbox, after commit.
type SettlementService struct {
	txRunner      db.TxRunner
	users         UserStore
	listings      ListingStore
	orders        OrderStore
	outbox        outbox.EnqueueStore
	audit         AuditStore
	hub           BalanceHub
	clk           clock.Clock
	maxTopUpMinor int64
}

func NewSettlementService(txRunner db.TxRunner, users UserStore, listings ListingStore, orders OrderStore, outboxStore outbox.EnqueueStore, audit AuditStore, hub BalanceHub, clk clock.Clock, maxTopUpMinor int64) *SettlementService {
	return &SettlementService{
		txRunner:      txRunner,
		users:         users,
		listings:      listings,
		orders:        orders,
		outbox:        outboxStore,
		audit:         audit,
		hub:           hub,
		clk:           clk,
		maxTopUpMinor: maxTopUpMinor,
	}
}

type PurchaseRequest struct {
	BuyerID         string
	ListingID       string
	DeliveryMethod  string
	DeliveryPoint   *string
	DeliveryAddress *string
}

type PurchaseResult struct {
	OrderID          string
	AmountPaid       int64
	RemainingBalance int64
}

// Purchase settles a sale: debit buyer, credit seller, deactivate the
// listing, insert the order. All four writes commit together or not at
// all. The index projection is enqueued in the same transaction and
// drained by the dispatcher after commit, so an index outage can never
// fail or roll back a settlement.
func (s *SettlementService) Purchase(ctx context.Context, req PurchaseRequest) (PurchaseResult, error) {
	var result PurchaseResult
	var sellerID string
	var sellerBalance int64
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		listing, err := s.listings.GetForUpdate(ctx, tx, req.ListingID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrListingNotFound
			}
			return err
		}
		now := s.clk.Now()
		if !listing.Purchasable(now) {
			return ErrListingUnavailable
		}
		if listing.UserID == req.BuyerID {
			return ErrOwnListing
		}
		buyer, seller, err := lockTwoUsers(ctx, tx, s.users, req.BuyerID, listing.UserID)
		if err != nil {
			return err
		}
		if buyer.Balance < listing.Price {
			return ErrInsufficientFunds
		}
		newBuyerBalance := buyer.Balance - listing.Price
		newSellerBalance := seller.Balance + listing.Price
		if err := s.users.UpdateBalance(ctx, tx, buyer.ID, newBuyerBalance); err != nil {
			return err
		}
		if err := s.users.UpdateBalance(ctx, tx, seller.ID, newSellerBalance); err != nil {
			return err
		}
		if err := s.listings.SetActive(ctx, tx, listing.ID, false); err != nil {
			return err
		}
		orderID := uuid.NewString()
		if err := s.orders.Create(ctx, tx, store.OrderInput{
			ID:              orderID,
			BuyerID:         buyer.ID,
			ListingID:       listing.ID,
			Amount:          listing.Price,
			Status:          models.OrderStatusPaid,
			DeliveryMethod:  req.DeliveryMethod,
			DeliveryPoint:   req.DeliveryPoint,
			DeliveryAddress: req.DeliveryAddress,
		}); err != nil {
			return err
		}
		listing.Active = false
		if err := outbox.EnqueueUpsert(ctx, tx, s.outbox, listing); err != nil {
			return err
		}
		result = PurchaseResult{
			OrderID:          orderID,
			AmountPaid:       listing.Price,
			RemainingBalance: newBuyerBalance,
		}
		sellerID = seller.ID
		sellerBalance = newSellerBalance
		message := fmt.Sprintf("order %s: listing %s sold for %s", orderID, listing.ID, money.FormatMinor(listing.Price))
		return s.audit.Log(ctx, tx, "ORDER_PAID", message, buyer.Username)
	})
	if err != nil {
		return PurchaseResult{}, err
	}
	s.hub.BroadcastBalance(req.BuyerID, websocket.BalanceUpdate{
		Balance: money.FormatMinor(result.RemainingBalance),
		Reason:  "purchase",
	})
	s.hub.BroadcastBalance(sellerID, websocket.BalanceUpdate{
		Balance: money.FormatMinor(sellerBalance),
		Reason:  "sale",
	})
	return result, nil
}

// TopUp credits externally supplied funds. Pure credit, no index
// interaction.
func (s *SettlementService) TopUp(ctx context.Context, userID string, amountMinor int64) (int64, error) {
	if amountMinor <= 0 || amountMinor > s.maxTopUpMinor {
		return 0, ErrInvalidAmount
	}
	var newBalance int64
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		user, err := s.users.GetForUpdate(ctx, tx, userID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrUserNotFound
			}
			return err
		}
		newBalance = user.Balance + amountMinor
		if err := s.users.UpdateBalance(ctx, tx, userID, newBalance); err != nil {
			return err
		}
		message := fmt.Sprintf("topped up %s", money.FormatMinor(amountMinor))
		return s.audit.Log(ctx, tx, "TOPUP", message, user.Username)
	})
	if err != nil {
		return 0, err
	}
	s.hub.BroadcastBalance(userID, websocket.BalanceUpdate{
		Balance: money.FormatMinor(newBalance),
		Reason:  "topup",
	})
	return newBalance, nil
}

func (s *SettlementService) GetBalance(ctx context.Context, userID string) (int64, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}
	return user.Balance, nil
}

func (s *SettlementService) ListOrders(ctx context.Context, buyerID string, limit, offset int) ([]store.OrderHistoryRow, error) {
	return s.orders.ListByBuyer(ctx, buyerID, limit, offset)
}

// lockTwoUsers takes both row locks in id order so two settlements
// touching the same pair cannot deadlock.
func lockTwoUsers(ctx context.Context, tx store.Getter, users UserStore, firstID, secondID string) (models.User, models.User, error) {
	leftID, rightID := orderedIDs(firstID, secondID)
	left, err := users.GetForUpdate(ctx, tx, leftID)
	if err != nil {
		return models.User{}, models.User{}, err
	}
	right, err := users.GetForUpdate(ctx, tx, rightID)
	if err != nil {
		return models.User{}, models.User{}, err
	}
	if firstID == leftID {
		return left, right, nil
	}
	return right, left, nil
}

func orderedIDs(firstID, secondID string) (string, string) {
	if firstID <= secondID {
		return firstID, secondID
	}
	return secondID, firstID
}
