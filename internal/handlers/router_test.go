package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"marketplace/internal/auth"
	"marketplace/internal/config"
	"marketplace/internal/models"
	"marketplace/internal/services"
	"marketplace/internal/store"
	"marketplace/internal/websocket"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
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

type stubUserStore struct {
	users map[string]models.User
}

func (s stubUserStore) Create(ctx context.Context, tx store.Execer, id, username, email, passwordHash string) error {
	return nil
}

func (s stubUserStore) GetByEmail(ctx context.Context, email string) (models.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, sql.ErrNoRows
}

func (s stubUserStore) GetByID(ctx context.Context, userID string) (models.User, error) {
	u, ok := s.users[userID]
	if !ok {
		return models.User{}, sql.ErrNoRows
	}
	return u, nil
}

func (s stubUserStore) IsAdmin(ctx context.Context, userID string) (bool, error) {
	return s.users[userID].Role == models.RoleAdmin, nil
}

func (s stubUserStore) IsBanned(ctx context.Context, userID string) (bool, error) {
	return s.users[userID].Banned, nil
}

type stubOutboxReader struct {
	pendingFn func(ctx context.Context) (int, error)
}

func (s stubOutboxReader) CountPending(ctx context.Context) (int, error) {
	if s.pendingFn != nil {
		return s.pendingFn(ctx)
	}
	return 0, nil
}

type stubSettlement struct {
	purchaseFn func(ctx context.Context, req services.PurchaseRequest) (services.PurchaseResult, error)
	topUpFn    func(ctx context.Context, userID string, amountMinor int64) (int64, error)
	balanceFn  func(ctx context.Context, userID string) (int64, error)
	ordersFn   func(ctx context.Context, buyerID string, limit, offset int) ([]store.OrderHistoryRow, error)
}

func (s stubSettlement) Purchase(ctx context.Context, req services.PurchaseRequest) (services.PurchaseResult, error) {
	return s.purchaseFn(ctx, req)
}

func (s stubSettlement) TopUp(ctx context.Context, userID string, amountMinor int64) (int64, error) {
	return s.topUpFn(ctx, userID, amountMinor)
}

func (s stubSettlement) GetBalance(ctx context.Context, userID string) (int64, error) {
	return s.balanceFn(ctx, userID)
}

func (s stubSettlement) ListOrders(ctx context.Context, buyerID string, limit, offset int) ([]store.OrderHistoryRow, error) {
	return s.ordersFn(ctx, buyerID, limit, offset)
}

type stubListingService struct {
	createFn   func(ctx context.Context, ownerID string, input services.CreateListingInput) (string, error)
	getFn      func(ctx context.Context, listingID string) (models.Listing, []models.ListingPhoto, error)
	renewFn    func(ctx context.Context, listingID, ownerID string) (time.Time, error)
	activateFn func(ctx context.Context, listingID, ownerID string) (time.Time, error)
	updateFn   func(ctx context.Context, listingID, ownerID string, input services.UpdateListingInput) error
	deleteFn   func(ctx context.Context, listingID string, actor services.Actor) error
	byOwnerFn  func(ctx context.Context, ownerID string) ([]services.OwnedListing, error)
	syncAllFn  func(ctx context.Context) (int, error)
}

func (s stubListingService) Create(ctx context.Context, ownerID string, input services.CreateListingInput) (string, error) {
	return s.createFn(ctx, ownerID, input)
}

func (s stubListingService) Get(ctx context.Context, listingID string) (models.Listing, []models.ListingPhoto, error) {
	return s.getFn(ctx, listingID)
}

func (s stubListingService) Renew(ctx context.Context, listingID, ownerID string) (time.Time, error) {
	return s.renewFn(ctx, listingID, ownerID)
}

func (s stubListingService) Activate(ctx context.Context, listingID, ownerID string) (time.Time, error) {
	return s.activateFn(ctx, listingID, ownerID)
}

func (s stubListingService) Update(ctx context.Context, listingID, ownerID string, input services.UpdateListingInput) error {
	return s.updateFn(ctx, listingID, ownerID, input)
}

func (s stubListingService) Delete(ctx context.Context, listingID string, actor services.Actor) error {
	return s.deleteFn(ctx, listingID, actor)
}

func (s stubListingService) ListByOwner(ctx context.Context, ownerID string) ([]services.OwnedListing, error) {
	return s.byOwnerFn(ctx, ownerID)
}

func (s stubListingService) SyncAll(ctx context.Context) (int, error) {
	return s.syncAllFn(ctx)
}

type stubAdminService struct {
	deleteUserFn func(ctx context.Context, userID string, actor services.Actor) error
	toggleBanFn  func(ctx context.Context, userID string, actor services.Actor) (bool, error)
	listUsersFn  func(ctx context.Context, search string, limit, offset int) ([]store.UserSummary, error)
	listingsFn   func(ctx context.Context, search string, limit, offset int) ([]store.ListingSummary, error)
	auditFn      func(ctx context.Context, limit, offset int) ([]map[string]any, error)
}

func (s stubAdminService) DeleteUser(ctx context.Context, userID string, actor services.Actor) error {
	return s.deleteUserFn(ctx, userID, actor)
}

func (s stubAdminService) ToggleBan(ctx context.Context, userID string, actor services.Actor) (bool, error) {
	return s.toggleBanFn(ctx, userID, actor)
}

func (s stubAdminService) ListUsers(ctx context.Context, search string, limit, offset int) ([]store.UserSummary, error) {
	return s.listUsersFn(ctx, search, limit, offset)
}

func (s stubAdminService) ListListings(ctx context.Context, search string, limit, offset int) ([]store.ListingSummary, error) {
	return s.listingsFn(ctx, search, limit, offset)
}

func (s stubAdminService) ListAuditLogs(ctx context.Context, limit, offset int) ([]map[string]any, error) {
	return s.auditFn(ctx, limit, offset)
}

func testConfig() config.Config {
	return config.Config{
		JWTSecret:      "test-secret",
		TokenTTL:       time.Hour,
		AllowedOrigins: "*",
	}
}

type handlerFixture struct {
	handler    http.Handler
	users      map[string]models.User
	settlement stubSettlement
	listings   stubListingService
	admin      stubAdminService
	outbox     stubOutboxReader
	txRunner   fakeTxRunner
}

func newHandlerFixture(t *testing.T, build func(f *handlerFixture)) *handlerFixture {
	t.Helper()
	f := &handlerFixture{
		users: map[string]models.User{},
	}
	if build != nil {
		build(f)
	}
	h := New(testConfig(), f.txRunner, stubUserStore{users: f.users}, f.settlement, f.listings, f.admin, f.outbox, websocket.NewHub())
	f.handler = h.Routes()
	return f
}

func bearer(t *testing.T, userID string) string {
	t.Helper()
	token, err := auth.GenerateToken("test-secret", userID, time.Hour)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	return "Bearer " + token
}

func doJSON(t *testing.T, handler http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestPurchaseEndpoint(t *testing.T) {
	f := newHandlerFixture(t, func(f *handlerFixture) {
		f.settlement = stubSettlement{
			purchaseFn: func(ctx context.Context, req services.PurchaseRequest) (services.PurchaseResult, error) {
				if req.BuyerID != "buyer" || req.ListingID != "l1" {
					t.Fatalf("unexpected request: %+v", req)
				}
				return services.PurchaseResult{OrderID: "o1", AmountPaid: 50000, RemainingBalance: 50000}, nil
			},
		}
	})

	rec := doJSON(t, f.handler, http.MethodPost, "/orders", bearer(t, "buyer"), `{"listing_id":"l1","delivery_method":"pickup"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["order_id"] != "o1" || resp["amount_paid"] != "500.00" || resp["balance"] != "500.00" {
		t.Fatalf("unexpected response: %v", resp)
	}
}

func TestPurchaseEndpointMapsConflict(t *testing.T) {
	f := newHandlerFixture(t, func(f *handlerFixture) {
		f.settlement = stubSettlement{
			purchaseFn: func(ctx context.Context, req services.PurchaseRequest) (services.PurchaseResult, error) {
				return services.PurchaseResult{}, services.ErrListingUnavailable
			},
		}
	})

	rec := doJSON(t, f.handler, http.MethodPost, "/orders", bearer(t, "buyer"), `{"listing_id":"l1"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "listing_not_available") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestPurchaseEndpointRequiresAuth(t *testing.T) {
	f := newHandlerFixture(t, nil)

	rec := doJSON(t, f.handler, http.MethodPost, "/orders", "", `{"listing_id":"l1"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestPurchaseEndpointRequiresListingID(t *testing.T) {
	f := newHandlerFixture(t, nil)

	rec := doJSON(t, f.handler, http.MethodPost, "/orders", bearer(t, "buyer"), `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestTopUpEndpointRejectsMalformedAmount(t *testing.T) {
	f := newHandlerFixture(t, func(f *handlerFixture) {
		f.settlement = stubSettlement{
			topUpFn: func(ctx context.Context, userID string, amountMinor int64) (int64, error) {
				t.Fatalf("service must not be reached")
				return 0, nil
			},
		}
	})

	rec := doJSON(t, f.handler, http.MethodPost, "/balance/topup", bearer(t, "buyer"), `{"amount":"lots"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestTopUpEndpointParsesDecimal(t *testing.T) {
	f := newHandlerFixture(t, func(f *handlerFixture) {
		f.settlement = stubSettlement{
			topUpFn: func(ctx context.Context, userID string, amountMinor int64) (int64, error) {
				if amountMinor != 2550 {
					t.Fatalf("expected 2550 minor units, got %d", amountMinor)
				}
				return 12550, nil
			},
		}
	})

	rec := doJSON(t, f.handler, http.MethodPost, "/balance/topup", bearer(t, "buyer"), `{"amount":"25.50"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "125.50") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestGetBalanceEndpoint(t *testing.T) {
	f := newHandlerFixture(t, func(f *handlerFixture) {
		f.settlement = stubSettlement{
			balanceFn: func(ctx context.Context, userID string) (int64, error) {
				return 50000, nil
			},
		}
	})

	rec := doJSON(t, f.handler, http.MethodGet, "/balance", bearer(t, "buyer"), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"500.00"`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestCreateListingRejectsUnknownCategory(t *testing.T) {
	f := newHandlerFixture(t, nil)

	rec := doJSON(t, f.handler, http.MethodPost, "/listings", bearer(t, "owner"),
		`{"title":"boat","category":"boat","price":"100.00"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRenewEndpointMapsTooEarly(t *testing.T) {
	f := newHandlerFixture(t, func(f *handlerFixture) {
		f.listings = stubListingService{
			renewFn: func(ctx context.Context, listingID, ownerID string) (time.Time, error) {
				return time.Time{}, services.ErrRenewTooEarly
			},
		}
	})

	rec := doJSON(t, f.handler, http.MethodPost, "/listings/l1/renew", bearer(t, "owner"), "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "renew_too_early") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestDeleteListingMapsForbidden(t *testing.T) {
	f := newHandlerFixture(t, func(f *handlerFixture) {
		f.users["stranger"] = models.User{ID: "stranger", Username: "stranger"}
		f.listings = stubListingService{
			deleteFn: func(ctx context.Context, listingID string, actor services.Actor) error {
				if actor.Admin {
					t.Fatalf("plain delete must not carry admin privileges")
				}
				return services.ErrForbidden
			},
		}
	})

	rec := doJSON(t, f.handler, http.MethodDelete, "/listings/l1", bearer(t, "stranger"), "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	f := newHandlerFixture(t, func(f *handlerFixture) {
		f.users["pleb"] = models.User{ID: "pleb", Role: models.RoleUser}
	})

	rec := doJSON(t, f.handler, http.MethodGet, "/admin/users", bearer(t, "pleb"), "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestAdminDeleteListingCarriesAdminActor(t *testing.T) {
	f := newHandlerFixture(t, func(f *handlerFixture) {
		f.users["root"] = models.User{ID: "root", Username: "root", Role: models.RoleAdmin}
		f.listings = stubListingService{
			deleteFn: func(ctx context.Context, listingID string, actor services.Actor) error {
				if !actor.Admin || actor.ID != "root" {
					t.Fatalf("expected admin actor, got %+v", actor)
				}
				return nil
			},
		}
	})

	rec := doJSON(t, f.handler, http.MethodDelete, "/admin/listings/l1", bearer(t, "root"), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAdminSyncSearch(t *testing.T) {
	f := newHandlerFixture(t, func(f *handlerFixture) {
		f.users["root"] = models.User{ID: "root", Role: models.RoleAdmin}
		f.listings = stubListingService{
			syncAllFn: func(ctx context.Context) (int, error) {
				return 7, nil
			},
		}
	})

	rec := doJSON(t, f.handler, http.MethodPost, "/admin/search/sync", bearer(t, "root"), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"synced":7`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestAdminOutboxDepth(t *testing.T) {
	f := newHandlerFixture(t, func(f *handlerFixture) {
		f.users["root"] = models.User{ID: "root", Role: models.RoleAdmin}
		f.outbox = stubOutboxReader{
			pendingFn: func(ctx context.Context) (int, error) {
				return 12, nil
			},
		}
	})

	rec := doJSON(t, f.handler, http.MethodGet, "/admin/outbox", bearer(t, "root"), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["pending"] != 12 {
		t.Fatalf("expected 12 pending, got %d", resp["pending"])
	}
}

func TestBannedUserBlockedFromAuthedRoutes(t *testing.T) {
	f := newHandlerFixture(t, func(f *handlerFixture) {
		f.users["b1"] = models.User{ID: "b1", Banned: true}
		f.settlement = stubSettlement{
			purchaseFn: func(ctx context.Context, req services.PurchaseRequest) (services.PurchaseResult, error) {
				t.Fatalf("banned user must not reach settlement")
				return services.PurchaseResult{}, nil
			},
		}
	})

	rec := doJSON(t, f.handler, http.MethodPost, "/orders", bearer(t, "b1"), `{"listing_id":"l1"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newHandlerFixture(t, func(f *handlerFixture) {
		f.txRunner = fakeTxRunner{err: &pq.Error{Code: "23505"}}
	})

	rec := doJSON(t, f.handler, http.MethodPost, "/auth/register", "",
		`{"username":"seller","email":"s@example.com","password":"longenough"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestLoginBannedUser(t *testing.T) {
	hash, err := auth.HashPassword("longenough")
	if err != nil {
		t.Fatalf("failed to hash: %v", err)
	}
	f := newHandlerFixture(t, func(f *handlerFixture) {
		f.users["u1"] = models.User{ID: "u1", Email: "b@example.com", PasswordHash: hash, Banned: true}
	})

	rec := doJSON(t, f.handler, http.MethodPost, "/auth/login", "",
		`{"email":"b@example.com","password":"longenough"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	f := newHandlerFixture(t, nil)

	rec := doJSON(t, f.handler, http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
