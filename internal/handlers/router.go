package handlers

import (
	"net/http"

	"marketplace/internal/config"
	"marketplace/internal/db"
	"marketplace/internal/middleware"
	"marketplace/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Handler struct {
	cfg        config.Config
	txRunner   db.TxRunner
	users      UserStore
	settlement SettlementService
	listings   ListingService
	admin      AdminService
	outbox     OutboxReader
	hub        *websocket.Hub
}

func New(cfg config.Config, txRunner db.TxRunner, users UserStore, settlement SettlementService, listings ListingService, admin AdminService, outbox OutboxReader, hub *websocket.Hub) *Handler {
	return &Handler{
		cfg:        cfg,
		txRunner:   txRunner,
		users:      users,
		settlement: settlement,
		listings:   listings,
		admin:      admin,
		outbox:     outbox,
		hub:        hub,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.Logger)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{h.cfg.AllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.With(middleware.Auth(h.cfg.JWTSecret)).Get("/me", h.Me)
	})
	router.Group(func(r chi.Router) {
		r.Use(middleware.Auth(h.cfg.JWTSecret))
		r.Use(middleware.RequireActive(h.users))
		r.Post("/listings", h.CreateListing)
		r.Get("/listings/mine", h.ListMyListings)
		r.Get("/listings/{id}", h.GetListing)
		r.Put("/listings/{id}", h.UpdateListing)
		r.Delete("/listings/{id}", h.DeleteListing)
		r.Post("/listings/{id}/renew", h.RenewListing)
		r.Post("/listings/{id}/activate", h.ActivateListing)
		r.Post("/orders", h.Purchase)
		r.Get("/orders", h.ListOrders)
		r.Get("/balance", h.GetBalance)
		r.Post("/balance/topup", h.TopUp)
	})
	router.Get("/ws/balances", h.WSBalances)

	router.Route("/admin", func(r chi.Router) {
		r.Use(middleware.Auth(h.cfg.JWTSecret))
		r.Use(middleware.RequireAdmin(h.users))
		r.Get("/users", h.AdminListUsers)
		r.Get("/listings", h.AdminListListings)
		r.Post("/users/{id}/ban", h.AdminToggleBan)
		r.Delete("/users/{id}", h.AdminDeleteUser)
		r.Delete("/listings/{id}", h.AdminDeleteListing)
		r.Post("/search/sync", h.AdminSyncSearch)
		r.Get("/outbox", h.AdminOutboxDepth)
		r.Get("/audit", h.AdminListAuditLogs)
	})

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}
