package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketplace/internal/clock"
	"marketplace/internal/config"
	"marketplace/internal/db"
	"marketplace/internal/files"
	"marketplace/internal/handlers"
	"marketplace/internal/outbox"
	"marketplace/internal/search"
	"marketplace/internal/services"
	"marketplace/internal/store"
	"marketplace/internal/sweeper"
	"marketplace/internal/websocket"
)

func main() {
	cfg := config.Load()
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer database.Close()

	users := store.NewUserStore(database)
	listings := store.NewListingStore(database)
	photos := store.NewPhotoStore(database)
	orders := store.NewOrderStore(database)
	outboxStore := store.NewOutboxStore(database)
	audit := store.NewAuditStore(database)
	txRunner := db.NewTxRunner(database)
	hub := websocket.NewHub()
	clk := clock.NewSystem()
	fileStore := files.NewLocalStore(cfg.PhotoDir)
	searchClient := search.NewHTTPClient(cfg.SearchBaseURL, cfg.SearchIndex)

	settlement := services.NewSettlementService(txRunner, users, listings, orders, outboxStore, audit, hub, clk, cfg.MaxTopUpMinor)
	listingSvc := services.NewListingService(txRunner, listings, photos, outboxStore, audit, fileStore, searchClient, clk, cfg.ListingPeriod, cfg.RenewWindow)
	adminSvc := services.NewAdminService(txRunner, users, listings, photos, outboxStore, audit, fileStore)

	sweep := sweeper.New(txRunner, listings, outboxStore, clk, cfg.SweepInterval)
	dispatcher := outbox.NewDispatcher(outboxStore, searchClient, cfg.OutboxInterval, cfg.OutboxBatch, cfg.OutboxMaxAttempts)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	go sweep.Run(workerCtx)
	go dispatcher.Run(workerCtx)

	handler := handlers.New(cfg, txRunner, users, settlement, listingSvc, adminSvc, outboxStore, hub)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("marketplace API listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown
	stopWorkers()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}
