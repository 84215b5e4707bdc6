package sweeper

import (
	"context"
	"log"
	"time"

	"marketplace/internal/clock"
	"marketplace/internal/db"
	"marketplace/internal/models"
	"marketplace/internal/outbox"
	"marketplace/internal/store"

	"github.com/jmoiron/sqlx"
)

type ListingStore interface {
	ListExpiredActive(ctx context.Context, tx store.Selecter, now time.Time) ([]models.Listing, error)
	SetActive(ctx context.Context, tx store.Execer, listingID string, active bool) error
}

// Sweeper is the only component that turns the passage of time into a
// state change: it deactivates listings whose expiry has passed and
// mirrors each one to the index through the outbox.
type Sweeper struct {
	txRunner db.TxRunner
	listings ListingStore
	outbox   outbox.EnqueueStore
	clk      clock.Clock
	interval time.Duration
}

func New(txRunner db.TxRunner, listings ListingStore, outboxStore outbox.EnqueueStore, clk clock.Clock, interval time.Duration) *Sweeper {
	return &Sweeper{
		txRunner: txRunner,
		listings: listings,
		outbox:   outboxStore,
		clk:      clk,
		interval: interval,
	}
}

// Run executes sweep cycles on a fixed schedule until ctx is done. A
// failed cycle is logged; the next one runs unaffected.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := s.RunOnce(ctx)
			if err != nil {
				log.Printf("sweeper: cycle failed: %v", err)
				continue
			}
			if count > 0 {
				log.Printf("sweeper: deactivated %d expired listings", count)
			}
		}
	}
}

// RunOnce deactivates every listing that has expired but is still
// flagged active. The flag flips and the index intents commit in one
// batch; there is no cross-listing invariant.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	var count int
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		expired, err := s.listings.ListExpiredActive(ctx, tx, s.clk.Now())
		if err != nil {
			return err
		}
		for _, listing := range expired {
			if err := s.listings.SetActive(ctx, tx, listing.ID, false); err != nil {
				return err
			}
			listing.Active = false
			if err := outbox.EnqueueUpsert(ctx, tx, s.outbox, listing); err != nil {
				return err
			}
		}
		count = len(expired)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
