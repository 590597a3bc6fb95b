package projection

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jcmexdev/orderledger/internal/store"
)

// Defaults for the reconciliation sweep.
const (
	DefaultSweepInterval = 30 * time.Second
	DefaultSweepBatch    = 100
	DefaultSweepWorkers  = 4
)

// ReconcilerStore adds the sweep query on top of the history append.
type ReconcilerStore interface {
	HistoryStore
	UnprojectedSales(ctx context.Context, limit int) ([]*store.SaleHistoryRecord, error)
}

// Reconciler periodically scans for committed order lines that have no
// sale-history row and appends them. It is the backstop that turns the
// projector's at-least-once delivery into an eventual bijection between
// lines and ledger rows.
type Reconciler struct {
	store    ReconcilerStore
	interval time.Duration
	batch    int
	workers  int
}

// NewReconciler builds a reconciler; non-positive parameters fall back to
// the defaults.
func NewReconciler(st ReconcilerStore, interval time.Duration, batch, workers int) *Reconciler {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if batch <= 0 {
		batch = DefaultSweepBatch
	}
	if workers <= 0 {
		workers = DefaultSweepWorkers
	}
	return &Reconciler{store: st, interval: interval, batch: batch, workers: workers}
}

// Run sweeps on the configured interval until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := r.Sweep(ctx)
			if err != nil {
				slog.ErrorContext(ctx, "reconciliation sweep failed", "error", err)
			} else if n > 0 {
				slog.InfoContext(ctx, "reconciliation sweep repaired ledger rows", "count", n)
			}
		}
	}
}

// Sweep runs one pass and returns how many ledger rows it appended.
func (r *Reconciler) Sweep(ctx context.Context) (int, error) {
	missing, err := r.store.UnprojectedSales(ctx, r.batch)
	if err != nil {
		return 0, fmt.Errorf("projection: sweep: %w", err)
	}
	if len(missing) == 0 {
		return 0, nil
	}

	appended := make(chan int, len(missing))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for _, rec := range missing {
		g.Go(func() error {
			rec.ID = uuid.NewString()
			inserted, err := r.store.AppendSaleHistory(gctx, rec)
			if err != nil {
				return fmt.Errorf("projection: sweep append for line %q: %w", rec.OrderLineID, err)
			}
			if inserted {
				appended <- 1
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}
	close(appended)

	n := 0
	for range appended {
		n++
	}
	return n, nil
}
