// Package inventory implements the inventory ledger: authoritative stock
// counts guarded by per-product exclusive locks.
//
// The lock table is the application-level equivalent of SELECT ... FOR UPDATE.
// Each product has its own lock, so reservations on different products never
// block each other; a bounded wait turns contention into a retryable
// concurrency conflict instead of an unbounded stall.
package inventory

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/orderledger/internal/store"
)

// DefaultLockWait bounds how long a reservation waits for a contended
// product lock before failing with a concurrency conflict.
const DefaultLockWait = 5 * time.Second

// StockStore is the slice of the persistence layer the ledger needs:
// a transactional read of the product row and the guarded decrement.
type StockStore interface {
	ProductForUpdate(ctx context.Context, tx *sql.Tx, id string) (*store.Product, error)
	DecrementStock(ctx context.Context, tx *sql.Tx, id string, qty int) error
}

// Reservation is the handle returned by a successful reserve: the decrement
// is part of the enclosing transaction, so rolling the transaction back
// undoes it. UnitPrice is the price snapshot taken at reservation time.
type Reservation struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
	Remaining int
}

// Ledger owns the per-product lock table and performs reservations against
// the stock store.
type Ledger struct {
	store StockStore
	wait  time.Duration

	mu    sync.Mutex
	locks map[string]chan struct{}
}

// NewLedger builds a ledger over the given stock store. A non-positive wait
// falls back to DefaultLockWait.
func NewLedger(st StockStore, wait time.Duration) *Ledger {
	if wait <= 0 {
		wait = DefaultLockWait
	}
	return &Ledger{
		store: st,
		wait:  wait,
		locks: make(map[string]chan struct{}),
	}
}

// lockFor returns the lock channel for a product, creating it lazily.
// Locks are never removed: the set of products is bounded and a stable
// channel identity is what keeps waiters queueing on the same lock.
func (l *Ledger) lockFor(productID string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.locks[productID]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[productID] = ch
	}
	return ch
}

// Acquire takes the exclusive locks for every product in ids, always in
// ascending id order. That canonical order is the deadlock-avoidance rule:
// two placements sharing two or more products request them in the same
// relative order, so a circular wait cannot form.
//
// On success the returned release function must be called exactly once,
// after the enclosing transaction commits or aborts. On any failure all
// locks taken so far are released and store.ErrConcurrencyConflict is
// returned (wrapped) if the wait timed out.
func (l *Ledger) Acquire(ctx context.Context, ids []string) (release func(), err error) {
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)
	// Collapse duplicates so an order with two lines for one product does
	// not deadlock against itself.
	sorted = dedupe(sorted)

	held := make([]chan struct{}, 0, len(sorted))
	releaseHeld := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
	}

	for _, id := range sorted {
		ch := l.lockFor(id)
		timer := time.NewTimer(l.wait)
		select {
		case ch <- struct{}{}:
			timer.Stop()
			held = append(held, ch)
		case <-timer.C:
			releaseHeld()
			slog.WarnContext(ctx, "inventory lock wait timed out", "product_id", id, "wait", l.wait)
			return nil, fmt.Errorf("inventory: lock on product %q: %w", id, store.ErrConcurrencyConflict)
		case <-ctx.Done():
			timer.Stop()
			releaseHeld()
			return nil, fmt.Errorf("inventory: lock on product %q: %w", id, ctx.Err())
		}
	}

	var once sync.Once
	return func() { once.Do(releaseHeld) }, nil
}

// Reserve checks and decrements stock for one product inside an active
// transaction. The caller must hold the product's lock (via Acquire) for the
// lifetime of that transaction.
//
// It fails with store.ErrProductNotFound if the product does not exist and
// store.ErrInsufficientStock if qty exceeds the available count; in both
// cases nothing has been decremented.
func (l *Ledger) Reserve(ctx context.Context, tx *sql.Tx, productID string, qty int) (*Reservation, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("inventory: quantity %d for product %q: %w", qty, productID, store.ErrConstraintViolation)
	}

	p, err := l.store.ProductForUpdate(ctx, tx, productID)
	if err != nil {
		return nil, err
	}
	if p.StockQuantity < qty {
		return nil, fmt.Errorf("inventory: product %q has %d units, requested %d: %w",
			productID, p.StockQuantity, qty, store.ErrInsufficientStock)
	}

	if err := l.store.DecrementStock(ctx, tx, productID, qty); err != nil {
		return nil, err
	}

	return &Reservation{
		ProductID: productID,
		Quantity:  qty,
		UnitPrice: p.Price,
		Remaining: p.StockQuantity - qty,
	}, nil
}

func dedupe(sorted []string) []string {
	out := sorted[:0]
	for i, id := range sorted {
		if i == 0 || id != sorted[i-1] {
			out = append(out, id)
		}
	}
	return out
}
