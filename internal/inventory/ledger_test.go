package inventory

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/orderledger/internal/store"
	"github.com/jcmexdev/orderledger/internal/store/sqlite"
)

func newLedger(t *testing.T, wait time.Duration) (*Ledger, *sqlite.Store) {
	t.Helper()
	s, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return NewLedger(s, wait), s
}

func addProduct(t *testing.T, s *sqlite.Store, price string, stock int) string {
	t.Helper()
	p := &store.Product{
		ID:            uuid.NewString(),
		Name:          "gadget",
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
	}
	require.NoError(t, s.CreateProduct(context.Background(), p))
	return p.ID
}

func TestReserveDecrementsAndSnapshotsPrice(t *testing.T) {
	l, s := newLedger(t, time.Second)
	id := addProduct(t, s, "19.99", 10)

	release, err := l.Acquire(context.Background(), []string{id})
	require.NoError(t, err)
	defer release()

	err = s.WithTx(context.Background(), func(tx *sql.Tx) error {
		res, err := l.Reserve(context.Background(), tx, id, 4)
		require.NoError(t, err)
		assert.True(t, res.UnitPrice.Equal(decimal.RequireFromString("19.99")))
		assert.Equal(t, 6, res.Remaining)
		return nil
	})
	require.NoError(t, err)

	p, err := s.GetProduct(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 6, p.StockQuantity)
}

func TestReserveFailures(t *testing.T) {
	l, s := newLedger(t, time.Second)
	id := addProduct(t, s, "5.00", 3)

	err := s.WithTx(context.Background(), func(tx *sql.Tx) error {
		_, err := l.Reserve(context.Background(), tx, id, 4)
		require.ErrorIs(t, err, store.ErrInsufficientStock)

		_, err = l.Reserve(context.Background(), tx, "missing", 1)
		require.ErrorIs(t, err, store.ErrProductNotFound)

		_, err = l.Reserve(context.Background(), tx, id, 0)
		require.ErrorIs(t, err, store.ErrConstraintViolation)
		return nil
	})
	require.NoError(t, err)

	p, err := s.GetProduct(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 3, p.StockQuantity, "failed reservations must not move stock")
}

func TestAcquireBlocksUntilRelease(t *testing.T) {
	l, s := newLedger(t, 2*time.Second)
	id := addProduct(t, s, "1.00", 1)

	release, err := l.Acquire(context.Background(), []string{id})
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		r2, err := l.Acquire(context.Background(), []string{id})
		if err == nil {
			close(acquired)
			r2()
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire succeeded while lock was held")
	case <-time.After(50 * time.Millisecond):
	}

	release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second acquire did not proceed after release")
	}
}

func TestAcquireTimeoutIsConcurrencyConflict(t *testing.T) {
	l, s := newLedger(t, 30*time.Millisecond)
	id := addProduct(t, s, "1.00", 1)

	release, err := l.Acquire(context.Background(), []string{id})
	require.NoError(t, err)
	defer release()

	_, err = l.Acquire(context.Background(), []string{id})
	require.ErrorIs(t, err, store.ErrConcurrencyConflict)
}

func TestAcquireDisjointProductsDoNotBlock(t *testing.T) {
	l, s := newLedger(t, 50*time.Millisecond)
	a := addProduct(t, s, "1.00", 1)
	b := addProduct(t, s, "1.00", 1)

	releaseA, err := l.Acquire(context.Background(), []string{a})
	require.NoError(t, err)
	defer releaseA()

	// The wait bound is tiny: if b's lock were coupled to a's, this would
	// time out.
	releaseB, err := l.Acquire(context.Background(), []string{b})
	require.NoError(t, err)
	releaseB()
}

func TestAcquireDuplicateIDs(t *testing.T) {
	l, s := newLedger(t, 50*time.Millisecond)
	id := addProduct(t, s, "1.00", 5)

	// Two lines for the same product must not self-deadlock.
	release, err := l.Acquire(context.Background(), []string{id, id})
	require.NoError(t, err)
	release()
}

func TestAcquirePartialFailureReleasesEverything(t *testing.T) {
	l, s := newLedger(t, 30*time.Millisecond)
	a := addProduct(t, s, "1.00", 1)
	b := addProduct(t, s, "1.00", 1)

	ids := []string{a, b}
	first, second := ids[0], ids[1]
	if second < first {
		first, second = second, first
	}

	// Hold the lock that is acquired second; a multi-lock acquire then gets
	// the first lock, times out on the second, and must give the first back.
	holdSecond, err := l.Acquire(context.Background(), []string{second})
	require.NoError(t, err)

	_, err = l.Acquire(context.Background(), ids)
	require.ErrorIs(t, err, store.ErrConcurrencyConflict)

	holdSecond()

	// Both locks must now be free.
	release, err := l.Acquire(context.Background(), ids)
	require.NoError(t, err)
	release()
}

func TestReleaseIsIdempotent(t *testing.T) {
	l, s := newLedger(t, time.Second)
	id := addProduct(t, s, "1.00", 1)

	release, err := l.Acquire(context.Background(), []string{id})
	require.NoError(t, err)
	release()
	release() // second call must be a no-op, not an unlock of someone else

	release2, err := l.Acquire(context.Background(), []string{id})
	require.NoError(t, err)
	release2()
}
