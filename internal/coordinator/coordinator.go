// Package coordinator orchestrates order placement as one atomic unit:
// inventory reservation, order and line persistence, and the post-commit
// hand-off to the sales-history projection.
package coordinator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jcmexdev/orderledger/internal/coordinator/placelog"
	"github.com/jcmexdev/orderledger/internal/inventory"
	"github.com/jcmexdev/orderledger/internal/store"
)

// DefaultMaxAttempts bounds the transparent retry of concurrency conflicts
// before they surface to the caller.
const DefaultMaxAttempts = 3

// retryBackoff spaces retry attempts so the conflicting holder has a chance
// to finish.
const retryBackoff = 25 * time.Millisecond

// PlacementStore is the slice of the persistence layer the coordinator
// drives: one transaction spanning the customer check, the reservations made
// through the ledger, and the order insert.
type PlacementStore interface {
	WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error
	CustomerExists(ctx context.Context, tx *sql.Tx, id string) (bool, error)
	InsertOrder(ctx context.Context, tx *sql.Tx, o *store.Order) error
}

// Projection receives each committed order line strictly after the placement
// transaction is durable. Delivery is at-least-once; storage dedup lives
// downstream.
type Projection interface {
	OrderLineCommitted(ctx context.Context, line store.OrderLine, order store.Order)
}

// LineRequest is one requested line item. Prices are not caller-supplied:
// the product's current price is snapshotted at reservation time.
type LineRequest struct {
	ProductID string
	Quantity  int
}

// PlaceOrderRequest describes a placement. OrderDate is an explicit instant;
// if zero, the coordinator's clock supplies it.
type PlaceOrderRequest struct {
	CustomerID string
	OrderDate  time.Time
	Lines      []LineRequest
}

// Coordinator runs placements. Both projection and audit are nil-safe: a
// coordinator without them still places orders, it just doesn't project or
// journal them.
type Coordinator struct {
	store       PlacementStore
	ledger      *inventory.Ledger
	projection  Projection
	audit       placelog.Repository
	clock       func() time.Time
	maxAttempts int
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithProjection wires the post-commit projection hook.
func WithProjection(p Projection) Option {
	return func(c *Coordinator) { c.projection = p }
}

// WithAuditLog wires the placement audit log.
func WithAuditLog(r placelog.Repository) Option {
	return func(c *Coordinator) { c.audit = r }
}

// WithClock overrides the wall clock (tests, reproducible order dates).
func WithClock(clock func() time.Time) Option {
	return func(c *Coordinator) { c.clock = clock }
}

// WithMaxAttempts overrides the concurrency-conflict retry bound.
func WithMaxAttempts(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// New builds a Coordinator over the store and inventory ledger.
func New(st PlacementStore, ledger *inventory.Ledger, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:       st,
		ledger:      ledger,
		clock:       func() time.Time { return time.Now().UTC() },
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PlaceOrder places one order atomically: every stock decrement, the order
// row, and all line rows land in a single commit, or none of them do.
//
// Concurrency conflicts (lock-wait timeout, commit-time clash) are retried
// with the same canonical lock order up to the attempt bound; all other
// failures surface immediately.
func (c *Coordinator) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*store.Order, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	orderID := uuid.NewString()
	c.journal(ctx, placelog.NewEntry(ctx, orderID, placelog.StatusStarted, 1, ""))

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		order, err := c.tryPlace(ctx, orderID, req)
		if err == nil {
			c.journal(ctx, placelog.NewEntry(ctx, orderID, placelog.StatusCommitted, attempt, ""))
			c.deliver(ctx, order)
			return order, nil
		}

		lastErr = err
		if !errors.Is(err, store.ErrConcurrencyConflict) || attempt == c.maxAttempts {
			break
		}

		c.journal(ctx, placelog.NewEntry(ctx, orderID, placelog.StatusRetried, attempt, err.Error()))
		slog.WarnContext(ctx, "placement conflict, retrying",
			"order_id", orderID, "attempt", attempt, "error", err)

		select {
		case <-time.After(time.Duration(attempt) * retryBackoff):
		case <-ctx.Done():
			lastErr = ctx.Err()
			attempt = c.maxAttempts
		}
	}

	c.journal(ctx, placelog.NewEntry(ctx, orderID, placelog.StatusFailed, c.maxAttempts, lastErr.Error()))
	return nil, lastErr
}

// tryPlace is a single placement attempt. Locks are held from before the
// transaction begins until after it resolves, so no other placement can
// observe or change the stock of these products mid-flight.
func (c *Coordinator) tryPlace(ctx context.Context, orderID string, req PlaceOrderRequest) (*store.Order, error) {
	ids := make([]string, len(req.Lines))
	for i, l := range req.Lines {
		ids[i] = l.ProductID
	}

	release, err := c.ledger.Acquire(ctx, ids)
	if err != nil {
		return nil, err
	}
	defer release()

	orderDate := req.OrderDate
	if orderDate.IsZero() {
		orderDate = c.clock()
	}

	order := &store.Order{
		ID:         orderID,
		CustomerID: req.CustomerID,
		OrderDate:  orderDate,
	}

	err = c.store.WithTx(ctx, func(tx *sql.Tx) error {
		ok, err := c.store.CustomerExists(ctx, tx, req.CustomerID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("coordinator: customer %q: %w", req.CustomerID, store.ErrCustomerNotFound)
		}

		// Reserve in canonical (ascending product id) order — the same
		// order the locks were acquired in.
		lines := make([]LineRequest, len(req.Lines))
		copy(lines, req.Lines)
		sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })

		total := decimal.Zero
		for _, l := range lines {
			res, err := c.ledger.Reserve(ctx, tx, l.ProductID, l.Quantity)
			if err != nil {
				return err
			}

			line := store.OrderLine{
				ID:        uuid.NewString(),
				OrderID:   orderID,
				ProductID: res.ProductID,
				Quantity:  res.Quantity,
				UnitPrice: res.UnitPrice,
			}
			order.Lines = append(order.Lines, line)
			total = total.Add(line.Subtotal())
		}

		order.TotalAmount = total
		return c.store.InsertOrder(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "order committed",
		"order_id", order.ID,
		"customer_id", order.CustomerID,
		"lines", len(order.Lines),
		"total", order.TotalAmount.StringFixed(2),
	)
	return order, nil
}

// deliver hands every committed line to the projection. This runs strictly
// after commit; a crash here is repaired by the reconciliation sweep.
func (c *Coordinator) deliver(ctx context.Context, order *store.Order) {
	if c.projection == nil {
		return
	}
	for _, line := range order.Lines {
		c.projection.OrderLineCommitted(ctx, line, *order)
	}
}

func (c *Coordinator) journal(ctx context.Context, e *placelog.Entry) {
	if c.audit == nil {
		return
	}
	if err := c.audit.Save(ctx, e); err != nil {
		slog.ErrorContext(ctx, "placement audit write failed", "order_id", e.OrderID, "error", err)
	}
}

func validate(req PlaceOrderRequest) error {
	if len(req.Lines) == 0 {
		return fmt.Errorf("coordinator: %w", store.ErrEmptyOrder)
	}
	for _, l := range req.Lines {
		if l.ProductID == "" {
			return fmt.Errorf("coordinator: missing product id: %w", store.ErrConstraintViolation)
		}
		if l.Quantity <= 0 {
			return fmt.Errorf("coordinator: quantity %d for product %q: %w",
				l.Quantity, l.ProductID, store.ErrConstraintViolation)
		}
	}
	return nil
}
