// Package projection derives the append-only sales ledger from committed
// order lines.
//
// Delivery is at-least-once: the coordinator enqueues each line after commit,
// the worker retries failed appends, and a periodic reconciliation sweep
// repairs anything the worker lost (crash between commit and append, retry
// budget exhausted). Storage is effectively-once: the append is deduplicated
// on the order line id.
package projection

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jcmexdev/orderledger/internal/store"
)

// Defaults for the delivery worker.
const (
	DefaultBuffer   = 256
	DefaultAttempts = 3
	DefaultBackoff  = 50 * time.Millisecond
)

// HistoryStore is the slice of the persistence layer the projector needs.
type HistoryStore interface {
	AppendSaleHistory(ctx context.Context, r *store.SaleHistoryRecord) (bool, error)
}

// Publisher mirrors durably appended records to an external bus. Optional.
type Publisher interface {
	PublishSale(ctx context.Context, r *store.SaleHistoryRecord) error
}

// event is one committed order line awaiting projection.
type event struct {
	line  store.OrderLine
	order store.Order
}

// Projector consumes committed order lines from an in-process buffer and
// appends sale-history records idempotently.
type Projector struct {
	store     HistoryStore
	publisher Publisher
	attempts  int
	backoff   time.Duration

	events chan event
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// ProjectorOption customizes a Projector.
type ProjectorOption func(*Projector)

// WithPublisher mirrors appended records to an external publisher.
func WithPublisher(p Publisher) ProjectorOption {
	return func(pr *Projector) { pr.publisher = p }
}

// WithAttempts overrides the per-event retry budget.
func WithAttempts(n int) ProjectorOption {
	return func(pr *Projector) {
		if n > 0 {
			pr.attempts = n
		}
	}
}

// WithBackoff overrides the base retry delay.
func WithBackoff(d time.Duration) ProjectorOption {
	return func(pr *Projector) {
		if d > 0 {
			pr.backoff = d
		}
	}
}

// WithBuffer overrides the event buffer size.
func WithBuffer(n int) ProjectorOption {
	return func(pr *Projector) {
		if n > 0 {
			pr.events = make(chan event, n)
		}
	}
}

// NewProjector builds a projector over the history store.
func NewProjector(st HistoryStore, opts ...ProjectorOption) *Projector {
	p := &Projector{
		store:    st,
		attempts: DefaultAttempts,
		backoff:  DefaultBackoff,
		events:   make(chan event, DefaultBuffer),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the delivery worker. ctx bounds the worker's store calls;
// the worker itself runs until Close.
func (p *Projector) Start(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for ev := range p.events {
			p.deliver(ctx, ev)
		}
	}()
}

// Close stops accepting events and waits for the worker to drain the buffer.
func (p *Projector) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.events)
	p.mu.Unlock()

	p.wg.Wait()
}

// OrderLineCommitted enqueues one committed line for projection. It is the
// post-commit hook the coordinator invokes; events arriving after Close are
// dropped and left to the reconciliation sweep.
func (p *Projector) OrderLineCommitted(ctx context.Context, line store.OrderLine, order store.Order) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		slog.WarnContext(ctx, "projector closed, deferring line to reconciliation", "order_line_id", line.ID)
		return
	}

	select {
	case p.events <- event{line: line, order: order}:
	default:
		// Full buffer: don't block the caller's request path. The sweep
		// picks the line up.
		slog.WarnContext(ctx, "projection buffer full, deferring line to reconciliation", "order_line_id", line.ID)
	}
}

// deliver appends one record with bounded retry. Exhausting the budget is a
// ProjectionFailure: logged, never silently dropped, repaired by the sweep.
func (p *Projector) deliver(ctx context.Context, ev event) {
	rec := RecordFromLine(ev.line, ev.order)

	var lastErr error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		inserted, err := p.store.AppendSaleHistory(ctx, rec)
		if err == nil {
			if inserted {
				p.publish(ctx, rec)
			}
			return
		}
		lastErr = err
		time.Sleep(time.Duration(attempt) * p.backoff)
	}

	err := fmt.Errorf("projection: line %q: %v: %w", ev.line.ID, lastErr, store.ErrProjectionFailure)
	slog.ErrorContext(ctx, "sale history append failed, awaiting reconciliation",
		"order_line_id", ev.line.ID, "order_id", ev.order.ID, "error", err)
}

func (p *Projector) publish(ctx context.Context, rec *store.SaleHistoryRecord) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.PublishSale(ctx, rec); err != nil {
		// The row is durable; the mirror is best-effort.
		slog.WarnContext(ctx, "sale history publish failed", "order_line_id", rec.OrderLineID, "error", err)
	}
}

// RecordFromLine derives the ledger record for one committed line:
// total amount is quantity × the snapshotted unit price, exactly.
func RecordFromLine(line store.OrderLine, order store.Order) *store.SaleHistoryRecord {
	return &store.SaleHistoryRecord{
		ID:          uuid.NewString(),
		OrderLineID: line.ID,
		OrderID:     order.ID,
		CustomerID:  order.CustomerID,
		ProductID:   line.ProductID,
		Quantity:    line.Quantity,
		UnitPrice:   line.UnitPrice,
		TotalAmount: line.Subtotal(),
		OrderDate:   order.OrderDate,
	}
}
