// Package placelog defines the placement audit log: a durable trail of every
// state transition an order placement goes through.
//
// It serves two purposes:
//
//  1. Observability: a row per transition, carrying the active trace ID, lets
//     you go from a stuck placement straight to its trace.
//
//  2. Post-mortem: failed and retried placements stay visible after the fact
//     even though they left no order rows behind.
package placelog

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Status is the lifecycle state recorded by one log entry.
type Status string

const (
	StatusStarted   Status = "STARTED"
	StatusRetried   Status = "RETRIED"
	StatusCommitted Status = "COMMITTED"
	StatusFailed    Status = "FAILED"
)

// Entry is a single row in the placement log.
type Entry struct {
	// OrderID identifies the placement; it equals the order id on success
	// so the log joins directly with business data.
	OrderID string

	// Status is the lifecycle state at the time this row was written.
	Status Status

	// Attempt is the 1-based placement attempt this transition belongs to.
	Attempt int

	// Detail carries the error text on RETRIED and FAILED rows, empty otherwise.
	Detail string

	// TraceID and SpanID are the W3C identifiers of the OpenTelemetry span
	// active when the entry was written; empty when no span is in flight.
	TraceID string
	SpanID  string

	// RecordedAt is the wall-clock time of this entry.
	RecordedAt time.Time
}

// Repository persists entries. The table is append-only: each transition is
// a new row, and the latest row per order id is the current state.
type Repository interface {
	Save(ctx context.Context, e *Entry) error
}

// NewEntry builds an entry with trace identifiers taken from the active span
// in ctx, if any.
func NewEntry(ctx context.Context, orderID string, status Status, attempt int, detail string) *Entry {
	e := &Entry{
		OrderID:    orderID,
		Status:     status,
		Attempt:    attempt,
		Detail:     detail,
		RecordedAt: time.Now().UTC(),
	}

	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		e.TraceID = sc.TraceID().String()
		e.SpanID = sc.SpanID().String()
	}
	return e
}
