// Package sqlite provides a SQLite-backed implementation of
// placelog.Repository. The audit database is separate from the store: losing
// it loses history, never orders.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jcmexdev/orderledger/internal/coordinator/placelog"

	// Register the pure-Go SQLite driver.
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS placement_log (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,

    -- Placement identifier; equals the order id when the placement commits.
    -- Not UNIQUE: one row per transition.
    order_id     TEXT    NOT NULL,

    status       TEXT    NOT NULL,
    attempt      INTEGER NOT NULL DEFAULT 1,

    -- Error text on RETRIED/FAILED rows.
    detail       TEXT    NOT NULL DEFAULT '',

    -- W3C trace/span ids from the active OTel span, if any.
    trace_id     TEXT    NOT NULL DEFAULT '',
    span_id      TEXT    NOT NULL DEFAULT '',

    recorded_at  TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_placement_log_order ON placement_log(order_id, recorded_at);
`

// Repository is the SQLite implementation of placelog.Repository.
type Repository struct {
	db *sql.DB
}

// Open opens (or creates) the audit database at path and applies the schema.
func Open(path string) (*Repository, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("placelog: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("placelog: apply schema: %w", err)
	}
	return &Repository{db: db}, nil
}

// Close releases the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Save appends one transition row. Safe for concurrent use.
func (r *Repository) Save(ctx context.Context, e *placelog.Entry) error {
	const q = `
		INSERT INTO placement_log (order_id, status, attempt, detail, trace_id, span_id, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, q,
		e.OrderID, string(e.Status), e.Attempt, e.Detail, e.TraceID, e.SpanID,
		e.RecordedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("placelog: save entry for %q: %w", e.OrderID, err)
	}
	return nil
}

// Latest returns the most recent transition for a placement.
func (r *Repository) Latest(ctx context.Context, orderID string) (*placelog.Entry, error) {
	const q = `
		SELECT order_id, status, attempt, detail, trace_id, span_id, recorded_at
		FROM   placement_log
		WHERE  order_id = ?
		ORDER  BY id DESC
		LIMIT  1`

	var (
		e          placelog.Entry
		recordedAt string
	)
	err := r.db.QueryRowContext(ctx, q, orderID).Scan(
		&e.OrderID, &e.Status, &e.Attempt, &e.Detail, &e.TraceID, &e.SpanID, &recordedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("placelog: placement %q not found", orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("placelog: latest for %q: %w", orderID, err)
	}

	if e.RecordedAt, err = time.Parse(time.RFC3339Nano, recordedAt); err != nil {
		return nil, fmt.Errorf("placelog: parse time %q: %w", recordedAt, err)
	}
	return &e, nil
}
