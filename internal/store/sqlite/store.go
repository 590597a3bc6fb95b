// Package sqlite is the SQLite-backed implementation of the store.
//
// WAL mode is enabled on Open so report readers never block the order-commit
// path and vice versa. Foreign keys are enforced because the cascade and
// nullify semantics of the schema are part of the on-disk contract, not an
// application nicety.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jcmexdev/orderledger/internal/store"

	// Register the pure-Go SQLite driver. modernc.org/sqlite avoids CGO,
	// which keeps the build trivially cross-compilable.
	sqlite "modernc.org/sqlite"
)

// schema is the DDL executed once on startup. Money columns hold integer
// hundredths (cents): unit prices are bounded by NUMERIC(6,2), totals by
// NUMERIC(10,2), both enforced at the Go conversion boundary, while the
// CHECK constraints guard the non-negativity invariants at the engine level.
const schema = `
CREATE TABLE IF NOT EXISTS categories (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    created_at  TEXT NOT NULL,
    updated_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS customers (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    email       TEXT NOT NULL UNIQUE,
    created_at  TEXT NOT NULL,
    updated_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS products (
    id              TEXT PRIMARY KEY,

    -- Deleting a category keeps the product and nulls this reference.
    category_id     TEXT REFERENCES categories(id) ON DELETE SET NULL,

    name            TEXT NOT NULL,
    description     TEXT NOT NULL DEFAULT '',

    -- Snapshot-of-record price in cents; order lines copy it at reservation
    -- time rather than referencing it live.
    price_cents     INTEGER NOT NULL CHECK (price_cents >= 0),

    -- Authoritative stock count. Mutated only inside a placement transaction
    -- (decrement) or by the restock path (increment). Never negative.
    stock_quantity  INTEGER NOT NULL CHECK (stock_quantity >= 0),

    created_at      TEXT NOT NULL,
    updated_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS orders (
    id           TEXT PRIMARY KEY,

    -- Deleting a customer removes their orders, lines, and ledger rows.
    customer_id  TEXT NOT NULL REFERENCES customers(id) ON DELETE CASCADE,

    -- Caller- or clock-supplied instant, stored as fixed-width UTC text so
    -- lexicographic comparison matches chronological order in report scans.
    order_date   TEXT NOT NULL,

    total_cents  INTEGER NOT NULL CHECK (total_cents >= 0),
    created_at   TEXT NOT NULL,
    updated_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS order_lines (
    id                TEXT PRIMARY KEY,
    order_id          TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,

    -- A product referenced by committed lines cannot be hard-deleted.
    product_id        TEXT NOT NULL REFERENCES products(id) ON DELETE RESTRICT,

    quantity          INTEGER NOT NULL CHECK (quantity > 0),
    unit_price_cents  INTEGER NOT NULL CHECK (unit_price_cents >= 0)
);

-- Append-only sales ledger, derived 1:1 from committed order lines.
-- The UNIQUE order_line_id is what turns at-least-once projection delivery
-- into effectively-once storage.
CREATE TABLE IF NOT EXISTS sale_history (
    id                TEXT PRIMARY KEY,
    order_line_id     TEXT NOT NULL UNIQUE REFERENCES order_lines(id) ON DELETE CASCADE,
    order_id          TEXT NOT NULL,
    customer_id       TEXT NOT NULL,
    product_id        TEXT NOT NULL,
    quantity          INTEGER NOT NULL CHECK (quantity > 0),
    unit_price_cents  INTEGER NOT NULL CHECK (unit_price_cents >= 0),
    total_cents       INTEGER NOT NULL CHECK (total_cents >= 0),
    order_date        TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_orders_order_date    ON orders(order_date);
CREATE INDEX IF NOT EXISTS idx_orders_customer      ON orders(customer_id);
CREATE INDEX IF NOT EXISTS idx_order_lines_order    ON order_lines(order_id);
CREATE INDEX IF NOT EXISTS idx_order_lines_product  ON order_lines(product_id);
CREATE INDEX IF NOT EXISTS idx_sale_history_product ON sale_history(product_id, order_date);
`

// Store wraps the SQLite database and implements every persistence operation
// the core needs: transactional stock/order writes, the idempotent ledger
// append, and the read-only report scans.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}

	// SQLite allows a single writer; a one-connection pool both serializes
	// writes and keeps an in-memory database alive across uses.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database connection. Call it with defer in main().
func (s *Store) Close() error {
	return s.db.Close()
}

// WithTx runs fn inside a transaction. The transaction is rolled back on any
// error from fn and committed otherwise; commit-time lock clashes are mapped
// to store.ErrConcurrencyConflict so the coordinator can retry them.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", mapErr(err))
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", mapErr(err))
	}
	return nil
}

// SQLite primary result codes relevant to error mapping.
const (
	codeBusy       = 5  // SQLITE_BUSY
	codeLocked     = 6  // SQLITE_LOCKED
	codeConstraint = 19 // SQLITE_CONSTRAINT
)

// mapErr translates driver-level failures into the domain error taxonomy.
// Busy/locked become ErrConcurrencyConflict (retryable); constraint failures
// become ErrConstraintViolation.
func mapErr(err error) error {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return err
	}
	switch se.Code() & 0xff {
	case codeBusy, codeLocked:
		return fmt.Errorf("%v: %w", err, store.ErrConcurrencyConflict)
	case codeConstraint:
		return fmt.Errorf("%v: %w", err, store.ErrConstraintViolation)
	default:
		return err
	}
}
