package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jcmexdev/orderledger/internal/store"
)

// InsertOrder writes the order row and all of its lines inside the placement
// transaction. It never runs outside one: the order, its lines, and the
// stock decrements must land in a single commit or not at all.
func (s *Store) InsertOrder(ctx context.Context, tx *sql.Tx, o *store.Order) error {
	totalCents, err := store.TotalCents(o.TotalAmount)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = now
	}

	const insOrder = `
		INSERT INTO orders (id, customer_id, order_date, total_cents, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err = tx.ExecContext(ctx, insOrder,
		o.ID, o.CustomerID, formatTime(o.OrderDate), totalCents,
		formatTime(o.CreatedAt), formatTime(o.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert order %q: %w", o.ID, mapErr(err))
	}

	const insLine = `
		INSERT INTO order_lines (id, order_id, product_id, quantity, unit_price_cents)
		VALUES (?, ?, ?, ?, ?)`

	for i := range o.Lines {
		l := &o.Lines[i]
		unitCents, err := store.UnitPriceCents(l.UnitPrice)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, insLine, l.ID, l.OrderID, l.ProductID, l.Quantity, unitCents); err != nil {
			return fmt.Errorf("sqlite: insert order line %q: %w", l.ID, mapErr(err))
		}
	}
	return nil
}

// GetOrder returns a committed order with its lines.
func (s *Store) GetOrder(ctx context.Context, id string) (*store.Order, error) {
	const q = `
		SELECT id, customer_id, order_date, total_cents, created_at, updated_at
		FROM   orders
		WHERE  id = ?`

	var (
		o                               store.Order
		totalCents                      int64
		orderDate, createdAt, updatedAt string
	)
	err := s.db.QueryRowContext(ctx, q, id).Scan(&o.ID, &o.CustomerID, &orderDate, &totalCents, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sqlite: order %q: %w", id, store.ErrOrderNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: scan order %q: %w", id, err)
	}

	o.TotalAmount = store.DecimalFromCents(totalCents)
	if o.OrderDate, err = parseTime(orderDate); err != nil {
		return nil, err
	}
	if o.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if o.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	const ql = `
		SELECT id, order_id, product_id, quantity, unit_price_cents
		FROM   order_lines
		WHERE  order_id = ?
		ORDER  BY product_id`

	rows, err := s.db.QueryContext(ctx, ql, id)
	if err != nil {
		return nil, fmt.Errorf("sqlite: order lines of %q: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			l         store.OrderLine
			unitCents int64
		)
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.Quantity, &unitCents); err != nil {
			return nil, fmt.Errorf("sqlite: scan order line of %q: %w", id, err)
		}
		l.UnitPrice = store.DecimalFromCents(unitCents)
		o.Lines = append(o.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: order lines of %q: %w", id, err)
	}
	return &o, nil
}
