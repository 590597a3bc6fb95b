package sqlite

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/orderledger/internal/store"
)

// AppendSaleHistory appends one ledger row per committed order line.
// INSERT OR IGNORE keyed on the UNIQUE order_line_id makes the append
// idempotent: a redelivered projection event is a no-op. The returned bool
// reports whether a row was actually written.
func (s *Store) AppendSaleHistory(ctx context.Context, r *store.SaleHistoryRecord) (bool, error) {
	unitCents, err := store.UnitPriceCents(r.UnitPrice)
	if err != nil {
		return false, err
	}
	totalCents, err := store.TotalCents(r.TotalAmount)
	if err != nil {
		return false, err
	}

	const q = `
		INSERT OR IGNORE INTO sale_history
			(id, order_line_id, order_id, customer_id, product_id, quantity, unit_price_cents, total_cents, order_date)
		VALUES
			(?, ?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := s.db.ExecContext(ctx, q,
		r.ID, r.OrderLineID, r.OrderID, r.CustomerID, r.ProductID,
		r.Quantity, unitCents, totalCents, formatTime(r.OrderDate),
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: append sale history for line %q: %w", r.OrderLineID, mapErr(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: append sale history for line %q: %w", r.OrderLineID, err)
	}
	return n > 0, nil
}

// SaleHistoryForOrderLine looks up the single ledger row derived from a line.
func (s *Store) SaleHistoryForOrderLine(ctx context.Context, orderLineID string) (*store.SaleHistoryRecord, error) {
	const q = `
		SELECT id, order_line_id, order_id, customer_id, product_id, quantity, unit_price_cents, total_cents, order_date
		FROM   sale_history
		WHERE  order_line_id = ?`

	var (
		r                     store.SaleHistoryRecord
		unitCents, totalCents int64
		orderDate             string
	)
	err := s.db.QueryRowContext(ctx, q, orderLineID).Scan(
		&r.ID, &r.OrderLineID, &r.OrderID, &r.CustomerID, &r.ProductID,
		&r.Quantity, &unitCents, &totalCents, &orderDate,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: sale history for line %q: %w", orderLineID, err)
	}
	r.UnitPrice = store.DecimalFromCents(unitCents)
	r.TotalAmount = store.DecimalFromCents(totalCents)
	if r.OrderDate, err = parseTime(orderDate); err != nil {
		return nil, err
	}
	return &r, nil
}

// CountSaleHistory returns the number of ledger rows.
func (s *Store) CountSaleHistory(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sale_history`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count sale history: %w", err)
	}
	return n, nil
}

// UnprojectedSales finds committed order lines that have no ledger row yet
// and returns them as ready-to-append records (ID left blank for the caller
// to assign). This is the reconciliation sweep's work queue: a projection
// that crashed between commit and append shows up here until repaired.
func (s *Store) UnprojectedSales(ctx context.Context, limit int) ([]*store.SaleHistoryRecord, error) {
	const q = `
		SELECT ol.id, ol.order_id, o.customer_id, ol.product_id, ol.quantity, ol.unit_price_cents, o.order_date
		FROM   order_lines ol
		JOIN   orders o ON o.id = ol.order_id
		WHERE  NOT EXISTS (SELECT 1 FROM sale_history sh WHERE sh.order_line_id = ol.id)
		ORDER  BY o.order_date
		LIMIT  ?`

	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: unprojected sales: %w", err)
	}
	defer rows.Close()

	var out []*store.SaleHistoryRecord
	for rows.Next() {
		var (
			r         store.SaleHistoryRecord
			unitCents int64
			orderDate string
		)
		if err := rows.Scan(&r.OrderLineID, &r.OrderID, &r.CustomerID, &r.ProductID, &r.Quantity, &unitCents, &orderDate); err != nil {
			return nil, fmt.Errorf("sqlite: scan unprojected sale: %w", err)
		}
		r.UnitPrice = store.DecimalFromCents(unitCents)
		r.TotalAmount = r.UnitPrice.Mul(decimal.NewFromInt(int64(r.Quantity)))
		if r.OrderDate, err = parseTime(orderDate); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: unprojected sales: %w", err)
	}
	return out, nil
}
