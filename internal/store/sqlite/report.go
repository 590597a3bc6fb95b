package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/jcmexdev/orderledger/internal/store"
)

// Report scans. All three are read-only over committed rows, take explicit
// [start, end) instants computed by the reporting layer, and never touch the
// inventory locks. Sums run over integer cents, so they are exact.

// DailyRevenueCents sums order totals with order_date in [start, end).
// A window with no orders yields zero, not an error.
func (s *Store) DailyRevenueCents(ctx context.Context, start, end time.Time) (int64, error) {
	const q = `
		SELECT COALESCE(SUM(total_cents), 0)
		FROM   orders
		WHERE  order_date >= ? AND order_date < ?`

	var cents int64
	err := s.db.QueryRowContext(ctx, q, formatTime(start), formatTime(end)).Scan(&cents)
	if err != nil {
		return 0, fmt.Errorf("sqlite: daily revenue: %w", err)
	}
	return cents, nil
}

// TopProducts returns units sold per product over [start, end), descending by
// units, ties broken by product id ascending so the ordering is deterministic.
func (s *Store) TopProducts(ctx context.Context, start, end time.Time) ([]store.ProductSales, error) {
	const q = `
		SELECT   ol.product_id, SUM(ol.quantity) AS units
		FROM     order_lines ol
		JOIN     orders o ON o.id = ol.order_id
		WHERE    o.order_date >= ? AND o.order_date < ?
		GROUP BY ol.product_id
		ORDER BY units DESC, ol.product_id ASC`

	rows, err := s.db.QueryContext(ctx, q, formatTime(start), formatTime(end))
	if err != nil {
		return nil, fmt.Errorf("sqlite: top products: %w", err)
	}
	defer rows.Close()

	var out []store.ProductSales
	for rows.Next() {
		var ps store.ProductSales
		if err := rows.Scan(&ps.ProductID, &ps.Units); err != nil {
			return nil, fmt.Errorf("sqlite: scan top products: %w", err)
		}
		out = append(out, ps)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: top products: %w", err)
	}
	return out, nil
}

// HighValueCustomers returns per-customer revenue over [start, end) filtered
// to sums strictly above thresholdCents, descending by revenue, customer id
// ascending on ties.
func (s *Store) HighValueCustomers(ctx context.Context, start, end time.Time, thresholdCents int64) ([]store.CustomerRevenue, error) {
	const q = `
		SELECT   o.customer_id, SUM(o.total_cents) AS revenue
		FROM     orders o
		WHERE    o.order_date >= ? AND o.order_date < ?
		GROUP BY o.customer_id
		HAVING   revenue > ?
		ORDER BY revenue DESC, o.customer_id ASC`

	rows, err := s.db.QueryContext(ctx, q, formatTime(start), formatTime(end), thresholdCents)
	if err != nil {
		return nil, fmt.Errorf("sqlite: high value customers: %w", err)
	}
	defer rows.Close()

	var out []store.CustomerRevenue
	for rows.Next() {
		var cr store.CustomerRevenue
		if err := rows.Scan(&cr.CustomerID, &cr.TotalCents); err != nil {
			return nil, fmt.Errorf("sqlite: scan high value customers: %w", err)
		}
		out = append(out, cr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: high value customers: %w", err)
	}
	return out, nil
}
