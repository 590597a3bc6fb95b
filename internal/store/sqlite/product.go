package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jcmexdev/orderledger/internal/store"
)

// CreateProduct persists a new product. Price and stock bounds are validated
// before touching the database so a bad request never reaches a lock.
func (s *Store) CreateProduct(ctx context.Context, p *store.Product) error {
	priceCents, err := store.UnitPriceCents(p.Price)
	if err != nil {
		return err
	}
	if p.StockQuantity < 0 {
		return fmt.Errorf("sqlite: negative stock %d: %w", p.StockQuantity, store.ErrConstraintViolation)
	}

	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}

	const q = `
		INSERT INTO products (id, category_id, name, description, price_cents, stock_quantity, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, q,
		p.ID, p.CategoryID, p.Name, p.Description,
		priceCents, p.StockQuantity,
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: create product %q: %w", p.ID, mapErr(err))
	}
	return nil
}

// GetProduct reads a product outside any transaction (committed state).
func (s *Store) GetProduct(ctx context.Context, id string) (*store.Product, error) {
	return scanProduct(s.db.QueryRowContext(ctx, productSelect+` WHERE id = ?`, id), id)
}

// ProductForUpdate reads a product inside an active transaction. The caller
// must already hold the inventory lock for this product; this is the
// FOR UPDATE-equivalent read that a reservation is based on.
func (s *Store) ProductForUpdate(ctx context.Context, tx *sql.Tx, id string) (*store.Product, error) {
	return scanProduct(tx.QueryRowContext(ctx, productSelect+` WHERE id = ?`, id), id)
}

const productSelect = `
	SELECT id, category_id, name, description, price_cents, stock_quantity, created_at, updated_at
	FROM products`

func scanProduct(row *sql.Row, id string) (*store.Product, error) {
	var (
		p                    store.Product
		priceCents           int64
		createdAt, updatedAt string
	)
	err := row.Scan(&p.ID, &p.CategoryID, &p.Name, &p.Description, &priceCents, &p.StockQuantity, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sqlite: product %q: %w", id, store.ErrProductNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: scan product %q: %w", id, err)
	}

	p.Price = store.DecimalFromCents(priceCents)
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// DecrementStock applies a reservation's stock decrement inside the placement
// transaction. The guarded WHERE clause is a second line of defence behind
// the inventory lock: if stock moved underneath us anyway, no row matches and
// the reservation fails rather than driving the count negative.
func (s *Store) DecrementStock(ctx context.Context, tx *sql.Tx, id string, qty int) error {
	const q = `
		UPDATE products
		SET    stock_quantity = stock_quantity - ?, updated_at = ?
		WHERE  id = ? AND stock_quantity >= ?`

	res, err := tx.ExecContext(ctx, q, qty, formatTime(time.Now()), id, qty)
	if err != nil {
		return fmt.Errorf("sqlite: decrement stock of %q: %w", id, mapErr(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: decrement stock of %q: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("sqlite: product %q has fewer than %d units: %w", id, qty, store.ErrInsufficientStock)
	}
	return nil
}

// AddStock is the restock path: a guarded increment outside the coordinator.
// The caller is expected to hold the product's inventory lock.
func (s *Store) AddStock(ctx context.Context, id string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("sqlite: restock quantity %d: %w", qty, store.ErrConstraintViolation)
	}

	const q = `UPDATE products SET stock_quantity = stock_quantity + ?, updated_at = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, q, qty, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("sqlite: restock %q: %w", id, mapErr(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: restock %q: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("sqlite: product %q: %w", id, store.ErrProductNotFound)
	}
	return nil
}

// DeleteProduct hard-deletes a product. The RESTRICT foreign key on
// order_lines makes this fail with ErrConstraintViolation while committed
// lines still reference the product.
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: delete product %q: %w", id, mapErr(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: delete product %q: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("sqlite: product %q: %w", id, store.ErrProductNotFound)
	}
	return nil
}
