package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jcmexdev/orderledger/internal/store"
)

// Category and customer access. The core treats this as plain data access;
// it exists because the relationship semantics (nullify on category delete,
// cascade on customer delete) are part of the schema contract.

func (s *Store) CreateCategory(ctx context.Context, c *store.Category) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = now
	}

	const q = `INSERT INTO categories (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, c.ID, c.Name, formatTime(c.CreatedAt), formatTime(c.UpdatedAt)); err != nil {
		return fmt.Errorf("sqlite: create category %q: %w", c.ID, mapErr(err))
	}
	return nil
}

// DeleteCategory removes a category; referencing products survive with a
// nulled category_id (ON DELETE SET NULL).
func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: delete category %q: %w", id, mapErr(err))
	}
	return nil
}

func (s *Store) CreateCustomer(ctx context.Context, c *store.Customer) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = now
	}

	const q = `INSERT INTO customers (id, name, email, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, c.ID, c.Name, c.Email, formatTime(c.CreatedAt), formatTime(c.UpdatedAt)); err != nil {
		return fmt.Errorf("sqlite: create customer %q: %w", c.ID, mapErr(err))
	}
	return nil
}

// DeleteCustomer cascades: orders, their lines, and the derived sale-history
// rows are all removed by the schema's ON DELETE CASCADE chain.
func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: delete customer %q: %w", id, mapErr(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: delete customer %q: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("sqlite: customer %q: %w", id, store.ErrCustomerNotFound)
	}
	return nil
}

// CustomerExists checks for the customer inside the placement transaction so
// the coordinator can fail fast before reserving anything else.
func (s *Store) CustomerExists(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM customers WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite: check customer %q: %w", id, err)
	}
	return true, nil
}
