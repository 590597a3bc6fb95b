package sqlite

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/orderledger/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedCustomer(t *testing.T, s *Store) *store.Customer {
	t.Helper()
	c := &store.Customer{ID: uuid.NewString(), Name: "Ada", Email: uuid.NewString() + "@example.com"}
	require.NoError(t, s.CreateCustomer(context.Background(), c))
	return c
}

func seedProduct(t *testing.T, s *Store, price string, stock int) *store.Product {
	t.Helper()
	p := &store.Product{
		ID:            uuid.NewString(),
		Name:          "widget",
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
	}
	require.NoError(t, s.CreateProduct(context.Background(), p))
	return p
}

// seedOrder commits an order with one line per (product, qty, price) triple.
func seedOrder(t *testing.T, s *Store, customerID string, orderDate time.Time, lines ...store.OrderLine) *store.Order {
	t.Helper()
	o := &store.Order{
		ID:         uuid.NewString(),
		CustomerID: customerID,
		OrderDate:  orderDate,
	}
	total := decimal.Zero
	for _, l := range lines {
		l.ID = uuid.NewString()
		l.OrderID = o.ID
		o.Lines = append(o.Lines, l)
		total = total.Add(l.Subtotal())
	}
	o.TotalAmount = total

	err := s.WithTx(context.Background(), func(tx *sql.Tx) error {
		return s.InsertOrder(context.Background(), tx, o)
	})
	require.NoError(t, err)
	return o
}

func TestCreateProductRejectsBadValues(t *testing.T) {
	s := newTestStore(t)

	err := s.CreateProduct(context.Background(), &store.Product{
		ID: uuid.NewString(), Name: "x", Price: decimal.RequireFromString("-1"), StockQuantity: 1,
	})
	require.ErrorIs(t, err, store.ErrConstraintViolation)

	err = s.CreateProduct(context.Background(), &store.Product{
		ID: uuid.NewString(), Name: "x", Price: decimal.RequireFromString("1.00"), StockQuantity: -1,
	})
	require.ErrorIs(t, err, store.ErrConstraintViolation)
}

func TestGetProductNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetProduct(context.Background(), "missing")
	require.ErrorIs(t, err, store.ErrProductNotFound)
}

func TestDecrementStockGuard(t *testing.T) {
	s := newTestStore(t)
	p := seedProduct(t, s, "5.00", 3)

	err := s.WithTx(context.Background(), func(tx *sql.Tx) error {
		return s.DecrementStock(context.Background(), tx, p.ID, 5)
	})
	require.ErrorIs(t, err, store.ErrInsufficientStock)

	// Nothing moved.
	got, err := s.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.StockQuantity)
}

func TestAddStock(t *testing.T) {
	s := newTestStore(t)
	p := seedProduct(t, s, "5.00", 3)

	require.NoError(t, s.AddStock(context.Background(), p.ID, 7))

	got, err := s.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.StockQuantity)

	require.ErrorIs(t, s.AddStock(context.Background(), p.ID, 0), store.ErrConstraintViolation)
	require.ErrorIs(t, s.AddStock(context.Background(), "missing", 1), store.ErrProductNotFound)
}

func TestInsertAndGetOrder(t *testing.T) {
	s := newTestStore(t)
	c := seedCustomer(t, s)
	p := seedProduct(t, s, "19.99", 10)

	when := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	o := seedOrder(t, s, c.ID, when, store.OrderLine{
		ProductID: p.ID, Quantity: 4, UnitPrice: decimal.RequireFromString("19.99"),
	})

	got, err := s.GetOrder(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.CustomerID)
	assert.True(t, got.TotalAmount.Equal(decimal.RequireFromString("79.96")), "total %s", got.TotalAmount)
	assert.True(t, got.OrderDate.Equal(when))
	require.Len(t, got.Lines, 1)
	assert.Equal(t, 4, got.Lines[0].Quantity)
	assert.True(t, got.Lines[0].UnitPrice.Equal(decimal.RequireFromString("19.99")))
}

func TestCategoryDeleteNullsProducts(t *testing.T) {
	s := newTestStore(t)

	cat := &store.Category{ID: uuid.NewString(), Name: "tools"}
	require.NoError(t, s.CreateCategory(context.Background(), cat))

	p := &store.Product{
		ID: uuid.NewString(), CategoryID: &cat.ID, Name: "hammer",
		Price: decimal.RequireFromString("12.50"), StockQuantity: 4,
	}
	require.NoError(t, s.CreateProduct(context.Background(), p))

	require.NoError(t, s.DeleteCategory(context.Background(), cat.ID))

	got, err := s.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CategoryID, "category reference should be nulled, product kept")
}

func TestCustomerDeleteCascades(t *testing.T) {
	s := newTestStore(t)
	c := seedCustomer(t, s)
	p := seedProduct(t, s, "10.00", 10)

	o := seedOrder(t, s, c.ID, time.Now().UTC(), store.OrderLine{
		ProductID: p.ID, Quantity: 1, UnitPrice: decimal.RequireFromString("10.00"),
	})

	// Project the line so the cascade has a ledger row to sweep away too.
	inserted, err := s.AppendSaleHistory(context.Background(), &store.SaleHistoryRecord{
		ID: uuid.NewString(), OrderLineID: o.Lines[0].ID, OrderID: o.ID,
		CustomerID: c.ID, ProductID: p.ID, Quantity: 1,
		UnitPrice:   decimal.RequireFromString("10.00"),
		TotalAmount: decimal.RequireFromString("10.00"),
		OrderDate:   o.OrderDate,
	})
	require.NoError(t, err)
	require.True(t, inserted)

	require.NoError(t, s.DeleteCustomer(context.Background(), c.ID))

	_, err = s.GetOrder(context.Background(), o.ID)
	require.ErrorIs(t, err, store.ErrOrderNotFound)

	n, err := s.CountSaleHistory(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "sale history should cascade with the order")
}

func TestProductDeleteRestrictedByLines(t *testing.T) {
	s := newTestStore(t)
	c := seedCustomer(t, s)
	p := seedProduct(t, s, "10.00", 10)

	seedOrder(t, s, c.ID, time.Now().UTC(), store.OrderLine{
		ProductID: p.ID, Quantity: 1, UnitPrice: decimal.RequireFromString("10.00"),
	})

	err := s.DeleteProduct(context.Background(), p.ID)
	require.ErrorIs(t, err, store.ErrConstraintViolation)

	// Still deletable once nothing references it.
	p2 := seedProduct(t, s, "1.00", 1)
	require.NoError(t, s.DeleteProduct(context.Background(), p2.ID))
}

func TestAppendSaleHistoryIdempotent(t *testing.T) {
	s := newTestStore(t)
	c := seedCustomer(t, s)
	p := seedProduct(t, s, "19.99", 10)

	o := seedOrder(t, s, c.ID, time.Now().UTC(), store.OrderLine{
		ProductID: p.ID, Quantity: 4, UnitPrice: decimal.RequireFromString("19.99"),
	})

	rec := &store.SaleHistoryRecord{
		ID: uuid.NewString(), OrderLineID: o.Lines[0].ID, OrderID: o.ID,
		CustomerID: c.ID, ProductID: p.ID, Quantity: 4,
		UnitPrice:   decimal.RequireFromString("19.99"),
		TotalAmount: decimal.RequireFromString("79.96"),
		OrderDate:   o.OrderDate,
	}

	inserted, err := s.AppendSaleHistory(context.Background(), rec)
	require.NoError(t, err)
	assert.True(t, inserted)

	// Redelivery with a fresh record id but the same line is a no-op.
	rec2 := *rec
	rec2.ID = uuid.NewString()
	inserted, err = s.AppendSaleHistory(context.Background(), &rec2)
	require.NoError(t, err)
	assert.False(t, inserted)

	n, err := s.CountSaleHistory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestUnprojectedSales(t *testing.T) {
	s := newTestStore(t)
	c := seedCustomer(t, s)
	p := seedProduct(t, s, "19.99", 10)

	o := seedOrder(t, s, c.ID, time.Now().UTC(), store.OrderLine{
		ProductID: p.ID, Quantity: 4, UnitPrice: decimal.RequireFromString("19.99"),
	})

	missing, err := s.UnprojectedSales(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, o.Lines[0].ID, missing[0].OrderLineID)
	assert.Equal(t, c.ID, missing[0].CustomerID)
	assert.True(t, missing[0].TotalAmount.Equal(decimal.RequireFromString("79.96")))

	missing[0].ID = uuid.NewString()
	inserted, err := s.AppendSaleHistory(context.Background(), missing[0])
	require.NoError(t, err)
	require.True(t, inserted)

	missing, err = s.UnprojectedSales(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, missing)
}
