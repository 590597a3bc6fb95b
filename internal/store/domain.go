// Package store defines the domain entities of the order-processing core and
// the error taxonomy shared by every layer on top of it. The persistence
// implementation lives in store/sqlite.
package store

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category groups products. Deleting a category does not delete its products;
// their category reference is nulled instead.
type Category struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Customer is referenced by orders. Deleting a customer cascades to its
// orders, their lines, and the derived sale history.
type Customer struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Product carries the authoritative stock count. StockQuantity is mutated
// only by the inventory ledger during placement (decrement) and by the
// restock path (increment); it never goes negative.
type Product struct {
	ID            string
	CategoryID    *string
	Name          string
	Description   string
	Price         decimal.Decimal
	StockQuantity int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Order is created once, atomically, together with its lines and the stock
// decrements. TotalAmount equals the exact sum of quantity×unit price over
// the lines at commit time.
type Order struct {
	ID          string
	CustomerID  string
	OrderDate   time.Time
	TotalAmount decimal.Decimal
	Lines       []OrderLine
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OrderLine snapshots the product price at order time; it is not a live
// reference to Product.Price.
type OrderLine struct {
	ID        string
	OrderID   string
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Subtotal returns quantity×unit price as an exact decimal.
func (l OrderLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// SaleHistoryRecord is the append-only, denormalized ledger row derived 1:1
// from a committed order line. OrderLineID is the deduplication key that
// makes projection delivery effectively-once.
type SaleHistoryRecord struct {
	ID          string
	OrderLineID string
	OrderID     string
	CustomerID  string
	ProductID   string
	Quantity    int
	UnitPrice   decimal.Decimal
	TotalAmount decimal.Decimal
	OrderDate   time.Time
}

// ProductSales is one row of the top-selling-products report.
type ProductSales struct {
	ProductID string
	Units     int64
}

// CustomerRevenue is one row of the high-value-customers report.
type CustomerRevenue struct {
	CustomerID string
	TotalCents int64
}

// Total returns the customer's revenue as a decimal amount.
func (c CustomerRevenue) Total() decimal.Decimal {
	return DecimalFromCents(c.TotalCents)
}
