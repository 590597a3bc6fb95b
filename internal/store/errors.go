package store

import "errors"

// Sentinel errors for the order-processing core. Callers match them with
// errors.Is; every layer wraps them with context instead of redefining them.
var (
	// ErrProductNotFound is returned when a referenced product does not exist.
	ErrProductNotFound = errors.New("product not found")

	// ErrCustomerNotFound is returned when an order references an unknown customer.
	ErrCustomerNotFound = errors.New("customer not found")

	// ErrOrderNotFound is returned when an order lookup misses.
	ErrOrderNotFound = errors.New("order not found")

	// ErrInsufficientStock is returned when a reservation requests more units
	// than the product has available at lock time.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrEmptyOrder is returned when a placement carries no line items.
	ErrEmptyOrder = errors.New("order has no line items")

	// ErrConcurrencyConflict is returned on a lock-wait timeout or a
	// commit-time isolation clash. The coordinator retries it internally
	// before surfacing it to the caller.
	ErrConcurrencyConflict = errors.New("concurrency conflict")

	// ErrProjectionFailure is returned when a sale-history append could not be
	// durably recorded within the retry budget. The order itself stays
	// committed; the reconciliation sweep repairs the ledger later.
	ErrProjectionFailure = errors.New("sale history projection failure")

	// ErrConstraintViolation is returned for invalid values (negative price,
	// non-positive quantity, out-of-range amounts) before any lock is taken.
	ErrConstraintViolation = errors.New("constraint violation")
)
