package store

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Monetary values are fixed-point with two decimals. The storage engine keeps
// them as integer hundredths (cents) so SQL aggregates stay exact; the domain
// API exposes decimal.Decimal. These bounds mirror the on-disk contract:
// unit prices are NUMERIC(6,2), totals are NUMERIC(10,2).
const (
	MaxUnitPriceCents int64 = 999_999        // 9999.99
	MaxTotalCents     int64 = 9_999_999_999 // 99999999.99
)

var centsPerUnit = decimal.NewFromInt(100)

// CentsFromDecimal converts a two-decimal fixed-point amount to cents.
// Negative amounts and amounts with more than two decimal places are
// rejected with ErrConstraintViolation.
func CentsFromDecimal(d decimal.Decimal) (int64, error) {
	if d.IsNegative() {
		return 0, fmt.Errorf("store: negative amount %s: %w", d, ErrConstraintViolation)
	}
	if !d.Equal(d.Round(2)) {
		return 0, fmt.Errorf("store: amount %s exceeds two decimal places: %w", d, ErrConstraintViolation)
	}
	return d.Mul(centsPerUnit).IntPart(), nil
}

// UnitPriceCents converts a unit price, enforcing the NUMERIC(6,2) bound.
func UnitPriceCents(d decimal.Decimal) (int64, error) {
	c, err := CentsFromDecimal(d)
	if err != nil {
		return 0, err
	}
	if c > MaxUnitPriceCents {
		return 0, fmt.Errorf("store: unit price %s out of range: %w", d, ErrConstraintViolation)
	}
	return c, nil
}

// TotalCents converts an order or line total, enforcing the NUMERIC(10,2) bound.
func TotalCents(d decimal.Decimal) (int64, error) {
	c, err := CentsFromDecimal(d)
	if err != nil {
		return 0, err
	}
	if c > MaxTotalCents {
		return 0, fmt.Errorf("store: total %s out of range: %w", d, ErrConstraintViolation)
	}
	return c, nil
}

// DecimalFromCents converts integer cents back to a two-decimal amount.
func DecimalFromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}
