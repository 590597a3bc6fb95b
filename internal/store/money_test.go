package store

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCentsFromDecimal(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    int64
		wantErr bool
	}{
		{name: "whole amount", in: "42", want: 4200},
		{name: "two decimals", in: "19.99", want: 1999},
		{name: "one decimal", in: "0.5", want: 50},
		{name: "zero", in: "0", want: 0},
		{name: "trailing zeros", in: "10.10", want: 1010},
		{name: "negative", in: "-1.00", wantErr: true},
		{name: "three decimals", in: "1.005", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := decimal.RequireFromString(tt.in)
			got, err := CentsFromDecimal(d)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrConstraintViolation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUnitPriceCentsBound(t *testing.T) {
	_, err := UnitPriceCents(decimal.RequireFromString("9999.99"))
	require.NoError(t, err)

	_, err = UnitPriceCents(decimal.RequireFromString("10000.00"))
	require.ErrorIs(t, err, ErrConstraintViolation)
}

func TestTotalCentsBound(t *testing.T) {
	_, err := TotalCents(decimal.RequireFromString("99999999.99"))
	require.NoError(t, err)

	_, err = TotalCents(decimal.RequireFromString("100000000.00"))
	require.ErrorIs(t, err, ErrConstraintViolation)
}

func TestDecimalFromCentsRoundTrip(t *testing.T) {
	d := DecimalFromCents(7996)
	assert.Equal(t, "79.96", d.StringFixed(2))

	c, err := CentsFromDecimal(d)
	require.NoError(t, err)
	assert.Equal(t, int64(7996), c)
}

func TestOrderLineSubtotalExact(t *testing.T) {
	// 4 × 19.99 must be exactly 79.96 with no float drift.
	l := OrderLine{Quantity: 4, UnitPrice: decimal.RequireFromString("19.99")}
	assert.True(t, l.Subtotal().Equal(decimal.RequireFromString("79.96")))
}
