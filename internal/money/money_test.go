package money

import (
	"testing"

	ierr "github.com/invoicely/invoicely/internal/errors"
	"github.com/invoicely/invoicely/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestLineAmount(t *testing.T) {
	amount, err := LineAmount(d("2"), d("25000"))
	require.NoError(t, err)
	assert.True(t, d("50000").Equal(amount))

	amount, err = LineAmount(d("3"), d("0.333"))
	require.NoError(t, err)
	assert.Equal(t, "1", amount.String())

	_, err = LineAmount(d("-1"), d("10"))
	assert.True(t, ierr.IsValidation(err))

	_, err = LineAmount(d("1"), d("-10"))
	assert.True(t, ierr.IsValidation(err))
}

func TestComputeTotals(t *testing.T) {
	tests := []struct {
		name          string
		amounts       []string
		taxRate       string
		discountType  types.DiscountType
		discountValue string
		want          Totals
	}{
		{
			name:          "fixed discount",
			amounts:       []string{"50000", "50000"},
			taxRate:       "10",
			discountType:  types.DiscountTypeAmount,
			discountValue: "5000",
			want:          Totals{Subtotal: d("100000"), TaxAmount: d("10000"), DiscountAmount: d("5000"), Total: d("105000")},
		},
		{
			name:          "percentage discount",
			amounts:       []string{"200"},
			taxRate:       "0",
			discountType:  types.DiscountTypePercentage,
			discountValue: "12.5",
			want:          Totals{Subtotal: d("200"), TaxAmount: d("0"), DiscountAmount: d("25"), Total: d("175")},
		},
		{
			name:          "discount exceeding total stays negative",
			amounts:       []string{"100"},
			taxRate:       "0",
			discountType:  types.DiscountTypeAmount,
			discountValue: "150",
			want:          Totals{Subtotal: d("100"), TaxAmount: d("0"), DiscountAmount: d("150"), Total: d("-50")},
		},
		{
			name:          "tax rounded to minor units",
			amounts:       []string{"10.01"},
			taxRate:       "7.5",
			discountType:  types.DiscountTypeAmount,
			discountValue: "0",
			want:          Totals{Subtotal: d("10.01"), TaxAmount: d("0.75"), DiscountAmount: d("0"), Total: d("10.76")},
		},
		{
			name:          "no items",
			amounts:       nil,
			taxRate:       "10",
			discountType:  types.DiscountTypeAmount,
			discountValue: "0",
			want:          Totals{Subtotal: d("0"), TaxAmount: d("0"), DiscountAmount: d("0"), Total: d("0")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amounts := make([]decimal.Decimal, 0, len(tt.amounts))
			for _, a := range tt.amounts {
				amounts = append(amounts, d(a))
			}
			got, err := ComputeTotals(amounts, d(tt.taxRate), tt.discountType, d(tt.discountValue))
			require.NoError(t, err)
			assert.True(t, tt.want.Subtotal.Equal(got.Subtotal), "subtotal %s", got.Subtotal)
			assert.True(t, tt.want.TaxAmount.Equal(got.TaxAmount), "tax %s", got.TaxAmount)
			assert.True(t, tt.want.DiscountAmount.Equal(got.DiscountAmount), "discount %s", got.DiscountAmount)
			assert.True(t, tt.want.Total.Equal(got.Total), "total %s", got.Total)
		})
	}
}

func TestComputeTotalsValidation(t *testing.T) {
	_, err := ComputeTotals(nil, d("-1"), types.DiscountTypeAmount, decimal.Zero)
	assert.True(t, ierr.IsValidation(err))

	_, err = ComputeTotals(nil, decimal.Zero, types.DiscountTypeAmount, d("-1"))
	assert.True(t, ierr.IsValidation(err))

	_, err = ComputeTotals(nil, decimal.Zero, types.DiscountTypePercentage, d("101"))
	assert.True(t, ierr.IsValidation(err))

	_, err = ComputeTotals(nil, decimal.Zero, "BOGUS", decimal.Zero)
	assert.True(t, ierr.IsValidation(err))
}

func TestBalance(t *testing.T) {
	assert.True(t, d("600").Equal(Balance(d("1000"), d("400"))))
	assert.True(t, decimal.Zero.Equal(Balance(d("1000"), d("1200"))))
	assert.True(t, decimal.Zero.Equal(FloorZero(d("-0.01"))))
}
