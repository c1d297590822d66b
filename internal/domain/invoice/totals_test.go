package invoice

import (
	"testing"
	"time"

	ierr "github.com/invoicely/invoicely/internal/errors"
	"github.com/invoicely/invoicely/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculate(t *testing.T) {
	items := []ItemInput{
		{Description: "Design", Quantity: dec(2), Rate: dec(25000)},
		{Description: "Build", Quantity: dec(1), Rate: dec(50000)},
	}

	calc, err := Calculate(items, dec(10), types.DiscountTypeAmount, dec(5000))
	require.NoError(t, err)

	assert.True(t, dec(100000).Equal(calc.Subtotal))
	assert.True(t, dec(10000).Equal(calc.TaxAmount))
	assert.True(t, dec(5000).Equal(calc.DiscountAmount))
	assert.True(t, dec(105000).Equal(calc.Total))
	require.Len(t, calc.Items, 2)
	assert.True(t, dec(50000).Equal(calc.Items[0].Amount))
	assert.Equal(t, 1, calc.Items[1].Position)

	inv := &Invoice{ID: "inv_test"}
	now := time.Now().UTC()
	calc.ApplyTo(inv, now)
	assert.True(t, dec(105000).Equal(inv.Total))
	for _, li := range inv.LineItems {
		assert.Equal(t, "inv_test", li.InvoiceID)
		assert.NotEmpty(t, li.ID)
		assert.Equal(t, now, li.CreatedAt)
	}
}

func TestCalculateRejectsBadItems(t *testing.T) {
	_, err := Calculate(nil, decimal.Zero, types.DiscountTypeAmount, decimal.Zero)
	assert.True(t, ierr.IsValidation(err))

	_, err = Calculate([]ItemInput{{Description: "", Quantity: dec(1), Rate: dec(1)}}, decimal.Zero, types.DiscountTypeAmount, decimal.Zero)
	assert.True(t, ierr.IsValidation(err))

	_, err = Calculate([]ItemInput{{Description: "x", Quantity: dec(-1), Rate: dec(1)}}, decimal.Zero, types.DiscountTypeAmount, decimal.Zero)
	assert.True(t, ierr.IsValidation(err))
}
