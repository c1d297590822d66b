// Package money holds the decimal arithmetic used for invoice totals and
// ledger balances. All results are rounded to currency minor units.
package money

import (
	ierr "github.com/invoicely/invoicely/internal/errors"
	"github.com/invoicely/invoicely/internal/types"
	"github.com/shopspring/decimal"
)

// Precision is the number of fractional digits kept for monetary values
const Precision int32 = 2

var hundred = decimal.NewFromInt(100)

// Round rounds to currency minor units, half away from zero
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Precision)
}

// FloorZero returns max(0, d)
func FloorZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Percent returns base * pct / 100
func Percent(base, pct decimal.Decimal) decimal.Decimal {
	return base.Mul(pct).Div(hundred)
}

// LineAmount returns quantity * rate. Negative inputs are rejected.
func LineAmount(quantity, rate decimal.Decimal) (decimal.Decimal, error) {
	if quantity.IsNegative() {
		return decimal.Zero, ierr.NewError("negative quantity").
			WithHint("Item quantity must not be negative").
			WithReportableDetails(map[string]any{"quantity": quantity.String()}).
			Mark(ierr.ErrValidation)
	}
	if rate.IsNegative() {
		return decimal.Zero, ierr.NewError("negative rate").
			WithHint("Item rate must not be negative").
			WithReportableDetails(map[string]any{"rate": rate.String()}).
			Mark(ierr.ErrValidation)
	}
	return Round(quantity.Mul(rate)), nil
}

// Totals is the result of aggregating invoice line amounts
type Totals struct {
	Subtotal       decimal.Decimal
	TaxAmount      decimal.Decimal
	DiscountAmount decimal.Decimal
	Total          decimal.Decimal
}

// ComputeTotals aggregates line amounts into subtotal, tax, discount and total.
// The total is not clamped and may be negative when the discount exceeds
// subtotal plus tax.
func ComputeTotals(amounts []decimal.Decimal, taxRate decimal.Decimal, discountType types.DiscountType, discountValue decimal.Decimal) (Totals, error) {
	if taxRate.IsNegative() {
		return Totals{}, ierr.NewError("negative tax rate").
			WithHint("Tax rate must not be negative").
			Mark(ierr.ErrValidation)
	}
	if discountValue.IsNegative() {
		return Totals{}, ierr.NewError("negative discount").
			WithHint("Discount must not be negative").
			Mark(ierr.ErrValidation)
	}
	if err := discountType.Validate(); err != nil {
		return Totals{}, err
	}
	if discountType == types.DiscountTypePercentage && discountValue.GreaterThan(hundred) {
		return Totals{}, ierr.NewError("discount percentage above 100").
			WithHint("Percentage discount cannot exceed 100").
			Mark(ierr.ErrValidation)
	}

	subtotal := decimal.Zero
	for _, a := range amounts {
		subtotal = subtotal.Add(a)
	}
	subtotal = Round(subtotal)

	taxAmount := Round(Percent(subtotal, taxRate))

	discountAmount := discountValue
	if discountType == types.DiscountTypePercentage {
		discountAmount = Percent(subtotal, discountValue)
	}
	discountAmount = Round(discountAmount)

	return Totals{
		Subtotal:       subtotal,
		TaxAmount:      taxAmount,
		DiscountAmount: discountAmount,
		Total:          subtotal.Add(taxAmount).Sub(discountAmount),
	}, nil
}

// Balance returns max(0, total - paid)
func Balance(total, paid decimal.Decimal) decimal.Decimal {
	return FloorZero(total.Sub(paid))
}
