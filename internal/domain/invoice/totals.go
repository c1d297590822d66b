package invoice

import (
	"time"

	ierr "github.com/invoicely/invoicely/internal/errors"
	"github.com/invoicely/invoicely/internal/money"
	"github.com/invoicely/invoicely/internal/types"
	"github.com/shopspring/decimal"
)

// ItemInput is an unpriced line as submitted by staff
type ItemInput struct {
	Description string
	Quantity    decimal.Decimal
	Rate        decimal.Decimal
}

// Calculation is the output of the totals calculator
type Calculation struct {
	money.Totals
	Items []*LineItem
}

// Calculate prices every item and aggregates them into invoice totals.
// The returned items carry amount and position but no ids.
func Calculate(items []ItemInput, taxRate decimal.Decimal, discountType types.DiscountType, discountValue decimal.Decimal) (*Calculation, error) {
	if len(items) == 0 {
		return nil, ierr.NewError("invoice has no items").
			WithHint("Add at least one item to the invoice").
			Mark(ierr.ErrValidation)
	}

	lineItems := make([]*LineItem, 0, len(items))
	amounts := make([]decimal.Decimal, 0, len(items))
	for i, in := range items {
		amount, err := money.LineAmount(in.Quantity, in.Rate)
		if err != nil {
			return nil, err
		}
		li := &LineItem{
			Description: in.Description,
			Quantity:    in.Quantity,
			Rate:        in.Rate,
			Amount:      amount,
			Position:    i,
		}
		if err := li.Validate(); err != nil {
			return nil, err
		}
		lineItems = append(lineItems, li)
		amounts = append(amounts, amount)
	}

	totals, err := money.ComputeTotals(amounts, taxRate, discountType, discountValue)
	if err != nil {
		return nil, err
	}

	return &Calculation{Totals: totals, Items: lineItems}, nil
}

// ApplyTo copies the computed totals onto the invoice and binds the items to it
func (c *Calculation) ApplyTo(inv *Invoice, now time.Time) {
	inv.Subtotal = c.Subtotal
	inv.TaxAmount = c.TaxAmount
	inv.Total = c.Total
	for _, li := range c.Items {
		li.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE_LINE_ITEM)
		li.InvoiceID = inv.ID
		li.CreatedAt = now
	}
	inv.LineItems = c.Items
}
