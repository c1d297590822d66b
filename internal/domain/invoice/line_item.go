package invoice

import (
	"strings"
	"time"

	ierr "github.com/invoicely/invoicely/internal/errors"
	"github.com/shopspring/decimal"
)

// LineItem is a single billed row of an invoice. Items are owned by the
// invoice and replaced wholesale whenever the invoice is edited.
type LineItem struct {
	ID          string          `db:"id" json:"id"`
	InvoiceID   string          `db:"invoice_id" json:"invoice_id"`
	Description string          `db:"description" json:"description"`
	Quantity    decimal.Decimal `db:"quantity" json:"quantity"`
	Rate        decimal.Decimal `db:"rate" json:"rate"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	Position    int             `db:"position" json:"position"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

func (li *LineItem) Validate() error {
	if strings.TrimSpace(li.Description) == "" {
		return ierr.NewError("line item description is required").
			WithHint("Every item needs a description").
			WithReportableDetails(map[string]any{"position": li.Position}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
