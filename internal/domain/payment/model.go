package payment

import (
	"strings"
	"time"

	ierr "github.com/invoicely/invoicely/internal/errors"
	"github.com/invoicely/invoicely/internal/money"
	"github.com/invoicely/invoicely/internal/types"
	"github.com/shopspring/decimal"
)

// Payment is money received against an invoice
type Payment struct {
	ID          string          `db:"id" json:"id"`
	InvoiceID   string          `db:"invoice_id" json:"invoice_id"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	Method      string          `db:"method" json:"method"`
	PaymentDate time.Time       `db:"payment_date" json:"payment_date"`
	Note        string          `db:"note" json:"note"`

	types.BaseModel
}

// ValidateAmount rejects zero, negative and sub-cent payment amounts.
// Trailing zeros past the minor unit are accepted.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ierr.NewError("payment amount must be positive").
			WithHint("Payment amount must be greater than zero").
			WithReportableDetails(map[string]any{
				"amount": amount.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	if !amount.Equal(money.Round(amount)) {
		return ierr.NewError("payment amount has too many decimal places").
			WithHintf("Payment amount must have at most %d decimal places", money.Precision).
			WithReportableDetails(map[string]any{
				"amount": amount.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

func (p *Payment) Validate() error {
	if p.InvoiceID == "" {
		return ierr.NewError("invoice id is required").
			WithHint("Payment must reference an invoice").
			Mark(ierr.ErrValidation)
	}
	if err := ValidateAmount(p.Amount); err != nil {
		return err
	}
	if strings.TrimSpace(p.Method) == "" {
		return ierr.NewError("payment method is required").
			WithHint("Payment method is required").
			Mark(ierr.ErrValidation)
	}
	if p.PaymentDate.IsZero() {
		return ierr.NewError("payment date is required").
			WithHint("Payment date is required").
			Mark(ierr.ErrValidation)
	}
	return nil
}
