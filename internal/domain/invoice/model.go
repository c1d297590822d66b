package invoice

import (
	"strings"
	"time"

	ierr "github.com/invoicely/invoicely/internal/errors"
	"github.com/invoicely/invoicely/internal/types"
	"github.com/shopspring/decimal"
)

// Invoice represents the invoice domain model.
// AmountPaid, BalanceAmount and Status are ledger fields: they are written
// only by the payment ledger, the overdue sweep and explicit status actions.
type Invoice struct {
	ID            string              `db:"id" json:"id"`
	InvoiceNumber string              `db:"invoice_number" json:"invoice_number"`
	InvoiceDate   time.Time           `db:"invoice_date" json:"invoice_date"`
	DueDate       time.Time           `db:"due_date" json:"due_date"`
	Currency      string              `db:"currency" json:"currency"`
	Category      string              `db:"category" json:"category"`
	Subtotal      decimal.Decimal     `db:"subtotal" json:"subtotal"`
	TaxRate       decimal.Decimal     `db:"tax_rate" json:"tax_rate"`
	TaxAmount     decimal.Decimal     `db:"tax_amount" json:"tax_amount"`
	DiscountType  types.DiscountType  `db:"discount_type" json:"discount_type"`
	DiscountValue decimal.Decimal     `db:"discount_value" json:"discount_value"`
	Total         decimal.Decimal     `db:"total" json:"total"`
	AmountPaid    decimal.Decimal     `db:"amount_paid" json:"amount_paid"`
	BalanceAmount decimal.Decimal     `db:"balance_amount" json:"balance_amount"`
	Status        types.InvoiceStatus `db:"status" json:"status"`
	Note          string              `db:"note" json:"note"`
	Terms         string              `db:"terms" json:"terms"`

	IsSigned       bool       `db:"is_signed" json:"is_signed"`
	Signature      *string    `db:"signature" json:"signature,omitempty"`
	SignedAt       *time.Time `db:"signed_at" json:"signed_at,omitempty"`
	AdminSignature *string    `db:"admin_signature" json:"admin_signature,omitempty"`

	ClientID  string  `db:"client_id" json:"client_id"`
	CompanyID *string `db:"company_id" json:"company_id,omitempty"`

	LineItems []*LineItem `db:"-" json:"line_items,omitempty"`

	types.BaseModel
}

// Validate checks the invariants an invoice must satisfy before it is persisted
func (i *Invoice) Validate() error {
	if strings.TrimSpace(i.InvoiceNumber) == "" {
		return ierr.NewError("invoice number is required").
			WithHint("Invoice number is required").
			Mark(ierr.ErrValidation)
	}
	if i.ClientID == "" {
		return ierr.NewError("client is required").
			WithHint("Invoice must belong to a client").
			Mark(ierr.ErrValidation)
	}
	if i.Currency == "" {
		return ierr.NewError("currency is required").
			WithHint("Currency is required").
			Mark(ierr.ErrValidation)
	}
	if err := i.Status.Validate(); err != nil {
		return err
	}
	if err := i.DiscountType.Validate(); err != nil {
		return err
	}
	if i.AmountPaid.IsNegative() {
		return ierr.NewError("amount paid is negative").
			WithHint("Amount paid cannot be negative").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// LedgerState is the derived triple maintained by the payment ledger
type LedgerState struct {
	AmountPaid    decimal.Decimal
	BalanceAmount decimal.Decimal
	Status        types.InvoiceStatus
}

// Ledger returns the current ledger fields of the invoice
func (i *Invoice) Ledger() LedgerState {
	return LedgerState{
		AmountPaid:    i.AmountPaid,
		BalanceAmount: i.BalanceAmount,
		Status:        i.Status,
	}
}

// ApplyLedger overwrites the ledger fields of the invoice
func (i *Invoice) ApplyLedger(s LedgerState) {
	i.AmountPaid = s.AmountPaid
	i.BalanceAmount = s.BalanceAmount
	i.Status = s.Status
}

// Equal reports whether two ledger states hold the same values
func (s LedgerState) Equal(o LedgerState) bool {
	return s.AmountPaid.Equal(o.AmountPaid) &&
		s.BalanceAmount.Equal(o.BalanceAmount) &&
		s.Status == o.Status
}

// IsPastDue reports whether the due date lies before now
func (i *Invoice) IsPastDue(now time.Time) bool {
	return i.DueDate.Before(now)
}
