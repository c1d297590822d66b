package dto

import (
	"context"
	"strings"
	"time"

	"github.com/invoicely/invoicely/internal/domain/invoice"
	"github.com/invoicely/invoicely/internal/domain/payment"
	"github.com/invoicely/invoicely/internal/types"
	"github.com/invoicely/invoicely/internal/validator"
	"github.com/shopspring/decimal"
)

// CreatePaymentRequest records money received against an invoice
type CreatePaymentRequest struct {
	InvoiceID   string          `json:"invoice_id" validate:"required"`
	Amount      decimal.Decimal `json:"amount" validate:"decimal_gt0"`
	Method      string          `json:"method" validate:"required"`
	PaymentDate *time.Time      `json:"payment_date,omitempty"`
	Note        string          `json:"note,omitempty"`
}

func (r *CreatePaymentRequest) Validate() error {
	r.Method = strings.TrimSpace(r.Method)
	return validator.ValidateRequest(r)
}

// ToPayment builds the payment; the payment date defaults to now
func (r *CreatePaymentRequest) ToPayment(ctx context.Context, now time.Time) *payment.Payment {
	paymentDate := now
	if r.PaymentDate != nil {
		paymentDate = *r.PaymentDate
	}

	note := strings.TrimSpace(r.Note)
	if note == "" {
		note = types.DefaultPaymentNote
	}

	return &payment.Payment{
		ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT),
		InvoiceID:   r.InvoiceID,
		Amount:      r.Amount,
		Method:      r.Method,
		PaymentDate: paymentDate.UTC(),
		Note:        note,
		BaseModel:   types.GetDefaultBaseModel(ctx),
	}
}

// UpdatePaymentRequest overwrites amount, method and date of a payment. The note is kept.
type UpdatePaymentRequest struct {
	Amount      decimal.Decimal `json:"amount" validate:"decimal_gt0"`
	Method      string          `json:"method" validate:"required"`
	PaymentDate time.Time       `json:"payment_date" validate:"required"`
}

func (r *UpdatePaymentRequest) Validate() error {
	r.Method = strings.TrimSpace(r.Method)
	return validator.ValidateRequest(r)
}

// PaymentResponse is a payment as returned by the API
type PaymentResponse struct {
	*payment.Payment
	// Invoice holds the ledger state of the owning invoice after the mutation
	Invoice *InvoiceLedgerResponse `json:"invoice,omitempty"`
}

// InvoiceLedgerResponse is the ledger view of an invoice
type InvoiceLedgerResponse struct {
	InvoiceID     string              `json:"invoice_id"`
	Total         decimal.Decimal     `json:"total"`
	AmountPaid    decimal.Decimal     `json:"amount_paid"`
	BalanceAmount decimal.Decimal     `json:"balance_amount"`
	Status        types.InvoiceStatus `json:"status"`
}

// NewInvoiceLedgerResponse captures the ledger fields of an invoice
func NewInvoiceLedgerResponse(invoiceID string, total decimal.Decimal, state invoice.LedgerState) *InvoiceLedgerResponse {
	return &InvoiceLedgerResponse{
		InvoiceID:     invoiceID,
		Total:         total,
		AmountPaid:    state.AmountPaid,
		BalanceAmount: state.BalanceAmount,
		Status:        state.Status,
	}
}

// ListPaymentsResponse is a page of payments
type ListPaymentsResponse = types.ListResponse[*PaymentResponse]

// DeletePaymentResponse reports the removed payment and the resulting invoice ledger, if the invoice still exists
type DeletePaymentResponse struct {
	PaymentID string                 `json:"payment_id"`
	Invoice   *InvoiceLedgerResponse `json:"invoice,omitempty"`
}

// ReconciliationReport compares stored ledger fields with the payment history
type ReconciliationReport struct {
	InvoiceID string                 `json:"invoice_id"`
	Stored    *InvoiceLedgerResponse `json:"stored"`
	Derived   *InvoiceLedgerResponse `json:"derived"`
	Drift     bool                   `json:"drift"`
	Repaired  bool                   `json:"repaired"`
}

// ReconcileAllResponse summarizes a reconciliation pass over every invoice
type ReconcileAllResponse struct {
	Checked  int                     `json:"checked"`
	Drifted  int                     `json:"drifted"`
	Repaired int                     `json:"repaired"`
	Reports  []*ReconciliationReport `json:"reports"`
}

// ReconcileRequest selects between reporting and repairing drift
type ReconcileRequest struct {
	Repair bool `json:"repair" form:"repair"`
}
