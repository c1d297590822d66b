package types

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Topics published by the ledger and invoice workflows
const (
	TopicPaymentRecorded     = "payment.recorded"
	TopicPaymentUpdated      = "payment.updated"
	TopicPaymentDeleted      = "payment.deleted"
	TopicInvoiceCreated      = "invoice.created"
	TopicInvoiceUpdated      = "invoice.updated"
	TopicInvoiceSent         = "invoice.sent"
	TopicInvoiceSigned       = "invoice.signed"
	TopicInvoiceOverdueSwept = "invoice.overdue_swept"
	TopicInvoiceReconciled   = "invoice.reconciled"
)

// LedgerTopics lists every topic the activity feed listens on
var LedgerTopics = []string{
	TopicPaymentRecorded,
	TopicPaymentUpdated,
	TopicPaymentDeleted,
	TopicInvoiceCreated,
	TopicInvoiceUpdated,
	TopicInvoiceSent,
	TopicInvoiceSigned,
	TopicInvoiceOverdueSwept,
	TopicInvoiceReconciled,
}

// LedgerEvent describes a committed change to an invoice or its payments
type LedgerEvent struct {
	ID            string           `json:"id"`
	Topic         string           `json:"topic"`
	InvoiceID     string           `json:"invoice_id,omitempty"`
	InvoiceNumber string           `json:"invoice_number,omitempty"`
	PaymentID     string           `json:"payment_id,omitempty"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	AmountPaid    *decimal.Decimal `json:"amount_paid,omitempty"`
	BalanceAmount *decimal.Decimal `json:"balance_amount,omitempty"`
	Status        InvoiceStatus    `json:"status,omitempty"`
	// Affected counts the invoices touched by a bulk operation
	Affected  int       `json:"affected,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerEvent stamps a new event with an id, the acting user and the request id
func NewLedgerEvent(ctx context.Context, topic string, now time.Time) *LedgerEvent {
	return &LedgerEvent{
		ID:        GenerateUUIDWithPrefix(UUID_PREFIX_EVENT),
		Topic:     topic,
		UserID:    GetUserID(ctx),
		RequestID: GetRequestID(ctx),
		Timestamp: now.UTC(),
	}
}
