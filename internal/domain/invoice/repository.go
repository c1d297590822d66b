package invoice

import (
	"context"
	"time"

	"github.com/invoicely/invoicely/internal/types"
)

// Repository defines the interface for invoice persistence operations
type Repository interface {
	// Create inserts the invoice together with its line items
	Create(ctx context.Context, invoice *Invoice) error

	// Get retrieves an invoice with its line items
	Get(ctx context.Context, id string) (*Invoice, error)

	// GetForUpdate retrieves an invoice and locks its row until the
	// surrounding transaction ends. Line items are not loaded.
	GetForUpdate(ctx context.Context, id string) (*Invoice, error)

	// Update overwrites every column of the invoice, line items excluded
	Update(ctx context.Context, invoice *Invoice) error

	// UpdateLedger writes only the ledger fields of an invoice
	UpdateLedger(ctx context.Context, id string, state LedgerState) error

	// ReplaceLineItems deletes the current items of an invoice and inserts the given ones
	ReplaceLineItems(ctx context.Context, invoiceID string, items []*LineItem) error

	// Delete removes an invoice, its line items and its payments
	Delete(ctx context.Context, id string) error

	// List retrieves invoices based on filter criteria
	List(ctx context.Context, filter *types.InvoiceFilter) ([]*Invoice, error)

	// Count returns the total count of invoices based on filter criteria
	Count(ctx context.Context, filter *types.InvoiceFilter) (int, error)

	// MarkOverdue moves every invoice not PAID or OVERDUE whose due date lies
	// before now to OVERDUE in one statement and returns how many rows changed
	MarkOverdue(ctx context.Context, now time.Time) (int, error)
}
