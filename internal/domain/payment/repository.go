package payment

import (
	"context"

	"github.com/invoicely/invoicely/internal/types"
	"github.com/shopspring/decimal"
)

// Repository defines the interface for payment persistence
type Repository interface {
	Create(ctx context.Context, payment *Payment) error
	Get(ctx context.Context, id string) (*Payment, error)
	Update(ctx context.Context, payment *Payment) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter *types.PaymentFilter) ([]*Payment, error)
	Count(ctx context.Context, filter *types.PaymentFilter) (int, error)

	// SumByInvoice returns the total of all payments recorded against an invoice
	SumByInvoice(ctx context.Context, invoiceID string) (decimal.Decimal, error)

	// DeleteByInvoice removes every payment of an invoice
	DeleteByInvoice(ctx context.Context, invoiceID string) error
}
