package service

import (
	"context"

	"github.com/invoicely/invoicely/internal/domain/invoice"
	"github.com/invoicely/invoicely/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// publishEvent hands a ledger event to the publisher. The change has already
// committed, so failures are logged and never returned.
func (p ServiceParams) publishEvent(ctx context.Context, event *types.LedgerEvent) {
	if p.EventPublisher == nil {
		return
	}
	if err := p.EventPublisher.Publish(ctx, event); err != nil {
		p.Logger.WithContext(ctx).Errorw("failed to publish ledger event",
			"error", err,
			"topic", event.Topic,
			"invoice_id", event.InvoiceID,
		)
	}
}

// newInvoiceEvent builds an event carrying the ledger state of an invoice
func (p ServiceParams) newInvoiceEvent(ctx context.Context, topic string, inv *invoice.Invoice, state invoice.LedgerState) *types.LedgerEvent {
	event := types.NewLedgerEvent(ctx, topic, p.now())
	event.InvoiceID = inv.ID
	event.InvoiceNumber = inv.InvoiceNumber
	event.AmountPaid = lo.ToPtr(state.AmountPaid)
	event.BalanceAmount = lo.ToPtr(state.BalanceAmount)
	event.Status = state.Status
	return event
}

// withPayment attaches the payment that triggered an event
func withPayment(event *types.LedgerEvent, paymentID string, amount decimal.Decimal) *types.LedgerEvent {
	event.PaymentID = paymentID
	event.Amount = lo.ToPtr(amount)
	return event
}
