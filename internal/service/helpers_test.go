package service

import (
	"context"
	"time"

	"github.com/invoicely/invoicely/internal/domain/client"
	"github.com/invoicely/invoicely/internal/domain/invoice"
	"github.com/invoicely/invoicely/internal/testutil"
	"github.com/invoicely/invoicely/internal/types"
	"github.com/shopspring/decimal"
)

// newTestServiceParams wires the services to the in-memory test doubles of the suite
func newTestServiceParams(s *testutil.BaseServiceTestSuite) ServiceParams {
	stores := s.GetStores()
	return ServiceParams{
		Logger:         s.GetLogger(),
		Config:         s.GetConfig(),
		DB:             s.GetDB(),
		Sentry:         s.GetSentry(),
		InvoiceRepo:    stores.InvoiceRepo,
		PaymentRepo:    stores.PaymentRepo,
		ClientRepo:     stores.ClientRepo,
		UserRepo:       stores.UserRepo,
		EventPublisher: s.GetPublisher(),
		EmailSender:    s.GetEmailSender(),
		Cache:          s.GetCache(),
		Clock:          s.GetClock(),
	}
}

// seedInvoice stores a client and an invoice with the given total and nothing paid
func seedInvoice(ctx context.Context, s *testutil.BaseServiceTestSuite, number string, total decimal.Decimal, status types.InvoiceStatus, dueDate time.Time) *invoice.Invoice {
	stores := s.GetStores()

	c := &client.Client{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CLIENT),
		Name:      "Client " + number,
		Email:     "billing+" + number + "@example.com",
		BaseModel: types.GetDefaultBaseModel(ctx),
	}
	s.Require().NoError(stores.ClientRepo.Create(ctx, c))

	inv := &invoice.Invoice{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE),
		InvoiceNumber: number,
		InvoiceDate:   dueDate.AddDate(0, 0, -30),
		DueDate:       dueDate,
		Currency:      types.DefaultCurrency,
		Subtotal:      total,
		TaxRate:       decimal.Zero,
		TaxAmount:     decimal.Zero,
		DiscountType:  types.DiscountTypeAmount,
		DiscountValue: decimal.Zero,
		Total:         total,
		AmountPaid:    decimal.Zero,
		BalanceAmount: total,
		Status:        status,
		ClientID:      c.ID,
		LineItems: []*invoice.LineItem{{
			ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE_LINE_ITEM),
			Description: "Consulting",
			Quantity:    decimal.NewFromInt(1),
			Rate:        total,
			Amount:      total,
		}},
		BaseModel: types.GetDefaultBaseModel(ctx),
	}
	inv.LineItems[0].InvoiceID = inv.ID
	s.Require().NoError(stores.InvoiceRepo.Create(ctx, inv))
	return inv
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}
