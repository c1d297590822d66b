package email

import (
	"context"
	"testing"

	"github.com/invoicely/invoicely/internal/config"
	ierr "github.com/invoicely/invoicely/internal/errors"
	"github.com/invoicely/invoicely/internal/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestShareLinkAndSubject(t *testing.T) {
	assert.Equal(t, "https://billing.example.com/public/invoice/inv_1", ShareLink("https://billing.example.com/", "inv_1"))
	assert.Equal(t, "Invoice #INV-7 Action Required", Subject("INV-7"))
}

func TestDisabledClientRefusesToSend(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Email.Enabled = false

	sender := NewEmail(NewEmailClient(cfg), cfg, logger.NewNoopLogger())
	_, err := sender.SendInvoiceLink(context.Background(), InvoiceLinkRequest{
		InvoiceID:     "inv_1",
		InvoiceNumber: "INV-1",
		ClientName:    "Acme",
		ClientEmail:   "billing@acme.test",
		Currency:      "LKR",
		Total:         decimal.NewFromInt(1000),
	})
	assert.True(t, ierr.IsInvalidOperation(err))
}

func TestMissingClientEmail(t *testing.T) {
	cfg := config.GetDefaultConfig()
	sender := NewEmail(NewEmailClient(cfg), cfg, logger.NewNoopLogger())
	_, err := sender.SendInvoiceLink(context.Background(), InvoiceLinkRequest{InvoiceID: "inv_1"})
	assert.True(t, ierr.IsValidation(err))
}
