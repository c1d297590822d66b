package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"

	"github.com/invoicely/invoicely/internal/config"
	ierr "github.com/invoicely/invoicely/internal/errors"
	"github.com/invoicely/invoicely/internal/logger"
	"github.com/shopspring/decimal"
)

// Sender delivers the invoice share link to a client
type Sender interface {
	SendInvoiceLink(ctx context.Context, req InvoiceLinkRequest) (*SendEmailResponse, error)
}

// InvoiceLinkRequest carries what the share link email needs
type InvoiceLinkRequest struct {
	InvoiceID     string
	InvoiceNumber string
	ClientName    string
	ClientEmail   string
	Currency      string
	Total         decimal.Decimal
}

// SendEmailResponse represents the response from sending an email
type SendEmailResponse struct {
	MessageID string
	ShareLink string
}

var invoiceLinkTemplate = template.Must(template.New("invoice_link").Parse(`<div style="font-family: sans-serif; padding: 20px;">
  <h2>Invoice #{{.InvoiceNumber}}</h2>
  <p>Hello {{.ClientName}},</p>
  <p>Your invoice for <strong>{{.Currency}} {{.Total}}</strong> is ready.</p>
  <p>Please review and sign your invoice by clicking the link below:</p>
  <a href="{{.ShareLink}}" style="background: #2563eb; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px; display: inline-block;">
    View &amp; Sign Invoice
  </a>
</div>`))

// Email sends invoice emails through the Resend client
type Email struct {
	client  *EmailClient
	baseURL string
	logger  *logger.Logger
}

// NewEmail creates the invoice email sender
func NewEmail(client *EmailClient, cfg *config.Configuration, logger *logger.Logger) Sender {
	return &Email{
		client:  client,
		baseURL: strings.TrimRight(cfg.Invoice.PublicBaseURL, "/"),
		logger:  logger,
	}
}

// ShareLink returns the public page of an invoice
func ShareLink(baseURL, invoiceID string) string {
	return fmt.Sprintf("%s/public/invoice/%s", strings.TrimRight(baseURL, "/"), invoiceID)
}

// Subject returns the subject line of the share link email
func Subject(invoiceNumber string) string {
	return fmt.Sprintf("Invoice #%s Action Required", invoiceNumber)
}

func (s *Email) SendInvoiceLink(ctx context.Context, req InvoiceLinkRequest) (*SendEmailResponse, error) {
	if strings.TrimSpace(req.ClientEmail) == "" {
		return nil, ierr.NewError("client has no email address").
			WithHint("Invoice or Client Email not found").
			WithReportableDetails(map[string]any{"invoice_id": req.InvoiceID}).
			Mark(ierr.ErrValidation)
	}

	link := ShareLink(s.baseURL, req.InvoiceID)

	var body bytes.Buffer
	if err := invoiceLinkTemplate.Execute(&body, map[string]any{
		"InvoiceNumber": req.InvoiceNumber,
		"ClientName":    req.ClientName,
		"Currency":      req.Currency,
		"Total":         req.Total.StringFixed(2),
		"ShareLink":     link,
	}); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to render email").
			Mark(ierr.ErrSystem)
	}

	text := fmt.Sprintf("Hello %s,\n\nPlease review and sign invoice #%s: %s\n",
		req.ClientName, req.InvoiceNumber, link)

	messageID, err := s.client.SendEmail(ctx, s.client.GetFromAddress(), req.ClientEmail,
		Subject(req.InvoiceNumber), body.String(), text)
	if err != nil {
		s.logger.Errorw("failed to send invoice email",
			"error", err,
			"invoice_id", req.InvoiceID,
			"to", req.ClientEmail,
		)
		return nil, err
	}

	s.logger.Infow("invoice email sent",
		"message_id", messageID,
		"invoice_id", req.InvoiceID,
		"to", req.ClientEmail,
	)

	return &SendEmailResponse{
		MessageID: messageID,
		ShareLink: link,
	}, nil
}
