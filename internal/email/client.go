package email

import (
	"context"

	"github.com/invoicely/invoicely/internal/config"
	ierr "github.com/invoicely/invoicely/internal/errors"
	"github.com/resend/resend-go/v2"
)

// EmailClient represents an email client wrapper
type EmailClient struct {
	client      *resend.Client
	enabled     bool
	fromAddress string
	replyTo     string
}

// NewEmailClient creates a new email client. The client stays disabled
// unless email is enabled and an API key is configured.
func NewEmailClient(cfg *config.Configuration) *EmailClient {
	if !cfg.Email.Enabled || cfg.Email.APIKey == "" {
		return &EmailClient{
			enabled:     false,
			fromAddress: cfg.Email.FromAddress,
		}
	}

	return &EmailClient{
		client:      resend.NewClient(cfg.Email.APIKey),
		enabled:     true,
		fromAddress: cfg.Email.FromAddress,
		replyTo:     cfg.Email.ReplyTo,
	}
}

// IsEnabled returns whether the email client is enabled
func (c *EmailClient) IsEnabled() bool {
	return c.enabled
}

// GetFromAddress returns the default from address
func (c *EmailClient) GetFromAddress() string {
	return c.fromAddress
}

// SendEmail sends an HTML email with a plain text fallback and returns the provider message id
func (c *EmailClient) SendEmail(ctx context.Context, from, to, subject, htmlContent, textContent string) (string, error) {
	if !c.enabled {
		return "", ierr.NewError("email client is disabled").
			WithHint("Email delivery is not configured").
			Mark(ierr.ErrInvalidOperation)
	}

	params := &resend.SendEmailRequest{
		From:    from,
		To:      []string{to},
		Subject: subject,
		Html:    htmlContent,
		Text:    textContent,
	}

	if c.replyTo != "" {
		params.ReplyTo = c.replyTo
	}

	sent, err := c.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("Failed to send email").
			WithReportableDetails(map[string]any{"to": to}).
			Mark(ierr.ErrHTTPClient)
	}

	return sent.Id, nil
}
