package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/invoicely/invoicely/internal/email"
)

var _ email.Sender = (*MockEmailSender)(nil)

// MockEmailSender captures share link emails instead of delivering them
type MockEmailSender struct {
	mu      sync.Mutex
	sent    []email.InvoiceLinkRequest
	err     error
	baseURL string
}

// NewMockEmailSender creates a sender whose links point at baseURL
func NewMockEmailSender(baseURL string) *MockEmailSender {
	return &MockEmailSender{baseURL: baseURL}
}

func (m *MockEmailSender) SendInvoiceLink(_ context.Context, req email.InvoiceLinkRequest) (*email.SendEmailResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}

	m.sent = append(m.sent, req)
	return &email.SendEmailResponse{
		MessageID: fmt.Sprintf("msg_%d", len(m.sent)),
		ShareLink: email.ShareLink(m.baseURL, req.InvoiceID),
	}, nil
}

// FailWith makes every following send return err
func (m *MockEmailSender) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Sent returns the captured requests
func (m *MockEmailSender) Sent() []email.InvoiceLinkRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]email.InvoiceLinkRequest(nil), m.sent...)
}

func (m *MockEmailSender) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
	m.err = nil
}
