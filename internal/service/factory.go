package service

import (
	"time"

	"github.com/invoicely/invoicely/internal/cache"
	"github.com/invoicely/invoicely/internal/config"
	"github.com/invoicely/invoicely/internal/domain/client"
	"github.com/invoicely/invoicely/internal/domain/invoice"
	"github.com/invoicely/invoicely/internal/domain/payment"
	"github.com/invoicely/invoicely/internal/domain/user"
	"github.com/invoicely/invoicely/internal/email"
	"github.com/invoicely/invoicely/internal/logger"
	"github.com/invoicely/invoicely/internal/postgres"
	"github.com/invoicely/invoicely/internal/publisher"
	"github.com/invoicely/invoicely/internal/sentry"
	"github.com/invoicely/invoicely/internal/types"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	DB     postgres.IClient
	Sentry *sentry.Service

	// Repositories
	InvoiceRepo invoice.Repository
	PaymentRepo payment.Repository
	ClientRepo  client.Repository
	UserRepo    user.Repository

	// Publishers
	EventPublisher publisher.EventPublisher

	EmailSender email.Sender
	Cache       cache.Cache
	Clock       types.Clock
}

// Common service params
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	db postgres.IClient,
	sentry *sentry.Service,
	invoiceRepo invoice.Repository,
	paymentRepo payment.Repository,
	clientRepo client.Repository,
	userRepo user.Repository,
	eventPublisher publisher.EventPublisher,
	emailSender email.Sender,
	cache cache.Cache,
) ServiceParams {
	return ServiceParams{
		Logger:         logger,
		Config:         config,
		DB:             db,
		Sentry:         sentry,
		InvoiceRepo:    invoiceRepo,
		PaymentRepo:    paymentRepo,
		ClientRepo:     clientRepo,
		UserRepo:       userRepo,
		EventPublisher: eventPublisher,
		EmailSender:    emailSender,
		Cache:          cache,
		Clock:          types.SystemClock,
	}
}

// now returns the current time from the injected clock
func (p ServiceParams) now() time.Time {
	if p.Clock == nil {
		return types.SystemClock()
	}
	return p.Clock().UTC()
}
