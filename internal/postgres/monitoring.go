package postgres

import (
	"context"

	"github.com/invoicely/invoicely/internal/logger"
	sentryService "github.com/invoicely/invoicely/internal/sentry"
	"go.uber.org/fx"
)

// SentryClient wraps the transaction runner with Sentry span tracking
type SentryClient struct {
	client IClient
	sentry *sentryService.Service
	logger *logger.Logger
}

// Module provides the database pool and the instrumented transaction runner
func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			NewDB,
			NewClient,
		),
	)
}

// NewClient returns the transaction runner used by the services
func NewClient(db *DB, sentry *sentryService.Service, logger *logger.Logger) IClient {
	return NewSentryClient(db, sentry, logger)
}

// NewSentryClient creates a new Sentry-instrumented transaction runner
func NewSentryClient(client IClient, sentry *sentryService.Service, logger *logger.Logger) IClient {
	return &SentryClient{
		client: client,
		sentry: sentry,
		logger: logger,
	}
}

// WithTx wraps the given function in a transaction with Sentry span tracking
func (c *SentryClient) WithTx(ctx context.Context, fn func(context.Context) error) error {
	span, spanCtx := c.sentry.StartDBSpan(ctx, "postgres.transaction", map[string]interface{}{
		"operation": "transaction",
	})
	if span != nil {
		defer span.Finish()
	}

	err := c.client.WithTx(spanCtx, fn)
	if err != nil && span != nil {
		span.SetData("error", err.Error())
	}
	return err
}
