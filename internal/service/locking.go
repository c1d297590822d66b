package service

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	ierr "github.com/invoicely/invoicely/internal/errors"
)

func (p ServiceParams) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.Config.Ledger.RetryInitialInterval > 0 {
		b.InitialInterval = p.Config.Ledger.RetryInitialInterval
	}
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, p.Config.Ledger.MaxRetries), ctx)
}

// runLocked executes fn in a transaction bounded by the ledger timeout and
// retries it when the database reports a lock or serialization conflict.
// Every write that takes the invoice row lock goes through here.
// fn must be safe to run more than once.
func (p ServiceParams) runLocked(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	span, ctx := p.Sentry.StartServiceSpan(ctx, operation, nil)
	if span != nil {
		defer span.Finish()
	}

	log := p.Logger.WithContext(ctx)
	attempt := 0

	return backoff.Retry(func() error {
		attempt++

		txCtx, cancel := ctx, context.CancelFunc(func() {})
		if p.Config.Ledger.TxTimeout > 0 {
			txCtx, cancel = context.WithTimeout(ctx, p.Config.Ledger.TxTimeout)
		}
		defer cancel()

		err := p.DB.WithTx(txCtx, fn)
		if err == nil {
			return nil
		}

		if ierr.IsConcurrency(err) {
			log.Warnw("invoice lock conflict, retrying",
				"operation", operation,
				"attempt", attempt,
				"error", err,
			)
			p.Sentry.AddBreadcrumb("ledger", "retrying after lock conflict", map[string]interface{}{
				"operation": operation,
				"attempt":   attempt,
			})
			return err
		}
		return backoff.Permanent(err)
	}, p.newBackOff(ctx))
}
