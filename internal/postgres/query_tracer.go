package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/invoicely/invoicely/internal/logger"
)

// slowQuery is the duration past which a successful statement is logged at warn level
const slowQuery = 250 * time.Millisecond

// TracedQuerier logs every statement issued through it along with the
// transaction it belongs to and the request that caused it.
type TracedQuerier struct {
	Querier
	logger *logger.Logger
	txID   string
}

func NewTracedQuerier(q Querier, logger *logger.Logger, txID string) *TracedQuerier {
	return &TracedQuerier{
		Querier: q,
		logger:  logger,
		txID:    txID,
	}
}

func (tq *TracedQuerier) trace(ctx context.Context, query string, args []interface{}) func(error) {
	start := time.Now()
	return func(err error) {
		elapsed := time.Since(start)
		log := tq.logger.WithContext(ctx)
		fields := []interface{}{
			"duration_ms", elapsed.Milliseconds(),
			"query", query,
			"arg_count", len(args),
		}
		if tq.txID != "" {
			fields = append(fields, "tx_id", tq.txID)
		}

		switch {
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			log.Errorw("database query failed", append(fields, "error", err.Error())...)
		case elapsed > slowQuery:
			log.Warnw("slow database query", fields...)
		default:
			log.Debugw("database query completed", fields...)
		}
	}
}

func (tq *TracedQuerier) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	done := tq.trace(ctx, query, args)
	result, err := tq.Querier.ExecContext(ctx, query, args...)
	done(err)
	return result, err
}

func (tq *TracedQuerier) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	done := tq.trace(ctx, query, args)
	rows, err := tq.Querier.QueryContext(ctx, query, args...)
	done(err)
	return rows, err
}

func (tq *TracedQuerier) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	done := tq.trace(ctx, query, args)
	err := tq.Querier.GetContext(ctx, dest, query, args...)
	done(err)
	return err
}

func (tq *TracedQuerier) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	done := tq.trace(ctx, query, args)
	err := tq.Querier.SelectContext(ctx, dest, query, args...)
	done(err)
	return err
}
