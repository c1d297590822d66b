package postgres

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/invoicely/invoicely/internal/domain/payment"
	ierr "github.com/invoicely/invoicely/internal/errors"
	"github.com/invoicely/invoicely/internal/logger"
	"github.com/invoicely/invoicely/internal/postgres"
	"github.com/invoicely/invoicely/internal/types"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const paymentColumns = `id, invoice_id, amount, method, payment_date, note, created_at, updated_at, created_by, updated_by`

var paymentSortColumns = []string{"payment_date", "created_at", "updated_at", "amount"}

type paymentRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

// NewPaymentRepository creates a new instance of payment repository
func NewPaymentRepository(db *postgres.DB, logger *logger.Logger) payment.Repository {
	return &paymentRepository{
		db:     db,
		logger: logger,
	}
}

func paymentNotFound(err error, id string) error {
	if err == nil {
		err = errors.Newf("payment %s not found", id)
	}
	return ierr.WithError(err).
		WithHintf("Payment %s was not found, please refresh", id).
		WithReportableDetails(map[string]any{"payment_id": id}).
		Mark(ierr.ErrNotFound)
}

func (r *paymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	r.logger.Debugw("creating payment",
		"payment_id", p.ID,
		"invoice_id", p.InvoiceID,
		"amount", p.Amount,
	)

	query := `INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		p.ID, p.InvoiceID, p.Amount, p.Method, p.PaymentDate, p.Note,
		p.CreatedAt, p.UpdatedAt, p.CreatedBy, p.UpdatedBy,
	)
	return postgres.Classify(err)
}

func (r *paymentRepository) Get(ctx context.Context, id string) (*payment.Payment, error) {
	var p payment.Payment
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &p, query, id); err != nil {
		classified := postgres.Classify(err)
		if ierr.IsNotFound(classified) {
			return nil, paymentNotFound(err, id)
		}
		return nil, classified
	}
	return &p, nil
}

func (r *paymentRepository) Update(ctx context.Context, p *payment.Payment) error {
	query := `
		UPDATE payments SET
			amount = $2, method = $3, payment_date = $4, note = $5,
			updated_at = $6, updated_by = $7
		WHERE id = $1`

	result, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		p.ID, p.Amount, p.Method, p.PaymentDate, p.Note, p.UpdatedAt, p.UpdatedBy,
	)
	if err != nil {
		return postgres.Classify(err)
	}
	return requireAffected(result, func() error { return paymentNotFound(nil, p.ID) })
}

func (r *paymentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.GetQuerier(ctx).ExecContext(ctx, `DELETE FROM payments WHERE id = $1`, id)
	if err != nil {
		return postgres.Classify(err)
	}
	return requireAffected(result, func() error { return paymentNotFound(nil, id) })
}

func (r *paymentRepository) buildFilter(filter *types.PaymentFilter) *whereBuilder {
	w := &whereBuilder{}
	if filter == nil {
		return w
	}
	if filter.InvoiceID != "" {
		w.add("invoice_id = %s", filter.InvoiceID)
	}
	if len(filter.PaymentIDs) > 0 {
		w.add("id = ANY(%s)", pq.Array(filter.PaymentIDs))
	}
	if filter.Method != "" {
		w.add("method = %s", filter.Method)
	}
	if filter.TimeRangeFilter != nil {
		if filter.StartTime != nil {
			w.add("payment_date >= %s", *filter.StartTime)
		}
		if filter.EndTime != nil {
			w.add("payment_date < %s", *filter.EndTime)
		}
	}
	return w
}

func (r *paymentRepository) List(ctx context.Context, filter *types.PaymentFilter) ([]*payment.Payment, error) {
	if filter == nil {
		filter = types.NewPaymentFilter()
	}

	w := r.buildFilter(filter)
	query := `SELECT ` + paymentColumns + ` FROM payments` +
		w.clause() +
		orderBy("", filter.GetSort(), filter.GetOrder(), paymentSortColumns, "payment_date") +
		w.paginate(filter.GetLimit(), filter.GetOffset(), filter.IsUnlimited())

	var payments []*payment.Payment
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &payments, query, w.args...); err != nil {
		return nil, postgres.Classify(err)
	}
	return payments, nil
}

func (r *paymentRepository) Count(ctx context.Context, filter *types.PaymentFilter) (int, error) {
	w := r.buildFilter(filter)

	var count int
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &count, `SELECT COUNT(*) FROM payments`+w.clause(), w.args...); err != nil {
		return 0, postgres.Classify(err)
	}
	return count, nil
}

func (r *paymentRepository) SumByInvoice(ctx context.Context, invoiceID string) (decimal.Decimal, error) {
	var sum decimal.Decimal
	query := `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE invoice_id = $1`
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &sum, query, invoiceID); err != nil {
		return decimal.Zero, postgres.Classify(err)
	}
	return sum, nil
}

func (r *paymentRepository) DeleteByInvoice(ctx context.Context, invoiceID string) error {
	_, err := r.db.GetQuerier(ctx).ExecContext(ctx, `DELETE FROM payments WHERE invoice_id = $1`, invoiceID)
	return postgres.Classify(err)
}
