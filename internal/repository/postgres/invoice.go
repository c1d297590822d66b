package postgres

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/invoicely/invoicely/internal/domain/invoice"
	ierr "github.com/invoicely/invoicely/internal/errors"
	"github.com/invoicely/invoicely/internal/logger"
	"github.com/invoicely/invoicely/internal/postgres"
	"github.com/invoicely/invoicely/internal/types"
	"github.com/lib/pq"
	"github.com/samber/lo"
)

const (
	invoiceColumns = `i.id, i.invoice_number, i.invoice_date, i.due_date, i.currency, i.category,
		i.subtotal, i.tax_rate, i.tax_amount, i.discount_type, i.discount_value, i.total,
		i.amount_paid, i.balance_amount, i.status, i.note, i.terms,
		i.is_signed, i.signature, i.signed_at, i.admin_signature,
		i.client_id, i.company_id, i.created_at, i.updated_at, i.created_by, i.updated_by`

	lineItemColumns = `id, invoice_id, description, quantity, rate, amount, position, created_at`

	invoiceNumberConstraint = "invoices_invoice_number_key"
)

var invoiceSortColumns = []string{"created_at", "updated_at", "invoice_date", "due_date", "total", "invoice_number", "balance_amount"}

type invoiceRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

// NewInvoiceRepository creates a new instance of invoice repository
func NewInvoiceRepository(db *postgres.DB, logger *logger.Logger) invoice.Repository {
	return &invoiceRepository{
		db:     db,
		logger: logger,
	}
}

func invoiceNotFound(err error, id string) error {
	if err == nil {
		err = errors.Newf("invoice %s not found", id)
	}
	return ierr.WithError(err).
		WithHintf("Invoice %s was not found, please refresh", id).
		WithReportableDetails(map[string]any{"invoice_id": id}).
		Mark(ierr.ErrNotFound)
}

func duplicateInvoiceNumber(err error, number string) error {
	return ierr.WithError(err).
		WithHint("Invoice Number already exists!").
		WithReportableDetails(map[string]any{"invoice_number": number}).
		Mark(ierr.ErrAlreadyExists, ierr.ErrValidation)
}

func (r *invoiceRepository) Create(ctx context.Context, inv *invoice.Invoice) error {
	r.logger.Debugw("creating invoice",
		"invoice_id", inv.ID,
		"invoice_number", inv.InvoiceNumber,
		"line_items", len(inv.LineItems),
	)

	return r.db.WithTx(ctx, func(ctx context.Context) error {
		query := `
			INSERT INTO invoices (
				id, invoice_number, invoice_date, due_date, currency, category,
				subtotal, tax_rate, tax_amount, discount_type, discount_value, total,
				amount_paid, balance_amount, status, note, terms,
				is_signed, signature, signed_at, admin_signature,
				client_id, company_id, created_at, updated_at, created_by, updated_by
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
				$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27
			)`

		_, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
			inv.ID, inv.InvoiceNumber, inv.InvoiceDate, inv.DueDate, inv.Currency, inv.Category,
			inv.Subtotal, inv.TaxRate, inv.TaxAmount, inv.DiscountType, inv.DiscountValue, inv.Total,
			inv.AmountPaid, inv.BalanceAmount, inv.Status, inv.Note, inv.Terms,
			inv.IsSigned, inv.Signature, inv.SignedAt, inv.AdminSignature,
			inv.ClientID, inv.CompanyID, inv.CreatedAt, inv.UpdatedAt, inv.CreatedBy, inv.UpdatedBy,
		)
		if err != nil {
			if postgres.IsUniqueViolation(err, invoiceNumberConstraint) {
				return duplicateInvoiceNumber(err, inv.InvoiceNumber)
			}
			return postgres.Classify(err)
		}

		return r.insertLineItems(ctx, inv.LineItems)
	})
}

func (r *invoiceRepository) insertLineItems(ctx context.Context, items []*invoice.LineItem) error {
	query := `
		INSERT INTO invoice_line_items (` + lineItemColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	q := r.db.GetQuerier(ctx)
	for _, li := range items {
		if _, err := q.ExecContext(ctx, query,
			li.ID, li.InvoiceID, li.Description, li.Quantity, li.Rate, li.Amount, li.Position, li.CreatedAt,
		); err != nil {
			return postgres.Classify(err)
		}
	}
	return nil
}

func (r *invoiceRepository) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	var inv invoice.Invoice
	query := `SELECT ` + invoiceColumns + ` FROM invoices i WHERE i.id = $1`
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &inv, query, id); err != nil {
		if ierr.IsNotFound(postgres.Classify(err)) {
			return nil, invoiceNotFound(err, id)
		}
		return nil, postgres.Classify(err)
	}

	items, err := r.getLineItems(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	inv.LineItems = items[id]
	return &inv, nil
}

func (r *invoiceRepository) GetForUpdate(ctx context.Context, id string) (*invoice.Invoice, error) {
	if _, ok := postgres.GetTx(ctx); !ok {
		return nil, ierr.NewError("row lock requested outside a transaction").
			WithHint("An internal error occurred").
			Mark(ierr.ErrSystem)
	}

	r.logger.Debugw("locking invoice row", "invoice_id", id)

	var inv invoice.Invoice
	query := `SELECT ` + invoiceColumns + ` FROM invoices i WHERE i.id = $1 FOR UPDATE`
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &inv, query, id); err != nil {
		classified := postgres.Classify(err)
		if ierr.IsNotFound(classified) {
			return nil, invoiceNotFound(err, id)
		}
		return nil, classified
	}
	return &inv, nil
}

func (r *invoiceRepository) getLineItems(ctx context.Context, invoiceIDs []string) (map[string][]*invoice.LineItem, error) {
	result := make(map[string][]*invoice.LineItem, len(invoiceIDs))
	if len(invoiceIDs) == 0 {
		return result, nil
	}

	var items []*invoice.LineItem
	query := `SELECT ` + lineItemColumns + ` FROM invoice_line_items
		WHERE invoice_id = ANY($1) ORDER BY invoice_id, position`
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &items, query, pq.Array(invoiceIDs)); err != nil {
		return nil, postgres.Classify(err)
	}

	for _, li := range items {
		result[li.InvoiceID] = append(result[li.InvoiceID], li)
	}
	return result, nil
}

func (r *invoiceRepository) Update(ctx context.Context, inv *invoice.Invoice) error {
	query := `
		UPDATE invoices SET
			invoice_number = $2, invoice_date = $3, due_date = $4, currency = $5, category = $6,
			subtotal = $7, tax_rate = $8, tax_amount = $9, discount_type = $10, discount_value = $11,
			total = $12, amount_paid = $13, balance_amount = $14, status = $15, note = $16, terms = $17,
			is_signed = $18, signature = $19, signed_at = $20, admin_signature = $21,
			client_id = $22, company_id = $23, updated_at = $24, updated_by = $25
		WHERE id = $1`

	result, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		inv.ID, inv.InvoiceNumber, inv.InvoiceDate, inv.DueDate, inv.Currency, inv.Category,
		inv.Subtotal, inv.TaxRate, inv.TaxAmount, inv.DiscountType, inv.DiscountValue,
		inv.Total, inv.AmountPaid, inv.BalanceAmount, inv.Status, inv.Note, inv.Terms,
		inv.IsSigned, inv.Signature, inv.SignedAt, inv.AdminSignature,
		inv.ClientID, inv.CompanyID, inv.UpdatedAt, inv.UpdatedBy,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err, invoiceNumberConstraint) {
			return duplicateInvoiceNumber(err, inv.InvoiceNumber)
		}
		return postgres.Classify(err)
	}
	return requireAffected(result, func() error { return invoiceNotFound(nil, inv.ID) })
}

func (r *invoiceRepository) UpdateLedger(ctx context.Context, id string, state invoice.LedgerState) error {
	r.logger.Debugw("updating invoice ledger",
		"invoice_id", id,
		"amount_paid", state.AmountPaid,
		"balance_amount", state.BalanceAmount,
		"status", state.Status,
	)

	query := `
		UPDATE invoices SET
			amount_paid = $2, balance_amount = $3, status = $4,
			updated_at = $5, updated_by = $6
		WHERE id = $1`

	result, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		id, state.AmountPaid, state.BalanceAmount, state.Status,
		time.Now().UTC(), types.GetUserID(ctx),
	)
	if err != nil {
		return postgres.Classify(err)
	}
	return requireAffected(result, func() error { return invoiceNotFound(nil, id) })
}

func (r *invoiceRepository) ReplaceLineItems(ctx context.Context, invoiceID string, items []*invoice.LineItem) error {
	return r.db.WithTx(ctx, func(ctx context.Context) error {
		if _, err := r.db.GetQuerier(ctx).ExecContext(ctx,
			`DELETE FROM invoice_line_items WHERE invoice_id = $1`, invoiceID,
		); err != nil {
			return postgres.Classify(err)
		}
		return r.insertLineItems(ctx, items)
	})
}

func (r *invoiceRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.GetQuerier(ctx).ExecContext(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	if err != nil {
		return postgres.Classify(err)
	}
	return requireAffected(result, func() error { return invoiceNotFound(nil, id) })
}

func (r *invoiceRepository) buildFilter(filter *types.InvoiceFilter) *whereBuilder {
	w := &whereBuilder{}
	if filter == nil {
		return w
	}
	if len(filter.InvoiceIDs) > 0 {
		w.add("i.id = ANY(%s)", pq.Array(filter.InvoiceIDs))
	}
	if filter.ClientID != "" {
		w.add("i.client_id = %s", filter.ClientID)
	}
	if len(filter.InvoiceStatus) > 0 {
		statuses := lo.Map(filter.InvoiceStatus, func(s types.InvoiceStatus, _ int) string { return string(s) })
		w.add("i.status = ANY(%s)", pq.Array(statuses))
	}
	if filter.Search != "" {
		w.add("(i.invoice_number ILIKE %[1]s OR c.name ILIKE %[1]s)", "%"+filter.Search+"%")
	}
	if filter.TimeRangeFilter != nil {
		if filter.StartTime != nil {
			w.add("i.due_date >= %s", *filter.StartTime)
		}
		if filter.EndTime != nil {
			w.add("i.due_date < %s", *filter.EndTime)
		}
	}
	return w
}

func (r *invoiceRepository) List(ctx context.Context, filter *types.InvoiceFilter) ([]*invoice.Invoice, error) {
	if filter == nil {
		filter = types.NewInvoiceFilter()
	}

	w := r.buildFilter(filter)
	query := `SELECT ` + invoiceColumns + ` FROM invoices i JOIN clients c ON c.id = i.client_id` +
		w.clause() +
		orderBy("i", filter.GetSort(), filter.GetOrder(), invoiceSortColumns, "created_at") +
		w.paginate(filter.GetLimit(), filter.GetOffset(), filter.IsUnlimited())

	var invoices []*invoice.Invoice
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &invoices, query, w.args...); err != nil {
		return nil, postgres.Classify(err)
	}

	items, err := r.getLineItems(ctx, lo.Map(invoices, func(inv *invoice.Invoice, _ int) string { return inv.ID }))
	if err != nil {
		return nil, err
	}
	for _, inv := range invoices {
		inv.LineItems = items[inv.ID]
	}
	return invoices, nil
}

func (r *invoiceRepository) Count(ctx context.Context, filter *types.InvoiceFilter) (int, error) {
	w := r.buildFilter(filter)
	query := `SELECT COUNT(*) FROM invoices i JOIN clients c ON c.id = i.client_id` + w.clause()

	var count int
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &count, query, w.args...); err != nil {
		return 0, postgres.Classify(err)
	}
	return count, nil
}

func (r *invoiceRepository) MarkOverdue(ctx context.Context, now time.Time) (int, error) {
	excluded := lo.Map(invoice.SweepExcludedStatuses(), func(s types.InvoiceStatus, _ int) string { return string(s) })

	query := `
		UPDATE invoices SET status = $1, updated_at = $2
		WHERE status <> ALL($3) AND due_date < $2`

	result, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		types.InvoiceStatusOverdue, now, pq.Array(excluded),
	)
	if err != nil {
		return 0, postgres.Classify(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, postgres.Classify(err)
	}
	return int(rows), nil
}
