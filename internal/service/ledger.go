package service

import (
	"context"

	"github.com/invoicely/invoicely/internal/api/dto"
	"github.com/invoicely/invoicely/internal/domain/invoice"
	"github.com/invoicely/invoicely/internal/domain/payment"
	ierr "github.com/invoicely/invoicely/internal/errors"
	"github.com/invoicely/invoicely/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// LedgerService is the only writer of amount_paid, balance_amount and the
// payment-driven status of an invoice. Every mutation runs in one transaction
// holding the invoice row lock.
type LedgerService interface {
	RecordPayment(ctx context.Context, req dto.CreatePaymentRequest) (*dto.PaymentResponse, error)
	UpdatePayment(ctx context.Context, id string, req dto.UpdatePaymentRequest) (*dto.PaymentResponse, error)
	DeletePayment(ctx context.Context, id string) (*dto.DeletePaymentResponse, error)
	GetPayment(ctx context.Context, id string) (*dto.PaymentResponse, error)
	ListPayments(ctx context.Context, filter *types.PaymentFilter) (*dto.ListPaymentsResponse, error)

	// RecomputeFromHistory compares the stored ledger fields of an invoice with
	// the sum of its payments and, when repair is set, writes the derived values
	RecomputeFromHistory(ctx context.Context, invoiceID string, repair bool) (*dto.ReconciliationReport, error)
	// ReconcileAll runs RecomputeFromHistory over every invoice
	ReconcileAll(ctx context.Context, repair bool) (*dto.ReconcileAllResponse, error)
}

type ledgerService struct {
	ServiceParams
}

// NewLedgerService creates a new ledger service
func NewLedgerService(params ServiceParams) LedgerService {
	return &ledgerService{
		ServiceParams: params,
	}
}

func (s *ledgerService) RecordPayment(ctx context.Context, req dto.CreatePaymentRequest) (*dto.PaymentResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	p := req.ToPayment(ctx, s.now())
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var inv *invoice.Invoice
	var state invoice.LedgerState

	err := s.runLocked(ctx, "ledger.record_payment", func(ctx context.Context) error {
		var err error
		inv, err = s.InvoiceRepo.GetForUpdate(ctx, p.InvoiceID)
		if err != nil {
			return err
		}

		if err := s.PaymentRepo.Create(ctx, p); err != nil {
			return err
		}

		state = invoice.AfterRecord(inv.Total, inv.AmountPaid, p.Amount)
		return s.InvoiceRepo.UpdateLedger(ctx, inv.ID, state)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.WithContext(ctx).Infow("payment recorded",
		"payment_id", p.ID,
		"invoice_id", inv.ID,
		"amount", p.Amount,
		"status", state.Status,
	)

	s.publishEvent(ctx, withPayment(
		s.newInvoiceEvent(ctx, types.TopicPaymentRecorded, inv, state), p.ID, p.Amount))

	return &dto.PaymentResponse{
		Payment: p,
		Invoice: dto.NewInvoiceLedgerResponse(inv.ID, inv.Total, state),
	}, nil
}

func (s *ledgerService) UpdatePayment(ctx context.Context, id string, req dto.UpdatePaymentRequest) (*dto.PaymentResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := payment.ValidateAmount(req.Amount); err != nil {
		return nil, err
	}

	// The owning invoice never changes, so it can be resolved before locking
	existing, err := s.PaymentRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var inv *invoice.Invoice
	var p *payment.Payment
	var oldAmount decimal.Decimal
	var state invoice.LedgerState

	err = s.runLocked(ctx, "ledger.update_payment", func(ctx context.Context) error {
		var err error
		inv, err = s.InvoiceRepo.GetForUpdate(ctx, existing.InvoiceID)
		if err != nil {
			return err
		}

		// re-read under the lock, a concurrent edit may have committed meanwhile
		p, err = s.PaymentRepo.Get(ctx, id)
		if err != nil {
			return err
		}

		oldAmount = p.Amount
		p.Amount = req.Amount
		p.Method = req.Method
		p.PaymentDate = req.PaymentDate.UTC()
		p.UpdatedAt = s.now()
		p.UpdatedBy = types.GetUserID(ctx)
		if err := p.Validate(); err != nil {
			return err
		}

		if err := s.PaymentRepo.Update(ctx, p); err != nil {
			return err
		}

		state = invoice.AfterUpdate(inv.Total, inv.AmountPaid, oldAmount, p.Amount)
		return s.InvoiceRepo.UpdateLedger(ctx, inv.ID, state)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.WithContext(ctx).Infow("payment updated",
		"payment_id", p.ID,
		"invoice_id", inv.ID,
		"old_amount", oldAmount,
		"new_amount", p.Amount,
		"status", state.Status,
	)

	s.publishEvent(ctx, withPayment(
		s.newInvoiceEvent(ctx, types.TopicPaymentUpdated, inv, state), p.ID, p.Amount))

	return &dto.PaymentResponse{
		Payment: p,
		Invoice: dto.NewInvoiceLedgerResponse(inv.ID, inv.Total, state),
	}, nil
}

func (s *ledgerService) DeletePayment(ctx context.Context, id string) (*dto.DeletePaymentResponse, error) {
	existing, err := s.PaymentRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	policy := s.Config.Ledger.DeletePolicy
	var inv *invoice.Invoice
	var p *payment.Payment
	var state invoice.LedgerState

	err = s.runLocked(ctx, "ledger.delete_payment", func(ctx context.Context) error {
		var err error
		inv, err = s.InvoiceRepo.GetForUpdate(ctx, existing.InvoiceID)
		if err != nil {
			if !ierr.IsNotFound(err) {
				return err
			}
			inv = nil
		}

		p, err = s.PaymentRepo.Get(ctx, id)
		if err != nil {
			return err
		}

		if err := s.PaymentRepo.Delete(ctx, id); err != nil {
			return err
		}

		if inv == nil {
			return nil
		}

		state = invoice.AfterDelete(inv.Total, inv.AmountPaid, p.Amount, policy)
		return s.InvoiceRepo.UpdateLedger(ctx, inv.ID, state)
	})
	if err != nil {
		return nil, err
	}

	log := s.Logger.WithContext(ctx)
	resp := &dto.DeletePaymentResponse{PaymentID: id}

	if inv == nil {
		log.Warnw("deleted payment of a missing invoice",
			"payment_id", id,
			"invoice_id", existing.InvoiceID,
		)
		event := types.NewLedgerEvent(ctx, types.TopicPaymentDeleted, s.now())
		event.InvoiceID = existing.InvoiceID
		s.publishEvent(ctx, withPayment(event, p.ID, p.Amount))
		return resp, nil
	}

	log.Infow("payment deleted",
		"payment_id", id,
		"invoice_id", inv.ID,
		"amount", p.Amount,
		"policy", policy,
		"status", state.Status,
	)

	s.publishEvent(ctx, withPayment(
		s.newInvoiceEvent(ctx, types.TopicPaymentDeleted, inv, state), p.ID, p.Amount))

	resp.Invoice = dto.NewInvoiceLedgerResponse(inv.ID, inv.Total, state)
	return resp, nil
}

func (s *ledgerService) GetPayment(ctx context.Context, id string) (*dto.PaymentResponse, error) {
	p, err := s.PaymentRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.PaymentResponse{Payment: p}, nil
}

func (s *ledgerService) ListPayments(ctx context.Context, filter *types.PaymentFilter) (*dto.ListPaymentsResponse, error) {
	if filter == nil {
		filter = types.NewPaymentFilter()
	}
	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewPaymentFilter().QueryFilter
	}

	if err := filter.Validate(); err != nil {
		return nil, err
	}

	payments, err := s.PaymentRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	total, err := s.PaymentRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := lo.Map(payments, func(p *payment.Payment, _ int) *dto.PaymentResponse {
		return &dto.PaymentResponse{Payment: p}
	})

	resp := types.NewListResponse(items, total, filter.GetLimit(), filter.GetOffset())
	return &resp, nil
}

func (s *ledgerService) RecomputeFromHistory(ctx context.Context, invoiceID string, repair bool) (*dto.ReconciliationReport, error) {
	var inv *invoice.Invoice
	var report *dto.ReconciliationReport
	var derived invoice.LedgerState

	err := s.runLocked(ctx, "ledger.recompute", func(ctx context.Context) error {
		var err error
		inv, err = s.InvoiceRepo.GetForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}

		sum, err := s.PaymentRepo.SumByInvoice(ctx, invoiceID)
		if err != nil {
			return err
		}

		stored := inv.Ledger()
		derived = invoice.FromHistory(stored, inv.Total, sum)
		drift := !stored.Equal(derived)
		if drift && s.Config.Ledger.DeletePolicy == types.PaymentDeleteLiteral &&
			invoice.IsLiteralDeleteState(stored, inv.Total, sum) {
			drift = false
		}

		report = &dto.ReconciliationReport{
			InvoiceID: invoiceID,
			Stored:    dto.NewInvoiceLedgerResponse(invoiceID, inv.Total, stored),
			Derived:   dto.NewInvoiceLedgerResponse(invoiceID, inv.Total, derived),
			Drift:     drift,
		}

		if !drift || !repair {
			return nil
		}

		if err := s.InvoiceRepo.UpdateLedger(ctx, invoiceID, derived); err != nil {
			return err
		}
		report.Repaired = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if report.Drift {
		s.Logger.WithContext(ctx).Warnw("invoice ledger drift detected",
			"invoice_id", invoiceID,
			"stored_amount_paid", report.Stored.AmountPaid,
			"derived_amount_paid", report.Derived.AmountPaid,
			"stored_status", report.Stored.Status,
			"derived_status", report.Derived.Status,
			"repaired", report.Repaired,
		)
	}

	if report.Repaired {
		s.publishEvent(ctx, s.newInvoiceEvent(ctx, types.TopicInvoiceReconciled, inv, derived))
	}

	return report, nil
}

func (s *ledgerService) ReconcileAll(ctx context.Context, repair bool) (*dto.ReconcileAllResponse, error) {
	invoices, err := s.InvoiceRepo.List(ctx, types.NewNoLimitInvoiceFilter())
	if err != nil {
		return nil, err
	}

	resp := &dto.ReconcileAllResponse{
		Reports: []*dto.ReconciliationReport{},
	}

	for _, inv := range invoices {
		report, err := s.RecomputeFromHistory(ctx, inv.ID, repair)
		if err != nil {
			// deleted since the listing
			if ierr.IsNotFound(err) {
				continue
			}
			return nil, err
		}

		resp.Checked++
		if !report.Drift {
			continue
		}
		resp.Drifted++
		if report.Repaired {
			resp.Repaired++
		}
		resp.Reports = append(resp.Reports, report)
	}

	s.Logger.WithContext(ctx).Infow("ledger reconciliation finished",
		"checked", resp.Checked,
		"drifted", resp.Drifted,
		"repaired", resp.Repaired,
	)

	return resp, nil
}
