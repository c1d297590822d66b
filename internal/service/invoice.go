package service

import (
	"context"

	"github.com/invoicely/invoicely/internal/api/dto"
	"github.com/invoicely/invoicely/internal/domain/client"
	"github.com/invoicely/invoicely/internal/domain/invoice"
	"github.com/invoicely/invoicely/internal/email"
	ierr "github.com/invoicely/invoicely/internal/errors"
	"github.com/invoicely/invoicely/internal/money"
	"github.com/invoicely/invoicely/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

type InvoiceService interface {
	// CreateFullInvoice creates the client, the optional company, the invoice and
	// its line items in one transaction. adminSignature is stamped on the invoice as is.
	CreateFullInvoice(ctx context.Context, req dto.CreateInvoiceRequest, adminSignature *string) (*dto.InvoiceResponse, error)
	// UpdateFullInvoice replaces every editable field and the line items of an
	// invoice. Amount paid is never touched.
	UpdateFullInvoice(ctx context.Context, id string, req dto.UpdateInvoiceRequest) (*dto.InvoiceResponse, error)
	GetInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error)
	ListInvoices(ctx context.Context, filter *types.InvoiceFilter) (*dto.ListInvoicesResponse, error)
	DeleteInvoice(ctx context.Context, id string) error

	// SendInvoice emails the public share link and marks the invoice SENT
	SendInvoice(ctx context.Context, id string) (*dto.SendInvoiceResponse, error)
	UpdateInvoiceStatus(ctx context.Context, id string, req dto.UpdateInvoiceStatusRequest) (*dto.InvoiceResponse, error)
	SubmitClientSignature(ctx context.Context, id string, req dto.SubmitSignatureRequest) (*dto.PublicInvoiceResponse, error)
	GetPublicInvoice(ctx context.Context, id string) (*dto.PublicInvoiceResponse, error)

	// SweepOverdueInvoices moves every unpaid past-due invoice to OVERDUE
	SweepOverdueInvoices(ctx context.Context) (*dto.SweepResponse, error)
}

type invoiceService struct {
	ServiceParams
}

func NewInvoiceService(params ServiceParams) InvoiceService {
	return &invoiceService{
		ServiceParams: params,
	}
}

func (s *invoiceService) CreateFullInvoice(ctx context.Context, req dto.CreateInvoiceRequest, adminSignature *string) (*dto.InvoiceResponse, error) {
	if err := req.Validate(s.Config.Invoice.DefaultCurrency); err != nil {
		return nil, err
	}

	calc, err := req.Calculate()
	if err != nil {
		return nil, err
	}

	now := s.now()
	inv := req.ToInvoice(ctx, adminSignature)
	calc.ApplyTo(inv, now)
	inv.ApplyLedger(invoice.LedgerState{
		AmountPaid:    decimal.Zero,
		BalanceAmount: money.Balance(inv.Total, decimal.Zero),
		Status:        req.Status,
	})

	var c *client.Client
	var co *client.Company

	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		c, err = s.upsertClient(ctx, &req.Client)
		if err != nil {
			return err
		}

		if req.Company.HasName() {
			co = req.Company.ToCompany(ctx, c.ID)
			if err := co.Validate(); err != nil {
				return err
			}
			if err := s.ClientRepo.CreateCompany(ctx, co); err != nil {
				return err
			}
			c.CompanyID = lo.ToPtr(co.ID)
			if err := s.ClientRepo.Update(ctx, c); err != nil {
				return err
			}
			inv.CompanyID = lo.ToPtr(co.ID)
		} else if c.CompanyID != nil {
			inv.CompanyID = c.CompanyID
		}

		inv.ClientID = c.ID
		if err := inv.Validate(); err != nil {
			return err
		}

		return s.InvoiceRepo.Create(ctx, inv)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.WithContext(ctx).Infow("invoice created",
		"invoice_id", inv.ID,
		"invoice_number", inv.InvoiceNumber,
		"client_id", c.ID,
		"total", inv.Total,
		"status", inv.Status,
	)

	s.publishEvent(ctx, s.newInvoiceEvent(ctx, types.TopicInvoiceCreated, inv, inv.Ledger()))

	return dto.NewInvoiceResponse(inv, c, co), nil
}

// upsertClient updates the referenced client or creates a new one
func (s *invoiceService) upsertClient(ctx context.Context, req *dto.ClientRequest) (*client.Client, error) {
	if req.ID == "" {
		c := req.ToClient(ctx)
		if err := c.Validate(); err != nil {
			return nil, err
		}
		if err := s.ClientRepo.Create(ctx, c); err != nil {
			return nil, err
		}
		return c, nil
	}

	c, err := s.ClientRepo.Get(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	req.ApplyTo(ctx, c)
	c.UpdatedAt = s.now()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := s.ClientRepo.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *invoiceService) UpdateFullInvoice(ctx context.Context, id string, req dto.UpdateInvoiceRequest) (*dto.InvoiceResponse, error) {
	if err := req.Validate(s.Config.Invoice.DefaultCurrency); err != nil {
		return nil, err
	}

	calc, err := req.Calculate()
	if err != nil {
		return nil, err
	}

	var inv *invoice.Invoice
	var c *client.Client
	var co *client.Company

	err = s.runLocked(ctx, "invoice.update", func(ctx context.Context) error {
		var err error
		inv, err = s.InvoiceRepo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		c, err = s.ClientRepo.Get(ctx, inv.ClientID)
		if err != nil {
			return err
		}
		req.Client.ApplyTo(ctx, c)
		c.UpdatedAt = s.now()
		if err := c.Validate(); err != nil {
			return err
		}

		co, err = s.syncCompany(ctx, inv, c, req.Company)
		if err != nil {
			return err
		}

		if err := s.ClientRepo.Update(ctx, c); err != nil {
			return err
		}

		req.ApplyTo(ctx, inv)
		inv.UpdatedAt = s.now()
		calc.ApplyTo(inv, s.now())
		inv.ApplyLedger(invoice.AfterEdit(inv.Ledger(), inv.Total))
		if err := inv.Validate(); err != nil {
			return err
		}

		if err := s.InvoiceRepo.Update(ctx, inv); err != nil {
			return err
		}
		return s.InvoiceRepo.ReplaceLineItems(ctx, inv.ID, inv.LineItems)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.WithContext(ctx).Infow("invoice updated",
		"invoice_id", inv.ID,
		"total", inv.Total,
		"amount_paid", inv.AmountPaid,
		"balance_amount", inv.BalanceAmount,
		"status", inv.Status,
	)

	s.publishEvent(ctx, s.newInvoiceEvent(ctx, types.TopicInvoiceUpdated, inv, inv.Ledger()))

	return dto.NewInvoiceResponse(inv, c, co), nil
}

// syncCompany updates the company of an invoice, or creates one when the
// invoice has none and the request names one. A blank name leaves it as is.
func (s *invoiceService) syncCompany(ctx context.Context, inv *invoice.Invoice, c *client.Client, req *dto.CompanyRequest) (*client.Company, error) {
	var co *client.Company
	if inv.CompanyID != nil {
		var err error
		co, err = s.ClientRepo.GetCompany(ctx, *inv.CompanyID)
		if err != nil && !ierr.IsNotFound(err) {
			return nil, err
		}
	}

	if !req.HasName() {
		return co, nil
	}

	if co != nil {
		req.ApplyTo(ctx, co)
		co.UpdatedAt = s.now()
		if err := co.Validate(); err != nil {
			return nil, err
		}
		return co, s.ClientRepo.UpdateCompany(ctx, co)
	}

	co = req.ToCompany(ctx, c.ID)
	if err := co.Validate(); err != nil {
		return nil, err
	}
	if err := s.ClientRepo.CreateCompany(ctx, co); err != nil {
		return nil, err
	}
	c.CompanyID = lo.ToPtr(co.ID)
	inv.CompanyID = lo.ToPtr(co.ID)
	return co, nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error) {
	inv, err := s.InvoiceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	c, co, err := s.parties(ctx, inv)
	if err != nil {
		return nil, err
	}

	return dto.NewInvoiceResponse(inv, c, co), nil
}

// parties loads the client and company of an invoice. A missing company is not an error.
func (s *invoiceService) parties(ctx context.Context, inv *invoice.Invoice) (*client.Client, *client.Company, error) {
	c, err := s.ClientRepo.Get(ctx, inv.ClientID)
	if err != nil {
		return nil, nil, err
	}

	if inv.CompanyID == nil {
		return c, nil, nil
	}

	co, err := s.ClientRepo.GetCompany(ctx, *inv.CompanyID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return c, nil, nil
		}
		return nil, nil, err
	}
	return c, co, nil
}

func (s *invoiceService) ListInvoices(ctx context.Context, filter *types.InvoiceFilter) (*dto.ListInvoicesResponse, error) {
	if filter == nil {
		filter = types.NewInvoiceFilter()
	}
	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewDefaultQueryFilter()
	}

	if err := filter.Validate(); err != nil {
		return nil, err
	}

	if s.Config.Invoice.SweepOnList {
		if _, err := s.SweepOverdueInvoices(ctx); err != nil {
			s.Logger.WithContext(ctx).Errorw("overdue sweep before listing failed", "error", err)
		}
	}

	invoices, err := s.InvoiceRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	total, err := s.InvoiceRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	clients := make(map[string]*client.Client)
	for _, clientID := range lo.Uniq(lo.Map(invoices, func(inv *invoice.Invoice, _ int) string {
		return inv.ClientID
	})) {
		c, err := s.ClientRepo.Get(ctx, clientID)
		if err != nil {
			if ierr.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		clients[clientID] = c
	}

	items := lo.Map(invoices, func(inv *invoice.Invoice, _ int) *dto.InvoiceResponse {
		return dto.NewInvoiceResponse(inv, clients[inv.ClientID], nil)
	})

	resp := types.NewListResponse(items, total, filter.GetLimit(), filter.GetOffset())
	return &resp, nil
}

func (s *invoiceService) DeleteInvoice(ctx context.Context, id string) error {
	err := s.runLocked(ctx, "invoice.delete", func(ctx context.Context) error {
		if _, err := s.InvoiceRepo.GetForUpdate(ctx, id); err != nil {
			return err
		}
		if err := s.PaymentRepo.DeleteByInvoice(ctx, id); err != nil {
			return err
		}
		return s.InvoiceRepo.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.Logger.WithContext(ctx).Infow("invoice deleted", "invoice_id", id)
	return nil
}

func (s *invoiceService) SendInvoice(ctx context.Context, id string) (*dto.SendInvoiceResponse, error) {
	inv, err := s.InvoiceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	c, err := s.ClientRepo.Get(ctx, inv.ClientID)
	if err != nil {
		return nil, err
	}

	if s.EmailSender == nil {
		return nil, ierr.NewError("email sender not configured").
			WithHint("Email delivery is not configured").
			Mark(ierr.ErrInvalidOperation)
	}

	sent, err := s.EmailSender.SendInvoiceLink(ctx, email.InvoiceLinkRequest{
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		ClientName:    c.Name,
		ClientEmail:   c.Email,
		Currency:      inv.Currency,
		Total:         inv.Total,
	})
	if err != nil {
		s.Logger.WithContext(ctx).Errorw("failed to send invoice email",
			"invoice_id", inv.ID,
			"error", err,
		)
		return nil, err
	}

	// The email goes out before the row lock is taken so no lock is held across
	// the provider call. If the invoice is deleted in between, the client has
	// the link and the status write below fails with NotFound.
	var state invoice.LedgerState
	err = s.runLocked(ctx, "invoice.send", func(ctx context.Context) error {
		locked, err := s.InvoiceRepo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		inv = locked
		state = locked.Ledger()
		state.Status = types.InvoiceStatusSent
		return s.InvoiceRepo.UpdateLedger(ctx, id, state)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.WithContext(ctx).Infow("invoice sent",
		"invoice_id", id,
		"message_id", sent.MessageID,
	)

	s.publishEvent(ctx, s.newInvoiceEvent(ctx, types.TopicInvoiceSent, inv, state))

	return &dto.SendInvoiceResponse{
		InvoiceID: id,
		Status:    state.Status,
		ShareLink: sent.ShareLink,
		MessageID: sent.MessageID,
	}, nil
}

func (s *invoiceService) UpdateInvoiceStatus(ctx context.Context, id string, req dto.UpdateInvoiceStatusRequest) (*dto.InvoiceResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var inv *invoice.Invoice
	var from types.InvoiceStatus

	err := s.runLocked(ctx, "invoice.update_status", func(ctx context.Context) error {
		var err error
		inv, err = s.InvoiceRepo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		from = inv.Status
		if err := invoice.ValidateManualTransition(from, req.Status, inv.DueDate, s.now()); err != nil {
			return err
		}

		state := inv.Ledger()
		state.Status = req.Status
		if err := s.InvoiceRepo.UpdateLedger(ctx, id, state); err != nil {
			return err
		}
		inv.ApplyLedger(state)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.WithContext(ctx).Infow("invoice status changed",
		"invoice_id", id,
		"from", from,
		"to", req.Status,
	)

	s.publishEvent(ctx, s.newInvoiceEvent(ctx, types.TopicInvoiceUpdated, inv, inv.Ledger()))

	return s.GetInvoice(ctx, id)
}

func (s *invoiceService) SubmitClientSignature(ctx context.Context, id string, req dto.SubmitSignatureRequest) (*dto.PublicInvoiceResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var inv *invoice.Invoice

	err := s.runLocked(ctx, "invoice.sign", func(ctx context.Context) error {
		var err error
		inv, err = s.InvoiceRepo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if inv.IsSigned {
			return ierr.NewError("invoice already signed").
				WithHint("Already signed").
				WithReportableDetails(map[string]any{
					"invoice_id": id,
				}).
				Mark(ierr.ErrInvalidOperation)
		}

		now := s.now()
		inv.IsSigned = true
		inv.Signature = lo.ToPtr(req.Signature)
		inv.SignedAt = lo.ToPtr(now)
		inv.UpdatedAt = now
		if s.Config.Invoice.SignatureStatusPolicy != types.SignatureStatusPreserve {
			inv.Status = types.InvoiceStatusDraft
		}

		return s.InvoiceRepo.Update(ctx, inv)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.WithContext(ctx).Infow("invoice signed by client",
		"invoice_id", id,
		"status", inv.Status,
		"policy", s.Config.Invoice.SignatureStatusPolicy,
	)

	s.publishEvent(ctx, s.newInvoiceEvent(ctx, types.TopicInvoiceSigned, inv, inv.Ledger()))

	return s.GetPublicInvoice(ctx, id)
}

func (s *invoiceService) GetPublicInvoice(ctx context.Context, id string) (*dto.PublicInvoiceResponse, error) {
	inv, err := s.InvoiceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	c, co, err := s.parties(ctx, inv)
	if err != nil {
		return nil, err
	}

	filter := types.NewNoLimitPaymentFilter()
	filter.InvoiceID = id
	payments, err := s.PaymentRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	return dto.NewPublicInvoiceResponse(inv, c, co, payments), nil
}

func (s *invoiceService) SweepOverdueInvoices(ctx context.Context) (*dto.SweepResponse, error) {
	span, ctx := s.Sentry.StartServiceSpan(ctx, "invoice.sweep_overdue", nil)
	if span != nil {
		defer span.Finish()
	}

	now := s.now()
	updated, err := s.InvoiceRepo.MarkOverdue(ctx, now)
	if err != nil {
		return nil, err
	}

	if updated > 0 {
		s.Logger.WithContext(ctx).Infow("overdue invoices swept", "updated", updated)

		event := types.NewLedgerEvent(ctx, types.TopicInvoiceOverdueSwept, now)
		event.Status = types.InvoiceStatusOverdue
		event.Affected = updated
		s.publishEvent(ctx, event)
	}

	return &dto.SweepResponse{
		Updated: updated,
		RanAt:   now,
	}, nil
}
