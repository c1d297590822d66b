package service

import (
	"context"
	"testing"

	"github.com/invoicely/invoicely/internal/api/dto"
	"github.com/invoicely/invoicely/internal/domain/client"
	"github.com/invoicely/invoicely/internal/email"
	ierr "github.com/invoicely/invoicely/internal/errors"
	"github.com/invoicely/invoicely/internal/testutil"
	"github.com/invoicely/invoicely/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

type InvoiceServiceSuite struct {
	testutil.BaseServiceTestSuite
	service InvoiceService
	ledger  LedgerService
}

func TestInvoiceService(t *testing.T) {
	suite.Run(t, new(InvoiceServiceSuite))
}

func (s *InvoiceServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.setupService()
}

func (s *InvoiceServiceSuite) TearDownTest() {
	s.BaseServiceTestSuite.TearDownTest()
}

func (s *InvoiceServiceSuite) setupService() {
	params := newTestServiceParams(&s.BaseServiceTestSuite)
	s.service = NewInvoiceService(params)
	s.ledger = NewLedgerService(params)
}

func (s *InvoiceServiceSuite) createRequest(number string) dto.CreateInvoiceRequest {
	return dto.CreateInvoiceRequest{
		InvoiceDetailsRequest: dto.InvoiceDetailsRequest{
			InvoiceNumber: number,
			InvoiceDate:   s.GetNow(),
			DueDate:       s.GetNow().AddDate(0, 0, 30),
			TaxRate:       dec("10"),
			DiscountType:  types.DiscountTypeAmount,
			DiscountValue: dec("5000"),
			Note:          "Thank you for your business",
			Client: dto.ClientRequest{
				Name:    "Acme Ltd",
				Email:   "accounts@example.com",
				Phone:   "+94 11 234 5678",
				Address: "12 Galle Road, Colombo",
			},
			Company: &dto.CompanyRequest{
				Name:    "Acme Holdings",
				Project: lo.ToPtr("Website rebuild"),
			},
			Items: []dto.LineItemRequest{
				{Description: "Design", Quantity: dec("2"), Rate: dec("25000")},
				{Description: "Build", Quantity: dec("1"), Rate: dec("50000")},
			},
		},
	}
}

func (s *InvoiceServiceSuite) create(number string) *dto.InvoiceResponse {
	resp, err := s.service.CreateFullInvoice(s.GetContext(), s.createRequest(number), nil)
	s.Require().NoError(err)
	return resp
}

func (s *InvoiceServiceSuite) recordPayment(invoiceID, amount string) {
	_, err := s.ledger.RecordPayment(s.GetContext(), dto.CreatePaymentRequest{
		InvoiceID: invoiceID,
		Amount:    dec(amount),
		Method:    "bank_transfer",
	})
	s.Require().NoError(err)
}

func (s *InvoiceServiceSuite) clientCount() int {
	clients := s.GetStores().ClientRepo.(*testutil.InMemoryClientStore)
	return len(clients.Find(func(*client.Client) bool { return true }))
}

func (s *InvoiceServiceSuite) TestCreateFullInvoice() {
	signature := lo.ToPtr("data:image/png;base64,AAAA")
	resp, err := s.service.CreateFullInvoice(s.GetContext(), s.createRequest("INV-001"), signature)
	s.Require().NoError(err)

	s.True(dec("100000").Equal(resp.Subtotal))
	s.True(dec("10000").Equal(resp.TaxAmount))
	s.True(dec("105000").Equal(resp.Total))
	s.True(resp.AmountPaid.IsZero())
	s.True(dec("105000").Equal(resp.BalanceAmount))
	s.Equal(types.InvoiceStatusDraft, resp.Status)
	s.Equal(types.DefaultCurrency, resp.Currency)
	s.Equal(signature, resp.AdminSignature)
	s.Len(resp.LineItems, 2)

	s.Require().NotNil(resp.Client)
	s.Require().NotNil(resp.Company)
	s.Equal(resp.Client.ID, resp.ClientID)
	s.Equal(resp.Company.ID, lo.FromPtr(resp.CompanyID))
	s.Equal(resp.Company.ID, lo.FromPtr(resp.Client.CompanyID))

	stored, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), resp.ID)
	s.NoError(err)
	s.Len(stored.LineItems, 2)
	s.True(dec("50000").Equal(stored.LineItems[0].Amount))
	s.Equal(types.DefaultUserID, stored.CreatedBy)

	s.Len(s.GetPublisher().EventsByTopic(types.TopicInvoiceCreated), 1)
}

func (s *InvoiceServiceSuite) TestCreateFullInvoiceAsSent() {
	req := s.createRequest("INV-SENT")
	req.Status = types.InvoiceStatusSent
	req.Company = nil

	resp, err := s.service.CreateFullInvoice(s.GetContext(), req, nil)
	s.NoError(err)
	s.Equal(types.InvoiceStatusSent, resp.Status)
	s.Nil(resp.Company)
	s.Nil(resp.CompanyID)
}

func (s *InvoiceServiceSuite) TestCreateFullInvoiceRejectsInvalidRequests() {
	tests := []struct {
		name   string
		mutate func(r *dto.CreateInvoiceRequest)
	}{
		{
			name:   "no items",
			mutate: func(r *dto.CreateInvoiceRequest) { r.Items = nil },
		},
		{
			name:   "status other than draft or sent",
			mutate: func(r *dto.CreateInvoiceRequest) { r.Status = types.InvoiceStatusPaid },
		},
		{
			name:   "negative tax rate",
			mutate: func(r *dto.CreateInvoiceRequest) { r.TaxRate = dec("-1") },
		},
		{
			name:   "due date before invoice date",
			mutate: func(r *dto.CreateInvoiceRequest) { r.DueDate = r.InvoiceDate.AddDate(0, 0, -1) },
		},
		{
			name:   "missing client email",
			mutate: func(r *dto.CreateInvoiceRequest) { r.Client.Email = "" },
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			req := s.createRequest("INV-BAD")
			tt.mutate(&req)

			_, err := s.service.CreateFullInvoice(s.GetContext(), req, nil)
			s.Error(err)
			s.True(ierr.IsValidation(err))
		})
	}
	s.Equal(0, s.clientCount())
}

func (s *InvoiceServiceSuite) TestCreateFullInvoiceDuplicateNumberRollsBack() {
	s.create("INV-DUP")
	s.Equal(1, s.clientCount())

	_, err := s.service.CreateFullInvoice(s.GetContext(), s.createRequest("INV-DUP"), nil)
	s.Error(err)
	s.True(ierr.IsValidation(err))
	s.True(ierr.IsAlreadyExists(err))
	s.Equal("Invoice Number already exists!", ierr.DisplayMessage(err))

	// the client created inside the failed transaction is gone
	s.Equal(1, s.clientCount())
}

func (s *InvoiceServiceSuite) TestCreateFullInvoiceUpdatesExistingClient() {
	first := s.create("INV-A")

	req := s.createRequest("INV-B")
	req.Client.ID = first.Client.ID
	req.Client.Name = "Acme Limited"
	req.Company = nil

	resp, err := s.service.CreateFullInvoice(s.GetContext(), req, nil)
	s.NoError(err)
	s.Equal(first.Client.ID, resp.ClientID)
	s.Equal("Acme Limited", resp.Client.Name)
	s.Equal(1, s.clientCount())
}

func (s *InvoiceServiceSuite) TestUpdateFullInvoiceKeepsAmountPaid() {
	created := s.create("INV-EDIT")
	s.recordPayment(created.ID, "400")

	req := dto.UpdateInvoiceRequest{InvoiceDetailsRequest: s.createRequest("INV-EDIT").InvoiceDetailsRequest}
	req.TaxRate = dec("0")
	req.DiscountValue = dec("0")
	req.Company = &dto.CompanyRequest{}
	req.Items = []dto.LineItemRequest{{Description: "Retainer", Quantity: dec("1"), Rate: dec("300")}}

	resp, err := s.service.UpdateFullInvoice(s.GetContext(), created.ID, req)
	s.Require().NoError(err)
	s.True(dec("300").Equal(resp.Total))
	s.True(dec("400").Equal(resp.AmountPaid))
	s.True(resp.BalanceAmount.IsZero())
	s.Equal(types.InvoiceStatusPaid, resp.Status)

	// a blank company block leaves the company alone
	s.Require().NotNil(resp.Company)
	s.Equal("Acme Holdings", resp.Company.Name)

	stored, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), created.ID)
	s.NoError(err)
	s.Require().Len(stored.LineItems, 1)
	s.Equal("Retainer", stored.LineItems[0].Description)
	s.Equal(created.CreatedAt, stored.CreatedAt)
}

func (s *InvoiceServiceSuite) TestUpdateFullInvoiceWithoutPaymentsKeepsStatus() {
	req := s.createRequest("INV-SENT-EDIT")
	req.Status = types.InvoiceStatusSent
	created, err := s.service.CreateFullInvoice(s.GetContext(), req, nil)
	s.Require().NoError(err)

	update := dto.UpdateInvoiceRequest{InvoiceDetailsRequest: req.InvoiceDetailsRequest}
	update.Items = append(update.Items, dto.LineItemRequest{Description: "Hosting", Quantity: dec("1"), Rate: dec("5000")})
	update.Company = &dto.CompanyRequest{Name: "Acme Group"}

	resp, err := s.service.UpdateFullInvoice(s.GetContext(), created.ID, update)
	s.Require().NoError(err)
	s.Equal(types.InvoiceStatusSent, resp.Status)
	s.True(dec("110500").Equal(resp.Total))
	s.True(dec("110500").Equal(resp.BalanceAmount))
	s.Equal("Acme Group", resp.Company.Name)
	s.Equal(created.Company.ID, resp.Company.ID)
}

func (s *InvoiceServiceSuite) TestUpdateFullInvoiceNotFound() {
	req := dto.UpdateInvoiceRequest{InvoiceDetailsRequest: s.createRequest("INV-X").InvoiceDetailsRequest}
	_, err := s.service.UpdateFullInvoice(s.GetContext(), "inv_missing", req)
	s.True(ierr.IsNotFound(err))
}

func (s *InvoiceServiceSuite) TestSweepOverdueInvoices() {
	ctx := s.GetContext()
	past := s.GetNow().AddDate(0, 0, -1)
	sent := seedInvoice(ctx, &s.BaseServiceTestSuite, "INV-PAST", dec("100"), types.InvoiceStatusSent, past)
	paid := seedInvoice(ctx, &s.BaseServiceTestSuite, "INV-PAID", dec("100"), types.InvoiceStatusPaid, past)
	future := seedInvoice(ctx, &s.BaseServiceTestSuite, "INV-FUTURE", dec("100"), types.InvoiceStatusSent, s.GetNow().AddDate(0, 0, 1))

	resp, err := s.service.SweepOverdueInvoices(ctx)
	s.NoError(err)
	s.Equal(1, resp.Updated)
	s.Equal(s.GetNow(), resp.RanAt)

	resp, err = s.service.SweepOverdueInvoices(ctx)
	s.NoError(err)
	s.Equal(0, resp.Updated)

	statusOf := func(id string) types.InvoiceStatus {
		inv, err := s.GetStores().InvoiceRepo.Get(ctx, id)
		s.Require().NoError(err)
		return inv.Status
	}
	s.Equal(types.InvoiceStatusOverdue, statusOf(sent.ID))
	s.Equal(types.InvoiceStatusPaid, statusOf(paid.ID))
	s.Equal(types.InvoiceStatusSent, statusOf(future.ID))

	swept := s.GetPublisher().EventsByTopic(types.TopicInvoiceOverdueSwept)
	s.Require().Len(swept, 1)
	s.Equal(1, swept[0].Affected)
}

func (s *InvoiceServiceSuite) TestListInvoicesSweepsFirstWhenEnabled() {
	ctx := s.GetContext()
	s.GetConfig().Invoice.SweepOnList = true
	past := seedInvoice(ctx, &s.BaseServiceTestSuite, "INV-LATE", dec("100"), types.InvoiceStatusDraft, s.GetNow().AddDate(0, 0, -2))

	resp, err := s.service.ListInvoices(ctx, types.NewInvoiceFilter())
	s.NoError(err)
	s.Equal(1, resp.Pagination.Total)
	s.Require().Len(resp.Items, 1)
	s.Equal(past.ID, resp.Items[0].ID)
	s.Equal(types.InvoiceStatusOverdue, resp.Items[0].Status)
	s.Require().NotNil(resp.Items[0].Client)
	s.Equal("Client INV-LATE", resp.Items[0].Client.Name)
}

func (s *InvoiceServiceSuite) TestListInvoicesFilters() {
	ctx := s.GetContext()
	s.create("INV-100")
	s.create("INV-200")
	seedInvoice(ctx, &s.BaseServiceTestSuite, "INV-300", dec("10"), types.InvoiceStatusPaid, s.GetNow().AddDate(0, 0, 3))

	filter := types.NewInvoiceFilter()
	filter.InvoiceStatus = []types.InvoiceStatus{types.InvoiceStatusDraft}
	resp, err := s.service.ListInvoices(ctx, filter)
	s.NoError(err)
	s.Equal(2, resp.Pagination.Total)

	filter = types.NewInvoiceFilter()
	filter.Search = "inv-2"
	resp, err = s.service.ListInvoices(ctx, filter)
	s.NoError(err)
	s.Require().Len(resp.Items, 1)
	s.Equal("INV-200", resp.Items[0].InvoiceNumber)

	filter = types.NewInvoiceFilter()
	filter.Search = "client inv-300"
	resp, err = s.service.ListInvoices(ctx, filter)
	s.NoError(err)
	s.Require().Len(resp.Items, 1)
	s.Equal("INV-300", resp.Items[0].InvoiceNumber)
}

func (s *InvoiceServiceSuite) TestUpdateInvoiceStatus() {
	ctx := s.GetContext()
	created := s.create("INV-STATUS")

	tests := []struct {
		name    string
		status  types.InvoiceStatus
		wantErr bool
	}{
		{name: "draft to sent", status: types.InvoiceStatusSent},
		{name: "overdue before the due date", status: types.InvoiceStatusOverdue, wantErr: true},
		{name: "paid is ledger owned", status: types.InvoiceStatusPaid, wantErr: true},
		{name: "partial is ledger owned", status: types.InvoiceStatusPartial, wantErr: true},
		{name: "draft cannot be set by hand", status: types.InvoiceStatusDraft, wantErr: true},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			resp, err := s.service.UpdateInvoiceStatus(ctx, created.ID, dto.UpdateInvoiceStatusRequest{Status: tt.status})
			if tt.wantErr {
				s.Error(err)
				s.True(ierr.IsInvalidOperation(err))
				return
			}
			s.NoError(err)
			s.Equal(tt.status, resp.Status)
		})
	}

	// once past due the invoice may be marked overdue
	s.SetNow(s.GetNow().AddDate(0, 0, 31))
	resp, err := s.service.UpdateInvoiceStatus(ctx, created.ID, dto.UpdateInvoiceStatusRequest{Status: types.InvoiceStatusOverdue})
	s.NoError(err)
	s.Equal(types.InvoiceStatusOverdue, resp.Status)

	_, err = s.service.UpdateInvoiceStatus(ctx, created.ID, dto.UpdateInvoiceStatusRequest{Status: "ARCHIVED"})
	s.True(ierr.IsValidation(err))
}

func (s *InvoiceServiceSuite) TestPaidInvoiceCannotBeMarkedOverdue() {
	ctx := s.GetContext()
	inv := seedInvoice(ctx, &s.BaseServiceTestSuite, "INV-PAID", dec("100"), types.InvoiceStatusPaid, s.GetNow().AddDate(0, 0, -5))

	_, err := s.service.UpdateInvoiceStatus(ctx, inv.ID, dto.UpdateInvoiceStatusRequest{Status: types.InvoiceStatusOverdue})
	s.True(ierr.IsInvalidOperation(err))
}

func (s *InvoiceServiceSuite) TestSubmitClientSignature() {
	tests := []struct {
		name           string
		policy         types.SignatureStatusPolicy
		expectedStatus types.InvoiceStatus
	}{
		{name: "reset to draft", policy: types.SignatureStatusResetToDraft, expectedStatus: types.InvoiceStatusDraft},
		{name: "preserve", policy: types.SignatureStatusPreserve, expectedStatus: types.InvoiceStatusSent},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.GetConfig().Invoice.SignatureStatusPolicy = tt.policy
			req := s.createRequest("INV-SIGN-" + string(tt.policy))
			req.Status = types.InvoiceStatusSent
			created, err := s.service.CreateFullInvoice(s.GetContext(), req, nil)
			s.Require().NoError(err)

			resp, err := s.service.SubmitClientSignature(s.GetContext(), created.ID, dto.SubmitSignatureRequest{
				Signature: "data:image/png;base64,BBBB",
			})
			s.Require().NoError(err)
			s.True(resp.IsSigned)
			s.Equal("data:image/png;base64,BBBB", lo.FromPtr(resp.Signature))
			s.Require().NotNil(resp.SignedAt)
			s.Equal(s.GetNow(), *resp.SignedAt)
			s.Equal(tt.expectedStatus, resp.Status)

			_, err = s.service.SubmitClientSignature(s.GetContext(), created.ID, dto.SubmitSignatureRequest{
				Signature: "data:image/png;base64,CCCC",
			})
			s.True(ierr.IsInvalidOperation(err))
			s.Equal("Already signed", ierr.DisplayMessage(err))
		})
	}

	s.Len(s.GetPublisher().EventsByTopic(types.TopicInvoiceSigned), 2)
}

func (s *InvoiceServiceSuite) TestSendInvoice() {
	created := s.create("INV-MAIL")

	resp, err := s.service.SendInvoice(s.GetContext(), created.ID)
	s.Require().NoError(err)
	s.Equal(types.InvoiceStatusSent, resp.Status)
	s.Equal("https://invoices.test/public/invoice/"+created.ID, resp.ShareLink)
	s.NotEmpty(resp.MessageID)

	sent := s.GetEmailSender().Sent()
	s.Require().Len(sent, 1)
	s.Equal("accounts@example.com", sent[0].ClientEmail)
	s.Equal("INV-MAIL", sent[0].InvoiceNumber)
	s.True(dec("105000").Equal(sent[0].Total))

	stored, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), created.ID)
	s.NoError(err)
	s.Equal(types.InvoiceStatusSent, stored.Status)
}

func (s *InvoiceServiceSuite) TestSendInvoiceEmailFailureKeepsStatus() {
	created := s.create("INV-MAIL-FAIL")
	s.GetEmailSender().FailWith(ierr.NewError("resend unavailable").
		WithHint("Failed to send email").
		Mark(ierr.ErrHTTPClient))

	_, err := s.service.SendInvoice(s.GetContext(), created.ID)
	s.Error(err)
	s.True(ierr.IsHTTPClient(err))

	stored, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), created.ID)
	s.NoError(err)
	s.Equal(types.InvoiceStatusDraft, stored.Status)
	s.Empty(s.GetPublisher().EventsByTopic(types.TopicInvoiceSent))
}

func (s *InvoiceServiceSuite) TestGetPublicInvoice() {
	created := s.create("INV-PUBLIC")
	s.recordPayment(created.ID, "400")
	s.recordPayment(created.ID, "100")

	resp, err := s.service.GetPublicInvoice(s.GetContext(), created.ID)
	s.Require().NoError(err)
	s.Equal("INV-PUBLIC", resp.InvoiceNumber)
	s.Len(resp.Items, 2)
	s.Equal(2, resp.Payments.Count)
	s.True(dec("500").Equal(resp.Payments.TotalPaid))
	s.True(dec("104500").Equal(resp.BalanceAmount))
	s.Equal(types.InvoiceStatusPartial, resp.Status)
	s.Equal("Acme Ltd", resp.Client.Name)
	s.Require().NotNil(resp.Company)
	s.Equal("Website rebuild", lo.FromPtr(resp.Company.Project))

	_, err = s.service.GetPublicInvoice(s.GetContext(), "inv_missing")
	s.True(ierr.IsNotFound(err))
}

func (s *InvoiceServiceSuite) TestDeleteInvoiceRemovesPayments() {
	ctx := s.GetContext()
	created := s.create("INV-DELETE")
	s.recordPayment(created.ID, "100")

	s.NoError(s.service.DeleteInvoice(ctx, created.ID))

	_, err := s.service.GetInvoice(ctx, created.ID)
	s.True(ierr.IsNotFound(err))

	sum, err := s.GetStores().PaymentRepo.SumByInvoice(ctx, created.ID)
	s.NoError(err)
	s.True(sum.IsZero())

	s.True(ierr.IsNotFound(s.service.DeleteInvoice(ctx, created.ID)))
}

func (s *InvoiceServiceSuite) TestLockedInvoiceWritesRetryConflicts() {
	ctx := s.GetContext()
	created := s.create("INV-CONFLICT")

	repo := &conflictingRepo{Repository: s.GetStores().InvoiceRepo, failures: 2}
	params := newTestServiceParams(&s.BaseServiceTestSuite)
	params.InvoiceRepo = repo
	svc := NewInvoiceService(params)

	resp, err := svc.UpdateInvoiceStatus(ctx, created.ID, dto.UpdateInvoiceStatusRequest{Status: types.InvoiceStatusSent})
	s.Require().NoError(err)
	s.Equal(types.InvoiceStatusSent, resp.Status)
	s.Equal(int32(3), repo.calls.Load())

	repo.calls.Store(0)
	signed, err := svc.SubmitClientSignature(ctx, created.ID, dto.SubmitSignatureRequest{
		Signature: "data:image/png;base64,CCCC",
	})
	s.Require().NoError(err)
	s.True(signed.IsSigned)
	s.Equal(int32(3), repo.calls.Load())

	repo.calls.Store(0)
	repo.failures = 100
	err = svc.DeleteInvoice(ctx, created.ID)
	s.True(ierr.IsConcurrency(err))
	s.Equal(int32(s.GetConfig().Ledger.MaxRetries+1), repo.calls.Load())

	_, err = s.GetStores().InvoiceRepo.Get(ctx, created.ID)
	s.NoError(err)
}

// deletingSender removes the invoice while its share link is being delivered
type deletingSender struct {
	email.Sender
	onSend func(ctx context.Context, invoiceID string)
}

func (d *deletingSender) SendInvoiceLink(ctx context.Context, req email.InvoiceLinkRequest) (*email.SendEmailResponse, error) {
	resp, err := d.Sender.SendInvoiceLink(ctx, req)
	d.onSend(ctx, req.InvoiceID)
	return resp, err
}

func (s *InvoiceServiceSuite) TestSendInvoiceDeletedDuringDelivery() {
	created := s.create("INV-MAIL-GONE")

	params := newTestServiceParams(&s.BaseServiceTestSuite)
	params.EmailSender = &deletingSender{
		Sender: s.GetEmailSender(),
		onSend: func(ctx context.Context, invoiceID string) {
			s.Require().NoError(s.service.DeleteInvoice(ctx, invoiceID))
		},
	}
	svc := NewInvoiceService(params)

	_, err := svc.SendInvoice(s.GetContext(), created.ID)
	s.True(ierr.IsNotFound(err))
	s.Len(s.GetEmailSender().Sent(), 1)
	s.Empty(s.GetPublisher().EventsByTopic(types.TopicInvoiceSent))
}
