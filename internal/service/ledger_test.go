package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/invoicely/invoicely/internal/api/dto"
	"github.com/invoicely/invoicely/internal/domain/invoice"
	"github.com/invoicely/invoicely/internal/domain/payment"
	ierr "github.com/invoicely/invoicely/internal/errors"
	"github.com/invoicely/invoicely/internal/testutil"
	"github.com/invoicely/invoicely/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/suite"
)

type LedgerServiceSuite struct {
	testutil.BaseServiceTestSuite
	service  LedgerService
	testData struct {
		invoice *invoice.Invoice
	}
}

func TestLedgerService(t *testing.T) {
	suite.Run(t, new(LedgerServiceSuite))
}

func (s *LedgerServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.setupService()
	s.setupTestData()
}

func (s *LedgerServiceSuite) TearDownTest() {
	s.BaseServiceTestSuite.TearDownTest()
}

func (s *LedgerServiceSuite) setupService() {
	s.service = NewLedgerService(newTestServiceParams(&s.BaseServiceTestSuite))
}

func (s *LedgerServiceSuite) setupTestData() {
	s.testData.invoice = seedInvoice(s.GetContext(), &s.BaseServiceTestSuite,
		"INV-1000", dec("1000"), types.InvoiceStatusSent, s.GetNow().AddDate(0, 0, 14))
}

func (s *LedgerServiceSuite) record(invoiceID string, amount string) *dto.PaymentResponse {
	resp, err := s.service.RecordPayment(s.GetContext(), dto.CreatePaymentRequest{
		InvoiceID: invoiceID,
		Amount:    dec(amount),
		Method:    "bank_transfer",
	})
	s.Require().NoError(err)
	return resp
}

func (s *LedgerServiceSuite) storedInvoice(id string) *invoice.Invoice {
	inv, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), id)
	s.Require().NoError(err)
	return inv
}

func (s *LedgerServiceSuite) assertLedger(id string, paid, balance string, status types.InvoiceStatus) {
	inv := s.storedInvoice(id)
	s.True(dec(paid).Equal(inv.AmountPaid), "amount paid: want %s got %s", paid, inv.AmountPaid)
	s.True(dec(balance).Equal(inv.BalanceAmount), "balance: want %s got %s", balance, inv.BalanceAmount)
	s.Equal(status, inv.Status)
}

func (s *LedgerServiceSuite) paymentsSum(invoiceID string) decimal.Decimal {
	sum, err := s.GetStores().PaymentRepo.SumByInvoice(s.GetContext(), invoiceID)
	s.Require().NoError(err)
	return sum
}

func (s *LedgerServiceSuite) TestRecordPayment() {
	tests := []struct {
		name            string
		amount          string
		expectedPaid    string
		expectedBalance string
		expectedStatus  types.InvoiceStatus
	}{
		{
			name:            "full payment settles the invoice",
			amount:          "1000",
			expectedPaid:    "1000",
			expectedBalance: "0",
			expectedStatus:  types.InvoiceStatusPaid,
		},
		{
			name:            "partial payment leaves a balance",
			amount:          "400",
			expectedPaid:    "400",
			expectedBalance: "600",
			expectedStatus:  types.InvoiceStatusPartial,
		},
		{
			name:            "overpayment clamps the balance at zero",
			amount:          "1250.50",
			expectedPaid:    "1250.50",
			expectedBalance: "0",
			expectedStatus:  types.InvoiceStatusPaid,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			inv := seedInvoice(s.GetContext(), &s.BaseServiceTestSuite,
				"INV-"+s.GetUUID(), dec("1000"), types.InvoiceStatusSent, s.GetNow().AddDate(0, 0, 14))

			resp := s.record(inv.ID, tt.amount)
			s.Equal(types.DefaultPaymentNote, resp.Note)
			s.Equal(tt.expectedStatus, resp.Invoice.Status)
			s.True(dec(tt.expectedBalance).Equal(resp.Invoice.BalanceAmount))

			s.assertLedger(inv.ID, tt.expectedPaid, tt.expectedBalance, tt.expectedStatus)
		})
	}
}

func (s *LedgerServiceSuite) TestRecordPaymentFromDraftAndOverdue() {
	for _, status := range []types.InvoiceStatus{types.InvoiceStatusDraft, types.InvoiceStatusOverdue} {
		inv := seedInvoice(s.GetContext(), &s.BaseServiceTestSuite,
			"INV-"+status.String(), dec("1000"), status, s.GetNow().AddDate(0, 0, -3))

		s.record(inv.ID, "100")
		s.assertLedger(inv.ID, "100", "900", types.InvoiceStatusPartial)
	}
}

func (s *LedgerServiceSuite) TestRecordPaymentRejectsInvalidInput() {
	ctx := s.GetContext()

	_, err := s.service.RecordPayment(ctx, dto.CreatePaymentRequest{
		InvoiceID: s.testData.invoice.ID,
		Amount:    decimal.Zero,
		Method:    "cash",
	})
	s.Error(err)
	s.True(ierr.IsValidation(err))

	_, err = s.service.RecordPayment(ctx, dto.CreatePaymentRequest{
		InvoiceID: s.testData.invoice.ID,
		Amount:    dec("-5"),
		Method:    "cash",
	})
	s.True(ierr.IsValidation(err))

	_, err = s.service.RecordPayment(ctx, dto.CreatePaymentRequest{
		InvoiceID: "inv_missing",
		Amount:    dec("10"),
		Method:    "cash",
	})
	s.True(ierr.IsNotFound(err))

	s.assertLedger(s.testData.invoice.ID, "0", "1000", types.InvoiceStatusSent)
}

func (s *LedgerServiceSuite) TestUpdatePaymentToFullAmount() {
	p := s.record(s.testData.invoice.ID, "400")

	resp, err := s.service.UpdatePayment(s.GetContext(), p.ID, dto.UpdatePaymentRequest{
		Amount:      dec("1000"),
		Method:      "cash",
		PaymentDate: s.GetNow(),
	})
	s.NoError(err)
	s.True(dec("1000").Equal(resp.Amount))
	s.Equal("cash", resp.Method)
	s.Equal(types.DefaultPaymentNote, resp.Note)

	s.assertLedger(s.testData.invoice.ID, "1000", "0", types.InvoiceStatusPaid)
}

func (s *LedgerServiceSuite) TestUpdatePaymentReducingToPartial() {
	p := s.record(s.testData.invoice.ID, "1000")

	_, err := s.service.UpdatePayment(s.GetContext(), p.ID, dto.UpdatePaymentRequest{
		Amount:      dec("250"),
		Method:      "bank_transfer",
		PaymentDate: s.GetNow(),
	})
	s.NoError(err)
	s.assertLedger(s.testData.invoice.ID, "250", "750", types.InvoiceStatusPartial)
}

func (s *LedgerServiceSuite) TestUpdatePaymentRejectsNonPositiveAmount() {
	p := s.record(s.testData.invoice.ID, "400")

	_, err := s.service.UpdatePayment(s.GetContext(), p.ID, dto.UpdatePaymentRequest{
		Amount:      decimal.Zero,
		Method:      "cash",
		PaymentDate: s.GetNow(),
	})
	s.True(ierr.IsValidation(err))
	s.assertLedger(s.testData.invoice.ID, "400", "600", types.InvoiceStatusPartial)

	_, err = s.service.UpdatePayment(s.GetContext(), "pay_missing", dto.UpdatePaymentRequest{
		Amount:      dec("1"),
		Method:      "cash",
		PaymentDate: s.GetNow(),
	})
	s.True(ierr.IsNotFound(err))
}

func (s *LedgerServiceSuite) TestSubCentAmountsAreRejected() {
	ctx := s.GetContext()
	inv := seedInvoice(ctx, &s.BaseServiceTestSuite,
		"INV-0010", dec("10"), types.InvoiceStatusSent, s.GetNow().AddDate(0, 0, 14))

	_, err := s.service.RecordPayment(ctx, dto.CreatePaymentRequest{
		InvoiceID: inv.ID,
		Amount:    dec("9.996"),
		Method:    "cash",
	})
	s.True(ierr.IsValidation(err))
	s.assertLedger(inv.ID, "0", "10", types.InvoiceStatusSent)

	p := s.record(inv.ID, "9.990")
	s.assertLedger(inv.ID, "9.99", "0.01", types.InvoiceStatusPartial)

	_, err = s.service.UpdatePayment(ctx, p.ID, dto.UpdatePaymentRequest{
		Amount:      dec("9.996"),
		Method:      "cash",
		PaymentDate: s.GetNow(),
	})
	s.True(ierr.IsValidation(err))
	s.assertLedger(inv.ID, "9.99", "0.01", types.InvoiceStatusPartial)
	s.True(dec("9.99").Equal(s.paymentsSum(inv.ID)))
}

func (s *LedgerServiceSuite) TestDeleteOnlyPaymentResetsToSent() {
	p := s.record(s.testData.invoice.ID, "1000")

	resp, err := s.service.DeletePayment(s.GetContext(), p.ID)
	s.NoError(err)
	s.Equal(p.ID, resp.PaymentID)
	s.Require().NotNil(resp.Invoice)
	s.Equal(types.InvoiceStatusSent, resp.Invoice.Status)

	s.assertLedger(s.testData.invoice.ID, "0", "1000", types.InvoiceStatusSent)

	_, err = s.GetStores().PaymentRepo.Get(s.GetContext(), p.ID)
	s.True(ierr.IsNotFound(err))
}

func (s *LedgerServiceSuite) TestDeletePolicies() {
	tests := []struct {
		name            string
		policy          types.PaymentDeletePolicy
		expectedBalance string
		expectedStatus  types.InvoiceStatus
	}{
		{
			name:            "clamped keeps the balance non-negative",
			policy:          types.PaymentDeleteClamped,
			expectedBalance: "0",
			expectedStatus:  types.InvoiceStatusPaid,
		},
		{
			name:            "literal leaves a negative balance when overpaid",
			policy:          types.PaymentDeleteLiteral,
			expectedBalance: "-200",
			expectedStatus:  types.InvoiceStatusPartial,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.GetConfig().Ledger.DeletePolicy = tt.policy
			inv := seedInvoice(s.GetContext(), &s.BaseServiceTestSuite,
				"INV-"+string(tt.policy), dec("1000"), types.InvoiceStatusSent, s.GetNow().AddDate(0, 0, 14))

			s.record(inv.ID, "1200")
			extra := s.record(inv.ID, "300")

			_, err := s.service.DeletePayment(s.GetContext(), extra.ID)
			s.NoError(err)
			s.assertLedger(inv.ID, "1200", tt.expectedBalance, tt.expectedStatus)

			// neither policy is reported as drift
			report, err := s.service.RecomputeFromHistory(s.GetContext(), inv.ID, false)
			s.NoError(err)
			s.False(report.Drift)
		})
	}
}

func (s *LedgerServiceSuite) TestDeleteOrphanedPayment() {
	orphan := &payment.Payment{
		ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT),
		InvoiceID:   "inv_gone",
		Amount:      dec("50"),
		Method:      "cash",
		PaymentDate: s.GetNow(),
		Note:        types.DefaultPaymentNote,
		BaseModel:   types.GetDefaultBaseModel(s.GetContext()),
	}
	s.Require().NoError(s.GetStores().PaymentRepo.Create(s.GetContext(), orphan))

	resp, err := s.service.DeletePayment(s.GetContext(), orphan.ID)
	s.NoError(err)
	s.Nil(resp.Invoice)

	_, err = s.GetStores().PaymentRepo.Get(s.GetContext(), orphan.ID)
	s.True(ierr.IsNotFound(err))

	deleted := s.GetPublisher().EventsByTopic(types.TopicPaymentDeleted)
	s.Require().Len(deleted, 1)
	s.Equal("inv_gone", deleted[0].InvoiceID)
}

func (s *LedgerServiceSuite) TestLedgerConservation() {
	ctx := s.GetContext()
	id := s.testData.invoice.ID

	first := s.record(id, "300")
	second := s.record(id, "200")
	third := s.record(id, "150.25")

	_, err := s.service.UpdatePayment(ctx, first.ID, dto.UpdatePaymentRequest{
		Amount:      dec("100"),
		Method:      "cash",
		PaymentDate: s.GetNow(),
	})
	s.NoError(err)

	_, err = s.service.DeletePayment(ctx, second.ID)
	s.NoError(err)

	_, err = s.service.UpdatePayment(ctx, third.ID, dto.UpdatePaymentRequest{
		Amount:      dec("99.75"),
		Method:      "card",
		PaymentDate: s.GetNow(),
	})
	s.NoError(err)

	inv := s.storedInvoice(id)
	s.True(s.paymentsSum(id).Equal(inv.AmountPaid))
	s.True(dec("199.75").Equal(inv.AmountPaid))
	s.True(dec("800.25").Equal(inv.BalanceAmount))
	s.False(inv.BalanceAmount.IsNegative())
	s.Equal(types.InvoiceStatusPartial, inv.Status)
}

func (s *LedgerServiceSuite) TestConcurrentRecordPayments() {
	ctx := s.GetContext()
	id := s.testData.invoice.ID

	errs := make([]error, 2)
	var wg conc.WaitGroup
	for i := range errs {
		wg.Go(func() {
			_, errs[i] = s.service.RecordPayment(ctx, dto.CreatePaymentRequest{
				InvoiceID: id,
				Amount:    dec("100"),
				Method:    "cash",
			})
		})
	}
	wg.Wait()

	for _, err := range errs {
		s.NoError(err)
	}
	s.assertLedger(id, "200", "800", types.InvoiceStatusPartial)
	s.True(dec("200").Equal(s.paymentsSum(id)))
}

// failingLedgerRepo fails every ledger write after the payment row has changed
type failingLedgerRepo struct {
	invoice.Repository
}

func (r *failingLedgerRepo) UpdateLedger(context.Context, string, invoice.LedgerState) error {
	return ierr.NewError("connection reset").
		WithHint("A database error occurred").
		Mark(ierr.ErrDatabase)
}

func (s *LedgerServiceSuite) TestRollbackLeavesStateUnchanged() {
	ctx := s.GetContext()
	id := s.testData.invoice.ID
	existing := s.record(id, "400")

	params := newTestServiceParams(&s.BaseServiceTestSuite)
	params.InvoiceRepo = &failingLedgerRepo{Repository: s.GetStores().InvoiceRepo}
	svc := NewLedgerService(params)
	_, abortsBefore := s.GetDB().Stats()

	_, err := svc.RecordPayment(ctx, dto.CreatePaymentRequest{InvoiceID: id, Amount: dec("100"), Method: "cash"})
	s.True(ierr.IsDatabase(err))

	_, err = svc.UpdatePayment(ctx, existing.ID, dto.UpdatePaymentRequest{Amount: dec("900"), Method: "cash", PaymentDate: s.GetNow()})
	s.True(ierr.IsDatabase(err))

	_, err = svc.DeletePayment(ctx, existing.ID)
	s.True(ierr.IsDatabase(err))

	_, aborts := s.GetDB().Stats()
	s.Equal(abortsBefore+3, aborts)

	s.assertLedger(id, "400", "600", types.InvoiceStatusPartial)

	p, err := s.GetStores().PaymentRepo.Get(ctx, existing.ID)
	s.NoError(err)
	s.True(dec("400").Equal(p.Amount))
	s.True(dec("400").Equal(s.paymentsSum(id)))
}

// conflictingRepo reports a lock conflict on the first failures row locks
type conflictingRepo struct {
	invoice.Repository
	failures int32
	calls    atomic.Int32
}

func (r *conflictingRepo) GetForUpdate(ctx context.Context, id string) (*invoice.Invoice, error) {
	if r.calls.Add(1) <= r.failures {
		return nil, ierr.NewError("lock not available").
			WithHint("The record is being changed by another request, please retry").
			Mark(ierr.ErrConcurrency)
	}
	return r.Repository.GetForUpdate(ctx, id)
}

func (s *LedgerServiceSuite) TestConcurrencyConflictsAreRetried() {
	ctx := s.GetContext()
	id := s.testData.invoice.ID

	repo := &conflictingRepo{Repository: s.GetStores().InvoiceRepo, failures: 2}
	params := newTestServiceParams(&s.BaseServiceTestSuite)
	params.InvoiceRepo = repo
	svc := NewLedgerService(params)

	_, err := svc.RecordPayment(ctx, dto.CreatePaymentRequest{InvoiceID: id, Amount: dec("100"), Method: "cash"})
	s.NoError(err)
	s.Equal(int32(3), repo.calls.Load())
	s.assertLedger(id, "100", "900", types.InvoiceStatusPartial)
}

func (s *LedgerServiceSuite) TestConcurrencyConflictSurfacesWhenRetriesExhausted() {
	ctx := s.GetContext()
	id := s.testData.invoice.ID

	repo := &conflictingRepo{Repository: s.GetStores().InvoiceRepo, failures: 100}
	params := newTestServiceParams(&s.BaseServiceTestSuite)
	params.InvoiceRepo = repo
	svc := NewLedgerService(params)

	_, err := svc.RecordPayment(ctx, dto.CreatePaymentRequest{InvoiceID: id, Amount: dec("100"), Method: "cash"})
	s.Error(err)
	s.True(ierr.IsConcurrency(err))
	s.Equal(int32(s.GetConfig().Ledger.MaxRetries+1), repo.calls.Load())
	s.assertLedger(id, "0", "1000", types.InvoiceStatusSent)
}

func (s *LedgerServiceSuite) TestRecomputeFromHistory() {
	ctx := s.GetContext()
	id := s.testData.invoice.ID
	s.record(id, "400")

	// simulate a write that bypassed the ledger
	corrupted := invoice.LedgerState{
		AmountPaid:    dec("900"),
		BalanceAmount: dec("100"),
		Status:        types.InvoiceStatusPartial,
	}
	s.Require().NoError(s.GetStores().InvoiceRepo.UpdateLedger(ctx, id, corrupted))

	report, err := s.service.RecomputeFromHistory(ctx, id, false)
	s.NoError(err)
	s.True(report.Drift)
	s.False(report.Repaired)
	s.True(dec("900").Equal(report.Stored.AmountPaid))
	s.True(dec("400").Equal(report.Derived.AmountPaid))
	s.True(dec("600").Equal(report.Derived.BalanceAmount))
	s.assertLedger(id, "900", "100", types.InvoiceStatusPartial)
	s.Empty(s.GetPublisher().EventsByTopic(types.TopicInvoiceReconciled))

	report, err = s.service.RecomputeFromHistory(ctx, id, true)
	s.NoError(err)
	s.True(report.Drift)
	s.True(report.Repaired)
	s.assertLedger(id, "400", "600", types.InvoiceStatusPartial)
	s.Len(s.GetPublisher().EventsByTopic(types.TopicInvoiceReconciled), 1)

	report, err = s.service.RecomputeFromHistory(ctx, id, true)
	s.NoError(err)
	s.False(report.Drift)
}

func (s *LedgerServiceSuite) TestRecomputeKeepsConsistentStatus() {
	ctx := s.GetContext()
	overdue := seedInvoice(ctx, &s.BaseServiceTestSuite,
		"INV-OVERDUE", dec("500"), types.InvoiceStatusOverdue, s.GetNow().AddDate(0, 0, -10))

	report, err := s.service.RecomputeFromHistory(ctx, overdue.ID, true)
	s.NoError(err)
	s.False(report.Drift)
	s.assertLedger(overdue.ID, "0", "500", types.InvoiceStatusOverdue)
}

func (s *LedgerServiceSuite) TestReconcileAll() {
	ctx := s.GetContext()
	clean := seedInvoice(ctx, &s.BaseServiceTestSuite,
		"INV-CLEAN", dec("300"), types.InvoiceStatusSent, s.GetNow().AddDate(0, 0, 5))
	s.record(clean.ID, "300")

	s.Require().NoError(s.GetStores().InvoiceRepo.UpdateLedger(ctx, s.testData.invoice.ID, invoice.LedgerState{
		AmountPaid:    dec("50"),
		BalanceAmount: dec("950"),
		Status:        types.InvoiceStatusPartial,
	}))

	resp, err := s.service.ReconcileAll(ctx, true)
	s.NoError(err)
	s.Equal(2, resp.Checked)
	s.Equal(1, resp.Drifted)
	s.Equal(1, resp.Repaired)
	s.Require().Len(resp.Reports, 1)
	s.Equal(s.testData.invoice.ID, resp.Reports[0].InvoiceID)

	s.assertLedger(s.testData.invoice.ID, "0", "1000", types.InvoiceStatusSent)
	s.assertLedger(clean.ID, "300", "0", types.InvoiceStatusPaid)
}

func (s *LedgerServiceSuite) TestListPayments() {
	ctx := s.GetContext()
	other := seedInvoice(ctx, &s.BaseServiceTestSuite,
		"INV-OTHER", dec("100"), types.InvoiceStatusSent, s.GetNow().AddDate(0, 0, 5))

	s.record(s.testData.invoice.ID, "10")
	s.record(s.testData.invoice.ID, "20")
	s.record(other.ID, "30")

	filter := types.NewPaymentFilter()
	filter.InvoiceID = s.testData.invoice.ID
	resp, err := s.service.ListPayments(ctx, filter)
	s.NoError(err)
	s.Equal(2, resp.Pagination.Total)
	s.Len(resp.Items, 2)
	for _, item := range resp.Items {
		s.Equal(s.testData.invoice.ID, item.InvoiceID)
	}

	all, err := s.service.ListPayments(ctx, nil)
	s.NoError(err)
	s.Equal(3, all.Pagination.Total)
}

func (s *LedgerServiceSuite) TestEventsArePublishedAfterCommit() {
	p := s.record(s.testData.invoice.ID, "250")

	recorded := s.GetPublisher().EventsByTopic(types.TopicPaymentRecorded)
	s.Require().Len(recorded, 1)
	event := recorded[0]
	s.Equal(s.testData.invoice.ID, event.InvoiceID)
	s.Equal("INV-1000", event.InvoiceNumber)
	s.Equal(p.ID, event.PaymentID)
	s.True(dec("250").Equal(lo.FromPtr(event.Amount)))
	s.True(dec("750").Equal(lo.FromPtr(event.BalanceAmount)))
	s.Equal(types.InvoiceStatusPartial, event.Status)
	s.Equal(types.DefaultUserID, event.UserID)
}

func (s *LedgerServiceSuite) TestPublishFailureDoesNotFailTheMutation() {
	s.GetPublisher().FailWith(ierr.NewError("broker down").Mark(ierr.ErrSystem))

	s.record(s.testData.invoice.ID, "1000")
	s.assertLedger(s.testData.invoice.ID, "1000", "0", types.InvoiceStatusPaid)
}

func (s *LedgerServiceSuite) TestPaymentDateDefaultsToNow() {
	p := s.record(s.testData.invoice.ID, "5")
	s.WithinDuration(s.GetNow(), p.PaymentDate, time.Second)

	custom := s.GetNow().AddDate(0, -1, 0)
	resp, err := s.service.RecordPayment(s.GetContext(), dto.CreatePaymentRequest{
		InvoiceID:   s.testData.invoice.ID,
		Amount:      dec("5"),
		Method:      "cash",
		PaymentDate: &custom,
		Note:        "March deposit",
	})
	s.NoError(err)
	s.True(custom.Equal(resp.PaymentDate))
	s.Equal("March deposit", resp.Note)
}
