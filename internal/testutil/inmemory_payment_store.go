package testutil

import (
	"context"

	"github.com/invoicely/invoicely/internal/domain/payment"
	ierr "github.com/invoicely/invoicely/internal/errors"
	"github.com/invoicely/invoicely/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

var _ payment.Repository = (*InMemoryPaymentStore)(nil)

// InMemoryPaymentStore implements payment.Repository
type InMemoryPaymentStore struct {
	*InMemoryStore[*payment.Payment]
}

func NewInMemoryPaymentStore() *InMemoryPaymentStore {
	return &InMemoryPaymentStore{
		InMemoryStore: NewInMemoryStore[*payment.Payment](func(p *payment.Payment) *payment.Payment {
			if p == nil {
				return nil
			}
			c := *p
			return &c
		}),
	}
}

func paymentNotFound(id string) error {
	return ierr.NewErrorf("payment %s not found", id).
		WithHintf("Payment %s was not found", id).
		Mark(ierr.ErrNotFound)
}

func (s *InMemoryPaymentStore) Create(ctx context.Context, p *payment.Payment) error {
	if p == nil {
		return ierr.NewError("payment cannot be nil").Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Create(ctx, p.ID, p)
}

func (s *InMemoryPaymentStore) Get(ctx context.Context, id string) (*payment.Payment, error) {
	p, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, paymentNotFound(id)
	}
	return p, nil
}

func (s *InMemoryPaymentStore) Update(ctx context.Context, p *payment.Payment) error {
	if err := s.InMemoryStore.Update(ctx, p.ID, p); err != nil {
		return paymentNotFound(p.ID)
	}
	return nil
}

func (s *InMemoryPaymentStore) Delete(ctx context.Context, id string) error {
	if err := s.InMemoryStore.Delete(ctx, id); err != nil {
		return paymentNotFound(id)
	}
	return nil
}

func (s *InMemoryPaymentStore) List(ctx context.Context, filter *types.PaymentFilter) ([]*payment.Payment, error) {
	if filter == nil {
		filter = types.NewPaymentFilter()
	}
	desc := filter.GetOrder() != types.OrderAsc
	return s.InMemoryStore.List(ctx, filter, paymentFilterFn, func(i, j *payment.Payment) bool {
		if desc {
			return j.PaymentDate.Before(i.PaymentDate)
		}
		return i.PaymentDate.Before(j.PaymentDate)
	})
}

func (s *InMemoryPaymentStore) Count(ctx context.Context, filter *types.PaymentFilter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, paymentFilterFn)
}

func (s *InMemoryPaymentStore) SumByInvoice(ctx context.Context, invoiceID string) (decimal.Decimal, error) {
	payments := s.Find(func(p *payment.Payment) bool { return p.InvoiceID == invoiceID })
	return lo.Reduce(payments, func(sum decimal.Decimal, p *payment.Payment, _ int) decimal.Decimal {
		return sum.Add(p.Amount)
	}, decimal.Zero), nil
}

func (s *InMemoryPaymentStore) DeleteByInvoice(ctx context.Context, invoiceID string) error {
	for _, p := range s.Find(func(p *payment.Payment) bool { return p.InvoiceID == invoiceID }) {
		if err := s.InMemoryStore.Delete(ctx, p.ID); err != nil {
			return err
		}
	}
	return nil
}

func paymentFilterFn(ctx context.Context, p *payment.Payment, filter interface{}) bool {
	f, ok := filter.(*types.PaymentFilter)
	if !ok || f == nil {
		return true
	}

	if f.InvoiceID != "" && p.InvoiceID != f.InvoiceID {
		return false
	}
	if len(f.PaymentIDs) > 0 && !lo.Contains(f.PaymentIDs, p.ID) {
		return false
	}
	if f.Method != "" && p.Method != f.Method {
		return false
	}
	if f.TimeRangeFilter != nil {
		if f.StartTime != nil && p.PaymentDate.Before(*f.StartTime) {
			return false
		}
		if f.EndTime != nil && !p.PaymentDate.Before(*f.EndTime) {
			return false
		}
	}
	return true
}
