package testutil

import (
	"context"
	"strings"
	"time"

	"github.com/invoicely/invoicely/internal/domain/invoice"
	ierr "github.com/invoicely/invoicely/internal/errors"
	"github.com/invoicely/invoicely/internal/types"
	"github.com/samber/lo"
)

var _ invoice.Repository = (*InMemoryInvoiceStore)(nil)

// InMemoryInvoiceStore implements invoice.Repository
type InMemoryInvoiceStore struct {
	*InMemoryStore[*invoice.Invoice]
	locks   *RowLocks
	clients *InMemoryClientStore
}

// NewInMemoryInvoiceStore creates a new in-memory invoice store. Search by
// client name is supported when clients is set.
func NewInMemoryInvoiceStore(locks *RowLocks, clients *InMemoryClientStore) *InMemoryInvoiceStore {
	if locks == nil {
		locks = NewRowLocks()
	}
	return &InMemoryInvoiceStore{
		InMemoryStore: NewInMemoryStore[*invoice.Invoice](copyInvoice),
		locks:         locks,
		clients:       clients,
	}
}

func copyInvoice(inv *invoice.Invoice) *invoice.Invoice {
	if inv == nil {
		return nil
	}

	c := *inv
	c.Signature = copyString(inv.Signature)
	c.AdminSignature = copyString(inv.AdminSignature)
	c.CompanyID = copyString(inv.CompanyID)
	if inv.SignedAt != nil {
		c.SignedAt = lo.ToPtr(*inv.SignedAt)
	}
	c.LineItems = copyLineItems(inv.LineItems)
	return &c
}

func copyLineItems(items []*invoice.LineItem) []*invoice.LineItem {
	if items == nil {
		return nil
	}
	return lo.Map(items, func(li *invoice.LineItem, _ int) *invoice.LineItem {
		c := *li
		return &c
	})
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	return lo.ToPtr(*s)
}

func (s *InMemoryInvoiceStore) numberTaken(number, exceptID string) bool {
	return len(s.Find(func(inv *invoice.Invoice) bool {
		return inv.InvoiceNumber == number && inv.ID != exceptID
	})) > 0
}

func duplicateNumber(number string) error {
	return ierr.NewErrorf("invoice number %s already exists", number).
		WithHint("Invoice Number already exists!").
		WithReportableDetails(map[string]any{"invoice_number": number}).
		Mark(ierr.ErrAlreadyExists, ierr.ErrValidation)
}

func invoiceNotFound(id string) error {
	return ierr.NewErrorf("invoice %s not found", id).
		WithHintf("Invoice %s was not found, please refresh", id).
		Mark(ierr.ErrNotFound)
}

func (s *InMemoryInvoiceStore) Create(ctx context.Context, inv *invoice.Invoice) error {
	if inv == nil {
		return ierr.NewError("invoice cannot be nil").Mark(ierr.ErrValidation)
	}
	if s.numberTaken(inv.InvoiceNumber, inv.ID) {
		return duplicateNumber(inv.InvoiceNumber)
	}
	return s.InMemoryStore.Create(ctx, inv.ID, inv)
}

func (s *InMemoryInvoiceStore) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	inv, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, invoiceNotFound(id)
	}
	return inv, nil
}

func (s *InMemoryInvoiceStore) GetForUpdate(ctx context.Context, id string) (*invoice.Invoice, error) {
	if err := s.locks.Lock(ctx, "invoices/"+id); err != nil {
		return nil, err
	}
	inv, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	inv.LineItems = nil
	return inv, nil
}

// Update keeps the stored line items, matching the column-only SQL update
func (s *InMemoryInvoiceStore) Update(ctx context.Context, inv *invoice.Invoice) error {
	existing, err := s.InMemoryStore.Get(ctx, inv.ID)
	if err != nil {
		return invoiceNotFound(inv.ID)
	}
	if s.numberTaken(inv.InvoiceNumber, inv.ID) {
		return duplicateNumber(inv.InvoiceNumber)
	}

	updated := copyInvoice(inv)
	updated.LineItems = existing.LineItems
	updated.CreatedAt = existing.CreatedAt
	updated.CreatedBy = existing.CreatedBy
	return s.InMemoryStore.Update(ctx, inv.ID, updated)
}

func (s *InMemoryInvoiceStore) UpdateLedger(ctx context.Context, id string, state invoice.LedgerState) error {
	inv, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return invoiceNotFound(id)
	}
	inv.ApplyLedger(state)
	inv.UpdatedAt = time.Now().UTC()
	inv.UpdatedBy = types.GetUserID(ctx)
	return s.InMemoryStore.Update(ctx, id, inv)
}

func (s *InMemoryInvoiceStore) ReplaceLineItems(ctx context.Context, invoiceID string, items []*invoice.LineItem) error {
	inv, err := s.InMemoryStore.Get(ctx, invoiceID)
	if err != nil {
		return invoiceNotFound(invoiceID)
	}
	inv.LineItems = copyLineItems(items)
	return s.InMemoryStore.Update(ctx, invoiceID, inv)
}

func (s *InMemoryInvoiceStore) Delete(ctx context.Context, id string) error {
	if err := s.InMemoryStore.Delete(ctx, id); err != nil {
		return invoiceNotFound(id)
	}
	return nil
}

func (s *InMemoryInvoiceStore) List(ctx context.Context, filter *types.InvoiceFilter) ([]*invoice.Invoice, error) {
	if filter == nil {
		filter = types.NewInvoiceFilter()
	}
	return s.InMemoryStore.List(ctx, filter, s.invoiceFilterFn, invoiceSortFn(filter))
}

func (s *InMemoryInvoiceStore) Count(ctx context.Context, filter *types.InvoiceFilter) (int, error) {
	if filter == nil {
		filter = types.NewInvoiceFilter()
	}
	return s.InMemoryStore.Count(ctx, filter, s.invoiceFilterFn)
}

func (s *InMemoryInvoiceStore) MarkOverdue(ctx context.Context, now time.Time) (int, error) {
	changed := s.InMemoryStore.Mutate(ctx,
		func(inv *invoice.Invoice) bool {
			return invoice.IsSweepEligible(inv.Status, inv.DueDate, now)
		},
		func(inv *invoice.Invoice) (*invoice.Invoice, bool) {
			inv.Status = types.InvoiceStatusOverdue
			inv.UpdatedAt = now
			return inv, true
		},
	)
	return changed, nil
}

func (s *InMemoryInvoiceStore) invoiceFilterFn(ctx context.Context, inv *invoice.Invoice, filter interface{}) bool {
	f, ok := filter.(*types.InvoiceFilter)
	if !ok || f == nil {
		return true
	}

	if len(f.InvoiceIDs) > 0 && !lo.Contains(f.InvoiceIDs, inv.ID) {
		return false
	}
	if f.ClientID != "" && inv.ClientID != f.ClientID {
		return false
	}
	if len(f.InvoiceStatus) > 0 && !lo.Contains(f.InvoiceStatus, inv.Status) {
		return false
	}
	if f.Search != "" && !s.matchesSearch(ctx, inv, f.Search) {
		return false
	}
	if f.TimeRangeFilter != nil {
		if f.StartTime != nil && inv.DueDate.Before(*f.StartTime) {
			return false
		}
		if f.EndTime != nil && !inv.DueDate.Before(*f.EndTime) {
			return false
		}
	}
	return true
}

func (s *InMemoryInvoiceStore) matchesSearch(ctx context.Context, inv *invoice.Invoice, search string) bool {
	needle := strings.ToLower(search)
	if strings.Contains(strings.ToLower(inv.InvoiceNumber), needle) {
		return true
	}
	if s.clients == nil {
		return false
	}
	c, err := s.clients.Get(ctx, inv.ClientID)
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(c.Name), needle)
}

func invoiceSortFn(filter *types.InvoiceFilter) SortFunc[*invoice.Invoice] {
	desc := filter.GetOrder() != types.OrderAsc
	less := func(i, j *invoice.Invoice) bool { return i.CreatedAt.Before(j.CreatedAt) }
	switch filter.GetSort() {
	case "due_date":
		less = func(i, j *invoice.Invoice) bool { return i.DueDate.Before(j.DueDate) }
	case "invoice_date":
		less = func(i, j *invoice.Invoice) bool { return i.InvoiceDate.Before(j.InvoiceDate) }
	case "total":
		less = func(i, j *invoice.Invoice) bool { return i.Total.LessThan(j.Total) }
	case "invoice_number":
		less = func(i, j *invoice.Invoice) bool { return i.InvoiceNumber < j.InvoiceNumber }
	}
	if desc {
		return func(i, j *invoice.Invoice) bool { return less(j, i) }
	}
	return less
}
