package types

import (
	ierr "github.com/invoicely/invoicely/internal/errors"
	"github.com/samber/lo"
)

// InvoiceStatus is the payment lifecycle state of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft   InvoiceStatus = "DRAFT"
	InvoiceStatusSent    InvoiceStatus = "SENT"
	InvoiceStatusPartial InvoiceStatus = "PARTIAL"
	InvoiceStatusPaid    InvoiceStatus = "PAID"
	InvoiceStatusOverdue InvoiceStatus = "OVERDUE"
)

func (s InvoiceStatus) String() string {
	return string(s)
}

func (s InvoiceStatus) Validate() error {
	allowed := []InvoiceStatus{
		InvoiceStatusDraft,
		InvoiceStatusSent,
		InvoiceStatusPartial,
		InvoiceStatusPaid,
		InvoiceStatusOverdue,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid invoice status").
			WithHint("Please provide a valid invoice status").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// DiscountType decides how an invoice discount value is interpreted
type DiscountType string

const (
	// DiscountTypeAmount subtracts the discount value as a fixed amount
	DiscountTypeAmount DiscountType = "AMOUNT"
	// DiscountTypePercentage subtracts the discount value as a percentage of the subtotal
	DiscountTypePercentage DiscountType = "PERCENTAGE"
)

func (d DiscountType) String() string {
	return string(d)
}

func (d DiscountType) Validate() error {
	allowed := []DiscountType{
		DiscountTypeAmount,
		DiscountTypePercentage,
	}
	if !lo.Contains(allowed, d) {
		return ierr.NewError("invalid discount type").
			WithHint("Discount type must be AMOUNT or PERCENTAGE").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// SignatureStatusPolicy decides what happens to the invoice status once a client signs
type SignatureStatusPolicy string

const (
	// SignatureStatusResetToDraft moves the invoice back to DRAFT after signing
	SignatureStatusResetToDraft SignatureStatusPolicy = "reset_to_draft"
	// SignatureStatusPreserve leaves the invoice status unchanged after signing
	SignatureStatusPreserve SignatureStatusPolicy = "preserve"
)

const DefaultCurrency = "LKR"

// InvoiceFilter represents the filter options for listing invoices
type InvoiceFilter struct {
	*QueryFilter
	// DueDateRange filters on the invoice due date
	*TimeRangeFilter

	InvoiceIDs    []string        `json:"invoice_ids,omitempty" form:"invoice_ids"`
	ClientID      string          `json:"client_id,omitempty" form:"client_id"`
	InvoiceStatus []InvoiceStatus `json:"invoice_status,omitempty" form:"invoice_status"`
	// Search matches invoice number or client name, case insensitive
	Search string `json:"search,omitempty" form:"search"`
}

// NewInvoiceFilter creates a new invoice filter with default options
func NewInvoiceFilter() *InvoiceFilter {
	return &InvoiceFilter{
		QueryFilter: NewDefaultQueryFilter(),
	}
}

// NewNoLimitInvoiceFilter creates a new invoice filter without pagination
func NewNoLimitInvoiceFilter() *InvoiceFilter {
	return &InvoiceFilter{
		QueryFilter: NewNoLimitQueryFilter(),
	}
}

func (f *InvoiceFilter) Validate() error {
	if f.QueryFilter != nil {
		if err := f.QueryFilter.Validate(); err != nil {
			return err
		}
	}
	if f.TimeRangeFilter != nil {
		if err := f.TimeRangeFilter.Validate(); err != nil {
			return err
		}
	}
	for _, s := range f.InvoiceStatus {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (f *InvoiceFilter) GetLimit() int {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetLimit()
	}
	return f.QueryFilter.GetLimit()
}

func (f *InvoiceFilter) GetOffset() int {
	if f.QueryFilter == nil {
		return 0
	}
	return f.QueryFilter.GetOffset()
}

func (f *InvoiceFilter) GetSort() string {
	if f.QueryFilter == nil {
		return FILTER_DEFAULT_SORT
	}
	return f.QueryFilter.GetSort()
}

func (f *InvoiceFilter) GetOrder() string {
	if f.QueryFilter == nil {
		return FILTER_DEFAULT_ORDER
	}
	return f.QueryFilter.GetOrder()
}

func (f *InvoiceFilter) IsUnlimited() bool {
	if f.QueryFilter == nil {
		return false
	}
	return f.QueryFilter.IsUnlimited()
}
