package types

// PaymentDeletePolicy decides how ledger fields are derived when a payment is removed
type PaymentDeletePolicy string

const (
	// PaymentDeleteLiteral leaves the balance unclamped and only derives SENT or PARTIAL
	PaymentDeleteLiteral PaymentDeletePolicy = "literal"
	// PaymentDeleteClamped applies the same floor and status rules as a payment update
	PaymentDeleteClamped PaymentDeletePolicy = "clamped"
)

const DefaultPaymentNote = "Manual payment entry"

// PaymentFilter represents the filter options for listing payments
type PaymentFilter struct {
	*QueryFilter
	*TimeRangeFilter

	InvoiceID  string   `json:"invoice_id,omitempty" form:"invoice_id"`
	PaymentIDs []string `json:"payment_ids,omitempty" form:"payment_ids"`
	Method     string   `json:"method,omitempty" form:"method"`
}

// NewPaymentFilter returns a payment filter ordered by payment date, newest first
func NewPaymentFilter() *PaymentFilter {
	f := NewDefaultQueryFilter()
	sort := "payment_date"
	f.Sort = &sort
	return &PaymentFilter{QueryFilter: f}
}

// NewNoLimitPaymentFilter returns an unpaginated payment filter
func NewNoLimitPaymentFilter() *PaymentFilter {
	f := NewNoLimitQueryFilter()
	sort := "payment_date"
	f.Sort = &sort
	return &PaymentFilter{QueryFilter: f}
}

func (f *PaymentFilter) Validate() error {
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
	return nil
}

func (f *PaymentFilter) GetLimit() int {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetLimit()
	}
	return f.QueryFilter.GetLimit()
}

func (f *PaymentFilter) GetOffset() int {
	if f.QueryFilter == nil {
		return 0
	}
	return f.QueryFilter.GetOffset()
}

func (f *PaymentFilter) GetSort() string {
	if f.QueryFilter == nil || f.QueryFilter.Sort == nil {
		return "payment_date"
	}
	return f.QueryFilter.GetSort()
}

func (f *PaymentFilter) GetOrder() string {
	if f.QueryFilter == nil {
		return FILTER_DEFAULT_ORDER
	}
	return f.QueryFilter.GetOrder()
}

func (f *PaymentFilter) IsUnlimited() bool {
	if f.QueryFilter == nil {
		return false
	}
	return f.QueryFilter.IsUnlimited()
}
