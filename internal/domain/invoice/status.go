package invoice

import (
	"time"

	ierr "github.com/invoicely/invoicely/internal/errors"
	"github.com/invoicely/invoicely/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// StatusAfterRecord derives the status after a payment is recorded.
// Recording always lands in PAID or PARTIAL regardless of the prior status.
func StatusAfterRecord(balance decimal.Decimal) types.InvoiceStatus {
	if balance.LessThanOrEqual(decimal.Zero) {
		return types.InvoiceStatusPaid
	}
	return types.InvoiceStatusPartial
}

// StatusAfterAdjustment derives the status after a payment is edited, or
// removed under the clamped delete policy.
func StatusAfterAdjustment(paid, balance decimal.Decimal) types.InvoiceStatus {
	switch {
	case balance.LessThanOrEqual(decimal.Zero):
		return types.InvoiceStatusPaid
	case paid.LessThanOrEqual(decimal.Zero):
		return types.InvoiceStatusSent
	default:
		return types.InvoiceStatusPartial
	}
}

// StatusAfterLiteralDelete derives the status after a payment is removed
// under the literal delete policy. It never yields PAID.
func StatusAfterLiteralDelete(paid decimal.Decimal) types.InvoiceStatus {
	if paid.IsZero() {
		return types.InvoiceStatusSent
	}
	return types.InvoiceStatusPartial
}

// sweepExcluded are the statuses the overdue sweep never touches
var sweepExcluded = []types.InvoiceStatus{
	types.InvoiceStatusPaid,
	types.InvoiceStatusOverdue,
}

// SweepExcludedStatuses returns the statuses skipped by the overdue sweep
func SweepExcludedStatuses() []types.InvoiceStatus {
	return append([]types.InvoiceStatus(nil), sweepExcluded...)
}

// IsSweepEligible reports whether the overdue sweep would move the invoice to OVERDUE
func IsSweepEligible(status types.InvoiceStatus, dueDate, now time.Time) bool {
	return !lo.Contains(sweepExcluded, status) && dueDate.Before(now)
}

// ValidateManualTransition checks a status change requested directly by staff.
// PAID and PARTIAL belong to the ledger and DRAFT only to creation and signing,
// so only SENT and OVERDUE may be set by hand.
func ValidateManualTransition(from, to types.InvoiceStatus, dueDate, now time.Time) error {
	if err := to.Validate(); err != nil {
		return err
	}

	switch to {
	case types.InvoiceStatusSent:
		return nil
	case types.InvoiceStatusOverdue:
		if from == types.InvoiceStatusPaid {
			return ierr.NewError("paid invoice cannot become overdue").
				WithHint("A paid invoice cannot be marked overdue").
				WithReportableDetails(map[string]any{"from": from, "to": to}).
				Mark(ierr.ErrInvalidOperation)
		}
		if !dueDate.Before(now) {
			return ierr.NewError("invoice is not past due").
				WithHint("Only invoices past their due date can be marked overdue").
				WithReportableDetails(map[string]any{"due_date": dueDate}).
				Mark(ierr.ErrInvalidOperation)
		}
		return nil
	default:
		return ierr.NewErrorf("status %s cannot be set manually", to).
			WithHintf("Status %s is managed automatically", to).
			WithReportableDetails(map[string]any{"from": from, "to": to}).
			Mark(ierr.ErrInvalidOperation)
	}
}
