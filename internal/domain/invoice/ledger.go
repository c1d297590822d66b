package invoice

import (
	"github.com/invoicely/invoicely/internal/money"
	"github.com/invoicely/invoicely/internal/types"
	"github.com/shopspring/decimal"
)

// AfterRecord derives the ledger state after a payment of amount is added
func AfterRecord(total, paid, amount decimal.Decimal) LedgerState {
	newPaid := paid.Add(amount)
	newBalance := money.Balance(total, newPaid)
	return LedgerState{
		AmountPaid:    newPaid,
		BalanceAmount: newBalance,
		Status:        StatusAfterRecord(newBalance),
	}
}

// AfterUpdate derives the ledger state after a payment changes from oldAmount to newAmount
func AfterUpdate(total, paid, oldAmount, newAmount decimal.Decimal) LedgerState {
	newPaid := money.FloorZero(paid.Sub(oldAmount).Add(newAmount))
	newBalance := money.Balance(total, newPaid)
	return LedgerState{
		AmountPaid:    newPaid,
		BalanceAmount: newBalance,
		Status:        StatusAfterAdjustment(newPaid, newBalance),
	}
}

// AfterDelete derives the ledger state after a payment of amount is removed
func AfterDelete(total, paid, amount decimal.Decimal, policy types.PaymentDeletePolicy) LedgerState {
	newPaid := money.FloorZero(paid.Sub(amount))

	if policy == types.PaymentDeleteLiteral {
		return LedgerState{
			AmountPaid:    newPaid,
			BalanceAmount: total.Sub(newPaid),
			Status:        StatusAfterLiteralDelete(newPaid),
		}
	}

	newBalance := money.Balance(total, newPaid)
	return LedgerState{
		AmountPaid:    newPaid,
		BalanceAmount: newBalance,
		Status:        StatusAfterAdjustment(newPaid, newBalance),
	}
}

// FromHistory derives the ledger state implied by the sum of the surviving payments.
// The stored status is kept when it is consistent with the derived amounts, so
// DRAFT and OVERDUE survive a check as long as money is still owed.
func FromHistory(current LedgerState, total, paymentsSum decimal.Decimal) LedgerState {
	newPaid := money.FloorZero(paymentsSum)
	newBalance := money.Balance(total, newPaid)
	status := StatusAfterAdjustment(newPaid, newBalance)
	if statusConsistent(current.Status, newPaid, newBalance) {
		status = current.Status
	}
	return LedgerState{
		AmountPaid:    newPaid,
		BalanceAmount: newBalance,
		Status:        status,
	}
}

func statusConsistent(status types.InvoiceStatus, paid, balance decimal.Decimal) bool {
	switch status {
	case types.InvoiceStatusDraft, types.InvoiceStatusOverdue:
		return balance.IsPositive()
	default:
		return status == StatusAfterAdjustment(paid, balance)
	}
}

// AfterEdit derives the ledger state after a full edit changed the invoice total.
// Amount paid is untouched; status is re-derived only when money was received.
func AfterEdit(current LedgerState, newTotal decimal.Decimal) LedgerState {
	newBalance := money.Balance(newTotal, current.AmountPaid)
	status := current.Status
	switch {
	case current.AmountPaid.IsPositive():
		status = StatusAfterRecord(newBalance)
	case status == types.InvoiceStatusPaid && newBalance.IsPositive():
		status = types.InvoiceStatusSent
	}
	return LedgerState{
		AmountPaid:    current.AmountPaid,
		BalanceAmount: newBalance,
		Status:        status,
	}
}

// IsLiteralDeleteState reports whether stored is exactly what the literal delete
// policy leaves behind for the given payment history: an unclamped balance and
// SENT or PARTIAL status.
func IsLiteralDeleteState(stored LedgerState, total, paymentsSum decimal.Decimal) bool {
	paid := money.FloorZero(paymentsSum)
	return stored.AmountPaid.Equal(paid) &&
		stored.BalanceAmount.Equal(total.Sub(paid)) &&
		stored.Status == StatusAfterLiteralDelete(paid)
}
