/*
ledger.go - Payment ledger computation

PURPOSE:
  Computes amount paid and remaining balance for one invoice by
  replaying its payments against the document total. There is no cached
  running balance: after any payment delete the ledger is recomputed
  from the remaining set, so a stale cache can never be trusted.

OVERPAYMENT:
  A balance can legitimately reach exactly zero, but a NEW payment must
  never drive it below zero by more than a configurable epsilon.
  Overpayment is a real business event the UI must flag, so the engine
  reports the condition instead of silently clamping; callers decide
  whether to block or warn.
*/
package billing

import (
	"sort"

	"github.com/shopspring/decimal"
)

// DefaultEpsilon is one minor unit of typical currencies. A new payment
// may overshoot the remaining balance by at most this much.
var DefaultEpsilon = decimal.NewFromFloat(0.01)

// LedgerState is the derived payment position of one invoice.
type LedgerState struct {
	Total            decimal.Decimal `json:"total"`
	AmountPaid       decimal.Decimal `json:"amount_paid"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	PaymentCount     int             `json:"payment_count"`
}

// ApplyPayments replays payments against total. Input order is
// irrelevant to the sums; date ordering for display is SortPayments'
// concern.
func ApplyPayments(payments []Payment, total decimal.Decimal) LedgerState {
	paid := decimal.Zero
	for _, p := range payments {
		paid = paid.Add(p.Amount)
	}
	return LedgerState{
		Total:            total,
		AmountPaid:       paid,
		RemainingBalance: total.Sub(paid),
		PaymentCount:     len(payments),
	}
}

// CheckPayment validates that recording a new payment of amount against
// the current ledger state is within domain. Returns a *ValidationError
// for non-positive amounts and an *OverpaymentError when the payment
// would drive the balance below -epsilon.
func (s LedgerState) CheckPayment(amount, epsilon decimal.Decimal) error {
	if !amount.IsPositive() {
		return &ValidationError{Field: "amount", Message: "must be greater than zero"}
	}
	after := s.RemainingBalance.Sub(amount)
	if after.LessThan(epsilon.Neg()) {
		return &OverpaymentError{
			Remaining: s.RemainingBalance,
			Attempted: amount,
			Excess:    after.Neg(),
		}
	}
	return nil
}

// SortPayments orders payments by date ascending, id as tiebreaker so
// the order is stable across recomputation.
func SortPayments(payments []Payment) {
	sort.SliceStable(payments, func(i, j int) bool {
		if payments[i].Date.Equal(payments[j].Date) {
			return payments[i].ID < payments[j].ID
		}
		return payments[i].Date.Before(payments[j].Date)
	})
}
