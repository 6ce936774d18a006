/*
status.go - Status derivation

PURPOSE:
  Status is a pure function of current data, never a field that can
  drift out of sync. This is the central invariant of the engine: a
  mutation can never "forget to update status" because status is not
  stored anywhere.

INVOICE MACHINE:
  Unpaid -> Partially Paid -> Fully Paid, with Overdue as an orthogonal
  overlay rather than a fourth sequential state. Precedence, evaluated
  on every read:

    1. remaining balance == 0            -> Fully Paid (terminal; the
       overdue overlay does not apply once fully paid)
    2. due date past, balance > 0        -> Overdue (overrides 3-4)
    3. no payments, balance == total     -> Unpaid
    4. otherwise                         -> Partially Paid

  The resolver never fails: invalid summaries (negative totals) are a
  precondition violation rejected upstream by ComputeSummary.

QUOTATION MACHINE:
  A separate, simpler machine with explicit transitions, never derived
  from payments: Pending -> {Accepted, Rejected}, both terminal.
*/
package billing

import "time"

// =============================================================================
// INVOICE STATUS
// =============================================================================

type InvoiceStatus string

const (
	StatusUnpaid        InvoiceStatus = "Unpaid"
	StatusPartiallyPaid InvoiceStatus = "Partially Paid"
	StatusFullyPaid     InvoiceStatus = "Fully Paid"
	StatusOverdue       InvoiceStatus = "Overdue"
)

// ResolveInvoiceStatus derives the invoice status from the current
// ledger state, the due date, and wall-clock time.
func ResolveInvoiceStatus(ledger LedgerState, dueDate, now time.Time) InvoiceStatus {
	if !ledger.RemainingBalance.IsPositive() {
		return StatusFullyPaid
	}
	if PastDue(dueDate, now) {
		return StatusOverdue
	}
	// remainingBalance == total alone is not a sufficient unpaid test:
	// require an actually empty ledger.
	if ledger.PaymentCount == 0 && ledger.AmountPaid.IsZero() {
		return StatusUnpaid
	}
	return StatusPartiallyPaid
}

// =============================================================================
// QUOTATION STATUS
// =============================================================================

type QuotationStatus string

const (
	QuotationPending  QuotationStatus = "Pending"
	QuotationAccepted QuotationStatus = "Accepted"
	QuotationRejected QuotationStatus = "Rejected"
)

// Terminal reports whether the status admits no further transitions.
func (s QuotationStatus) Terminal() bool {
	return s == QuotationAccepted || s == QuotationRejected
}

// Valid reports whether s is a known quotation status.
func (s QuotationStatus) Valid() bool {
	switch s {
	case QuotationPending, QuotationAccepted, QuotationRejected:
		return true
	}
	return false
}

// TransitionQuotation validates an explicit status change. Only
// Pending -> Accepted and Pending -> Rejected are legal.
func TransitionQuotation(from, to QuotationStatus) error {
	if !to.Valid() {
		return &ValidationError{Field: "status", Message: "unknown quotation status"}
	}
	if from == to {
		return nil
	}
	if from.Terminal() {
		return &StateTransitionError{From: from, To: to}
	}
	if to == QuotationPending {
		return &StateTransitionError{From: from, To: to}
	}
	return nil
}
