/*
errors.go - Centralized failure taxonomy for the billing engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The taxonomy drives recovery behavior:

  1. Validation errors  - local, caught before any remote call
  2. Overpayment errors - local, computed from the ledger
  3. Remote rejections  - server said no; triggers snapshot rollback
  4. Transport failures - no usable response; rollback + retryable

PROPAGATION POLICY:
  Validation and overpayment errors never touch the store - the action
  is blocked at the boundary. Remote rejections and transport failures
  always trigger a full snapshot rollback and are never fatal: the user
  may retry the same action.

USAGE:
  if errors.Is(err, billing.ErrOverpayment) {
      // warn or block, caller's choice
  }
  if billing.IsRetryable(err) {
      // show transient notification with a retry path
  }
*/
package billing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned when input is out of domain (negative rate,
	// zero quantity, percentage outside [0,100], negative total).
	ErrValidation = errors.New("validation failed")

	// ErrOverpayment is returned when a new payment would drive the
	// remaining balance below zero beyond the configured epsilon.
	ErrOverpayment = errors.New("payment exceeds remaining balance")

	// ErrRemoteRejected is returned when the system of record refuses a
	// mutation (non-2xx response or status:false payload).
	ErrRemoteRejected = errors.New("remote rejected mutation")

	// ErrTransport is returned when no usable response was obtained
	// (network failure or timeout). Always retryable.
	ErrTransport = errors.New("transport failure")

	// ErrEntityNotFound is returned when a mutation targets an id the
	// store does not hold.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrMutationInFlight is returned under the Reject queue policy when
	// a second mutation targets an entity whose first has not settled.
	ErrMutationInFlight = errors.New("mutation already in flight for entity")

	// ErrImmutablePayment is returned when an update is attempted on a
	// payment. Corrections are a delete followed by a new create.
	ErrImmutablePayment = errors.New("payments cannot be updated in place")

	// ErrTerminalStatus is returned when a quotation transition starts
	// from Accepted or Rejected.
	ErrTerminalStatus = errors.New("status is terminal")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports which field failed boundary validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// OverpaymentError reports by how much a payment would overshoot.
type OverpaymentError struct {
	Remaining decimal.Decimal
	Attempted decimal.Decimal
	Excess    decimal.Decimal
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("overpayment: remaining %s, attempted %s, excess %s",
		e.Remaining, e.Attempted, e.Excess)
}

func (e *OverpaymentError) Unwrap() error { return ErrOverpayment }

// RemoteError is a server-reported rejection, optionally carrying
// per-field messages which are surfaced verbatim to the user.
type RemoteError struct {
	StatusCode  int
	Message     string
	FieldErrors map[string]string
}

func (e *RemoteError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("remote rejected (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("remote rejected (%d)", e.StatusCode)
}

func (e *RemoteError) Unwrap() error { return ErrRemoteRejected }

// TransportError wraps a network or timeout failure. The user-facing
// message is generic and retryable; Err keeps the cause for logs.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transport failure during %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("transport failure during %s", e.Op)
}

func (e *TransportError) Unwrap() error { return ErrTransport }

// StateTransitionError reports an illegal quotation transition.
type StateTransitionError struct {
	From QuotationStatus
	To   QuotationStatus
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("cannot transition quotation from %q to %q", e.From, e.To)
}

func (e *StateTransitionError) Unwrap() error { return ErrTerminalStatus }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the same action might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransport)
}

// IsClientError returns true if the error is recovered locally and the
// mutation was never dispatched.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrOverpayment) ||
		errors.Is(err, ErrImmutablePayment) ||
		errors.Is(err, ErrTerminalStatus) ||
		errors.Is(err, ErrMutationInFlight)
}

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEntityNotFound)
}

// RollsBack returns true if the error must trigger a full snapshot
// rollback (remote rejection or transport failure after dispatch).
func RollsBack(err error) bool {
	return errors.Is(err, ErrRemoteRejected) || errors.Is(err, ErrTransport)
}
