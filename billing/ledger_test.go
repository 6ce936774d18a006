package billing_test

import (
	"errors"
	"testing"
	"time"

	"github.com/warp/billing-engine/billing"
)

func TestApplyPayments_SumsRegardlessOfOrder(t *testing.T) {
	total := dec(1000)
	p1 := payment("inv-1", 300, day(2025, time.March, 10))
	p2 := payment("inv-1", 200, day(2025, time.February, 1))

	a := billing.ApplyPayments([]billing.Payment{p1, p2}, total)
	b := billing.ApplyPayments([]billing.Payment{p2, p1}, total)

	if !a.AmountPaid.Equal(dec(500)) || !a.RemainingBalance.Equal(dec(500)) {
		t.Errorf("paid=%s remaining=%s, want 500/500", a.AmountPaid, a.RemainingBalance)
	}
	if !a.AmountPaid.Equal(b.AmountPaid) {
		t.Errorf("order changed the ledger: %s vs %s", a.AmountPaid, b.AmountPaid)
	}
}

func TestApplyPayments_EmptyLedger(t *testing.T) {
	s := billing.ApplyPayments(nil, dec(750))
	if !s.AmountPaid.IsZero() {
		t.Errorf("amountPaid = %s, want 0", s.AmountPaid)
	}
	if !s.RemainingBalance.Equal(dec(750)) {
		t.Errorf("remainingBalance = %s, want 750", s.RemainingBalance)
	}
	if s.PaymentCount != 0 {
		t.Errorf("paymentCount = %d, want 0", s.PaymentCount)
	}
}

func TestCheckPayment_ExactPayoffIsAllowed(t *testing.T) {
	s := billing.ApplyPayments(nil, dec(1900))
	if err := s.CheckPayment(dec(1900), billing.DefaultEpsilon); err != nil {
		t.Errorf("exact payoff rejected: %v", err)
	}
}

func TestCheckPayment_WithinEpsilonIsAllowed(t *testing.T) {
	// Callers decide whether to warn; within epsilon the engine stays quiet.
	s := billing.ApplyPayments(nil, dec(100))
	if err := s.CheckPayment(dec(100.01), billing.DefaultEpsilon); err != nil {
		t.Errorf("within-epsilon payment rejected: %v", err)
	}
}

func TestCheckPayment_BeyondEpsilonIsOverpayment(t *testing.T) {
	s := billing.ApplyPayments(nil, dec(100))
	err := s.CheckPayment(dec(100.02), billing.DefaultEpsilon)
	if !errors.Is(err, billing.ErrOverpayment) {
		t.Fatalf("CheckPayment = %v, want ErrOverpayment", err)
	}
	var overErr *billing.OverpaymentError
	if !errors.As(err, &overErr) {
		t.Fatalf("expected *OverpaymentError, got %T", err)
	}
	if !overErr.Remaining.Equal(dec(100)) || !overErr.Attempted.Equal(dec(100.02)) {
		t.Errorf("remaining=%s attempted=%s, want 100/100.02", overErr.Remaining, overErr.Attempted)
	}
}

func TestCheckPayment_NonPositiveAmountIsValidationError(t *testing.T) {
	s := billing.ApplyPayments(nil, dec(100))
	for _, amount := range []float64{0, -10} {
		if err := s.CheckPayment(dec(amount), billing.DefaultEpsilon); !errors.Is(err, billing.ErrValidation) {
			t.Errorf("CheckPayment(%v) = %v, want ErrValidation", amount, err)
		}
	}
}

func TestSortPayments_ByDateThenID(t *testing.T) {
	d := day(2025, time.May, 1)
	payments := []billing.Payment{
		{ID: "b", Date: d},
		{ID: "a", Date: d},
		{ID: "c", Date: day(2025, time.April, 1)},
	}
	billing.SortPayments(payments)
	got := []string{payments[0].ID, payments[1].ID, payments[2].ID}
	want := []string{"c", "a", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}
