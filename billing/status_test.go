package billing_test

import (
	"errors"
	"testing"
	"time"

	"github.com/warp/billing-engine/billing"
)

func TestResolveInvoiceStatus_PrecedenceTable(t *testing.T) {
	now := day(2025, time.June, 15)
	past := day(2025, time.June, 1)
	future := day(2025, time.July, 1)

	cases := []struct {
		name    string
		paid    float64
		total   float64
		dueDate time.Time
		want    billing.InvoiceStatus
	}{
		{"no payments, not due", 0, 1000, future, billing.StatusUnpaid},
		{"no payments, past due", 0, 1000, past, billing.StatusOverdue},
		{"partial, not due", 400, 1000, future, billing.StatusPartiallyPaid},
		{"partial, past due", 400, 1000, past, billing.StatusOverdue},
		{"full, not due", 1000, 1000, future, billing.StatusFullyPaid},
		{"full, past due", 1000, 1000, past, billing.StatusFullyPaid},
		{"due today is not overdue", 0, 1000, now, billing.StatusUnpaid},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var payments []billing.Payment
			if tc.paid > 0 {
				payments = append(payments, payment("inv-1", tc.paid, past))
			}
			ledger := billing.ApplyPayments(payments, dec(tc.total))
			got := billing.ResolveInvoiceStatus(ledger, tc.dueDate, now)
			if got != tc.want {
				t.Errorf("status = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestResolveInvoiceStatus_ZeroTotalIsFullyPaid(t *testing.T) {
	// An empty document owes nothing; it can never be unpaid or overdue.
	ledger := billing.ApplyPayments(nil, dec(0))
	got := billing.ResolveInvoiceStatus(ledger, day(2020, time.January, 1), day(2025, time.June, 1))
	if got != billing.StatusFullyPaid {
		t.Errorf("status = %q, want %q", got, billing.StatusFullyPaid)
	}
}

func TestPastDue_DayGranularity(t *testing.T) {
	due := time.Date(2025, time.June, 15, 23, 0, 0, 0, time.UTC)
	sameDay := time.Date(2025, time.June, 15, 1, 0, 0, 0, time.UTC)
	nextDay := time.Date(2025, time.June, 16, 0, 30, 0, 0, time.UTC)

	if billing.PastDue(due, sameDay) {
		t.Error("due today must not be past due")
	}
	if !billing.PastDue(due, nextDay) {
		t.Error("due yesterday must be past due")
	}
}

func TestTransitionQuotation_PendingToTerminal(t *testing.T) {
	for _, to := range []billing.QuotationStatus{billing.QuotationAccepted, billing.QuotationRejected} {
		if err := billing.TransitionQuotation(billing.QuotationPending, to); err != nil {
			t.Errorf("Pending -> %s rejected: %v", to, err)
		}
	}
}

func TestTransitionQuotation_TerminalStatesAdmitNothing(t *testing.T) {
	terminals := []billing.QuotationStatus{billing.QuotationAccepted, billing.QuotationRejected}
	targets := []billing.QuotationStatus{billing.QuotationPending, billing.QuotationAccepted, billing.QuotationRejected}

	for _, from := range terminals {
		for _, to := range targets {
			err := billing.TransitionQuotation(from, to)
			if from == to {
				if err != nil {
					t.Errorf("%s -> %s (no-op) rejected: %v", from, to, err)
				}
				continue
			}
			if !errors.Is(err, billing.ErrTerminalStatus) {
				t.Errorf("%s -> %s = %v, want ErrTerminalStatus", from, to, err)
			}
		}
	}
}

func TestTransitionQuotation_BackToPendingIsIllegal(t *testing.T) {
	err := billing.TransitionQuotation(billing.QuotationAccepted, billing.QuotationPending)
	if err == nil {
		t.Fatal("Accepted -> Pending must be rejected")
	}
	var terr *billing.StateTransitionError
	if !errors.As(err, &terr) {
		t.Fatalf("expected *StateTransitionError, got %T", err)
	}
}

func TestQuotationStatus_IsNeverDerivedFromPayments(t *testing.T) {
	// A quotation's status is whatever was explicitly set, no matter
	// what its summary looks like.
	q := &billing.Quotation{Status: billing.QuotationPending}
	q.Items = []billing.LineItem{item(1, 500)}
	if q.Status != billing.QuotationPending {
		t.Errorf("status = %q, want %q", q.Status, billing.QuotationPending)
	}
}
