package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/billing-engine/billing"
	"github.com/warp/billing-engine/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleInvoice(client string) *billing.Invoice {
	inv := &billing.Invoice{}
	inv.ID = billing.NewID()
	inv.DocumentNumber = "INV-9999"
	inv.ClientName = client
	inv.IssueDate = time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)
	inv.DueDate = time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	inv.Items = []billing.LineItem{
		{ID: billing.NewID(), Description: "work", Quantity: decimal.NewFromInt(2), Rate: decimal.NewFromInt(500)},
	}
	inv.TaxPercentage = decimal.NewFromInt(5)
	inv.DiscountPercentage = decimal.Zero
	return inv
}

func TestNextDocumentNumber_SequencesPerCollection(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	n1, err := s.NextDocumentNumber(ctx, billing.CollectionInvoices)
	require.NoError(t, err)
	assert.Equal(t, "INV-0001", n1)

	inv := sampleInvoice("Acme")
	inv.DocumentNumber = n1
	require.NoError(t, s.CreateInvoice(ctx, inv))

	n2, err := s.NextDocumentNumber(ctx, billing.CollectionInvoices)
	require.NoError(t, err)
	assert.Equal(t, "INV-0002", n2)

	// Quotations number independently.
	q1, err := s.NextDocumentNumber(ctx, billing.CollectionQuotations)
	require.NoError(t, err)
	assert.Equal(t, "QUO-0001", q1)
}

func TestNextDocumentNumber_NeverReissuesAfterDelete(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	first := sampleInvoice("Acme")
	first.DocumentNumber = "INV-0001"
	require.NoError(t, s.CreateInvoice(ctx, first))

	second := sampleInvoice("Beta")
	second.DocumentNumber = "INV-0002"
	require.NoError(t, s.CreateInvoice(ctx, second))

	ok, err := s.DeleteInvoice(ctx, first.ID)
	require.NoError(t, err)
	require.True(t, ok)

	// INV-0002 still exists; handing out INV-0002 again would trip the
	// unique constraint on the next create.
	n, err := s.NextDocumentNumber(ctx, billing.CollectionInvoices)
	require.NoError(t, err)
	assert.Equal(t, "INV-0003", n)

	third := sampleInvoice("Gamma")
	third.DocumentNumber = n
	require.NoError(t, s.CreateInvoice(ctx, third))
}

func TestInvoice_RoundTripPreservesDecimals(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	inv := sampleInvoice("Acme")
	inv.Items[0].Rate = decimal.RequireFromString("33.333333")
	require.NoError(t, s.CreateInvoice(ctx, inv))

	got, err := s.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Items[0].Rate.Equal(inv.Items[0].Rate),
		"rate %s lost precision, got %s", inv.Items[0].Rate, got.Items[0].Rate)
	assert.Equal(t, inv.ClientName, got.ClientName)
	assert.True(t, got.DueDate.Equal(inv.DueDate))
}

func TestUpdateInvoice_ReplacesLineItemsWholesale(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	inv := sampleInvoice("Acme")
	require.NoError(t, s.CreateInvoice(ctx, inv))

	inv.Items = []billing.LineItem{
		{ID: billing.NewID(), Description: "revised", Quantity: decimal.NewFromInt(1), Rate: decimal.NewFromInt(750)},
	}
	ok, err := s.UpdateInvoice(ctx, inv)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := s.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "revised", got.Items[0].Description)
}

func TestDeleteInvoice_CascadesPayments(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	inv := sampleInvoice("Acme")
	require.NoError(t, s.CreateInvoice(ctx, inv))

	p := &billing.Payment{
		ID:        billing.NewID(),
		InvoiceID: inv.ID,
		Amount:    decimal.NewFromInt(100),
		Date:      time.Now().UTC(),
		Method:    billing.MethodCash,
	}
	require.NoError(t, s.CreatePayment(ctx, p))

	ok, err := s.DeleteInvoice(ctx, inv.ID)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := s.GetPayment(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, got, "orphaned payment survived the invoice delete")
}

func TestListPaymentsForInvoice_OrdersByDate(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	inv := sampleInvoice("Acme")
	require.NoError(t, s.CreateInvoice(ctx, inv))

	later := &billing.Payment{
		ID: billing.NewID(), InvoiceID: inv.ID,
		Amount: decimal.NewFromInt(300),
		Date:   time.Date(2025, time.May, 20, 0, 0, 0, 0, time.UTC),
		Method: billing.MethodCard,
	}
	earlier := &billing.Payment{
		ID: billing.NewID(), InvoiceID: inv.ID,
		Amount: decimal.NewFromInt(200),
		Date:   time.Date(2025, time.May, 5, 0, 0, 0, 0, time.UTC),
		Method: billing.MethodCash,
	}
	require.NoError(t, s.CreatePayment(ctx, later))
	require.NoError(t, s.CreatePayment(ctx, earlier))

	payments, err := s.ListPaymentsForInvoice(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, earlier.ID, payments[0].ID)
	assert.Equal(t, later.ID, payments[1].ID)
}

func TestGetInvoice_LoadsPaymentProjection(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	inv := sampleInvoice("Acme")
	require.NoError(t, s.CreateInvoice(ctx, inv))
	require.NoError(t, s.CreatePayment(ctx, &billing.Payment{
		ID: billing.NewID(), InvoiceID: inv.ID,
		Amount: decimal.NewFromInt(500),
		Date:   time.Now().UTC(),
		Method: billing.MethodCash,
	}))

	got, err := s.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, got.Payments, 1)

	summary, err := got.Summary()
	require.NoError(t, err)
	ledger := got.Ledger(summary.Total)
	assert.True(t, ledger.AmountPaid.Equal(decimal.NewFromInt(500)))
}

func TestReset_WipesEverything(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateInvoice(ctx, sampleInvoice("Acme")))
	require.NoError(t, s.CreateNote(ctx, &billing.NoteItem{
		ID: billing.NewID(), ParentID: "x", ParentKind: billing.ParentProject, Body: "b", CreatedAt: time.Now().UTC(),
	}))

	require.NoError(t, s.Reset(ctx))

	invoices, err := s.ListInvoices(ctx)
	require.NoError(t, err)
	assert.Empty(t, invoices)
	notes, err := s.ListNotes(ctx)
	require.NoError(t, err)
	assert.Empty(t, notes)
}
