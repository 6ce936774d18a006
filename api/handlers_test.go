/*
handlers_test.go - End-to-end tests for the mirror system of record

These run the real stack: sqlite store, chi router, HTTP client,
mutation controller. The controller's store plays the dashboard view;
the sqlite store plays the remote system of record. Assertions check
both sides after every mutation.
*/
package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/billing-engine/api"
	"github.com/warp/billing-engine/billing"
	"github.com/warp/billing-engine/billing/store"
	"github.com/warp/billing-engine/mutation"
	"github.com/warp/billing-engine/remote"
	"github.com/warp/billing-engine/store/sqlite"
)

const testToken = "test-token"

type fixture struct {
	srv        *httptest.Server
	controller *mutation.Controller
	now        time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := sqlite.New(filepath.Join(t.TempDir(), "mirror.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	now := time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)
	h := api.NewHandler(db, zerolog.Nop())
	h.Clock = billing.FixedClock{At: now}

	srv := httptest.NewServer(api.NewRouter(h, testToken))
	t.Cleanup(srv.Close)

	client := remote.NewClient(srv.URL, testToken)
	controller := mutation.New(store.NewMemory(), client, mutation.Config{Logger: zerolog.Nop()})
	return &fixture{srv: srv, controller: controller, now: now}
}

func dec(n float64) decimal.Decimal { return decimal.NewFromFloat(n) }

func draftInvoice(client string, due time.Time, items ...billing.LineItem) *billing.Invoice {
	inv := &billing.Invoice{}
	inv.ClientName = client
	inv.IssueDate = due.AddDate(0, -1, 0)
	inv.DueDate = due
	inv.Items = items
	inv.TaxPercentage = decimal.Zero
	inv.DiscountPercentage = decimal.Zero
	return inv
}

func lineItem(desc string, qty, rate float64) billing.LineItem {
	return billing.LineItem{ID: billing.NewID(), Description: desc, Quantity: dec(qty), Rate: dec(rate)}
}

// request issues a raw authorized call, bypassing the mutation stack.
func (f *fixture) request(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+testToken)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var env map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp, env
}

// =============================================================================
// FULL-STACK MUTATION FLOW
// =============================================================================

func TestEndToEnd_CreateInvoiceThroughController(t *testing.T) {
	f := newFixture(t)

	inv := draftInvoice("Acme Corp", f.now.AddDate(0, 1, 0),
		lineItem("design", 2, 500),
		lineItem("build", 1, 1000),
	)
	inv.TaxPercentage = dec(5)
	inv.DiscountPercentage = dec(10)

	res, err := f.controller.Do(context.Background(), mutation.Request{
		Kind:   mutation.KindCreate,
		Entity: inv,
	})
	require.NoError(t, err)

	created := res.Entity.(*billing.Invoice)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "INV-0001", created.DocumentNumber, "server assigns the document number")

	// The local store settled on the server id.
	_, ok := f.controller.Store().Get(billing.CollectionInvoices, created.ID)
	assert.True(t, ok)

	// The server computed the derived picture with the same engine.
	resp, env := f.request(t, http.MethodGet, "/api/invoices/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := env["data"].(map[string]any)
	summary := data["summary"].(map[string]any)
	assert.Equal(t, "1900", summary["total"])
	assert.Equal(t, billing.StatusUnpaid, billing.InvoiceStatus(data["status"].(string)))
}

func TestEndToEnd_OverpaymentRejectionRollsBackClient(t *testing.T) {
	f := newFixture(t)

	inv := draftInvoice("Beta LLC", f.now.AddDate(0, 1, 0), lineItem("work", 1, 1000))
	res, err := f.controller.Do(context.Background(), mutation.Request{Kind: mutation.KindCreate, Entity: inv})
	require.NoError(t, err)
	invoiceID := res.Entity.EntityID()

	require.NoError(t, f.controller.Refresh(context.Background(), billing.CollectionPayments))
	before := len(f.controller.Store().List(billing.CollectionPayments))

	// The mirror rejects with 422; the controller must roll the
	// optimistic payment back out of the local store.
	_, err = f.controller.Do(context.Background(), mutation.Request{
		Kind: mutation.KindCreate,
		Entity: &billing.Payment{
			InvoiceID: invoiceID,
			Amount:    dec(1500),
			Date:      f.now,
			Method:    billing.MethodCard,
		},
	})
	require.Error(t, err)

	var rerr *billing.RemoteError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, http.StatusUnprocessableEntity, rerr.StatusCode)
	assert.Contains(t, rerr.FieldErrors["amount"], "exceeds remaining balance")

	assert.Len(t, f.controller.Store().List(billing.CollectionPayments), before,
		"rejected payment must not survive locally")

	// And the server never recorded it.
	_, env := f.request(t, http.MethodGet, "/api/invoices/"+invoiceID, nil)
	ledger := env["data"].(map[string]any)["ledger"].(map[string]any)
	assert.Equal(t, "0", ledger["amount_paid"])
}

func TestEndToEnd_PaymentLifecycleUpdatesStatus(t *testing.T) {
	f := newFixture(t)

	inv := draftInvoice("Gamma Inc", f.now.AddDate(0, 1, 0), lineItem("retainer", 1, 2000))
	res, err := f.controller.Do(context.Background(), mutation.Request{Kind: mutation.KindCreate, Entity: inv})
	require.NoError(t, err)
	invoiceID := res.Entity.EntityID()

	payRes, err := f.controller.Do(context.Background(), mutation.Request{
		Kind: mutation.KindCreate,
		Entity: &billing.Payment{
			InvoiceID: invoiceID,
			Amount:    dec(800),
			Date:      f.now,
			Method:    billing.MethodBankTransfer,
		},
	})
	require.NoError(t, err)

	_, env := f.request(t, http.MethodGet, "/api/invoices/"+invoiceID, nil)
	data := env["data"].(map[string]any)
	assert.Equal(t, "Partially Paid", data["status"])
	assert.Equal(t, "1200", data["ledger"].(map[string]any)["remaining_balance"])

	// Deleting the payment recomputes the ledger from the remaining set.
	_, err = f.controller.Do(context.Background(), mutation.Request{
		Kind:       mutation.KindDelete,
		Collection: billing.CollectionPayments,
		ID:         payRes.Entity.EntityID(),
	})
	require.NoError(t, err)

	_, env = f.request(t, http.MethodGet, "/api/invoices/"+invoiceID, nil)
	data = env["data"].(map[string]any)
	assert.Equal(t, "Unpaid", data["status"])
	assert.Equal(t, "2000", data["ledger"].(map[string]any)["remaining_balance"])
}

func TestEndToEnd_QuotationTransitionConflict(t *testing.T) {
	f := newFixture(t)

	q := &billing.Quotation{Status: billing.QuotationPending}
	q.ClientName = "Delta Co"
	q.IssueDate = f.now
	q.DueDate = f.now.AddDate(0, 0, 14)
	q.Items = []billing.LineItem{lineItem("proposal", 1, 750)}

	res, err := f.controller.Do(context.Background(), mutation.Request{Kind: mutation.KindCreate, Entity: q})
	require.NoError(t, err)
	created := res.Entity.(*billing.Quotation)
	assert.Equal(t, "QUO-0001", created.DocumentNumber)

	// Accept it.
	accepted := created.Clone().(*billing.Quotation)
	accepted.Status = billing.QuotationAccepted
	_, err = f.controller.Do(context.Background(), mutation.Request{
		Kind:   mutation.KindUpdate,
		ID:     created.ID,
		Entity: accepted,
	})
	require.NoError(t, err)

	// A second transition hits the terminal guard; the optimistic patch
	// rolls back and the local copy still reads Accepted.
	rejected := created.Clone().(*billing.Quotation)
	rejected.Status = billing.QuotationRejected
	_, err = f.controller.Do(context.Background(), mutation.Request{
		Kind:   mutation.KindUpdate,
		ID:     created.ID,
		Entity: rejected,
	})
	require.Error(t, err)
	var rerr *billing.RemoteError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, http.StatusConflict, rerr.StatusCode)

	local, ok := f.controller.Store().Get(billing.CollectionQuotations, created.ID)
	require.True(t, ok)
	assert.Equal(t, billing.QuotationAccepted, local.(*billing.Quotation).Status)
}

func TestEndToEnd_RefreshPullsServerState(t *testing.T) {
	f := newFixture(t)

	// Seed directly against the API, outside the controller.
	resp, _ := f.request(t, http.MethodPost, "/api/scenarios/seed", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, f.controller.Refresh(context.Background(), billing.CollectionInvoices))
	invoices := f.controller.Store().List(billing.CollectionInvoices)
	require.Len(t, invoices, 3)
	for _, e := range invoices {
		assert.NotEmpty(t, e.(*billing.Invoice).DocumentNumber)
	}
}

// =============================================================================
// BOUNDARY BEHAVIOR (raw HTTP)
// =============================================================================

func TestHandlers_ValidationRejectsNeverCoerces(t *testing.T) {
	f := newFixture(t)

	bad := draftInvoice("Bad Co", f.now, billing.LineItem{ID: "li", Quantity: decimal.Zero, Rate: dec(100)})
	resp, env := f.request(t, http.MethodPost, "/api/invoices", bad)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, false, env["status"])
	assert.NotEmpty(t, env["fields"], "400 must carry per-field messages")
}

func TestHandlers_PaymentUpdateIsMethodNotAllowed(t *testing.T) {
	f := newFixture(t)
	resp, _ := f.request(t, http.MethodPut, "/api/payments/p1", map[string]any{"amount": "10"})
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHandlers_MissingBearerIsUnauthorized(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.srv.URL + "/api/invoices")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandlers_AttachmentGetsServerURL(t *testing.T) {
	f := newFixture(t)

	a := &billing.AttachmentFile{
		ParentID:   "proj-1",
		ParentKind: billing.ParentProject,
		FileName:   "contract.pdf",
		SizeBytes:  2048,
	}
	res, err := f.controller.Do(context.Background(), mutation.Request{Kind: mutation.KindCreate, Entity: a})
	require.NoError(t, err)

	created := res.Entity.(*billing.AttachmentFile)
	assert.NotEmpty(t, created.URL, "storage URL is server-assigned")
	assert.Contains(t, created.URL, "contract.pdf")
}
