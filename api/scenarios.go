/*
scenarios.go - Demo data seeding

PURPOSE:
  Loads a deterministic set of sample documents so the dashboard has
  something to show in local development. Covers each derived status
  at least once: an unpaid invoice, a partially paid one, a fully paid
  one, an overdue one, and quotations in each explicit state.
*/
package api

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/warp/billing-engine/billing"
)

// SeedScenario wipes the database and loads the demo data set.
func (h *Handler) SeedScenario(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reset database", nil)
		return
	}
	if err := h.seed(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to seed scenario", nil)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"scenario": "demo"})
}

// ResetDatabase wipes all collections.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reset database", nil)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"reset": "ok"})
}

func (h *Handler) seed(ctx context.Context) error {
	now := h.Clock.Now()
	dec := decimal.NewFromInt

	invoices := []*billing.Invoice{
		{
			FinancialDocument: billing.FinancialDocument{
				ID:             billing.NewID(),
				DocumentNumber: "INV-0001",
				ClientName:     "Acme Landscaping",
				IssueDate:      now.AddDate(0, 0, -30),
				DueDate:        now.AddDate(0, 0, 14),
				Items: []billing.LineItem{
					{ID: billing.NewID(), Description: "Garden redesign", Quantity: dec(2), Rate: dec(500)},
					{ID: billing.NewID(), Description: "Irrigation install", Quantity: dec(1), Rate: dec(1000)},
				},
				TaxPercentage:      dec(5),
				DiscountPercentage: dec(10),
			},
		},
		{
			FinancialDocument: billing.FinancialDocument{
				ID:             billing.NewID(),
				DocumentNumber: "INV-0002",
				ClientName:     "Harbor Dental",
				IssueDate:      now.AddDate(0, 0, -45),
				DueDate:        now.AddDate(0, 0, -15),
				Items: []billing.LineItem{
					{ID: billing.NewID(), Description: "Reception remodel", Quantity: dec(1), Rate: dec(5000)},
				},
				TaxPercentage:      dec(0),
				DiscountPercentage: dec(0),
			},
		},
		{
			FinancialDocument: billing.FinancialDocument{
				ID:             billing.NewID(),
				DocumentNumber: "INV-0003",
				ClientName:     "Willow Cafe",
				IssueDate:      now.AddDate(0, 0, -10),
				DueDate:        now.AddDate(0, 0, 20),
				Items: []billing.LineItem{
					{ID: billing.NewID(), Description: "Patio furniture", Quantity: dec(4), Rate: dec(250)},
				},
				TaxPercentage:      dec(8),
				DiscountPercentage: dec(0),
			},
		},
	}
	for _, inv := range invoices {
		if err := h.Store.CreateInvoice(ctx, inv); err != nil {
			return err
		}
	}

	// INV-0002 is overdue with a partial payment; INV-0003 fully paid.
	payments := []*billing.Payment{
		{
			ID:        billing.NewID(),
			InvoiceID: invoices[1].ID,
			Amount:    dec(2000),
			Date:      now.AddDate(0, 0, -20),
			Method:    billing.MethodBankTransfer,
			Note:      "first installment",
		},
		{
			ID:        billing.NewID(),
			InvoiceID: invoices[2].ID,
			Amount:    decimal.NewFromInt(1080),
			Date:      now.AddDate(0, 0, -2),
			Method:    billing.MethodCard,
		},
	}
	for _, p := range payments {
		if err := h.Store.CreatePayment(ctx, p); err != nil {
			return err
		}
	}

	quotations := []*billing.Quotation{
		{
			FinancialDocument: billing.FinancialDocument{
				ID:             billing.NewID(),
				DocumentNumber: "QUO-0001",
				ClientName:     "Acme Landscaping",
				IssueDate:      now.AddDate(0, 0, -5),
				DueDate:        now.AddDate(0, 0, 25),
				Items: []billing.LineItem{
					{ID: billing.NewID(), Description: "Seasonal maintenance", Quantity: dec(12), Rate: dec(150)},
				},
				TaxPercentage:      dec(5),
				DiscountPercentage: dec(0),
			},
			Status: billing.QuotationPending,
		},
		{
			FinancialDocument: billing.FinancialDocument{
				ID:             billing.NewID(),
				DocumentNumber: "QUO-0002",
				ClientName:     "Harbor Dental",
				IssueDate:      now.AddDate(0, 0, -40),
				DueDate:        now.AddDate(0, 0, -10),
				Items: []billing.LineItem{
					{ID: billing.NewID(), Description: "Waiting room artwork", Quantity: dec(3), Rate: dec(400)},
				},
				TaxPercentage:      dec(0),
				DiscountPercentage: dec(5),
			},
			Status: billing.QuotationAccepted,
		},
	}
	for _, q := range quotations {
		if err := h.Store.CreateQuotation(ctx, q); err != nil {
			return err
		}
	}

	notes := []*billing.NoteItem{
		{
			ID:         billing.NewID(),
			ParentID:   invoices[1].ID,
			ParentKind: billing.ParentInvoice,
			Body:       "Client asked for a payment plan; second installment due next month.",
			CreatedAt:  now.AddDate(0, 0, -19),
		},
	}
	for _, n := range notes {
		if err := h.Store.CreateNote(ctx, n); err != nil {
			return err
		}
	}

	attachments := []*billing.AttachmentFile{
		{
			ID:         billing.NewID(),
			ParentID:   invoices[0].ID,
			ParentKind: billing.ParentInvoice,
			FileName:   "site-survey.pdf",
			URL:        "/files/demo/site-survey.pdf",
			SizeBytes:  482133,
			UploadedAt: now.AddDate(0, 0, -29),
		},
	}
	for _, a := range attachments {
		if err := h.Store.CreateAttachment(ctx, a); err != nil {
			return err
		}
	}

	return nil
}
