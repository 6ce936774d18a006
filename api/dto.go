/*
dto.go - Response shapes for the mirror API

PURPOSE:
  The server returns entities together with the derived values the
  client merges back after a mutation (document number, summary,
  ledger, status). Derived values are computed with the same billing
  package the client uses - the mirror cannot drift from the engine.

ENVELOPE:
  Every response is wrapped in {status, data, error, fields}. A
  status:false payload is a remote rejection on the client side, with
  the error message and per-field errors surfaced verbatim.
*/
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/warp/billing-engine/billing"
)

// =============================================================================
// ENVELOPE
// =============================================================================

type envelope struct {
	Status bool              `json:"status"`
	Data   any               `json:"data,omitempty"`
	Error  string            `json:"error,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeData(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(envelope{Status: true, Data: data})
}

func writeError(w http.ResponseWriter, code int, msg string, fields map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(envelope{Status: false, Error: msg, Fields: fields})
}

// =============================================================================
// DOCUMENT RESPONSES
// =============================================================================

// InvoiceDTO is an invoice with its derived financial picture attached.
type InvoiceDTO struct {
	billing.Invoice
	Summary billing.FinancialSummary `json:"summary"`
	Ledger  billing.LedgerState      `json:"ledger"`
	Status  billing.InvoiceStatus    `json:"status"`
}

func invoiceDTO(inv *billing.Invoice, now time.Time) (InvoiceDTO, error) {
	summary, err := inv.Summary()
	if err != nil {
		return InvoiceDTO{}, err
	}
	ledger := inv.Ledger(summary.Total)
	return InvoiceDTO{
		Invoice: *inv,
		Summary: summary,
		Ledger:  ledger,
		Status:  billing.ResolveInvoiceStatus(ledger, inv.DueDate, now),
	}, nil
}

// QuotationDTO is a quotation with its summary attached. Status is the
// stored explicit state, never derived.
type QuotationDTO struct {
	billing.Quotation
	Summary billing.FinancialSummary `json:"summary"`
}

func quotationDTO(q *billing.Quotation) (QuotationDTO, error) {
	summary, err := q.Summary()
	if err != nil {
		return QuotationDTO{}, err
	}
	return QuotationDTO{Quotation: *q, Summary: summary}, nil
}

// PaymentDTO is a payment with the parent invoice's post-payment ledger
// attached, so the client can display the new balance without a refetch.
type PaymentDTO struct {
	billing.Payment
	Ledger billing.LedgerState `json:"ledger"`
}
