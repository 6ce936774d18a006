/*
handlers.go - HTTP handlers for the mirror system of record

PURPOSE:
  CRUD over the five collections the optimistic mutation protocol
  targets. The handlers validate at the boundary with the billing
  package (reject, never coerce), assign authoritative ids and document
  numbers, and return derived values computed from current data.

ENDPOINTS:
  GET    /api/{collection}        List
  POST   /api/{collection}        Create -> server-assigned fields
  GET    /api/{collection}/{id}   Fetch one
  PUT    /api/{collection}/{id}   Update (not payments, not attachments)
  DELETE /api/{collection}/{id}   Delete

ERROR HANDLING:
  - 400: boundary validation failure (with per-field messages)
  - 401: missing/invalid bearer credential
  - 404: unknown entity id
  - 405: update on an immutable collection
  - 409: illegal quotation status transition
  - 422: overpayment
  - 500: storage failure
  All error responses carry status:false so the client treats them as
  remote rejections and rolls back its optimistic patch.
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/warp/billing-engine/billing"
	"github.com/warp/billing-engine/store/sqlite"
)

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store *sqlite.Store
	Clock billing.Clock
	Log   zerolog.Logger
}

// NewHandler creates a handler backed by the given store.
func NewHandler(store *sqlite.Store, log zerolog.Logger) *Handler {
	return &Handler{Store: store, Clock: billing.SystemClock, Log: log}
}

// =============================================================================
// INVOICES
// =============================================================================

func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.Store.ListInvoices(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list invoices", nil)
		return
	}
	now := h.Clock.Now()
	dtos := make([]InvoiceDTO, 0, len(invoices))
	for _, inv := range invoices {
		dto, err := invoiceDTO(inv, now)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to compute summary", nil)
			return
		}
		dtos = append(dtos, dto)
	}
	writeData(w, http.StatusOK, dtos)
}

func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.Store.GetInvoice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load invoice", nil)
		return
	}
	if inv == nil {
		writeError(w, http.StatusNotFound, "invoice not found", nil)
		return
	}
	dto, err := invoiceDTO(inv, h.Clock.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to compute summary", nil)
		return
	}
	writeData(w, http.StatusOK, dto)
}

func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var inv billing.Invoice
	if err := json.NewDecoder(r.Body).Decode(&inv); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if !h.validDocument(w, &inv.FinancialDocument) {
		return
	}

	// Server is authoritative for identity and numbering; optimistic
	// placeholder values from the client are discarded here.
	inv.ID = billing.NewID()
	number, err := h.Store.NextDocumentNumber(r.Context(), billing.CollectionInvoices)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to assign document number", nil)
		return
	}
	inv.DocumentNumber = number
	inv.Payments = nil

	if err := h.Store.CreateInvoice(r.Context(), &inv); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create invoice", nil)
		return
	}
	dto, _ := invoiceDTO(&inv, h.Clock.Now())
	h.Log.Info().Str("invoice_id", inv.ID).Str("number", number).Msg("invoice created")
	writeData(w, http.StatusCreated, dto)
}

func (h *Handler) UpdateInvoice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var inv billing.Invoice
	if err := json.NewDecoder(r.Body).Decode(&inv); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if !h.validDocument(w, &inv.FinancialDocument) {
		return
	}
	inv.ID = id

	ok, err := h.Store.UpdateInvoice(r.Context(), &inv)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update invoice", nil)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "invoice not found", nil)
		return
	}

	updated, err := h.Store.GetInvoice(r.Context(), id)
	if err != nil || updated == nil {
		writeError(w, http.StatusInternalServerError, "failed to reload invoice", nil)
		return
	}
	dto, _ := invoiceDTO(updated, h.Clock.Now())
	writeData(w, http.StatusOK, dto)
}

func (h *Handler) DeleteInvoice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ok, err := h.Store.DeleteInvoice(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete invoice", nil)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "invoice not found", nil)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"id": id})
}

// validDocument runs boundary validation and writes the 400 itself.
func (h *Handler) validDocument(w http.ResponseWriter, doc *billing.FinancialDocument) bool {
	if _, err := doc.Summary(); err != nil {
		var verr *billing.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, "validation failed", map[string]string{verr.Field: verr.Message})
			return false
		}
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return false
	}
	return true
}

// =============================================================================
// QUOTATIONS
// =============================================================================

func (h *Handler) ListQuotations(w http.ResponseWriter, r *http.Request) {
	quotations, err := h.Store.ListQuotations(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list quotations", nil)
		return
	}
	dtos := make([]QuotationDTO, 0, len(quotations))
	for _, q := range quotations {
		dto, err := quotationDTO(q)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to compute summary", nil)
			return
		}
		dtos = append(dtos, dto)
	}
	writeData(w, http.StatusOK, dtos)
}

func (h *Handler) GetQuotation(w http.ResponseWriter, r *http.Request) {
	q, err := h.Store.GetQuotation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load quotation", nil)
		return
	}
	if q == nil {
		writeError(w, http.StatusNotFound, "quotation not found", nil)
		return
	}
	dto, _ := quotationDTO(q)
	writeData(w, http.StatusOK, dto)
}

func (h *Handler) CreateQuotation(w http.ResponseWriter, r *http.Request) {
	var q billing.Quotation
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if !h.validDocument(w, &q.FinancialDocument) {
		return
	}
	if q.Status == "" {
		q.Status = billing.QuotationPending
	}
	if !q.Status.Valid() {
		writeError(w, http.StatusBadRequest, "validation failed", map[string]string{"status": "unknown quotation status"})
		return
	}

	q.ID = billing.NewID()
	number, err := h.Store.NextDocumentNumber(r.Context(), billing.CollectionQuotations)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to assign document number", nil)
		return
	}
	q.DocumentNumber = number

	if err := h.Store.CreateQuotation(r.Context(), &q); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create quotation", nil)
		return
	}
	dto, _ := quotationDTO(&q)
	h.Log.Info().Str("quotation_id", q.ID).Str("number", number).Msg("quotation created")
	writeData(w, http.StatusCreated, dto)
}

func (h *Handler) UpdateQuotation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var q billing.Quotation
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if !h.validDocument(w, &q.FinancialDocument) {
		return
	}

	existing, err := h.Store.GetQuotation(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load quotation", nil)
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "quotation not found", nil)
		return
	}

	// Status is an explicit state machine: Pending -> Accepted|Rejected,
	// both terminal.
	if q.Status == "" {
		q.Status = existing.Status
	}
	if err := billing.TransitionQuotation(existing.Status, q.Status); err != nil {
		writeError(w, http.StatusConflict, err.Error(), map[string]string{"status": "illegal transition"})
		return
	}

	q.ID = id
	q.DocumentNumber = existing.DocumentNumber
	if _, err := h.Store.UpdateQuotation(r.Context(), &q); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update quotation", nil)
		return
	}
	dto, _ := quotationDTO(&q)
	writeData(w, http.StatusOK, dto)
}

func (h *Handler) DeleteQuotation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ok, err := h.Store.DeleteQuotation(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete quotation", nil)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "quotation not found", nil)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"id": id})
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.Store.ListPayments(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list payments", nil)
		return
	}
	writeData(w, http.StatusOK, payments)
}

func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	p, err := h.Store.GetPayment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load payment", nil)
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "payment not found", nil)
		return
	}
	writeData(w, http.StatusOK, p)
}

// CreatePayment validates the payment against the parent invoice's
// current ledger before persisting: overpayment beyond the epsilon is
// rejected at the boundary, never clamped.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var p billing.Payment
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if p.InvoiceID == "" {
		writeError(w, http.StatusBadRequest, "validation failed", map[string]string{"invoice_id": "required"})
		return
	}

	inv, err := h.Store.GetInvoice(r.Context(), p.InvoiceID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load invoice", nil)
		return
	}
	if inv == nil {
		writeError(w, http.StatusNotFound, "invoice not found", nil)
		return
	}

	summary, err := inv.Summary()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to compute summary", nil)
		return
	}
	ledger := inv.Ledger(summary.Total)
	if err := ledger.CheckPayment(p.Amount, billing.DefaultEpsilon); err != nil {
		var overErr *billing.OverpaymentError
		if errors.As(err, &overErr) {
			writeError(w, http.StatusUnprocessableEntity, overErr.Error(), map[string]string{
				"amount": fmt.Sprintf("exceeds remaining balance %s", overErr.Remaining),
			})
			return
		}
		var verr *billing.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, "validation failed", map[string]string{verr.Field: verr.Message})
			return
		}
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	p.ID = billing.NewID()
	if p.Date.IsZero() {
		p.Date = h.Clock.Now()
	}
	if p.Method == "" {
		p.Method = billing.MethodOther
	}
	if err := h.Store.CreatePayment(r.Context(), &p); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to record payment", nil)
		return
	}

	after := billing.ApplyPayments(append(inv.Payments, p), summary.Total)
	h.Log.Info().
		Str("payment_id", p.ID).
		Str("invoice_id", p.InvoiceID).
		Str("remaining", after.RemainingBalance.String()).
		Msg("payment recorded")
	writeData(w, http.StatusCreated, PaymentDTO{Payment: p, Ledger: after})
}

// RejectPaymentUpdate: payments are never updated in place; a
// correction is a delete followed by a new create.
func (h *Handler) RejectPaymentUpdate(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "payments cannot be updated; delete and re-create instead", nil)
}

func (h *Handler) DeletePayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ok, err := h.Store.DeletePayment(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete payment", nil)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "payment not found", nil)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"id": id})
}

// =============================================================================
// NOTES
// =============================================================================

func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.Store.ListNotes(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list notes", nil)
		return
	}
	writeData(w, http.StatusOK, notes)
}

func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var n billing.NoteItem
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if n.Body == "" {
		writeError(w, http.StatusBadRequest, "validation failed", map[string]string{"body": "required"})
		return
	}
	n.ID = billing.NewID()
	n.CreatedAt = h.Clock.Now()
	if err := h.Store.CreateNote(r.Context(), &n); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create note", nil)
		return
	}
	writeData(w, http.StatusCreated, n)
}

func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var n billing.NoteItem
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	n.ID = id
	ok, err := h.Store.UpdateNote(r.Context(), &n)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update note", nil)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "note not found", nil)
		return
	}
	updated, err := h.Store.GetNote(r.Context(), id)
	if err != nil || updated == nil {
		writeError(w, http.StatusInternalServerError, "failed to reload note", nil)
		return
	}
	writeData(w, http.StatusOK, updated)
}

func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ok, err := h.Store.DeleteNote(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete note", nil)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "note not found", nil)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"id": id})
}

// =============================================================================
// ATTACHMENTS
// =============================================================================

func (h *Handler) ListAttachments(w http.ResponseWriter, r *http.Request) {
	attachments, err := h.Store.ListAttachments(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list attachments", nil)
		return
	}
	writeData(w, http.StatusOK, attachments)
}

func (h *Handler) CreateAttachment(w http.ResponseWriter, r *http.Request) {
	var a billing.AttachmentFile
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if a.FileName == "" {
		writeError(w, http.StatusBadRequest, "validation failed", map[string]string{"file_name": "required"})
		return
	}
	a.ID = billing.NewID()
	a.UploadedAt = h.Clock.Now()
	// Upload transport is external; the mirror only records the
	// server-side location it would have been stored at.
	a.URL = fmt.Sprintf("/files/%s/%s", a.ID, a.FileName)
	if err := h.Store.CreateAttachment(r.Context(), &a); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create attachment", nil)
		return
	}
	writeData(w, http.StatusCreated, a)
}

// RejectAttachmentUpdate: attachments are append/delete only.
func (h *Handler) RejectAttachmentUpdate(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "attachments cannot be updated; delete and re-upload instead", nil)
}

func (h *Handler) DeleteAttachment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ok, err := h.Store.DeleteAttachment(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete attachment", nil)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "attachment not found", nil)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"id": id})
}
