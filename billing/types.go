/*
Package billing provides the core financial computation engine.

PURPOSE:
  This package contains the pure domain types and algorithms that turn a
  list of line items and a list of payments into a single consistent
  financial picture: subtotal, tax, discount, total, amount paid,
  remaining balance, and a derived status.

KEY CONCEPTS IN THIS FILE (types.go):
  - LineItem: A quantity x rate charge entry on a financial document
  - Payment: An immutable record of money received against an invoice
  - Invoice / Quotation: The two financial document kinds
  - Entity: The common shape every record shares so the mutation
    controller and reconciliation store can handle them generically

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Derived state: amount paid, balance, and status are NEVER stored;
     they are recomputed from current data at read time
  3. Immutability: Payments are never updated in place - a correction
     is a delete followed by a new create
  4. Replace-whole-entity: Entities are cloned, never patched in place,
     so snapshot/restore stays correct

SEE ALSO:
  - summary.go: Subtotal/tax/discount computation
  - ledger.go: Amount-paid and remaining-balance computation
  - status.go: Status derivation
  - errors.go: Failure taxonomy
*/
package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// COLLECTIONS AND ENTITY CONTRACT
// =============================================================================

// Collection identifies which record set an entity belongs to. Collections
// are also the URL segments of the remote system of record.
type Collection string

const (
	CollectionInvoices    Collection = "invoices"
	CollectionQuotations  Collection = "quotations"
	CollectionPayments    Collection = "payments"
	CollectionNotes       Collection = "notes"
	CollectionAttachments Collection = "attachments"
)

// ServerFields carries the authoritative values a remote create/update
// returns (server-assigned id, document number, storage URL, ...).
type ServerFields map[string]any

// String returns the field as a string if present and of string type.
func (f ServerFields) String(key string) (string, bool) {
	v, ok := f[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Time parses the field as an RFC3339 timestamp.
func (f ServerFields) Time(key string) (time.Time, bool) {
	s, ok := f.String(key)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Entity is implemented by every record the reconciliation store holds.
//
// Clone must return a deep copy: snapshots and optimistic patches rely on
// clones never sharing slices or maps with the original.
//
// MergeServer returns a new entity with server-assigned fields folded in,
// leaving the receiver untouched.
type Entity interface {
	EntityID() string
	EntityCollection() Collection
	Clone() Entity
	MergeServer(fields ServerFields) Entity
}

// NewID returns a fresh entity id.
func NewID() string {
	return uuid.NewString()
}

// =============================================================================
// LINE ITEMS
// =============================================================================

// LineItem is a single quantity x rate charge on a financial document.
// It is owned exclusively by its parent document and is immutable once
// included in a computation.
type LineItem struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Rate        decimal.Decimal `json:"rate"`
}

// Amount is the derived line total, quantity * rate.
func (li LineItem) Amount() decimal.Decimal {
	return li.Quantity.Mul(li.Rate)
}

func cloneItems(items []LineItem) []LineItem {
	if items == nil {
		return nil
	}
	out := make([]LineItem, len(items))
	copy(out, items)
	return out
}

// =============================================================================
// PAYMENTS
// =============================================================================

type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodCard         PaymentMethod = "card"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodCheque       PaymentMethod = "cheque"
	MethodOther        PaymentMethod = "other"
)

// Payment records money received against one invoice. Payments are
// created and deleted, never updated - a correction is delete + create.
type Payment struct {
	ID        string          `json:"id"`
	InvoiceID string          `json:"invoice_id"`
	Amount    decimal.Decimal `json:"amount"`
	Date      time.Time       `json:"date"`
	Method    PaymentMethod   `json:"method"`
	Note      string          `json:"note,omitempty"`
}

func (p *Payment) EntityID() string             { return p.ID }
func (p *Payment) EntityCollection() Collection { return CollectionPayments }

func (p *Payment) Clone() Entity {
	cp := *p
	return &cp
}

func (p *Payment) MergeServer(fields ServerFields) Entity {
	out := p.Clone().(*Payment)
	if id, ok := fields.String("id"); ok {
		out.ID = id
	}
	return out
}

func clonePayments(payments []Payment) []Payment {
	if payments == nil {
		return nil
	}
	out := make([]Payment, len(payments))
	copy(out, payments)
	return out
}

// =============================================================================
// FINANCIAL DOCUMENTS
// =============================================================================

// FinancialDocument is the shape shared by invoices and quotations.
// Derived values (summary, ledger, status) are intentionally absent:
// they are recomputed from this data at every read.
type FinancialDocument struct {
	ID                 string          `json:"id"`
	DocumentNumber     string          `json:"document_number"`
	ClientName         string          `json:"client_name"`
	IssueDate          time.Time       `json:"issue_date"`
	DueDate            time.Time       `json:"due_date"`
	Items              []LineItem      `json:"items"`
	TaxPercentage      decimal.Decimal `json:"tax_percentage"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	Notes              string          `json:"notes,omitempty"`
}

// Summary computes the document's financial summary from its items.
func (d *FinancialDocument) Summary() (FinancialSummary, error) {
	return ComputeSummary(d.Items, d.TaxPercentage, d.DiscountPercentage)
}

// Invoice is a financial document that accepts payments. The Payments
// slice is a projection assembled at read time from the payments
// collection; it is never the source of truth.
type Invoice struct {
	FinancialDocument
	Payments []Payment `json:"payments,omitempty"`
}

func (in *Invoice) EntityID() string             { return in.ID }
func (in *Invoice) EntityCollection() Collection { return CollectionInvoices }

func (in *Invoice) Clone() Entity {
	cp := *in
	cp.Items = cloneItems(in.Items)
	cp.Payments = clonePayments(in.Payments)
	return &cp
}

func (in *Invoice) MergeServer(fields ServerFields) Entity {
	out := in.Clone().(*Invoice)
	if id, ok := fields.String("id"); ok {
		out.ID = id
	}
	if num, ok := fields.String("document_number"); ok {
		out.DocumentNumber = num
	}
	return out
}

// Ledger computes the invoice's payment ledger state against total.
func (in *Invoice) Ledger(total decimal.Decimal) LedgerState {
	return ApplyPayments(in.Payments, total)
}

// Status derives the invoice status at the given wall-clock time.
// The summary must already have passed boundary validation.
func (in *Invoice) Status(total decimal.Decimal, now time.Time) InvoiceStatus {
	return ResolveInvoiceStatus(in.Ledger(total), in.DueDate, now)
}

// Quotation is a financial document with an explicit, payment-free
// status lifecycle: Pending -> Accepted | Rejected, both terminal.
type Quotation struct {
	FinancialDocument
	Status QuotationStatus `json:"status"`
}

func (q *Quotation) EntityID() string             { return q.ID }
func (q *Quotation) EntityCollection() Collection { return CollectionQuotations }

func (q *Quotation) Clone() Entity {
	cp := *q
	cp.Items = cloneItems(q.Items)
	return &cp
}

func (q *Quotation) MergeServer(fields ServerFields) Entity {
	out := q.Clone().(*Quotation)
	if id, ok := fields.String("id"); ok {
		out.ID = id
	}
	if num, ok := fields.String("document_number"); ok {
		out.DocumentNumber = num
	}
	if s, ok := fields.String("status"); ok {
		out.Status = QuotationStatus(s)
	}
	return out
}

// =============================================================================
// NOTES AND ATTACHMENTS
// =============================================================================

// ParentKind identifies which record a note or attachment hangs off.
type ParentKind string

const (
	ParentAppointment ParentKind = "appointment"
	ParentProject     ParentKind = "project"
	ParentInvoice     ParentKind = "invoice"
)

// NoteItem is an append/delete-only annotation on a parent record.
// It carries no computation; it follows the same optimistic mutation
// protocol as the financial entities.
type NoteItem struct {
	ID         string     `json:"id"`
	ParentID   string     `json:"parent_id"`
	ParentKind ParentKind `json:"parent_kind"`
	Body       string     `json:"body"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (n *NoteItem) EntityID() string             { return n.ID }
func (n *NoteItem) EntityCollection() Collection { return CollectionNotes }

func (n *NoteItem) Clone() Entity {
	cp := *n
	return &cp
}

func (n *NoteItem) MergeServer(fields ServerFields) Entity {
	out := n.Clone().(*NoteItem)
	if id, ok := fields.String("id"); ok {
		out.ID = id
	}
	if t, ok := fields.Time("created_at"); ok {
		out.CreatedAt = t
	}
	return out
}

// AttachmentFile references an uploaded file on a parent record. The
// storage URL is server-assigned; the upload transport itself is an
// external collaborator.
type AttachmentFile struct {
	ID         string     `json:"id"`
	ParentID   string     `json:"parent_id"`
	ParentKind ParentKind `json:"parent_kind"`
	FileName   string     `json:"file_name"`
	URL        string     `json:"url,omitempty"`
	SizeBytes  int64      `json:"size_bytes"`
	UploadedAt time.Time  `json:"uploaded_at"`
}

func (a *AttachmentFile) EntityID() string             { return a.ID }
func (a *AttachmentFile) EntityCollection() Collection { return CollectionAttachments }

func (a *AttachmentFile) Clone() Entity {
	cp := *a
	return &cp
}

func (a *AttachmentFile) MergeServer(fields ServerFields) Entity {
	out := a.Clone().(*AttachmentFile)
	if id, ok := fields.String("id"); ok {
		out.ID = id
	}
	if u, ok := fields.String("url"); ok {
		out.URL = u
	}
	if t, ok := fields.Time("uploaded_at"); ok {
		out.UploadedAt = t
	}
	return out
}
