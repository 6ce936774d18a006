/*
Package sqlite provides the SQLite-backed system of record.

PURPOSE:
  Persistence for the thin server that mirrors the client-resident
  engine: financial documents, their line items, payments, notes, and
  attachments. In production the same patterns apply to PostgreSQL -
  only minor SQL dialect differences.

KEY TABLES:
  invoices / quotations: Financial documents (stored fields only -
                         summary, ledger, and status are recomputed
                         from items and payments on every read)
  line_items:            Owned by exactly one document, positional
  payments:              Owned by exactly one invoice; append/delete
                         only, no UPDATE statement exists for them
  notes / attachments:   Ancillary records on a parent

DERIVED STATE:
  No amount_paid, remaining_balance, or status column exists anywhere.
  The server recomputes them with the billing package, which keeps the
  mirror consistent with the client by construction.

WAL MODE:
  SQLite is opened with WAL for better concurrency: readers don't
  block, single writer at a time, better crash recovery.

USAGE:
  store, err := sqlite.New("./data/billing.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool with versioned migrations.
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/billing-engine/billing"
)

// Store implements persistence for all collections using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS invoices (
		id TEXT PRIMARY KEY,
		document_number TEXT NOT NULL UNIQUE,
		client_name TEXT NOT NULL DEFAULT '',
		issue_date TEXT NOT NULL,
		due_date TEXT NOT NULL,
		tax_percentage TEXT NOT NULL,
		discount_percentage TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS quotations (
		id TEXT PRIMARY KEY,
		document_number TEXT NOT NULL UNIQUE,
		client_name TEXT NOT NULL DEFAULT '',
		issue_date TEXT NOT NULL,
		due_date TEXT NOT NULL,
		tax_percentage TEXT NOT NULL,
		discount_percentage TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'Pending',
		created_at TEXT NOT NULL
	);

	-- Line items are owned by exactly one document; position preserves
	-- the order they were entered in.
	CREATE TABLE IF NOT EXISTS line_items (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		description TEXT NOT NULL,
		quantity TEXT NOT NULL,
		rate TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_line_items_document
		ON line_items(document_id, position);

	-- Payments are append/delete only. Corrections are delete + create.
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		invoice_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		paid_on TEXT NOT NULL,
		method TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_payments_invoice
		ON payments(invoice_id, paid_on);

	CREATE TABLE IF NOT EXISTS notes (
		id TEXT PRIMARY KEY,
		parent_id TEXT NOT NULL,
		parent_kind TEXT NOT NULL,
		body TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_notes_parent
		ON notes(parent_id);

	CREATE TABLE IF NOT EXISTS attachments (
		id TEXT PRIMARY KEY,
		parent_id TEXT NOT NULL,
		parent_kind TEXT NOT NULL,
		file_name TEXT NOT NULL,
		url TEXT NOT NULL DEFAULT '',
		size_bytes INTEGER NOT NULL DEFAULT 0,
		uploaded_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_attachments_parent
		ON attachments(parent_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// DOCUMENT NUMBERS
// =============================================================================

// NextDocumentNumber assigns the next sequential number for a document
// table, e.g. INV-0007. The server is authoritative for numbering.
func (s *Store) NextDocumentNumber(ctx context.Context, col billing.Collection) (string, error) {
	var table, prefix string
	switch col {
	case billing.CollectionInvoices:
		table, prefix = "invoices", "INV"
	case billing.CollectionQuotations:
		table, prefix = "quotations", "QUO"
	default:
		return "", fmt.Errorf("collection %q has no document numbers", col)
	}

	// Derived from the highest existing suffix, not the row count, so a
	// delete never causes a number to be issued twice.
	query := fmt.Sprintf(
		"SELECT COALESCE(MAX(CAST(substr(document_number, %d) AS INTEGER)), 0) FROM %s",
		len(prefix)+2, table)
	var highest int
	if err := s.db.QueryRowContext(ctx, query).Scan(&highest); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%04d", prefix, highest+1), nil
}

// =============================================================================
// INVOICES
// =============================================================================

func (s *Store) CreateInvoice(ctx context.Context, inv *billing.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO invoices (id, document_number, client_name, issue_date, due_date,
			tax_percentage, discount_percentage, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.DocumentNumber, inv.ClientName,
		inv.IssueDate.UTC().Format(time.RFC3339), inv.DueDate.UTC().Format(time.RFC3339),
		inv.TaxPercentage.String(), inv.DiscountPercentage.String(),
		inv.Notes, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return err
	}
	if err := insertItems(ctx, tx, inv.ID, inv.Items); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) GetInvoice(ctx context.Context, id string) (*billing.Invoice, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, document_number, client_name, issue_date, due_date,
			tax_percentage, discount_percentage, notes
		FROM invoices WHERE id = ?`, id)

	inv := &billing.Invoice{}
	err := scanDocumentWith(row.Scan, &inv.FinancialDocument)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if inv.Items, err = s.loadItems(ctx, inv.ID); err != nil {
		return nil, err
	}
	if inv.Payments, err = s.ListPaymentsForInvoice(ctx, inv.ID); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *Store) ListInvoices(ctx context.Context) ([]*billing.Invoice, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_number, client_name, issue_date, due_date,
			tax_percentage, discount_percentage, notes
		FROM invoices ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*billing.Invoice
	for rows.Next() {
		inv := &billing.Invoice{}
		if err := scanDocumentWith(rows.Scan, &inv.FinancialDocument); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, inv := range out {
		if inv.Items, err = s.loadItems(ctx, inv.ID); err != nil {
			return nil, err
		}
		if inv.Payments, err = s.ListPaymentsForInvoice(ctx, inv.ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) UpdateInvoice(ctx context.Context, inv *billing.Invoice) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE invoices SET client_name = ?, issue_date = ?, due_date = ?,
			tax_percentage = ?, discount_percentage = ?, notes = ?
		WHERE id = ?`,
		inv.ClientName,
		inv.IssueDate.UTC().Format(time.RFC3339), inv.DueDate.UTC().Format(time.RFC3339),
		inv.TaxPercentage.String(), inv.DiscountPercentage.String(),
		inv.Notes, inv.ID)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return false, nil
	}

	// Replace-whole-entity: line items are rewritten, not patched.
	if _, err := tx.ExecContext(ctx, "DELETE FROM line_items WHERE document_id = ?", inv.ID); err != nil {
		return false, err
	}
	if err := insertItems(ctx, tx, inv.ID, inv.Items); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

func (s *Store) DeleteInvoice(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM invoices WHERE id = ?", id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return false, nil
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM line_items WHERE document_id = ?", id); err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM payments WHERE invoice_id = ?", id); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

// =============================================================================
// QUOTATIONS
// =============================================================================

func (s *Store) CreateQuotation(ctx context.Context, q *billing.Quotation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO quotations (id, document_number, client_name, issue_date, due_date,
			tax_percentage, discount_percentage, notes, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.DocumentNumber, q.ClientName,
		q.IssueDate.UTC().Format(time.RFC3339), q.DueDate.UTC().Format(time.RFC3339),
		q.TaxPercentage.String(), q.DiscountPercentage.String(),
		q.Notes, string(q.Status), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return err
	}
	if err := insertItems(ctx, tx, q.ID, q.Items); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) GetQuotation(ctx context.Context, id string) (*billing.Quotation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, document_number, client_name, issue_date, due_date,
			tax_percentage, discount_percentage, notes, status
		FROM quotations WHERE id = ?`, id)

	q := &billing.Quotation{}
	var status string
	err := scanDocumentWith(row.Scan, &q.FinancialDocument, &status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	q.Status = billing.QuotationStatus(status)

	if q.Items, err = s.loadItems(ctx, q.ID); err != nil {
		return nil, err
	}
	return q, nil
}

func (s *Store) ListQuotations(ctx context.Context) ([]*billing.Quotation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_number, client_name, issue_date, due_date,
			tax_percentage, discount_percentage, notes, status
		FROM quotations ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*billing.Quotation
	for rows.Next() {
		q := &billing.Quotation{}
		var status string
		if err := scanDocumentWith(rows.Scan, &q.FinancialDocument, &status); err != nil {
			return nil, err
		}
		q.Status = billing.QuotationStatus(status)
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, q := range out {
		if q.Items, err = s.loadItems(ctx, q.ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) UpdateQuotation(ctx context.Context, q *billing.Quotation) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE quotations SET client_name = ?, issue_date = ?, due_date = ?,
			tax_percentage = ?, discount_percentage = ?, notes = ?, status = ?
		WHERE id = ?`,
		q.ClientName,
		q.IssueDate.UTC().Format(time.RFC3339), q.DueDate.UTC().Format(time.RFC3339),
		q.TaxPercentage.String(), q.DiscountPercentage.String(),
		q.Notes, string(q.Status), q.ID)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return false, nil
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM line_items WHERE document_id = ?", q.ID); err != nil {
		return false, err
	}
	if err := insertItems(ctx, tx, q.ID, q.Items); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

func (s *Store) DeleteQuotation(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM quotations WHERE id = ?", id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return false, nil
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM line_items WHERE document_id = ?", id); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

// =============================================================================
// PAYMENTS - no UPDATE method exists, by design of the data model
// =============================================================================

func (s *Store) CreatePayment(ctx context.Context, p *billing.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payments (id, invoice_id, amount, paid_on, method, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.InvoiceID, p.Amount.String(),
		p.Date.UTC().Format(time.RFC3339), string(p.Method), p.Note,
		time.Now().UTC().Format(time.RFC3339))
	return err
}

func (s *Store) GetPayment(ctx context.Context, id string) (*billing.Payment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, invoice_id, amount, paid_on, method, note
		FROM payments WHERE id = ?`, id)
	p, err := scanPayment(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func (s *Store) ListPayments(ctx context.Context) ([]*billing.Payment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, invoice_id, amount, paid_on, method, note
		FROM payments ORDER BY paid_on, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*billing.Payment
	for rows.Next() {
		p, err := scanPayment(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) ListPaymentsForInvoice(ctx context.Context, invoiceID string) ([]billing.Payment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, invoice_id, amount, paid_on, method, note
		FROM payments WHERE invoice_id = ? ORDER BY paid_on, id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []billing.Payment
	for rows.Next() {
		p, err := scanPayment(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *Store) DeletePayment(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM payments WHERE id = ?", id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// =============================================================================
// NOTES
// =============================================================================

func (s *Store) CreateNote(ctx context.Context, n *billing.NoteItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notes (id, parent_id, parent_kind, body, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		n.ID, n.ParentID, string(n.ParentKind), n.Body,
		n.CreatedAt.UTC().Format(time.RFC3339))
	return err
}

func (s *Store) GetNote(ctx context.Context, id string) (*billing.NoteItem, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, parent_id, parent_kind, body, created_at
		FROM notes WHERE id = ?`, id)
	n, err := scanNote(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return n, err
}

func (s *Store) ListNotes(ctx context.Context) ([]*billing.NoteItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, parent_id, parent_kind, body, created_at
		FROM notes ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*billing.NoteItem
	for rows.Next() {
		n, err := scanNote(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) UpdateNote(ctx context.Context, n *billing.NoteItem) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE notes SET body = ? WHERE id = ?", n.Body, n.ID)
	if err != nil {
		return false, err
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

func (s *Store) DeleteNote(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM notes WHERE id = ?", id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// =============================================================================
// ATTACHMENTS
// =============================================================================

func (s *Store) CreateAttachment(ctx context.Context, a *billing.AttachmentFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attachments (id, parent_id, parent_kind, file_name, url, size_bytes, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.ParentID, string(a.ParentKind), a.FileName, a.URL, a.SizeBytes,
		a.UploadedAt.UTC().Format(time.RFC3339))
	return err
}

func (s *Store) GetAttachment(ctx context.Context, id string) (*billing.AttachmentFile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, parent_id, parent_kind, file_name, url, size_bytes, uploaded_at
		FROM attachments WHERE id = ?`, id)
	a, err := scanAttachment(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

func (s *Store) ListAttachments(ctx context.Context) ([]*billing.AttachmentFile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, parent_id, parent_kind, file_name, url, size_bytes, uploaded_at
		FROM attachments ORDER BY uploaded_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*billing.AttachmentFile
	for rows.Next() {
		a, err := scanAttachment(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) DeleteAttachment(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM attachments WHERE id = ?", id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// =============================================================================
// RESET - dev/scenario support
// =============================================================================

// Reset wipes all tables. Used by the scenario loader.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"invoices", "quotations", "line_items", "payments", "notes", "attachments"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// SCAN HELPERS
// =============================================================================

type scanFunc func(dest ...any) error

func scanDocumentWith(scan scanFunc, doc *billing.FinancialDocument, extra ...any) error {
	var issue, due, taxPct, discPct string
	dest := []any{&doc.ID, &doc.DocumentNumber, &doc.ClientName, &issue, &due, &taxPct, &discPct, &doc.Notes}
	dest = append(dest, extra...)
	if err := scan(dest...); err != nil {
		return err
	}

	var err error
	if doc.IssueDate, err = time.Parse(time.RFC3339, issue); err != nil {
		return err
	}
	if doc.DueDate, err = time.Parse(time.RFC3339, due); err != nil {
		return err
	}
	if doc.TaxPercentage, err = decimal.NewFromString(taxPct); err != nil {
		return err
	}
	if doc.DiscountPercentage, err = decimal.NewFromString(discPct); err != nil {
		return err
	}
	return nil
}

func scanPayment(scan scanFunc) (*billing.Payment, error) {
	p := &billing.Payment{}
	var amount, paidOn, method string
	if err := scan(&p.ID, &p.InvoiceID, &amount, &paidOn, &method, &p.Note); err != nil {
		return nil, err
	}
	var err error
	if p.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, err
	}
	if p.Date, err = time.Parse(time.RFC3339, paidOn); err != nil {
		return nil, err
	}
	p.Method = billing.PaymentMethod(method)
	return p, nil
}

func scanNote(scan scanFunc) (*billing.NoteItem, error) {
	n := &billing.NoteItem{}
	var kind, created string
	if err := scan(&n.ID, &n.ParentID, &kind, &n.Body, &created); err != nil {
		return nil, err
	}
	var err error
	if n.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
		return nil, err
	}
	n.ParentKind = billing.ParentKind(kind)
	return n, nil
}

func scanAttachment(scan scanFunc) (*billing.AttachmentFile, error) {
	a := &billing.AttachmentFile{}
	var kind, uploaded string
	if err := scan(&a.ID, &a.ParentID, &kind, &a.FileName, &a.URL, &a.SizeBytes, &uploaded); err != nil {
		return nil, err
	}
	var err error
	if a.UploadedAt, err = time.Parse(time.RFC3339, uploaded); err != nil {
		return nil, err
	}
	a.ParentKind = billing.ParentKind(kind)
	return a, nil
}

func insertItems(ctx context.Context, tx *sql.Tx, documentID string, items []billing.LineItem) error {
	for i, item := range items {
		id := item.ID
		if id == "" {
			id = billing.NewID()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO line_items (id, document_id, position, description, quantity, rate)
			VALUES (?, ?, ?, ?, ?, ?)`,
			id, documentID, i, item.Description, item.Quantity.String(), item.Rate.String())
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) loadItems(ctx context.Context, documentID string) ([]billing.LineItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, description, quantity, rate
		FROM line_items WHERE document_id = ? ORDER BY position`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []billing.LineItem
	for rows.Next() {
		var item billing.LineItem
		var qty, rate string
		if err := rows.Scan(&item.ID, &item.Description, &qty, &rate); err != nil {
			return nil, err
		}
		if item.Quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, err
		}
		if item.Rate, err = decimal.NewFromString(rate); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
