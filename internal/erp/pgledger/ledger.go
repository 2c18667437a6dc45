// Package pgledger implements erp.Ledger against the PostgreSQL schema
// that stands in for the host platform's transactional tables.
package pgledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ericsoloffconsulting/service-inv-write-off/internal/erp"
)

// Ledger is a PostgreSQL backed erp.Ledger.
type Ledger struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New constructs a Ledger.
func New(pool *pgxpool.Pool, logger *slog.Logger) *Ledger {
	return &Ledger{pool: pool, logger: logger}
}

// Load reads a document with its sublists.
func (l *Ledger) Load(ctx context.Context, docType erp.DocType, id int64) (*erp.Document, error) {
	switch docType {
	case erp.DocSalesOrder:
		return l.loadSalesOrder(ctx, id)
	case erp.DocInvoice, erp.DocCreditMemo:
		return l.loadInvoice(ctx, id)
	case erp.DocJournalEntry:
		return l.loadJournalEntry(ctx, id)
	case erp.DocCustomerPayment:
		return l.loadPayment(ctx, id)
	default:
		return nil, fmt.Errorf("pgledger: load: unsupported document type %q", docType)
	}
}

func (l *Ledger) loadSalesOrder(ctx context.Context, id int64) (*erp.Document, error) {
	const headerSQL = `
		SELECT id, number, customer_id, trade_date, COALESCE(memo, '')
		FROM sales_orders
		WHERE id = $1`

	doc := erp.Document{Type: erp.DocSalesOrder}
	if err := l.pool.QueryRow(ctx, headerSQL, id).Scan(
		&doc.ID, &doc.Number, &doc.EntityID, &doc.TradeDate, &doc.Memo,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, erp.ErrNotFound
		}
		return nil, fmt.Errorf("pgledger: load sales order %d: %w", id, err)
	}

	const lineSQL = `
		SELECT id, item, quantity, amount, closed
		FROM sales_order_lines
		WHERE so_id = $1
		ORDER BY id`

	rows, err := l.pool.Query(ctx, lineSQL, id)
	if err != nil {
		return nil, fmt.Errorf("pgledger: load sales order lines %d: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var line erp.ItemLine
		if err := rows.Scan(&line.ID, &line.Item, &line.Quantity, &line.Amount, &line.Closed); err != nil {
			return nil, err
		}
		doc.Lines = append(doc.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (l *Ledger) loadInvoice(ctx context.Context, id int64) (*erp.Document, error) {
	const headerSQL = `
		SELECT id, number, customer_id, so_id, trade_date, total, COALESCE(memo, ''), doc_type
		FROM invoices
		WHERE id = $1`

	doc := erp.Document{}
	var soID pgtype.Int8
	var docType string
	if err := l.pool.QueryRow(ctx, headerSQL, id).Scan(
		&doc.ID, &doc.Number, &doc.EntityID, &soID, &doc.TradeDate, &doc.Total, &doc.Memo, &docType,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, erp.ErrNotFound
		}
		return nil, fmt.Errorf("pgledger: load invoice %d: %w", id, err)
	}
	doc.Type = erp.DocType(docType)
	if soID.Valid {
		doc.SourceID = soID.Int64
	}

	const lineSQL = `
		SELECT id, item, quantity, amount
		FROM invoice_lines
		WHERE invoice_id = $1
		ORDER BY id`

	rows, err := l.pool.Query(ctx, lineSQL, id)
	if err != nil {
		return nil, fmt.Errorf("pgledger: load invoice lines %d: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var line erp.ItemLine
		if err := rows.Scan(&line.ID, &line.Item, &line.Quantity, &line.Amount); err != nil {
			return nil, err
		}
		doc.Lines = append(doc.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (l *Ledger) loadJournalEntry(ctx context.Context, id int64) (*erp.Document, error) {
	const headerSQL = `
		SELECT id, number, trade_date, COALESCE(memo, '')
		FROM journal_entries
		WHERE id = $1`

	doc := erp.Document{Type: erp.DocJournalEntry}
	if err := l.pool.QueryRow(ctx, headerSQL, id).Scan(
		&doc.ID, &doc.Number, &doc.TradeDate, &doc.Memo,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, erp.ErrNotFound
		}
		return nil, fmt.Errorf("pgledger: load journal entry %d: %w", id, err)
	}

	const lineSQL = `
		SELECT account_id, COALESCE(department_id, 0), COALESCE(entity_id, 0),
		       debit, credit, COALESCE(memo, '')
		FROM journal_lines
		WHERE journal_id = $1
		ORDER BY id`

	rows, err := l.pool.Query(ctx, lineSQL, id)
	if err != nil {
		return nil, fmt.Errorf("pgledger: load journal lines %d: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var line erp.JournalLine
		if err := rows.Scan(&line.AccountID, &line.DepartmentID, &line.EntityID, &line.Debit, &line.Credit, &line.Memo); err != nil {
			return nil, err
		}
		doc.JournalLines = append(doc.JournalLines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (l *Ledger) loadPayment(ctx context.Context, id int64) (*erp.Document, error) {
	const headerSQL = `
		SELECT id, number, customer_id, trade_date, COALESCE(memo, ''), payment_method_id, amount
		FROM payments
		WHERE id = $1`

	doc := erp.Document{Type: erp.DocCustomerPayment}
	if err := l.pool.QueryRow(ctx, headerSQL, id).Scan(
		&doc.ID, &doc.Number, &doc.EntityID, &doc.TradeDate, &doc.Memo, &doc.PaymentMethodID, &doc.Payment,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, erp.ErrNotFound
		}
		return nil, fmt.Errorf("pgledger: load payment %d: %w", id, err)
	}
	return &doc, nil
}

// Delete removes a document. Payment applications survive payment
// deletion: the application rows keep their effect and drop the
// payment reference, which is exactly the transient-document behavior
// the reconcile workflow relies on.
func (l *Ledger) Delete(ctx context.Context, docType erp.DocType, id int64) error {
	var table string
	switch docType {
	case erp.DocCustomerPayment:
		table = "payments"
	case erp.DocJournalEntry:
		table = "journal_entries"
	case erp.DocInvoice, erp.DocCreditMemo:
		table = "invoices"
	default:
		return fmt.Errorf("pgledger: delete: unsupported document type %q", docType)
	}

	tag, err := l.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", table), id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fmt.Errorf("%w: document %d is referenced by other records", erp.ErrRejected, id)
		}
		return fmt.Errorf("pgledger: delete %s %d: %w", docType, id, err)
	}
	if tag.RowsAffected() == 0 {
		return erp.ErrNotFound
	}
	return nil
}

// settableOrderFields whitelists the sales order columns a partial
// field update may touch.
var settableOrderFields = map[string]string{
	"queued_at":      "queued_at",
	"research_note":  "research_note",
	"follow_up_date": "follow_up_date",
}

// SetFieldValues applies a partial-field update to a sales order.
func (l *Ledger) SetFieldValues(ctx context.Context, docType erp.DocType, id int64, fields erp.FieldValues) error {
	if docType != erp.DocSalesOrder {
		return fmt.Errorf("pgledger: set fields: unsupported document type %q", docType)
	}
	if len(fields) == 0 {
		return nil
	}

	set := ""
	args := []any{id}
	idx := 2
	for name, value := range fields {
		column, ok := settableOrderFields[name]
		if !ok {
			return fmt.Errorf("pgledger: set fields: field %q not settable", name)
		}
		if set != "" {
			set += ", "
		}
		set += fmt.Sprintf("%s = $%d", column, idx)
		args = append(args, value)
		idx++
	}

	query := fmt.Sprintf("UPDATE sales_orders SET %s, updated_at = NOW() WHERE id = $1", set)
	tag, err := l.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("pgledger: set fields on sales order %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return erp.ErrNotFound
	}
	return nil
}

// nextNumber allocates the next document number for a table.
func nextNumber(ctx context.Context, tx pgx.Tx, table, prefix string) (string, error) {
	var max pgtype.Int8
	query := fmt.Sprintf("SELECT MAX(id) FROM %s", table)
	if err := tx.QueryRow(ctx, query).Scan(&max); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%06d", prefix, max.Int64+1), nil
}
