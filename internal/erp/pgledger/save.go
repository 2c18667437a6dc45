package pgledger

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ericsoloffconsulting/service-inv-write-off/internal/erp"
	"github.com/ericsoloffconsulting/service-inv-write-off/internal/platform/db"
)

// Save persists a document, assigning id and number on first save.
// Derived fields (invoice total and balance) are recomputed from the
// lines, so callers must reload rather than trust the in-memory value.
func (l *Ledger) Save(ctx context.Context, doc *erp.Document, opts erp.SaveOptions) (int64, error) {
	switch doc.Type {
	case erp.DocSalesOrder:
		return doc.ID, l.saveSalesOrder(ctx, doc)
	case erp.DocInvoice:
		return l.saveInvoice(ctx, doc, opts)
	case erp.DocJournalEntry:
		return l.saveJournalEntry(ctx, doc, opts)
	case erp.DocCustomerPayment:
		return l.savePayment(ctx, doc)
	default:
		return 0, fmt.Errorf("pgledger: save: unsupported document type %q", doc.Type)
	}
}

// saveSalesOrder persists line-level changes on an existing order.
// Orders are never created through this service.
func (l *Ledger) saveSalesOrder(ctx context.Context, doc *erp.Document) error {
	if doc.ID == 0 {
		return fmt.Errorf("%w: sales orders cannot be created here", erp.ErrRejected)
	}
	return db.WithTx(ctx, l.pool, func(tx pgx.Tx) error {
		for _, line := range doc.Lines {
			if _, err := tx.Exec(ctx,
				"UPDATE sales_order_lines SET closed = $1 WHERE id = $2 AND so_id = $3",
				line.Closed, line.ID, doc.ID,
			); err != nil {
				return fmt.Errorf("pgledger: update order line %d: %w", line.ID, err)
			}
		}
		_, err := tx.Exec(ctx, "UPDATE sales_orders SET updated_at = NOW() WHERE id = $1", doc.ID)
		return err
	})
}

func (l *Ledger) saveInvoice(ctx context.Context, doc *erp.Document, opts erp.SaveOptions) (int64, error) {
	if doc.EntityID == 0 && !opts.IgnoreMandatoryFields {
		return 0, fmt.Errorf("%w: Please enter value(s) for: Customer", erp.ErrRejected)
	}

	var total float64
	for _, line := range doc.Lines {
		total += line.Amount
	}

	var id int64
	err := db.WithTx(ctx, l.pool, func(tx pgx.Tx) error {
		if doc.ID != 0 {
			// Entity reassignment on an already-saved invoice.
			_, err := tx.Exec(ctx,
				"UPDATE invoices SET customer_id = $1, memo = $2, updated_at = NOW() WHERE id = $3",
				doc.EntityID, doc.Memo, doc.ID,
			)
			id = doc.ID
			return err
		}

		number, err := nextNumber(ctx, tx, "invoices", "INV")
		if err != nil {
			return err
		}

		const insertSQL = `
			INSERT INTO invoices (number, customer_id, so_id, trade_date, total, balance, doc_type, memo, created_at, updated_at)
			VALUES ($1, $2, NULLIF($3, 0), $4, $5, $5, 'invoice', $6, NOW(), NOW())
			RETURNING id`
		tradeDate := doc.TradeDate
		if tradeDate.IsZero() {
			tradeDate = time.Now()
		}
		if err := tx.QueryRow(ctx, insertSQL,
			number, doc.EntityID, doc.SourceID, tradeDate, total, doc.Memo,
		).Scan(&id); err != nil {
			return fmt.Errorf("pgledger: insert invoice: %w", err)
		}

		for _, line := range doc.Lines {
			if _, err := tx.Exec(ctx,
				"INSERT INTO invoice_lines (invoice_id, item, quantity, amount) VALUES ($1, $2, $3, $4)",
				id, line.Item, line.Quantity, line.Amount,
			); err != nil {
				return fmt.Errorf("pgledger: insert invoice line: %w", err)
			}
		}
		doc.Number = number
		return nil
	})
	if err != nil {
		return 0, err
	}
	doc.ID = id
	return id, nil
}

func (l *Ledger) saveJournalEntry(ctx context.Context, doc *erp.Document, opts erp.SaveOptions) (int64, error) {
	if len(doc.JournalLines) < 2 {
		return 0, fmt.Errorf("%w: journal entry needs at least two lines", erp.ErrRejected)
	}
	var debit, credit float64
	for _, line := range doc.JournalLines {
		debit += line.Debit
		credit += line.Credit
	}
	if math.Abs(debit-credit) > 0.005 {
		return 0, fmt.Errorf("%w: journal entry is out of balance", erp.ErrRejected)
	}

	var id int64
	err := db.WithTx(ctx, l.pool, func(tx pgx.Tx) error {
		number, err := nextNumber(ctx, tx, "journal_entries", "JE")
		if err != nil {
			return err
		}
		tradeDate := doc.TradeDate
		if tradeDate.IsZero() {
			tradeDate = time.Now()
		}
		if err := tx.QueryRow(ctx,
			"INSERT INTO journal_entries (number, trade_date, memo, created_at) VALUES ($1, $2, $3, NOW()) RETURNING id",
			number, tradeDate, doc.Memo,
		).Scan(&id); err != nil {
			return fmt.Errorf("pgledger: insert journal entry: %w", err)
		}
		for _, line := range doc.JournalLines {
			if _, err := tx.Exec(ctx, `
				INSERT INTO journal_lines (journal_id, account_id, department_id, entity_id, debit, credit, applied, memo)
				VALUES ($1, $2, NULLIF($3, 0), NULLIF($4, 0), $5, $6, 0, $7)`,
				id, line.AccountID, line.DepartmentID, line.EntityID, line.Debit, line.Credit, line.Memo,
			); err != nil {
				return fmt.Errorf("pgledger: insert journal line: %w", err)
			}
		}
		doc.Number = number
		return nil
	})
	if err != nil {
		return 0, err
	}
	doc.ID = id
	return id, nil
}

// savePayment persists the payment and applies the selected lines:
// applied receivables lose balance, applied credits are marked
// consumed. This is the save that actually moves the ledger.
func (l *Ledger) savePayment(ctx context.Context, doc *erp.Document) (int64, error) {
	var id int64
	err := db.WithTx(ctx, l.pool, func(tx pgx.Tx) error {
		number, err := nextNumber(ctx, tx, "payments", "PMT")
		if err != nil {
			return err
		}
		tradeDate := doc.TradeDate
		if tradeDate.IsZero() {
			tradeDate = time.Now()
		}
		if err := tx.QueryRow(ctx, `
			INSERT INTO payments (number, customer_id, trade_date, memo, payment_method_id, amount, created_at)
			VALUES ($1, $2, $3, $4, NULLIF($5, 0), $6, NOW())
			RETURNING id`,
			number, doc.EntityID, tradeDate, doc.Memo, doc.PaymentMethodID, doc.Payment,
		).Scan(&id); err != nil {
			return fmt.Errorf("pgledger: insert payment: %w", err)
		}

		for _, line := range doc.ApplyLines {
			if !line.Apply {
				continue
			}
			tag, err := tx.Exec(ctx, `
				UPDATE invoices
				SET balance = balance - $1,
				    status = CASE WHEN balance - $1 <= 0.005 THEN 'PAID' ELSE status END,
				    updated_at = NOW()
				WHERE id = $2 AND balance >= $1`,
				line.Amount, line.DocID,
			)
			if err != nil {
				return fmt.Errorf("pgledger: apply payment to invoice %d: %w", line.DocID, err)
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("%w: invoice %d has insufficient open balance", erp.ErrRejected, line.DocID)
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO payment_applications (payment_id, invoice_id, amount, created_at)
				VALUES ($1, $2, $3, NOW())`,
				id, line.DocID, line.Amount,
			); err != nil {
				return fmt.Errorf("pgledger: record application: %w", err)
			}
		}

		for _, line := range doc.CreditLines {
			if !line.Apply {
				continue
			}
			tag, err := tx.Exec(ctx, `
				UPDATE journal_lines
				SET applied = applied + $1
				WHERE journal_id = $2 AND entity_id = $3 AND credit - applied >= $1`,
				line.Amount, line.DocID, doc.EntityID,
			)
			if err != nil {
				return fmt.Errorf("pgledger: consume credit from journal %d: %w", line.DocID, err)
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("%w: journal %d has insufficient open credit", erp.ErrRejected, line.DocID)
			}
		}

		doc.Number = number
		return nil
	})
	if err != nil {
		return 0, err
	}
	doc.ID = id
	l.logger.Debug("payment saved", slog.Int64("id", id), slog.Float64("amount", doc.Payment))
	return id, nil
}
