package pgledger

import (
	"context"
	"fmt"
	"time"

	"github.com/ericsoloffconsulting/service-inv-write-off/internal/erp"
)

// Transform derives a new, unsaved document from an existing one.
func (l *Ledger) Transform(ctx context.Context, from erp.DocType, id int64, to erp.DocType) (*erp.Document, error) {
	switch {
	case from == erp.DocSalesOrder && to == erp.DocInvoice:
		return l.orderToInvoice(ctx, id)
	case from == erp.DocInvoice && to == erp.DocCustomerPayment:
		return l.invoiceToPayment(ctx, id)
	default:
		return nil, fmt.Errorf("pgledger: transform %s -> %s not supported", from, to)
	}
}

// orderToInvoice builds an invoice from the order's open (unbilled)
// lines. The result is unsaved; Save assigns id, number and total.
func (l *Ledger) orderToInvoice(ctx context.Context, soID int64) (*erp.Document, error) {
	so, err := l.loadSalesOrder(ctx, soID)
	if err != nil {
		return nil, err
	}

	inv := &erp.Document{
		Type:      erp.DocInvoice,
		SourceID:  so.ID,
		EntityID:  so.EntityID,
		TradeDate: time.Now(),
		Memo:      fmt.Sprintf("Billed from order %s", so.Number),
	}
	for _, line := range so.Lines {
		if line.Closed {
			continue
		}
		inv.Lines = append(inv.Lines, erp.ItemLine{
			Item:     line.Item,
			Quantity: line.Quantity,
			Amount:   line.Amount,
		})
		inv.Total += line.Amount
	}
	return inv, nil
}

// invoiceToPayment builds a customer payment seeded the way the host
// does: every open receivable of the entity appears as an apply line,
// with the source invoice pre-selected, and every open credit of the
// entity appears as a credit line. Callers that only want specific
// lines applied must clear the pre-selection first.
func (l *Ledger) invoiceToPayment(ctx context.Context, invoiceID int64) (*erp.Document, error) {
	inv, err := l.loadInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	pay := &erp.Document{
		Type:      erp.DocCustomerPayment,
		SourceID:  inv.ID,
		EntityID:  inv.EntityID,
		TradeDate: time.Now(),
	}

	const applySQL = `
		SELECT id, number, balance
		FROM invoices
		WHERE customer_id = $1 AND balance > 0 AND doc_type = 'invoice'
		ORDER BY trade_date, id`

	rows, err := l.pool.Query(ctx, applySQL, inv.EntityID)
	if err != nil {
		return nil, fmt.Errorf("pgledger: open receivables for entity %d: %w", inv.EntityID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var line erp.ApplyLine
		if err := rows.Scan(&line.DocID, &line.RefNumber, &line.Due); err != nil {
			return nil, err
		}
		if line.DocID == inv.ID {
			line.Apply = true
			line.Amount = line.Due
		}
		pay.ApplyLines = append(pay.ApplyLines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	const creditSQL = `
		SELECT jl.journal_id, je.number, SUM(jl.credit - jl.applied)
		FROM journal_lines jl
		JOIN journal_entries je ON je.id = jl.journal_id
		WHERE jl.entity_id = $1 AND jl.credit - jl.applied > 0
		GROUP BY jl.journal_id, je.number
		ORDER BY jl.journal_id`

	creditRows, err := l.pool.Query(ctx, creditSQL, inv.EntityID)
	if err != nil {
		return nil, fmt.Errorf("pgledger: open credits for entity %d: %w", inv.EntityID, err)
	}
	defer creditRows.Close()

	for creditRows.Next() {
		var line erp.CreditLine
		if err := creditRows.Scan(&line.DocID, &line.RefNumber, &line.Due); err != nil {
			return nil, err
		}
		pay.CreditLines = append(pay.CreditLines, line)
	}
	if err := creditRows.Err(); err != nil {
		return nil, err
	}

	return pay, nil
}
