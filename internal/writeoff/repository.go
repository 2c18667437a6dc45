package writeoff

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed reads for the write-off list.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListRows returns the detail row set, capped at limit. The join to
// payment applications yields one row per application, so a document
// with several applications appears more than once; the service
// collapses duplicates by document id.
func (r *Repository) ListRows(ctx context.Context, asOf time.Time, limit int) ([]Row, error) {
	const query = `
		SELECT i.id, i.number, i.doc_type, i.trade_date, c.name,
		       i.balance, COALESCE(i.memo, '')
		FROM invoices i
		JOIN customers c ON c.id = i.customer_id
		LEFT JOIN payment_applications pa ON pa.invoice_id = i.id
		WHERE i.balance <> 0
		  AND i.status <> 'VOID'
		  AND i.trade_date <= $1
		ORDER BY i.trade_date DESC, i.id DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, asOf, limit)
	if err != nil {
		return nil, fmt.Errorf("writeoff: list rows: %w", err)
	}
	defer rows.Close()

	var result []Row
	for rows.Next() {
		var row Row
		if err := rows.Scan(&row.DocID, &row.DocNumber, &row.DocType, &row.TradeDate, &row.CustomerName, &row.Amount, &row.Memo); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// AggregateTotals computes the true full-population totals, split by
// the sign of each document's remaining balance.
func (r *Repository) AggregateTotals(ctx context.Context, asOf time.Time) (Totals, error) {
	const query = `
		SELECT COUNT(*) FILTER (WHERE balance > 0),
		       COALESCE(SUM(balance) FILTER (WHERE balance > 0), 0),
		       COUNT(*) FILTER (WHERE balance < 0),
		       COALESCE(SUM(balance) FILTER (WHERE balance < 0), 0),
		       COALESCE(SUM(balance), 0),
		       COUNT(*)
		FROM invoices
		WHERE balance <> 0
		  AND status <> 'VOID'
		  AND trade_date <= $1`

	var totals Totals
	if err := r.pool.QueryRow(ctx, query, asOf).Scan(
		&totals.InvoiceCount,
		&totals.InvoiceTotal,
		&totals.CreditCount,
		&totals.CreditTotal,
		&totals.NetTotal,
		&totals.RowCount,
	); err != nil {
		return Totals{}, fmt.Errorf("writeoff: aggregate totals: %w", err)
	}
	return totals, nil
}
