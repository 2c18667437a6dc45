package portal

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed reads for the portal.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListUnbilledOrders returns every order with open unbilled lines,
// with its unbilled line items attached.
func (r *Repository) ListUnbilledOrders(ctx context.Context) ([]UnbilledOrder, error) {
	const headerSQL = `
		SELECT so.id, so.number, so.trade_date, c.name, so.status,
		       COALESCE(so.job_id, ''), COALESCE(so.warranty_type, ''),
		       so.scheduled_start, so.scheduled_end,
		       COALESCE(so.research_note, ''), so.follow_up_date, so.queued_at,
		       SUM(sol.amount)
		FROM sales_orders so
		JOIN customers c ON c.id = so.customer_id
		JOIN sales_order_lines sol ON sol.so_id = so.id AND sol.closed = FALSE
		WHERE so.status = 'OPEN'
		GROUP BY so.id, c.name
		ORDER BY so.trade_date, so.id`

	rows, err := r.pool.Query(ctx, headerSQL)
	if err != nil {
		return nil, fmt.Errorf("portal: list unbilled orders: %w", err)
	}
	defer rows.Close()

	var orders []UnbilledOrder
	index := map[int64]int{}
	for rows.Next() {
		var (
			o          UnbilledOrder
			schedStart pgtype.Timestamptz
			schedEnd   pgtype.Timestamptz
			followUp   pgtype.Timestamptz
			queuedAt   pgtype.Timestamptz
		)
		if err := rows.Scan(
			&o.ID, &o.Number, &o.TradeDate, &o.CustomerName, &o.Status,
			&o.JobID, &o.WarrantyType,
			&schedStart, &schedEnd,
			&o.ResearchNote, &followUp, &queuedAt,
			&o.UnbilledAmount,
		); err != nil {
			return nil, err
		}
		if schedStart.Valid {
			o.ScheduledStart = schedStart.Time
		}
		if schedEnd.Valid {
			o.ScheduledEnd = schedEnd.Time
		}
		if followUp.Valid {
			o.FollowUpDate = followUp.Time
		}
		if queuedAt.Valid {
			t := queuedAt.Time
			o.QueuedAt = &t
		}
		index[o.ID] = len(orders)
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return []UnbilledOrder{}, nil
	}

	const lineSQL = `
		SELECT sol.so_id, sol.item, sol.quantity, sol.amount
		FROM sales_order_lines sol
		JOIN sales_orders so ON so.id = sol.so_id
		WHERE sol.closed = FALSE AND so.status = 'OPEN'
		ORDER BY sol.so_id, sol.id`

	lineRows, err := r.pool.Query(ctx, lineSQL)
	if err != nil {
		return nil, fmt.Errorf("portal: list unbilled lines: %w", err)
	}
	defer lineRows.Close()

	for lineRows.Next() {
		var soID int64
		var line UnbilledLine
		if err := lineRows.Scan(&soID, &line.Item, &line.Quantity, &line.Amount); err != nil {
			return nil, err
		}
		if i, ok := index[soID]; ok {
			orders[i].Lines = append(orders[i].Lines, line)
		}
	}
	if err := lineRows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}

// Summarize aggregates the unbilled population in one query.
func (r *Repository) Summarize(ctx context.Context) (Summary, error) {
	const query = `
		SELECT COUNT(*),
		       COALESCE(SUM(line_count), 0),
		       COALESCE(SUM(unbilled), 0),
		       COUNT(*) FILTER (WHERE queued_at IS NOT NULL),
		       COALESCE(SUM(unbilled) FILTER (WHERE queued_at IS NOT NULL), 0)
		FROM (
			SELECT so.id, so.queued_at, COUNT(sol.id) AS line_count, SUM(sol.amount) AS unbilled
			FROM sales_orders so
			JOIN sales_order_lines sol ON sol.so_id = so.id AND sol.closed = FALSE
			WHERE so.status = 'OPEN'
			GROUP BY so.id
		) open_orders`

	var s Summary
	if err := r.pool.QueryRow(ctx, query).Scan(
		&s.OrderCount, &s.LineCount, &s.TotalAmount, &s.QueuedCount, &s.QueuedAmount,
	); err != nil {
		return Summary{}, fmt.Errorf("portal: summarize: %w", err)
	}
	return s, nil
}

// ListQueuedOrderIDs returns ids of open orders queued before the
// cutoff, oldest first. The nightly sweep feeds these to bulk billing.
func (r *Repository) ListQueuedOrderIDs(ctx context.Context, queuedBefore time.Time) ([]int64, error) {
	const query = `
		SELECT DISTINCT so.id, so.queued_at
		FROM sales_orders so
		JOIN sales_order_lines sol ON sol.so_id = so.id AND sol.closed = FALSE
		WHERE so.status = 'OPEN' AND so.queued_at IS NOT NULL AND so.queued_at < $1
		ORDER BY so.queued_at, so.id`

	rows, err := r.pool.Query(ctx, query, queuedBefore)
	if err != nil {
		return nil, fmt.Errorf("portal: list queued orders: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		var queuedAt time.Time
		if err := rows.Scan(&id, &queuedAt); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
