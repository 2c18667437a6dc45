package writeoff

import (
	"context"
	"log/slog"
	"time"
)

// RepositoryPort defines data access methods for the write-off list.
type RepositoryPort interface {
	ListRows(ctx context.Context, asOf time.Time, limit int) ([]Row, error)
	AggregateTotals(ctx context.Context, asOf time.Time) (Totals, error)
}

// Service builds the write-off report.
type Service struct {
	repo      RepositoryPort
	cache     *Cache
	logger    *slog.Logger
	rowBudget int
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, cache *Cache, logger *slog.Logger, rowBudget int) *Service {
	if rowBudget <= 0 {
		rowBudget = 1000
	}
	return &Service{repo: repo, cache: cache, logger: logger, rowBudget: rowBudget}
}

// Report builds the full report as of the given date. A failed query
// degrades to an empty report so the page still renders.
func (s *Service) Report(ctx context.Context, asOf time.Time) Report {
	if asOf.IsZero() {
		asOf = time.Now()
	}

	key, keyErr := s.cache.BuildKey(ctx, "writeoff", "report", asOf.Format("2006-01-02"))
	if keyErr == nil {
		var report Report
		err := s.cache.FetchJSON(ctx, key, &report, func(ctx context.Context) (interface{}, error) {
			return s.build(ctx, asOf)
		})
		if err == nil {
			return report
		}
		s.logger.Error("write-off report build failed", slog.Any("error", err))
		return Report{Rows: []Row{}}
	}

	s.logger.Warn("report cache key", slog.Any("error", keyErr))
	report, err := s.build(ctx, asOf)
	if err != nil {
		s.logger.Error("write-off report build failed", slog.Any("error", err))
		return Report{Rows: []Row{}}
	}
	return report
}

func (s *Service) build(ctx context.Context, asOf time.Time) (Report, error) {
	// Fetch one past the budget so truncation is detectable.
	rows, err := s.repo.ListRows(ctx, asOf, s.rowBudget+1)
	if err != nil {
		return Report{}, err
	}

	// Truncation must be judged on the raw fetch: duplicate application
	// rows collapse below the budget even when the population continues
	// past the fetch limit, and the partial-page sum would be wrong.
	truncated := len(rows) > s.rowBudget

	rows, duplicates := dedupeByID(rows)
	if duplicates > 0 {
		s.logger.Info("collapsed duplicate report rows", slog.Int("count", duplicates))
	}

	report := Report{DuplicatesDropped: duplicates}
	if truncated {
		if len(rows) > s.rowBudget {
			rows = rows[:s.rowBudget]
		}
		report.Rows = rows
		report.Truncated = true
		totals, err := s.repo.AggregateTotals(ctx, asOf)
		if err != nil {
			return Report{}, err
		}
		report.Totals = totals
		return report, nil
	}

	report.Rows = rows
	report.Totals = sumTotals(rows)
	return report, nil
}

// dedupeByID collapses rows sharing a document id, keeping the first
// occurrence, and reports how many were dropped.
func dedupeByID(rows []Row) ([]Row, int) {
	seen := make(map[int64]bool, len(rows))
	out := rows[:0]
	dropped := 0
	for _, row := range rows {
		if seen[row.DocID] {
			dropped++
			continue
		}
		seen[row.DocID] = true
		out = append(out, row)
	}
	return out, dropped
}

func sumTotals(rows []Row) Totals {
	var totals Totals
	totals.RowCount = len(rows)
	for _, row := range rows {
		if row.Amount >= 0 {
			totals.InvoiceCount++
			totals.InvoiceTotal += row.Amount
		} else {
			totals.CreditCount++
			totals.CreditTotal += row.Amount
		}
		totals.NetTotal += row.Amount
	}
	return totals
}
