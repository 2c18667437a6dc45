package portal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericsoloffconsulting/service-inv-write-off/internal/erp"
	"github.com/ericsoloffconsulting/service-inv-write-off/internal/shared"
)

// RepositoryPort defines data access methods for the portal lists.
type RepositoryPort interface {
	ListUnbilledOrders(ctx context.Context) ([]UnbilledOrder, error)
	Summarize(ctx context.Context) (Summary, error)
	ListQueuedOrderIDs(ctx context.Context, queuedBefore time.Time) ([]int64, error)
}

// Invalidator lets the portal bump the report cache after a mutation.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// Config carries the fixed counterparty and account ids the
// bill-and-JE workflow posts against.
type Config struct {
	CounterpartyID       int64
	WriteOffAccountID    int64
	WriteOffDepartmentID int64
	ClearingAccountID    int64
	PaymentMethodID      int64
}

// Service handles portal business logic.
type Service struct {
	repo   RepositoryPort
	ledger erp.Ledger
	cache  Invalidator
	logger *slog.Logger
	cfg    Config
	now    func() time.Time
}

// NewService builds Service instance. cache may be nil.
func NewService(repo RepositoryPort, ledger erp.Ledger, cache Invalidator, logger *slog.Logger, cfg Config) *Service {
	return &Service{
		repo:   repo,
		ledger: ledger,
		cache:  cache,
		logger: logger,
		cfg:    cfg,
		now:    time.Now,
	}
}

// UnbilledOrders returns the portal's order list. A failed query
// degrades to an empty list so the page still renders.
func (s *Service) UnbilledOrders(ctx context.Context) []UnbilledOrder {
	orders, err := s.repo.ListUnbilledOrders(ctx)
	if err != nil {
		s.logger.Error("unbilled order query failed", slog.Any("error", err))
		return []UnbilledOrder{}
	}
	return orders
}

// Summarize returns the portal summary counts.
func (s *Service) Summarize(ctx context.Context) Summary {
	summary, err := s.repo.Summarize(ctx)
	if err != nil {
		s.logger.Error("portal summary query failed", slog.Any("error", err))
		return Summary{}
	}
	return summary
}

// QueuedOrderIDs returns orders queued before the cutoff, for the
// nightly sweep.
func (s *Service) QueuedOrderIDs(ctx context.Context, queuedBefore time.Time) ([]int64, error) {
	return s.repo.ListQueuedOrderIDs(ctx, queuedBefore)
}

// Queue stamps the order's queued-for-write-off timestamp. Re-queueing
// overwrites the timestamp and still succeeds.
func (s *Service) Queue(ctx context.Context, soID int64, budget *erp.Budget) ActionResult {
	budget.Consume(erp.OpSetFields)
	if err := s.ledger.SetFieldValues(ctx, erp.DocSalesOrder, soID, erp.FieldValues{"queued_at": s.now()}); err != nil {
		return failure(err)
	}
	return ActionResult{Success: true, Message: "Order queued for write-off."}
}

// Unqueue clears the queued timestamp. Clearing an already-clear
// order is a no-op that still reports success.
func (s *Service) Unqueue(ctx context.Context, soID int64, budget *erp.Budget) ActionResult {
	budget.Consume(erp.OpSetFields)
	if err := s.ledger.SetFieldValues(ctx, erp.DocSalesOrder, soID, erp.FieldValues{"queued_at": nil}); err != nil {
		return failure(err)
	}
	return ActionResult{Success: true, Message: "Order removed from the write-off queue."}
}

// Close loads the order, marks every line item closed, and saves.
func (s *Service) Close(ctx context.Context, soID int64, budget *erp.Budget) ActionResult {
	budget.Consume(erp.OpLoad)
	doc, err := s.ledger.Load(ctx, erp.DocSalesOrder, soID)
	if err != nil {
		return failure(err)
	}
	for i := range doc.Lines {
		doc.Lines[i].Closed = true
	}
	budget.Consume(erp.OpSave)
	if _, err := s.ledger.Save(ctx, doc, erp.SaveOptions{}); err != nil {
		return failure(err)
	}
	return ActionResult{Success: true, Message: fmt.Sprintf("Closed %d line(s) on order %s.", len(doc.Lines), doc.Number)}
}

// AutoBill transforms the order into an invoice and saves it
// immediately. A zero-amount order still produces a zero-total
// invoice rather than being skipped.
func (s *Service) AutoBill(ctx context.Context, soID int64, budget *erp.Budget) ActionResult {
	budget.Consume(erp.OpTransform)
	inv, err := s.ledger.Transform(ctx, erp.DocSalesOrder, soID, erp.DocInvoice)
	if err != nil {
		return failure(err)
	}

	budget.Consume(erp.OpSave)
	id, err := s.ledger.Save(ctx, inv, erp.SaveOptions{})
	if err != nil {
		return failure(err)
	}

	budget.Consume(erp.OpLoad)
	saved, err := s.ledger.Load(ctx, erp.DocInvoice, id)
	if err != nil {
		return failure(err)
	}

	s.bumpCache(ctx)
	return ActionResult{
		Success:       true,
		Message:       fmt.Sprintf("Created invoice %s for %s.", saved.Number, shared.FormatAmount(saved.Total)),
		InvoiceID:     saved.ID,
		InvoiceNumber: saved.Number,
		Amount:        saved.Total,
	}
}

// AddNote sets the research note and follow-up date on the order. An
// empty note is a valid clear, not a no-op.
func (s *Service) AddNote(ctx context.Context, soID int64, note, followUpDate string, budget *erp.Budget) ActionResult {
	followUp, err := shared.ParsePickerDate(followUpDate)
	if err != nil {
		return ActionResult{Success: false, Message: "Follow-up date must be in YYYY-MM-DD format."}
	}

	fields := erp.FieldValues{"research_note": note}
	if followUp.IsZero() {
		fields["follow_up_date"] = nil
	} else {
		fields["follow_up_date"] = followUp
	}

	budget.Consume(erp.OpSetFields)
	if err := s.ledger.SetFieldValues(ctx, erp.DocSalesOrder, soID, fields); err != nil {
		return failure(err)
	}
	if note == "" {
		return ActionResult{Success: true, Message: "Research note cleared."}
	}
	return ActionResult{Success: true, Message: "Research note saved."}
}

// ---------------------------------------------------------------------------
// Bulk variants
// ---------------------------------------------------------------------------

// BulkQueue queues each order in the batch.
func (s *Service) BulkQueue(ctx context.Context, ids []int64, budget *erp.Budget) BulkResult {
	return s.bulkRun(ctx, ids, budget, erp.GovernanceFloorStandard, false, s.Queue)
}

// BulkClose closes each order in the batch, collecting a per-id
// failure message map.
func (s *Service) BulkClose(ctx context.Context, ids []int64, budget *erp.Budget) BulkResult {
	return s.bulkRun(ctx, ids, budget, erp.GovernanceFloorStandard, true, s.Close)
}

// BulkAutoBill bills each order in the batch.
func (s *Service) BulkAutoBill(ctx context.Context, ids []int64, budget *erp.Budget) BulkResult {
	return s.bulkRun(ctx, ids, budget, erp.GovernanceFloorStandard, false, s.AutoBill)
}

// BulkBillAndJE runs the reconcile workflow for each order. The floor
// is higher because each item performs many ledger operations.
func (s *Service) BulkBillAndJE(ctx context.Context, ids []int64, budget *erp.Budget) BulkResult {
	return s.bulkRun(ctx, ids, budget, erp.GovernanceFloorBillJE, false, s.BillAndJE)
}

// bulkRun iterates a batch sequentially. The governance floor is
// checked before each item; dropping below it stops the loop and
// leaves the remainder untouched so the caller can resubmit. Item
// failures never stop the loop.
func (s *Service) bulkRun(
	ctx context.Context,
	ids []int64,
	budget *erp.Budget,
	floor int,
	collectMessages bool,
	fn func(context.Context, int64, *erp.Budget) ActionResult,
) BulkResult {
	result := BulkResult{
		ProcessedIDs: []int64{},
		FailedIDs:    []int64{},
	}
	if collectMessages {
		result.FailureMessages = map[int64]string{}
	}

	for _, id := range ids {
		if budget.Remaining() < floor {
			result.GovernanceStopped = true
			break
		}
		item := fn(ctx, id, budget)
		if item.Success {
			result.ProcessedIDs = append(result.ProcessedIDs, id)
			continue
		}
		result.FailedIDs = append(result.FailedIDs, id)
		if collectMessages {
			result.FailureMessages[id] = item.Message
		}
	}

	result.Count = len(result.ProcessedIDs)
	result.Success = true
	switch {
	case result.GovernanceStopped:
		result.Message = fmt.Sprintf("Processed %d of %d before the governance limit; resubmit the remaining orders.", attempted(result), len(ids))
	case len(result.FailedIDs) > 0:
		result.Message = fmt.Sprintf("Processed %d order(s); %d failed.", result.Count, len(result.FailedIDs))
	default:
		result.Message = fmt.Sprintf("Processed %d order(s).", result.Count)
	}
	return result
}

func attempted(r BulkResult) int {
	return len(r.ProcessedIDs) + len(r.FailedIDs)
}

func (s *Service) bumpCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("report cache bump failed", slog.Any("error", err))
	}
}

// failure normalizes an error into a failed ActionResult, sanitizing
// host rejection text before it reaches a user.
func failure(err error) ActionResult {
	if errors.Is(err, erp.ErrNotFound) {
		return ActionResult{Success: false, Message: "Order not found."}
	}
	return ActionResult{Success: false, Message: CleanHostMessage(err.Error())}
}
