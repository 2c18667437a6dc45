package portal

import (
	"context"
	"fmt"

	"github.com/ericsoloffconsulting/service-inv-write-off/internal/erp"
)

// Dispatch routes a single-item action by its discriminant name.
// Unknown actions come back as structured failures, never panics.
func (s *Service) Dispatch(ctx context.Context, req ActionRequest, budget *erp.Budget) ActionResult {
	if req.SOID <= 0 {
		return ActionResult{Success: false, Message: "Missing or invalid soId parameter."}
	}

	switch req.Action {
	case ActionQueue:
		return s.Queue(ctx, req.SOID, budget)
	case ActionUnqueue:
		return s.Unqueue(ctx, req.SOID, budget)
	case ActionClose:
		return s.Close(ctx, req.SOID, budget)
	case ActionAutoBill:
		return s.AutoBill(ctx, req.SOID, budget)
	case ActionBillJE:
		return s.BillAndJE(ctx, req.SOID, budget)
	case ActionAddNote:
		return s.AddNote(ctx, req.SOID, req.Note, req.FollowUpDate, budget)
	case "":
		return ActionResult{Success: false, Message: "Missing action parameter."}
	default:
		return ActionResult{Success: false, Message: fmt.Sprintf("Unknown action %q.", req.Action)}
	}
}

// DispatchBulk routes a bulk action. Actions without a bulk variant
// are rejected.
func (s *Service) DispatchBulk(ctx context.Context, action string, ids []int64, budget *erp.Budget) BulkResult {
	if len(ids) == 0 {
		return BulkResult{Success: false, Message: "No orders selected.", ProcessedIDs: []int64{}, FailedIDs: []int64{}}
	}

	switch action {
	case ActionQueue:
		return s.BulkQueue(ctx, ids, budget)
	case ActionClose:
		return s.BulkClose(ctx, ids, budget)
	case ActionAutoBill:
		return s.BulkAutoBill(ctx, ids, budget)
	case ActionBillJE:
		return s.BulkBillAndJE(ctx, ids, budget)
	case "":
		return BulkResult{Success: false, Message: "Missing bulkAction parameter.", ProcessedIDs: []int64{}, FailedIDs: []int64{}}
	default:
		return BulkResult{Success: false, Message: fmt.Sprintf("Unknown bulk action %q.", action), ProcessedIDs: []int64{}, FailedIDs: []int64{}}
	}
}
