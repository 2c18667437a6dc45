package portal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericsoloffconsulting/service-inv-write-off/internal/erp"
)

func TestDispatchRejectsMissingAction(t *testing.T) {
	svc, _, _ := newTestService(newFakeLedger())

	res := svc.Dispatch(context.Background(), ActionRequest{SOID: 1}, erp.Unlimited())
	require.False(t, res.Success)
	assert.Equal(t, "Missing action parameter.", res.Message)
}

func TestDispatchRejectsUnknownAction(t *testing.T) {
	svc, _, _ := newTestService(newFakeLedger())

	res := svc.Dispatch(context.Background(), ActionRequest{Action: "explode", SOID: 1}, erp.Unlimited())
	require.False(t, res.Success)
	assert.Contains(t, res.Message, `"explode"`)
}

func TestDispatchRejectsBadSOID(t *testing.T) {
	svc, _, _ := newTestService(newFakeLedger())

	res := svc.Dispatch(context.Background(), ActionRequest{Action: ActionQueue}, erp.Unlimited())
	require.False(t, res.Success)
	assert.Contains(t, res.Message, "soId")
}

func TestDispatchRoutesEachAction(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addOrder(10, 5, erp.ItemLine{ID: 1, Item: "svc", Amount: 25})
	svc, _, _ := newTestService(ledger)

	for _, action := range []string{ActionQueue, ActionUnqueue, ActionClose, ActionAutoBill, ActionAddNote} {
		res := svc.Dispatch(context.Background(), ActionRequest{Action: action, SOID: 10}, erp.Unlimited())
		assert.True(t, res.Success, "action %s: %s", action, res.Message)
	}
}

func TestDispatchBulkRequiresSelection(t *testing.T) {
	svc, _, _ := newTestService(newFakeLedger())

	res := svc.DispatchBulk(context.Background(), ActionQueue, nil, erp.Unlimited())
	require.False(t, res.Success)
	assert.Equal(t, "No orders selected.", res.Message)
}

func TestDispatchBulkRejectsSingleOnlyActions(t *testing.T) {
	svc, _, _ := newTestService(newFakeLedger())

	// add-note and unqueue have no bulk variant.
	for _, action := range []string{ActionAddNote, ActionUnqueue} {
		res := svc.DispatchBulk(context.Background(), action, []int64{1}, erp.Unlimited())
		assert.False(t, res.Success)
		assert.Contains(t, res.Message, "Unknown bulk action")
	}
}
