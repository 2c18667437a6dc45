package portal

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericsoloffconsulting/service-inv-write-off/internal/erp"
)

// reconcileFixture seeds an open order plus a pre-existing journal
// credit against the write-off counterparty, the state BillAndJE finds
// midway through: the JE it posts itself is discovered the same way.
func reconcileFixture(amount float64) *fakeLedger {
	ledger := newFakeLedger()
	ledger.addOrder(10, 21764, erp.ItemLine{ID: 1, Item: "compressor service", Amount: amount})
	return ledger
}

func TestBillAndJEHappyPath(t *testing.T) {
	ledger := reconcileFixture(100)
	svc, _, cache := newTestService(ledger)

	res := svc.BillAndJE(context.Background(), 10, erp.Unlimited())
	require.True(t, res.Success, res.Message)
	assert.Equal(t, 100.0, res.Amount)
	assert.NotEmpty(t, res.InvoiceNumber)
	assert.NotEmpty(t, res.JournalNumber)

	// The invoice was reassigned to the write-off counterparty.
	invoice := ledger.invoices[res.InvoiceID]
	require.NotNil(t, invoice)
	assert.Equal(t, int64(21764), invoice.EntityID)

	// One balanced JE hit the configured accounts.
	require.Len(t, ledger.journals, 1)
	for _, je := range ledger.journals {
		require.Len(t, je.JournalLines, 2)
		assert.Equal(t, int64(319), je.JournalLines[0].AccountID)
		assert.Equal(t, int64(116), je.JournalLines[0].DepartmentID)
		assert.Equal(t, 100.0, je.JournalLines[0].Debit)
		assert.Equal(t, int64(122), je.JournalLines[1].AccountID)
		assert.Equal(t, int64(21764), je.JournalLines[1].EntityID)
		assert.Equal(t, 100.0, je.JournalLines[1].Credit)
	}

	// The payment applied exactly the invoice against the JE credit,
	// then was removed.
	require.Len(t, ledger.savedPayments, 1)
	payment := ledger.savedPayments[0]
	applied := 0
	for _, line := range payment.ApplyLines {
		if line.Apply {
			applied++
			assert.Equal(t, res.InvoiceID, line.DocID)
			assert.Equal(t, 100.0, line.Amount)
		}
	}
	assert.Equal(t, 1, applied)
	credited := 0
	for _, line := range payment.CreditLines {
		if line.Apply {
			credited++
			assert.Equal(t, 100.0, line.Amount)
		}
	}
	assert.Equal(t, 1, credited)
	assert.Len(t, ledger.deletedPayments, 1)
	assert.Equal(t, 1, cache.bumps)
}

func TestBillAndJEClearsPreselectedApplications(t *testing.T) {
	ledger := reconcileFixture(100)
	ledger.preselectAll = true
	// An unrelated open receivable on the same counterparty that the
	// host would auto-select.
	ledger.invoices[500] = &erp.Document{
		Type: erp.DocInvoice, ID: 500, Number: "INV000500", EntityID: 21764, Total: 999,
	}
	svc, _, _ := newTestService(ledger)

	res := svc.BillAndJE(context.Background(), 10, erp.Unlimited())
	require.True(t, res.Success, res.Message)

	payment := ledger.savedPayments[0]
	for _, line := range payment.ApplyLines {
		if line.DocID == 500 {
			assert.False(t, line.Apply, "unrelated receivable must be deselected")
			assert.Zero(t, line.Amount)
		}
	}
}

func TestBillAndJEMissingCreditAborts(t *testing.T) {
	ledger := reconcileFixture(100)
	ledger.noCredits = true
	svc, _, cache := newTestService(ledger)

	res := svc.BillAndJE(context.Background(), 10, erp.Unlimited())
	require.False(t, res.Success)
	assert.Contains(t, res.Message, "No open credit")
	assert.Contains(t, res.Message, "nothing was applied")
	assert.Empty(t, ledger.savedPayments)
	assert.Zero(t, cache.bumps)
}

func TestBillAndJEAmountMismatchAbortsBeforeSave(t *testing.T) {
	ledger := reconcileFixture(100)
	short := 50.0
	ledger.creditDue = &short
	svc, _, _ := newTestService(ledger)

	res := svc.BillAndJE(context.Background(), 10, erp.Unlimited())
	require.False(t, res.Success)
	assert.Contains(t, res.Message, "credited amount")
	assert.Contains(t, res.Message, "nothing was applied")
	assert.Empty(t, ledger.savedPayments)
	assert.Empty(t, ledger.deletedPayments)
}

func TestBillAndJEToleratesPennyDrift(t *testing.T) {
	ledger := reconcileFixture(100)
	drift := 99.995
	ledger.creditDue = &drift
	svc, _, _ := newTestService(ledger)

	res := svc.BillAndJE(context.Background(), 10, erp.Unlimited())
	assert.True(t, res.Success, res.Message)
}

func TestBillAndJEDeleteFailureIsCosmetic(t *testing.T) {
	ledger := reconcileFixture(100)
	ledger.deleteErr = fmt.Errorf("document is referenced by other records")
	svc, _, _ := newTestService(ledger)

	res := svc.BillAndJE(context.Background(), 10, erp.Unlimited())
	assert.True(t, res.Success, res.Message)
}

func TestBulkBillAndJEGovernanceFloor(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addOrder(1, 21764, erp.ItemLine{ID: 1, Item: "a", Amount: 100})
	ledger.addOrder(2, 21764, erp.ItemLine{ID: 2, Item: "b", Amount: 100})
	ledger.addOrder(3, 21764, erp.ItemLine{ID: 3, Item: "c", Amount: 100})
	svc, _, _ := newTestService(ledger)

	// One full bill-and-JE run costs 110 units; against the 300-unit
	// floor, a 350-unit budget admits exactly one item.
	budget := erp.NewBudget(350)
	res := svc.BulkBillAndJE(context.Background(), []int64{1, 2, 3}, budget)
	require.True(t, res.Success)
	assert.True(t, res.GovernanceStopped)
	assert.Equal(t, []int64{1}, res.ProcessedIDs)
	assert.Len(t, ledger.invoices, 1)
}
