package portal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericsoloffconsulting/service-inv-write-off/internal/erp"
)

// ============================================================================
// FAKE LEDGER
// ============================================================================

type fakeLedger struct {
	orders   map[int64]*erp.Document
	invoices map[int64]*erp.Document
	journals map[int64]*erp.Document
	payments map[int64]*erp.Document
	fields   map[int64]erp.FieldValues
	nextID   int64

	// Error injection
	transformErr error
	saveErr      error
	deleteErr    error
	setFieldsErr error

	// Behavior knobs for the reconcile tests
	preselectAll bool     // mark every apply line selected on transform
	creditDue    *float64 // override credit line due amounts
	noCredits    bool     // suppress credit lines entirely

	deletedPayments []int64
	savedPayments   []*erp.Document
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		orders:   make(map[int64]*erp.Document),
		invoices: make(map[int64]*erp.Document),
		journals: make(map[int64]*erp.Document),
		payments: make(map[int64]*erp.Document),
		fields:   make(map[int64]erp.FieldValues),
		nextID:   1000,
	}
}

func (f *fakeLedger) addOrder(id int64, entityID int64, lines ...erp.ItemLine) {
	f.orders[id] = &erp.Document{
		Type:     erp.DocSalesOrder,
		ID:       id,
		Number:   fmt.Sprintf("SVC-%06d", id),
		EntityID: entityID,
		Lines:    lines,
	}
}

func (f *fakeLedger) addJournal(id int64, entityID int64, credit float64) {
	f.journals[id] = &erp.Document{
		Type:   erp.DocJournalEntry,
		ID:     id,
		Number: fmt.Sprintf("JE%06d", id),
		JournalLines: []erp.JournalLine{
			{AccountID: 122, EntityID: entityID, Credit: credit},
		},
	}
}

func (f *fakeLedger) allocID() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeLedger) Load(ctx context.Context, docType erp.DocType, id int64) (*erp.Document, error) {
	var store map[int64]*erp.Document
	switch docType {
	case erp.DocSalesOrder:
		store = f.orders
	case erp.DocInvoice, erp.DocCreditMemo:
		store = f.invoices
	case erp.DocJournalEntry:
		store = f.journals
	case erp.DocCustomerPayment:
		store = f.payments
	}
	doc, ok := store[id]
	if !ok {
		return nil, erp.ErrNotFound
	}
	copied := *doc
	return &copied, nil
}

func (f *fakeLedger) Save(ctx context.Context, doc *erp.Document, opts erp.SaveOptions) (int64, error) {
	if f.saveErr != nil {
		return 0, f.saveErr
	}
	switch doc.Type {
	case erp.DocSalesOrder:
		f.orders[doc.ID] = doc
		return doc.ID, nil
	case erp.DocInvoice, erp.DocCreditMemo:
		if doc.EntityID == 0 && !opts.IgnoreMandatoryFields {
			return 0, fmt.Errorf("%w: Please enter value(s) for: Customer", erp.ErrRejected)
		}
		doc.ID = f.allocID()
		doc.Number = fmt.Sprintf("INV%06d", doc.ID)
		f.invoices[doc.ID] = doc
		return doc.ID, nil
	case erp.DocJournalEntry:
		doc.ID = f.allocID()
		doc.Number = fmt.Sprintf("JE%06d", doc.ID)
		f.journals[doc.ID] = doc
		return doc.ID, nil
	case erp.DocCustomerPayment:
		doc.ID = f.allocID()
		f.payments[doc.ID] = doc
		f.savedPayments = append(f.savedPayments, doc)
		return doc.ID, nil
	}
	return 0, fmt.Errorf("fake ledger: unsupported type %q", doc.Type)
}

func (f *fakeLedger) Delete(ctx context.Context, docType erp.DocType, id int64) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if docType == erp.DocCustomerPayment {
		f.deletedPayments = append(f.deletedPayments, id)
		delete(f.payments, id)
	}
	return nil
}

func (f *fakeLedger) Transform(ctx context.Context, from erp.DocType, id int64, to erp.DocType) (*erp.Document, error) {
	if f.transformErr != nil {
		return nil, f.transformErr
	}
	switch {
	case from == erp.DocSalesOrder && to == erp.DocInvoice:
		order, ok := f.orders[id]
		if !ok {
			return nil, erp.ErrNotFound
		}
		inv := &erp.Document{Type: erp.DocInvoice, SourceID: id, EntityID: order.EntityID}
		for _, line := range order.Lines {
			if line.Closed {
				continue
			}
			inv.Lines = append(inv.Lines, line)
			inv.Total += line.Amount
		}
		return inv, nil
	case from == erp.DocInvoice && to == erp.DocCustomerPayment:
		source, ok := f.invoices[id]
		if !ok {
			return nil, erp.ErrNotFound
		}
		payment := &erp.Document{Type: erp.DocCustomerPayment, EntityID: source.EntityID}
		for _, inv := range f.invoices {
			if inv.EntityID != source.EntityID {
				continue
			}
			selected := inv.ID == id || f.preselectAll
			amount := 0.0
			if selected {
				amount = inv.Total
			}
			payment.ApplyLines = append(payment.ApplyLines, erp.ApplyLine{
				DocID: inv.ID, RefNumber: inv.Number, Due: inv.Total, Apply: selected, Amount: amount,
			})
		}
		if !f.noCredits {
			for _, je := range f.journals {
				for _, line := range je.JournalLines {
					if line.Credit <= 0 || line.EntityID != source.EntityID {
						continue
					}
					due := line.Credit
					if f.creditDue != nil {
						due = *f.creditDue
					}
					payment.CreditLines = append(payment.CreditLines, erp.CreditLine{
						DocID: je.ID, RefNumber: je.Number, Due: due,
					})
				}
			}
		}
		return payment, nil
	}
	return nil, fmt.Errorf("fake ledger: unsupported transform %q to %q", from, to)
}

func (f *fakeLedger) SetFieldValues(ctx context.Context, docType erp.DocType, id int64, fields erp.FieldValues) error {
	if f.setFieldsErr != nil {
		return f.setFieldsErr
	}
	if _, ok := f.orders[id]; !ok {
		return erp.ErrNotFound
	}
	existing, ok := f.fields[id]
	if !ok {
		existing = erp.FieldValues{}
		f.fields[id] = existing
	}
	for k, v := range fields {
		existing[k] = v
	}
	return nil
}

// ============================================================================
// FAKE REPOSITORY AND CACHE
// ============================================================================

type fakeRepo struct {
	orders    []UnbilledOrder
	summary   Summary
	queuedIDs []int64
	listErr   error
}

func (f *fakeRepo) ListUnbilledOrders(ctx context.Context) ([]UnbilledOrder, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.orders, nil
}

func (f *fakeRepo) Summarize(ctx context.Context) (Summary, error) {
	if f.listErr != nil {
		return Summary{}, f.listErr
	}
	return f.summary, nil
}

func (f *fakeRepo) ListQueuedOrderIDs(ctx context.Context, queuedBefore time.Time) ([]int64, error) {
	return f.queuedIDs, nil
}

type fakeInvalidator struct {
	bumps int
	err   error
}

func (f *fakeInvalidator) Bump(ctx context.Context) error {
	f.bumps++
	return f.err
}

func newTestService(ledger *fakeLedger) (*Service, *fakeRepo, *fakeInvalidator) {
	repo := &fakeRepo{}
	cache := &fakeInvalidator{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(repo, ledger, cache, logger, Config{
		CounterpartyID:       21764,
		WriteOffAccountID:    319,
		WriteOffDepartmentID: 116,
		ClearingAccountID:    122,
		PaymentMethodID:      1,
	})
	return svc, repo, cache
}

// ============================================================================
// SINGLE-ITEM ACTIONS
// ============================================================================

func TestQueueStampsTimestamp(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addOrder(10, 5, erp.ItemLine{ID: 1, Item: "svc", Amount: 100})
	svc, _, _ := newTestService(ledger)

	res := svc.Queue(context.Background(), 10, erp.Unlimited())
	require.True(t, res.Success)
	assert.NotNil(t, ledger.fields[10]["queued_at"])

	// Re-queueing overwrites and still succeeds.
	res = svc.Queue(context.Background(), 10, erp.Unlimited())
	assert.True(t, res.Success)
}

func TestUnqueueIsIdempotent(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addOrder(10, 5)
	svc, _, _ := newTestService(ledger)

	// Never queued; clearing is still a success.
	res := svc.Unqueue(context.Background(), 10, erp.Unlimited())
	require.True(t, res.Success)
	val, ok := ledger.fields[10]["queued_at"]
	require.True(t, ok)
	assert.Nil(t, val)
}

func TestQueueOrderNotFound(t *testing.T) {
	ledger := newFakeLedger()
	svc, _, _ := newTestService(ledger)

	res := svc.Queue(context.Background(), 99, erp.Unlimited())
	require.False(t, res.Success)
	assert.Equal(t, "Order not found.", res.Message)
}

func TestCloseMarksEveryLine(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addOrder(10, 5,
		erp.ItemLine{ID: 1, Item: "inspection", Amount: 180.75},
		erp.ItemLine{ID: 2, Item: "call-out", Amount: 70},
	)
	svc, _, _ := newTestService(ledger)

	res := svc.Close(context.Background(), 10, erp.Unlimited())
	require.True(t, res.Success)
	assert.Contains(t, res.Message, "Closed 2 line(s)")
	for _, line := range ledger.orders[10].Lines {
		assert.True(t, line.Closed)
	}
}

func TestAutoBillCreatesInvoice(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addOrder(10, 5, erp.ItemLine{ID: 1, Item: "diagnostics", Amount: 250.75})
	svc, _, cache := newTestService(ledger)

	res := svc.AutoBill(context.Background(), 10, erp.Unlimited())
	require.True(t, res.Success)
	assert.Equal(t, 250.75, res.Amount)
	assert.NotEmpty(t, res.InvoiceNumber)
	assert.Contains(t, res.Message, "$250.75")
	assert.Equal(t, 1, cache.bumps)
}

func TestAutoBillZeroAmountStillBills(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addOrder(10, 5, erp.ItemLine{ID: 1, Item: "warranty rework", Amount: 0})
	svc, _, _ := newTestService(ledger)

	res := svc.AutoBill(context.Background(), 10, erp.Unlimited())
	require.True(t, res.Success)
	assert.Equal(t, 0.0, res.Amount)
	assert.Len(t, ledger.invoices, 1)
}

func TestAutoBillSanitizesRejection(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addOrder(10, 0, erp.ItemLine{ID: 1, Item: "svc", Amount: 50}) // no customer
	svc, _, _ := newTestService(ledger)

	res := svc.AutoBill(context.Background(), 10, erp.Unlimited())
	require.False(t, res.Success)
	assert.Equal(t, "Missing required field(s): Customer", res.Message)
}

func TestAddNote(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addOrder(10, 5)
	svc, _, _ := newTestService(ledger)

	res := svc.AddNote(context.Background(), 10, "awaiting manager review", "2026-09-15", erp.Unlimited())
	require.True(t, res.Success)
	assert.Equal(t, "Research note saved.", res.Message)
	assert.Equal(t, "awaiting manager review", ledger.fields[10]["research_note"])
	assert.NotNil(t, ledger.fields[10]["follow_up_date"])
}

func TestAddNoteEmptyClears(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addOrder(10, 5)
	svc, _, _ := newTestService(ledger)

	res := svc.AddNote(context.Background(), 10, "", "", erp.Unlimited())
	require.True(t, res.Success)
	assert.Equal(t, "Research note cleared.", res.Message)
	assert.Equal(t, "", ledger.fields[10]["research_note"])
	assert.Nil(t, ledger.fields[10]["follow_up_date"])
}

func TestAddNoteRejectsBadDate(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addOrder(10, 5)
	svc, _, _ := newTestService(ledger)

	res := svc.AddNote(context.Background(), 10, "note", "15/09/2026", erp.Unlimited())
	require.False(t, res.Success)
	assert.Contains(t, res.Message, "YYYY-MM-DD")
	// Nothing written on a rejected date.
	assert.Empty(t, ledger.fields[10])
}

// ============================================================================
// BULK LOOPS
// ============================================================================

func TestBulkQueueContinuesPastFailures(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addOrder(1, 5)
	ledger.addOrder(3, 5)
	svc, _, _ := newTestService(ledger)

	res := svc.BulkQueue(context.Background(), []int64{1, 2, 3}, erp.Unlimited())
	require.True(t, res.Success)
	assert.Equal(t, []int64{1, 3}, res.ProcessedIDs)
	assert.Equal(t, []int64{2}, res.FailedIDs)
	assert.Equal(t, 2, res.Count)
	assert.Contains(t, res.Message, "1 failed")
	assert.False(t, res.GovernanceStopped)
}

func TestBulkQueueGovernanceStopsEarly(t *testing.T) {
	ledger := newFakeLedger()
	for id := int64(1); id <= 5; id++ {
		ledger.addOrder(id, 5)
	}
	svc, _, _ := newTestService(ledger)

	// Queue costs 10 units per item against a floor of 100: a budget of
	// 120 admits exactly three items before the check trips.
	budget := erp.NewBudget(120)
	res := svc.BulkQueue(context.Background(), []int64{1, 2, 3, 4, 5}, budget)
	require.True(t, res.Success)
	assert.True(t, res.GovernanceStopped)
	assert.Equal(t, []int64{1, 2, 3}, res.ProcessedIDs)
	assert.Empty(t, res.FailedIDs)
	assert.Contains(t, res.Message, "resubmit")

	// The remainder was never touched.
	assert.NotContains(t, ledger.fields, int64(4))
	assert.NotContains(t, ledger.fields, int64(5))
}

func TestBulkCloseCollectsFailureMessages(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addOrder(1, 5, erp.ItemLine{ID: 1, Item: "svc", Amount: 10})
	svc, _, _ := newTestService(ledger)

	res := svc.BulkClose(context.Background(), []int64{1, 42}, erp.Unlimited())
	require.True(t, res.Success)
	assert.Equal(t, []int64{1}, res.ProcessedIDs)
	require.Contains(t, res.FailureMessages, int64(42))
	assert.Equal(t, "Order not found.", res.FailureMessages[42])
}

func TestBulkAutoBillMixedAmounts(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addOrder(1, 5, erp.ItemLine{ID: 1, Item: "a", Amount: 100})
	ledger.addOrder(2, 5, erp.ItemLine{ID: 2, Item: "b", Amount: 250.75})
	ledger.addOrder(3, 5, erp.ItemLine{ID: 3, Item: "c", Amount: 0})
	svc, _, _ := newTestService(ledger)

	res := svc.BulkAutoBill(context.Background(), []int64{1, 2, 3}, erp.Unlimited())
	require.True(t, res.Success)
	assert.Equal(t, 3, res.Count)
	assert.Len(t, ledger.invoices, 3)
}

// ============================================================================
// DEGRADED READS
// ============================================================================

func TestUnbilledOrdersDegradesToEmpty(t *testing.T) {
	ledger := newFakeLedger()
	svc, repo, _ := newTestService(ledger)
	repo.listErr = fmt.Errorf("connection refused")

	orders := svc.UnbilledOrders(context.Background())
	assert.NotNil(t, orders)
	assert.Empty(t, orders)

	summary := svc.Summarize(context.Background())
	assert.Zero(t, summary.OrderCount)
}
