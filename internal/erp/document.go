// Package erp defines the narrow capability surface this service needs
// from the transactional record store: load/save/delete/transform over
// accounting documents, plus an explicit execution budget.
package erp

import "time"

// DocType enumerates the document types the service touches.
type DocType string

const (
	DocSalesOrder      DocType = "salesorder"
	DocInvoice         DocType = "invoice"
	DocCreditMemo      DocType = "creditmemo"
	DocJournalEntry    DocType = "journalentry"
	DocCustomerPayment DocType = "customerpayment"
)

// Document is the in-memory shape of a ledger document. Only the
// sublists relevant to the document's type are populated.
type Document struct {
	Type   DocType
	ID     int64
	Number string

	// SourceID is the id of the document this one was transformed
	// from, zero when the document was created directly.
	SourceID int64

	// EntityID is the customer or counterparty the document belongs to.
	EntityID int64

	TradeDate       time.Time
	Memo            string
	PaymentMethodID int64

	// Total is recomputed by Save for derived documents; callers must
	// reload after saving before trusting it.
	Total float64

	// Payment is the payment amount on a customerpayment document.
	Payment float64

	Lines        []ItemLine
	JournalLines []JournalLine
	ApplyLines   []ApplyLine
	CreditLines  []CreditLine
}

// ItemLine is a sales order or invoice item line.
type ItemLine struct {
	ID       int64
	Item     string
	Quantity float64
	Amount   float64
	Closed   bool
}

// JournalLine stores a debit or credit amount for an account.
type JournalLine struct {
	AccountID    int64
	DepartmentID int64
	EntityID     int64
	Debit        float64
	Credit       float64
	Memo         string
}

// ApplyLine is an open receivable a payment can be applied against.
type ApplyLine struct {
	DocID     int64
	RefNumber string
	Due       float64
	Apply     bool
	Amount    float64
}

// CreditLine is an open credit a payment can draw from.
type CreditLine struct {
	DocID     int64
	RefNumber string
	Due       float64
	Apply     bool
	Amount    float64
}

// UnappliedTotal sums the due amounts of lines not selected for apply.
func (d *Document) UnappliedTotal() float64 {
	var total float64
	for _, line := range d.ApplyLines {
		if !line.Apply {
			total += line.Due
		}
	}
	return total
}
