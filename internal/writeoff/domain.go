// Package writeoff serves the read-only write-off transaction list.
package writeoff

import "time"

// Row is one open invoice or credit memo in the write-off list.
// Amount carries the sign convention: invoices positive remaining
// balance, credit memos negative.
type Row struct {
	DocID        int64     `json:"docId"`
	DocNumber    string    `json:"docNumber"`
	DocType      string    `json:"docType"`
	TradeDate    time.Time `json:"tradeDate"`
	CustomerName string    `json:"customerName"`
	Amount       float64   `json:"amount"`
	Memo         string    `json:"memo"`
}

// Totals is the aggregate view of the full population, independent of
// whether the detail rows were truncated.
type Totals struct {
	InvoiceCount int     `json:"invoiceCount"`
	InvoiceTotal float64 `json:"invoiceTotal"`
	CreditCount  int     `json:"creditCount"`
	CreditTotal  float64 `json:"creditTotal"`
	NetTotal     float64 `json:"netTotal"`
	RowCount     int     `json:"rowCount"`
}

// Report is what the service hands to presentation: detail rows plus
// always-correct totals.
type Report struct {
	Rows              []Row  `json:"rows"`
	Totals            Totals `json:"totals"`
	Truncated         bool   `json:"truncated"`
	DuplicatesDropped int    `json:"duplicatesDropped"`
}
