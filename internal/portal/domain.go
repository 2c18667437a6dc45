// Package portal implements the service write-off portal: the unbilled
// order list, the single-item actions, and the bulk billing/write-off
// workflows behind them.
package portal

import "time"

// Action names accepted by the dispatcher. These are the wire values
// POSTed by the portal page.
const (
	ActionQueue    = "queue"
	ActionUnqueue  = "unqueue"
	ActionClose    = "close"
	ActionAutoBill = "auto-bill"
	ActionBillJE   = "cbsi-bill-je"
	ActionAddNote  = "add-note"
)

// UnbilledLine is one unbilled line item on an order.
type UnbilledLine struct {
	Item     string  `json:"item"`
	Quantity float64 `json:"quantity"`
	Amount   float64 `json:"amount"`
}

// UnbilledOrder is a sales order with open unbilled amounts, plus the
// custom attributes the portal reads and writes.
type UnbilledOrder struct {
	ID             int64          `json:"id"`
	Number         string         `json:"number"`
	TradeDate      time.Time      `json:"tradeDate"`
	CustomerName   string         `json:"customerName"`
	Status         string         `json:"status"`
	JobID          string         `json:"jobId"`
	WarrantyType   string         `json:"warrantyType"`
	ScheduledStart time.Time      `json:"scheduledStart"`
	ScheduledEnd   time.Time      `json:"scheduledEnd"`
	ResearchNote   string         `json:"researchNote"`
	FollowUpDate   time.Time      `json:"followUpDate"`
	QueuedAt       *time.Time     `json:"queuedAt,omitempty"`
	UnbilledAmount float64        `json:"unbilledAmount"`
	Lines          []UnbilledLine `json:"lines"`
}

// Queued reports whether the order sits in the write-off queue.
func (o UnbilledOrder) Queued() bool {
	return o.QueuedAt != nil && !o.QueuedAt.IsZero()
}

// Summary aggregates the portal's unbilled population.
type Summary struct {
	OrderCount   int     `json:"orderCount"`
	LineCount    int     `json:"lineCount"`
	TotalAmount  float64 `json:"totalAmount"`
	QueuedCount  int     `json:"queuedCount"`
	QueuedAmount float64 `json:"queuedAmount"`
}

// ActionRequest is a single-item action POSTed from the portal page.
type ActionRequest struct {
	Action       string `json:"action" validate:"required"`
	SOID         int64  `json:"soId" validate:"required,gt=0"`
	Note         string `json:"note" validate:"max=4000"`
	FollowUpDate string `json:"followUpDate" validate:"omitempty,datetime=2006-01-02"`
}

// ActionResult is the JSON envelope every single-item handler returns.
type ActionResult struct {
	Success       bool    `json:"success"`
	Message       string  `json:"message"`
	InvoiceID     int64   `json:"invoiceId,omitempty"`
	InvoiceNumber string  `json:"invoiceNumber,omitempty"`
	JournalNumber string  `json:"journalNumber,omitempty"`
	Amount        float64 `json:"amount,omitempty"`
}

// BulkResult reports a bulk batch outcome, including the resumable
// governance-stop condition. Ids neither processed nor failed were not
// attempted and should be resubmitted.
type BulkResult struct {
	Success           bool             `json:"success"`
	Message           string           `json:"message"`
	ProcessedIDs      []int64          `json:"processedIds"`
	FailedIDs         []int64          `json:"failedIds"`
	FailureMessages   map[int64]string `json:"failureMessages,omitempty"`
	GovernanceStopped bool             `json:"governanceStopped"`
	Count             int              `json:"count"`
}
