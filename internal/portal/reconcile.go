package portal

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/google/uuid"

	"github.com/ericsoloffconsulting/service-inv-write-off/internal/erp"
	"github.com/ericsoloffconsulting/service-inv-write-off/internal/shared"
)

// amountTolerance is the maximum acceptable drift between the applied
// and credited amounts before the workflow refuses to save.
const amountTolerance = 0.01

// BillAndJE runs the compound billing/write-off reconciliation for one
// order: bill it to the fixed counterparty, post a balancing journal
// entry, then net the two against each other through a transient
// payment document. The single-item action and the bulk path both run
// this one procedure.
func (s *Service) BillAndJE(ctx context.Context, soID int64, budget *erp.Budget) ActionResult {
	runID := uuid.New()
	log := s.logger.With(slog.Int64("soId", soID), slog.String("run", runID.String()))

	// Bill the order to the write-off counterparty. Mandatory-field
	// enforcement is relaxed: the reassigned entity rarely satisfies
	// the order's original required fields.
	budget.Consume(erp.OpTransform)
	inv, err := s.ledger.Transform(ctx, erp.DocSalesOrder, soID, erp.DocInvoice)
	if err != nil {
		return failure(err)
	}
	inv.EntityID = s.cfg.CounterpartyID

	budget.Consume(erp.OpSave)
	invoiceID, err := s.ledger.Save(ctx, inv, erp.SaveOptions{IgnoreMandatoryFields: true})
	if err != nil {
		return failure(err)
	}

	// Reload for the authoritative total; save recomputes derived
	// fields and the in-memory value cannot be trusted.
	budget.Consume(erp.OpLoad)
	invoice, err := s.ledger.Load(ctx, erp.DocInvoice, invoiceID)
	if err != nil {
		return failure(err)
	}
	total := invoice.Total
	log.Info("write-off invoice created", slog.String("number", invoice.Number), slog.Float64("total", total))

	// Balancing journal entry: debit the write-off account, credit the
	// clearing account against the counterparty.
	je := &erp.Document{
		Type:      erp.DocJournalEntry,
		TradeDate: s.now(),
		Memo:      fmt.Sprintf("Service write-off for invoice %s", invoice.Number),
		JournalLines: []erp.JournalLine{
			{
				AccountID:    s.cfg.WriteOffAccountID,
				DepartmentID: s.cfg.WriteOffDepartmentID,
				Debit:        total,
				Memo:         fmt.Sprintf("Write-off %s", invoice.Number),
			},
			{
				AccountID: s.cfg.ClearingAccountID,
				EntityID:  s.cfg.CounterpartyID,
				Credit:    total,
				Memo:      fmt.Sprintf("Write-off %s", invoice.Number),
			},
		},
	}

	budget.Consume(erp.OpSave)
	jeID, err := s.ledger.Save(ctx, je, erp.SaveOptions{})
	if err != nil {
		return failure(err)
	}

	budget.Consume(erp.OpLoad)
	journal, err := s.ledger.Load(ctx, erp.DocJournalEntry, jeID)
	if err != nil {
		return failure(err)
	}
	log.Info("balancing journal entry posted", slog.String("number", journal.Number))

	// Transient payment linking the journal credit to the invoice.
	budget.Consume(erp.OpTransform)
	payment, err := s.ledger.Transform(ctx, erp.DocInvoice, invoiceID, erp.DocCustomerPayment)
	if err != nil {
		return failure(err)
	}
	payment.TradeDate = s.now()
	payment.PaymentMethodID = s.cfg.PaymentMethodID
	payment.Memo = fmt.Sprintf("Write-off application, JE %s", journal.Number)
	payment.Payment = total

	// The transform pre-selects whatever open items the host decides
	// to auto-apply. Clear everything before selecting the intended
	// lines so no unrelated receivable is touched.
	for i := range payment.ApplyLines {
		payment.ApplyLines[i].Apply = false
		payment.ApplyLines[i].Amount = 0
	}

	creditAmount, creditFound := selectCreditLine(payment, jeID, total)
	if !creditFound {
		return ActionResult{Success: false, Message: fmt.Sprintf("No open credit found for journal entry %s; nothing was applied.", journal.Number)}
	}
	applyAmount, applyFound := selectApplyLine(payment, invoiceID, total)
	if !applyFound {
		return ActionResult{Success: false, Message: fmt.Sprintf("Invoice %s is not open for application; nothing was applied.", invoice.Number)}
	}
	if open := payment.UnappliedTotal(); open > 0 {
		log.Debug("other open receivables left untouched", slog.Float64("due", open))
	}

	// The correctness gate: refuse to save anything that would leave a
	// partially-applied, unbalanced application in the ledger.
	if err := validateReconciliation(applyAmount, creditAmount, total); err != nil {
		log.Error("reconciliation validation failed", slog.Any("error", err))
		return ActionResult{Success: false, Message: err.Error()}
	}

	budget.Consume(erp.OpSave)
	paymentID, err := s.ledger.Save(ctx, payment, erp.SaveOptions{})
	if err != nil {
		return failure(err)
	}

	// The payment exists only to carry the application; remove it.
	// The application already happened at save, so a failed delete is
	// cosmetic and must not fail the operation.
	budget.Consume(erp.OpDelete)
	if err := s.ledger.Delete(ctx, erp.DocCustomerPayment, paymentID); err != nil {
		log.Warn("transient payment cleanup failed", slog.Int64("paymentId", paymentID), slog.Any("error", err))
	}

	s.bumpCache(ctx)
	return ActionResult{
		Success:       true,
		Message:       fmt.Sprintf("Billed %s and posted %s for %s.", invoice.Number, journal.Number, shared.FormatAmount(total)),
		InvoiceID:     invoiceID,
		InvoiceNumber: invoice.Number,
		JournalNumber: journal.Number,
		Amount:        total,
	}
}

// selectCreditLine marks the credit line referencing the journal entry
// applied for the invoice total, returning the amount actually
// selectable on that line.
func selectCreditLine(payment *erp.Document, jeID int64, total float64) (float64, bool) {
	for i := range payment.CreditLines {
		if payment.CreditLines[i].DocID != jeID {
			continue
		}
		payment.CreditLines[i].Apply = true
		amount := total
		if payment.CreditLines[i].Due < amount {
			amount = payment.CreditLines[i].Due
		}
		payment.CreditLines[i].Amount = amount
		return amount, true
	}
	return 0, false
}

// selectApplyLine marks the apply line referencing the invoice applied
// for the invoice total.
func selectApplyLine(payment *erp.Document, invoiceID int64, total float64) (float64, bool) {
	for i := range payment.ApplyLines {
		if payment.ApplyLines[i].DocID != invoiceID {
			continue
		}
		payment.ApplyLines[i].Apply = true
		amount := total
		if payment.ApplyLines[i].Due < amount {
			amount = payment.ApplyLines[i].Due
		}
		payment.ApplyLines[i].Amount = amount
		return amount, true
	}
	return 0, false
}

// validateReconciliation enforces apply == credit == invoice total
// within tolerance before anything is persisted.
func validateReconciliation(applyAmount, creditAmount, total float64) error {
	if math.Abs(applyAmount-total) > amountTolerance {
		return fmt.Errorf("applied amount %s does not match the invoice total %s; nothing was applied",
			shared.FormatAmount(applyAmount), shared.FormatAmount(total))
	}
	if math.Abs(creditAmount-total) > amountTolerance {
		return fmt.Errorf("credited amount %s does not match the invoice total %s; nothing was applied",
			shared.FormatAmount(creditAmount), shared.FormatAmount(total))
	}
	if math.Abs(applyAmount-creditAmount) > amountTolerance {
		return fmt.Errorf("applied amount %s and credited amount %s do not net to zero; nothing was applied",
			shared.FormatAmount(applyAmount), shared.FormatAmount(creditAmount))
	}
	return nil
}
