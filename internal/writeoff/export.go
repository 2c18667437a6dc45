package writeoff

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/ericsoloffconsulting/service-inv-write-off/internal/shared"
)

var exportHeader = []string{"Document #", "Type", "Date", "Customer", "Amount", "Memo"}

// WriteCSV serialises the report rows and a totals footer to CSV.
func WriteCSV(w io.Writer, report Report) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(exportHeader); err != nil {
		return err
	}
	for _, row := range report.Rows {
		if err := writer.Write([]string{
			row.DocNumber,
			row.DocType,
			shared.FormatDate(row.TradeDate),
			row.CustomerName,
			shared.FormatAmount(row.Amount),
			row.Memo,
		}); err != nil {
			return err
		}
	}
	if err := writer.Write([]string{"", "", "", "Net Total", shared.FormatAmount(report.Totals.NetTotal), ""}); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

// WriteExcel serialises the report to an xlsx workbook.
func WriteExcel(w io.Writer, report Report) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	const sheet = "Write-Offs"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return err
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}

	for col, title := range exportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, title); err != nil {
			return err
		}
	}

	for i, row := range report.Rows {
		rowNum := i + 2
		values := []any{row.DocNumber, row.DocType, shared.FormatDate(row.TradeDate), row.CustomerName, row.Amount, row.Memo}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, rowNum)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return err
			}
		}
	}

	footer := len(report.Rows) + 2
	if err := f.SetCellValue(sheet, fmt.Sprintf("D%d", footer), "Net Total"); err != nil {
		return err
	}
	if err := f.SetCellValue(sheet, fmt.Sprintf("E%d", footer), report.Totals.NetTotal); err != nil {
		return err
	}

	return f.Write(w)
}
