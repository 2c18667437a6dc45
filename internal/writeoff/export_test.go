package writeoff

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func exportReport() Report {
	return Report{
		Rows: []Row{
			{DocID: 1, DocNumber: "INV-900001", DocType: "invoice", TradeDate: time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC), CustomerName: "Lakeside Property Group", Amount: 42.17, Memo: "Short pay"},
			{DocID: 2, DocNumber: "CM-900003", DocType: "creditmemo", TradeDate: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), CustomerName: "Cedar Ridge Facilities", Amount: -58.25},
		},
		Totals: Totals{InvoiceCount: 1, InvoiceTotal: 42.17, CreditCount: 1, CreditTotal: -58.25, NetTotal: -16.08, RowCount: 2},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, exportReport()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4) // header + 2 rows + footer

	assert.Equal(t, exportHeader, records[0])
	assert.Equal(t, "INV-900001", records[1][0])
	assert.Equal(t, "2/14/2026", records[1][2])
	assert.Equal(t, "$42.17", records[1][4])
	assert.Equal(t, "-$58.25", records[2][4])
	assert.Equal(t, "Net Total", records[3][3])
	assert.Equal(t, "-$16.08", records[3][4])
}

func TestWriteExcel(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteExcel(&buf, exportReport()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.NotContains(t, f.GetSheetList(), "Sheet1")

	value, err := f.GetCellValue("Write-Offs", "A2")
	require.NoError(t, err)
	assert.Equal(t, "INV-900001", value)

	footerLabel, err := f.GetCellValue("Write-Offs", "D4")
	require.NoError(t, err)
	assert.Equal(t, "Net Total", footerLabel)
}
