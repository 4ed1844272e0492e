package export

import (
	"fmt"
	"log"

	"github.com/xuri/excelize/v2"

	"supermart/internal/domain"
)

const receiptSheet = "Receipts"

// ReceiptsXLSX renders the journal as a workbook with the same columns as the
// CSV export. Totals are written as numbers so the sheet can sum them.
func ReceiptsXLSX(receipts []domain.Receipt) ([]byte, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("[export] WARN: close workbook: %v", err)
		}
	}()

	if err := f.SetSheetName("Sheet1", receiptSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(receiptColumns))
	for i, col := range receiptColumns {
		header[i] = col
	}
	if err := f.SetSheetRow(receiptSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	for i, r := range receipts {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := receiptRow(r)
		values := []any{row[0], row[1], row[2], row[3], r.Total.InexactFloat64(), row[5], row[6]}
		if err := f.SetSheetRow(receiptSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("write receipt %s: %w", r.ID, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}
