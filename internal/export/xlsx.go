// Package export writes stored extractions to spreadsheets.
package export

import (
	"fmt"

	"github.com/bosocmputer/bank_guarantee_ai/internal/guarantee"
	"github.com/bosocmputer/bank_guarantee_ai/internal/storage"
	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet holding the extraction rows.
const SheetName = "Guarantees"

var leadingHeaders = []string{"Extracted At", "Guarantee Type", "Model", "Pages", "Score", "Needs Review"}

// ExtractionsXLSX returns a workbook with one row per record, fields in key
// order after the record metadata.
func ExtractionsXLSX(records []storage.ExtractionRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet(SheetName); err != nil {
		return nil, err
	}
	index, err := f.GetSheetIndex(SheetName)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	headers := append(append([]string{}, leadingHeaders...), guarantee.Keys...)
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(SheetName, cell, h)
	}

	for r, rec := range records {
		row := r + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(SheetName, cell, v)
		}

		write(1, rec.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
		write(2, rec.GuaranteeType)
		write(3, rec.Model)
		write(4, rec.Pages)
		write(5, rec.Score)
		write(6, rec.RequiresReview)
		for i, key := range guarantee.Keys {
			write(len(leadingHeaders)+i+1, rec.Fields[key])
		}
	}

	_ = f.SetColWidth(SheetName, "A", "A", 20)
	_ = f.SetColWidth(SheetName, "B", "B", 28)
	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	_ = f.SetColWidth(SheetName, "G", lastCol, 24)
	_ = f.SetPanes(SheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}
