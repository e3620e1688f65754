package reporter

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"ko-reconciliation-service/internal/models"
)

// writeWorkbook writes one sheet per summary table. Row 1 holds the column
// headers with A1 left blank; column A holds the source name.
func writeWorkbook(w io.Writer, summaries models.Summaries) error {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "top"},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	first := true
	for _, table := range summaries.Tables() {
		if table == nil {
			continue
		}

		if first {
			if err := f.SetSheetName("Sheet1", table.Name); err != nil {
				return fmt.Errorf("name sheet %s: %w", table.Name, err)
			}
			first = false
		} else if _, err := f.NewSheet(table.Name); err != nil {
			return fmt.Errorf("add sheet %s: %w", table.Name, err)
		}

		if err := writeSummarySheet(f, table, headerStyle); err != nil {
			return fmt.Errorf("write sheet %s: %w", table.Name, err)
		}
	}

	if first {
		return fmt.Errorf("no summary tables to write")
	}

	f.SetActiveSheet(0)
	return f.Write(w)
}

func writeSummarySheet(f *excelize.File, table *models.SummaryTable, headerStyle int) error {
	sheet := table.Name

	if err := f.SetCellValue(sheet, "B1", table.CountColumn); err != nil {
		return err
	}
	if err := f.SetCellValue(sheet, "C1", table.SumColumn); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "B1", "C1", headerStyle); err != nil {
		return err
	}

	for i, row := range table.Rows {
		line := i + 2
		if err := f.SetCellValue(sheet, fmt.Sprintf("A%d", line), row.Source); err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, fmt.Sprintf("B%d", line), row.Count); err != nil {
			return err
		}
		if err := setSumCell(f, sheet, fmt.Sprintf("C%d", line), row.Sum); err != nil {
			return err
		}
	}

	if len(table.Rows) > 0 {
		last := fmt.Sprintf("A%d", len(table.Rows)+1)
		if err := f.SetCellStyle(sheet, "A2", last, headerStyle); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(sheet, "A", "A", 12); err != nil {
		return err
	}
	return f.SetColWidth(sheet, "B", "C", 22)
}

// setSumCell writes sum as a number when a float64 holds it exactly and as
// its decimal text otherwise, so the cell never shows a rounded value.
func setSumCell(f *excelize.File, sheet, cell string, sum decimal.Decimal) error {
	value := sum.InexactFloat64()
	if decimal.NewFromFloat(value).Equal(sum) {
		return f.SetCellFloat(sheet, cell, value, -1, 64)
	}
	return f.SetCellStr(sheet, cell, models.FormatSum(sum))
}
