package reporter

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"

	"ko-reconciliation-service/internal/models"
)

// Layout of the PDF report, in millimetres and points
const (
	pdfMargin        = 10.0
	pdfMaxCellChars  = 20
	pdfNoDataMessage = "No data available"
)

var pdfSectionTitles = []string{
	"1. Withdrawal Summary",
	"2. Deposit Summary",
	"3. Total Summary",
}

// writePDF renders the three summaries as bordered grids on A4 portrait
// pages, each page headed by the report title.
func writePDF(w io.Writer, summaries models.Summaries, config *EmitterConfig) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetCompression(config.Compress)
	pdf.SetTitle(config.Title, false)

	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetHeaderFunc(func() {
		pdf.SetFont("Arial", "B", 12)
		pdf.CellFormat(0, 10, tr(config.Title), "", 1, "C", false, 0, "")
		pdf.Ln(5)
	})

	pdf.AddPage()

	for i, table := range summaries.Tables() {
		title := fmt.Sprintf("%d. Summary", i+1)
		if i < len(pdfSectionTitles) {
			title = pdfSectionTitles[i]
		}

		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(0, 8, tr(title), "", 1, "", false, 0, "")
		pdf.Ln(2)

		var frame *models.Table
		if table != nil {
			frame = table.Frame()
		}
		addPDFTable(pdf, frame, tr)
	}

	if err := pdf.Error(); err != nil {
		return err
	}
	return pdf.Output(w)
}

func addPDFTable(pdf *fpdf.Fpdf, table *models.Table, tr func(string) string) {
	if table.IsEmpty() {
		pdf.SetFont("Arial", "I", 9)
		pdf.CellFormat(0, 8, pdfNoDataMessage, "", 1, "", false, 0, "")
		pdf.Ln(2)
		return
	}

	pageWidth, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	colWidth := (pageWidth - left - right) / float64(len(table.Columns))

	pdf.SetFont("Arial", "B", 9)
	for _, col := range table.Columns {
		pdf.CellFormat(colWidth, 7, tr(truncate(col, pdfMaxCellChars)), "1", 0, "", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	for _, row := range table.Rows {
		for _, cell := range row {
			pdf.CellFormat(colWidth, 6, tr(truncate(cell.String(), pdfMaxCellChars)), "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(3)
}

// truncate cuts s to at most n characters
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
