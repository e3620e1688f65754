// Package fixtures writes sample Admin, Echeque and Yono exports in the
// layouts the loaders expect. It backs the loader tests and the fixturegen
// command.
package fixtures

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

// AdminSheet is the sheet the Admin export keeps its data on
const AdminSheet = "BCKOLimitsConfiguration"

// Header labels as they appear in the source exports
var (
	AdminHeader = []string{
		"Date of Transaction",
		"Limit Configured By",
		"KO ID",
		"Opening Limit",
		"Type of Transaction",
		"Amount",
		"Closing Limit",
	}

	AdminBanner = []string{
		"State Bank of India",
		"BC KO Limits Configuration Report",
		"Generated by KO Admin Portal",
	}
)

// AdminRow is one line of the Admin export. Numeric fields are strings so
// tests can write blanks and junk; parseable values are stored as numbers.
type AdminRow struct {
	Date         string
	ConfiguredBy string
	KOID         string
	OpeningLimit string
	Type         string
	Amount       string
	ClosingLimit string
}

func (r AdminRow) byHeader() map[string]string {
	return map[string]string{
		"date of transaction": r.Date,
		"limit configured by": r.ConfiguredBy,
		"ko id":               r.KOID,
		"opening limit":       r.OpeningLimit,
		"type of transaction": r.Type,
		"amount":              r.Amount,
		"closing limit":       r.ClosingLimit,
	}
}

// AdminOptions changes the workbook layout
type AdminOptions struct {
	// SheetName defaults to AdminSheet.
	SheetName string
	// Header lists the header cells in file order; defaults to AdminHeader.
	// Labels are matched to row fields ignoring case and surrounding spaces,
	// so reordered, padded or extra headers can be written.
	Header []string
	// Banner rows written above the header; defaults to AdminBanner.
	Banner []string
}

// WriteAdmin writes an Admin workbook to path
func WriteAdmin(path string, rows []AdminRow, opts AdminOptions) error {
	sheet := opts.SheetName
	if sheet == "" {
		sheet = AdminSheet
	}
	header := opts.Header
	if header == nil {
		header = AdminHeader
	}
	banner := opts.Banner
	if banner == nil {
		banner = AdminBanner
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	line := 1
	for _, text := range banner {
		if text != "" {
			if err := setRow(f, sheet, line, []interface{}{text}); err != nil {
				return err
			}
		}
		line++
	}

	headerCells := make([]interface{}, len(header))
	for i, h := range header {
		headerCells[i] = h
	}
	if err := setRow(f, sheet, line, headerCells); err != nil {
		return err
	}
	line++

	for _, row := range rows {
		values := row.byHeader()
		cells := make([]interface{}, len(header))
		for i, h := range header {
			cells[i] = cellValue(values[strings.ToLower(strings.TrimSpace(h))])
		}
		if err := setRow(f, sheet, line, cells); err != nil {
			return err
		}
		line++
	}

	return f.SaveAs(path)
}

// EchequeRow is one line of the Echeque export
type EchequeRow struct {
	Serial       string
	ConfiguredBy string
	KOID         string
	OpeningLimit string
	Type         string
	Amount       string
	ClosingLimit string
}

func (r EchequeRow) cells() []string {
	return []string{r.Serial, r.ConfiguredBy, r.KOID, r.OpeningLimit, r.Type, r.Amount, r.ClosingLimit}
}

// EchequeOptions changes the workbook layout
type EchequeOptions struct {
	// SheetName defaults to "Sheet1".
	SheetName string
	// Trailing appends extra cells after the seven known columns.
	Trailing []string
	// Width truncates every row to this many cells when positive.
	Width int
}

// WriteEcheque writes a headerless Echeque workbook to path
func WriteEcheque(path string, rows []EchequeRow, opts EchequeOptions) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Sheet1"
	if opts.SheetName != "" {
		if err := f.SetSheetName(sheet, opts.SheetName); err != nil {
			return fmt.Errorf("rename sheet: %w", err)
		}
		sheet = opts.SheetName
	}

	for i, row := range rows {
		values := append(row.cells(), opts.Trailing...)
		if opts.Width > 0 && len(values) > opts.Width {
			values = values[:opts.Width]
		}
		cells := make([]interface{}, len(values))
		for j, v := range values {
			cells[j] = cellValue(v)
		}
		if err := setRow(f, sheet, i+1, cells); err != nil {
			return err
		}
	}

	return f.SaveAs(path)
}

// YonoRow is one transaction line of the Yono statement
type YonoRow struct {
	TxnDate     string `csv:"Txn Date"`
	ValueDate   string `csv:"Value Date"`
	Description string `csv:"Description"`
	Reference   string `csv:"Ref No./Cheque No."`
	BranchCode  string `csv:"Branch Code"`
	Debit       string `csv:"Debit"`
	Credit      string `csv:"Credit"`
	Balance     string `csv:"Balance"`
}

// YonoBannerLines is the number of statement lines above the header
const YonoBannerLines = 19

// YonoOptions changes the statement layout
type YonoOptions struct {
	// BannerLines defaults to YonoBannerLines; a negative value writes none.
	BannerLines int
	// BlankLines inserts this many empty lines inside the banner.
	BlankLines int
	// Windows1252 encodes the output as Windows-1252 instead of UTF-8.
	Windows1252 bool
	// BOM prefixes a UTF-8 byte order mark.
	BOM bool
}

// WriteYono writes a Yono statement CSV to path
func WriteYono(path string, rows []YonoRow, opts YonoOptions) error {
	data, err := YonoBytes(rows, opts)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// YonoBytes renders a Yono statement
func YonoBytes(rows []YonoRow, opts YonoOptions) ([]byte, error) {
	lines := opts.BannerLines
	switch {
	case lines == 0:
		lines = YonoBannerLines
	case lines < 0:
		lines = 0
	}

	var buf bytes.Buffer
	if opts.BOM {
		buf.Write([]byte{0xEF, 0xBB, 0xBF})
	}

	w := csv.NewWriter(&buf)
	for i := 0; i < lines; i++ {
		if i == 1 {
			w.Flush()
			for b := 0; b < opts.BlankLines; b++ {
				buf.WriteString("\n")
			}
		}
		if err := w.Write(bannerLine(i)); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	if rows == nil {
		rows = []YonoRow{}
	}
	if err := gocsv.MarshalCSV(&rows, gocsv.NewSafeCSVWriter(csv.NewWriter(&buf))); err != nil {
		return nil, fmt.Errorf("write statement rows: %w", err)
	}

	if opts.Windows1252 {
		return charmap.Windows1252.NewEncoder().Bytes(buf.Bytes())
	}
	return buf.Bytes(), nil
}

func bannerLine(i int) []string {
	switch i {
	case 0:
		return []string{"Account Name", ":", "KO AGENT SERVICES"}
	case 1:
		return []string{"Address", ":", "MAIN ROAD"}
	case 2:
		return []string{"Account Number", ":", "00000012345678901"}
	case 3:
		return []string{"Branch", ":", "MAIN BRANCH"}
	default:
		return []string{fmt.Sprintf("Statement line %d", i+1), ":", ""}
	}
}

func setRow(f *excelize.File, sheet string, row int, cells []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}

// cellValue stores numbers as numeric cells and blanks as empty cells
func cellValue(s string) interface{} {
	if s == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
