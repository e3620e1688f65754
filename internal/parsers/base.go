// Package parsers loads the three KO source exports into tables.
//
// Each export has its own quirks:
//   - Admin: an Excel workbook whose data sits on a named sheet below a
//     three-row banner
//   - Echeque: an Excel workbook without any header row; columns are
//     assigned by position
//   - Yono: a CSV bank statement whose header is the twentieth non-empty line
//
// Loaders never return an empty table silently. Every failure is a
// *errors.ReconcilerError in the load or schema category naming the source.
//
// Example usage:
//
//	loader, err := NewAdminLoader(DefaultAdminConfig())
//	table, err := loader.Load(ctx, "admin.xlsx")
package parsers

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/shakinm/xlsReader/xls"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	"ko-reconciliation-service/internal/models"
	"ko-reconciliation-service/pkg/errors"
	"ko-reconciliation-service/pkg/logger"
)

// cancelCheckInterval is how many rows are read between context checks
const cancelCheckInterval = 1000

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Loader turns one source file into a table
type Loader interface {
	Source() string
	Load(ctx context.Context, path string) (*models.Table, error)
}

// spreadsheet is the common view over .xlsx and .xls workbooks
type spreadsheet interface {
	SheetNames() []string
	Rows(sheet string) ([][]models.Cell, error)
	Close() error
}

// openSpreadsheet opens a workbook, choosing the reader from the extension.
// Files without a known extension are tried as .xlsx first.
func openSpreadsheet(source, path string, log logger.Logger) (spreadsheet, error) {
	log.WithField("file_path", path).Debug("Opening workbook")

	if err := checkReadable(source, path); err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".xls" {
		book, err := openXLSX(source, path)
		if err == nil {
			return book, nil
		}
		if ext == ".xlsx" || ext == ".xlsm" {
			return nil, err
		}
		log.WithError(err).WithField("file_path", path).Debug("Not an xlsx workbook, trying xls")
	}

	book, err := openXLS(source, path)
	if err != nil {
		return nil, err
	}
	return book, nil
}

func checkReadable(source, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return classifyOpenError(source, path, err)
	}
	if info.IsDir() {
		return errors.LoadError(errors.CodeInvalidFormat, source, path, nil).
			WithSuggestion("provide a file, not a directory")
	}
	return nil
}

func classifyOpenError(source, path string, err error) error {
	switch {
	case os.IsNotExist(err):
		return errors.LoadError(errors.CodeFileNotFound, source, path, err)
	case os.IsPermission(err):
		return errors.LoadError(errors.CodeFilePermission, source, path, err)
	default:
		return errors.LoadError(errors.CodeInvalidFormat, source, path, err)
	}
}

type xlsxBook struct {
	file *excelize.File
}

func openXLSX(source, path string) (*xlsxBook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.LoadError(errors.CodeInvalidFormat, source, path, err)
	}
	return &xlsxBook{file: f}, nil
}

func (b *xlsxBook) SheetNames() []string {
	return b.file.GetSheetList()
}

// Rows reads raw cell values so number formats never alter amounts
func (b *xlsxBook) Rows(sheet string) ([][]models.Cell, error) {
	rows, err := b.file.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}
	return stringRowsToCells(rows), nil
}

func (b *xlsxBook) Close() error {
	return b.file.Close()
}

type xlsBook struct {
	workbook xls.Workbook
	names    []string
}

func openXLS(source, path string) (*xlsBook, error) {
	wb, err := xls.OpenFile(path)
	if err != nil {
		return nil, errors.LoadError(errors.CodeInvalidFormat, source, path, err)
	}

	book := &xlsBook{workbook: wb}
	for i := 0; i < wb.GetNumberSheets(); i++ {
		sheet, err := wb.GetSheet(i)
		if err != nil || sheet == nil {
			continue
		}
		book.names = append(book.names, sheet.GetName())
	}
	return book, nil
}

func (b *xlsBook) SheetNames() []string {
	return b.names
}

func (b *xlsBook) Rows(name string) ([][]models.Cell, error) {
	for i := 0; i < b.workbook.GetNumberSheets(); i++ {
		sheet, err := b.workbook.GetSheet(i)
		if err != nil || sheet == nil || sheet.GetName() != name {
			continue
		}

		var rows [][]models.Cell
		for r := 0; r <= int(sheet.GetNumberRows()); r++ {
			row, err := sheet.GetRow(r)
			if err != nil || row == nil {
				rows = append(rows, nil)
				continue
			}

			cols := row.GetCols()
			cells := make([]models.Cell, len(cols))
			for c, col := range cols {
				if col == nil {
					continue
				}
				cells[c] = models.NewCell(col.GetString())
			}
			rows = append(rows, cells)
		}
		return trimTrailingEmpty(rows), nil
	}
	return nil, os.ErrNotExist
}

func (b *xlsBook) Close() error {
	return nil
}

func stringRowsToCells(rows [][]string) [][]models.Cell {
	out := make([][]models.Cell, len(rows))
	for i, row := range rows {
		cells := make([]models.Cell, len(row))
		for j, v := range row {
			cells[j] = models.NewCell(v)
		}
		out[i] = cells
	}
	return trimTrailingEmpty(out)
}

func trimTrailingEmpty(rows [][]models.Cell) [][]models.Cell {
	end := len(rows)
	for end > 0 && isEmptyRow(rows[end-1]) {
		end--
	}
	return rows[:end]
}

// isEmptyRow reports whether every cell of a row is missing
func isEmptyRow(row []models.Cell) bool {
	for _, cell := range row {
		if !cell.IsMissing() {
			return false
		}
	}
	return true
}

func rowWidth(rows [][]models.Cell) int {
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	return width
}

// readDelimited reads a whole delimited text file. Empty lines are skipped
// by the csv reader and never count as rows.
func readDelimited(ctx context.Context, source, path string, delimiter rune, log logger.Logger) ([][]string, error) {
	log.WithField("file_path", path).Debug("Opening delimited file")

	if err := checkReadable(source, path); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, classifyOpenError(source, path, err)
	}

	text, legacy, err := decodeText(data)
	if err != nil {
		return nil, errors.LoadError(errors.CodeEncodingError, source, path, err)
	}
	if legacy {
		log.WithField("file_path", path).Debug("Input decoded as Windows-1252")
	}

	reader := csv.NewReader(bytes.NewReader(text))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var records [][]string
	for {
		if len(records)%cancelCheckInterval == 0 {
			if err := checkCancelled(ctx, source); err != nil {
				return nil, err
			}
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.LoadError(errors.CodeInvalidFormat, source, path, err).
				WithContext("line", len(records)+1)
		}
		records = append(records, record)
	}

	return records, nil
}

// decodeText strips a UTF-8 byte order mark and falls back to Windows-1252
// for input that is not valid UTF-8
func decodeText(data []byte) (text []byte, legacy bool, err error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return data, false, nil
	}
	text, err = charmap.Windows1252.NewDecoder().Bytes(data)
	return text, true, err
}

func checkCancelled(ctx context.Context, source string) error {
	if err := ctx.Err(); err != nil {
		return errors.InternalError(errors.CodeCancelled, "loading "+source, err)
	}
	return nil
}
