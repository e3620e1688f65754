package reporter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"ko-reconciliation-service/internal/models"
	"ko-reconciliation-service/pkg/errors"
)

func summaryRows(counts []int64, sums []string) []models.SummaryRow {
	rows := make([]models.SummaryRow, len(models.SourceOrder))
	for i, source := range models.SourceOrder {
		rows[i] = models.SummaryRow{
			Source: source,
			Count:  counts[i],
			Sum:    decimal.RequireFromString(sums[i]),
		}
	}
	return rows
}

func createSampleSummaries() models.Summaries {
	withdrawal := models.NewSummaryTable(models.WithdrawalTable,
		models.WithdrawalCountColumn, models.WithdrawalSumColumn,
		summaryRows([]int64{2, 1, 3, 1}, []string{"150", "70", "120.5", "100"}))
	deposit := models.NewSummaryTable(models.DepositTable,
		models.DepositCountColumn, models.DepositSumColumn,
		summaryRows([]int64{1, 0, 2, 1}, []string{"30", "0", "80", "40"}))
	total, err := withdrawal.Add(deposit, models.TotalTable, models.TotalCountColumn, models.TotalSumColumn)
	if err != nil {
		panic(err)
	}
	return models.Summaries{Withdrawal: withdrawal, Deposit: deposit, Total: total}
}

func createSampleResult() *models.Result {
	placeholder := models.NewTable(models.TotalUnmatched, []string{"Sample"})
	placeholder.AppendStrings("No unmatched data available")

	return &models.Result{
		RunID:       "run-1",
		DateLabel:   "2024-01-31",
		Summaries:   createSampleSummaries(),
		Unmatched:   []models.NamedTable{{Name: models.TotalUnmatched, Table: placeholder}},
		ExcelFile:   "out/reconciliation_report_2024-01-31.xlsx",
		PDFFile:     "out/reconciliation_report_2024-01-31.pdf",
		ProcessedAt: time.Date(2024, 1, 31, 10, 0, 0, 0, time.UTC),
		Duration:    1500 * time.Millisecond,
	}
}

func newEmitter(t *testing.T, mutate func(c *EmitterConfig)) *Emitter {
	t.Helper()
	config := DefaultEmitterConfig()
	if mutate != nil {
		mutate(config)
	}
	e, err := NewEmitter(config)
	require.NoError(t, err)
	return e
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestEmitterConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		config    *EmitterConfig
		wantError bool
	}{
		{"default", DefaultEmitterConfig(), false},
		{"empty prefix", &EmitterConfig{FilePrefix: " "}, true},
		{"prefix with separator", &EmitterConfig{FilePrefix: "reports/run_"}, true},
		{"custom prefix", &EmitterConfig{FilePrefix: "ko_"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			assert.Equal(t, tt.wantError, err != nil, "Validate() error = %v", err)
		})
	}

	_, err := NewEmitter(&EmitterConfig{})
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestEmit_WritesBothReports(t *testing.T) {
	dir := t.TempDir()
	e := newEmitter(t, nil)

	files, err := e.Emit(dir, "2024-01-31", createSampleSummaries())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "reconciliation_report_2024-01-31.xlsx"), files.ExcelFile)
	assert.Equal(t, filepath.Join(dir, "reconciliation_report_2024-01-31.pdf"), files.PDFFile)
	assert.ElementsMatch(t, []string{
		"reconciliation_report_2024-01-31.xlsx",
		"reconciliation_report_2024-01-31.pdf",
	}, listDir(t, dir), "no temporary files are left behind")
}

func TestEmit_WorkbookLayout(t *testing.T) {
	dir := t.TempDir()
	e := newEmitter(t, nil)

	files, err := e.Emit(dir, "2024-01-31", createSampleSummaries())
	require.NoError(t, err)

	f, err := excelize.OpenFile(files.ExcelFile)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Withdrawal", "Deposit", "Total"}, f.GetSheetList())

	rows, err := f.GetRows("Withdrawal")
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, []string{"", "No of Withdrawals", "Sum of Withdrawals"}, rows[0])
	assert.Equal(t, []string{"Admin", "2", "150"}, rows[1])
	assert.Equal(t, []string{"YONO", "3", "120.5"}, rows[3])
	assert.Equal(t, "99922", rows[4][0])

	rows, err = f.GetRows("Total")
	require.NoError(t, err)
	assert.Equal(t, []string{"", "Total Transactions", "Total Sum"}, rows[0])
	assert.Equal(t, []string{"Admin", "3", "180"}, rows[1])
	assert.Equal(t, []string{"Cheque", "1", "70"}, rows[2])
}

func TestEmit_WorkbookKeepsPreciseSums(t *testing.T) {
	dir := t.TempDir()
	e := newEmitter(t, nil)

	withdrawal := models.NewSummaryTable(models.WithdrawalTable,
		models.WithdrawalCountColumn, models.WithdrawalSumColumn,
		summaryRows([]int64{1, 1, 1, 1}, []string{"12345678901234567.89", "0.1", "120.5", "0"}))
	deposit := models.NewSummaryTable(models.DepositTable,
		models.DepositCountColumn, models.DepositSumColumn,
		summaryRows([]int64{0, 0, 0, 0}, []string{"0", "0", "0", "0"}))
	total, err := withdrawal.Add(deposit, models.TotalTable, models.TotalCountColumn, models.TotalSumColumn)
	require.NoError(t, err)

	files, err := e.Emit(dir, "2024-01-31", models.Summaries{Withdrawal: withdrawal, Deposit: deposit, Total: total})
	require.NoError(t, err)

	f, err := excelize.OpenFile(files.ExcelFile)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Withdrawal")
	require.NoError(t, err)
	assert.Equal(t, "12345678901234567.89", rows[1][2], "too precise for a float, written as text")
	assert.Equal(t, "0.1", rows[2][2])
	assert.Equal(t, "120.5", rows[3][2])

	typ, err := f.GetCellType("Withdrawal", "C2")
	require.NoError(t, err)
	assert.Equal(t, excelize.CellTypeSharedString, typ)

	typ, err = f.GetCellType("Withdrawal", "C4")
	require.NoError(t, err)
	assert.NotEqual(t, excelize.CellTypeSharedString, typ, "exact sums stay numeric")
}

func TestEmit_PDFContainsTables(t *testing.T) {
	dir := t.TempDir()
	e := newEmitter(t, func(c *EmitterConfig) { c.Compress = false })

	files, err := e.Emit(dir, "2024-01-31", createSampleSummaries())
	require.NoError(t, err)

	data, err := os.ReadFile(files.PDFFile)
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
	for _, want := range []string{"KO Reconciliation Report", "1. Withdrawal Summary", "3. Total Summary", "No of Withdrawals", "120.5"} {
		assert.Contains(t, string(data), want)
	}
	assert.NotContains(t, string(data), pdfNoDataMessage)
}

func TestEmit_EmptySummaryPrintsPlaceholder(t *testing.T) {
	dir := t.TempDir()
	e := newEmitter(t, func(c *EmitterConfig) { c.Compress = false })

	summaries := createSampleSummaries()
	summaries.Deposit = models.NewSummaryTable(models.DepositTable, models.DepositCountColumn, models.DepositSumColumn, nil)

	files, err := e.Emit(dir, "2024-01-31", summaries)
	require.NoError(t, err)

	data, err := os.ReadFile(files.PDFFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), pdfNoDataMessage)
}

func TestEmit_OverwritesPreviousRun(t *testing.T) {
	dir := t.TempDir()
	e := newEmitter(t, nil)

	_, err := e.Emit(dir, "2024-01-31", createSampleSummaries())
	require.NoError(t, err)
	_, err = e.Emit(dir, "2024-01-31", createSampleSummaries())
	require.NoError(t, err)

	assert.Len(t, listDir(t, dir), 2)
}

func TestEmit_Errors(t *testing.T) {
	e := newEmitter(t, nil)

	t.Run("missing directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "absent")
		_, err := e.Emit(dir, "2024-01-31", createSampleSummaries())
		require.Error(t, err)
		assert.True(t, errors.IsWriteError(err))

		re, ok := errors.AsReconcilerError(err)
		require.True(t, ok)
		assert.Equal(t, errors.CodeDirectoryError, re.Code)

		_, statErr := os.Stat(dir)
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("directory is a file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "report")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
		_, err := e.Emit(path, "2024-01-31", createSampleSummaries())
		assert.True(t, errors.IsWriteError(err))
	})

	t.Run("no tables", func(t *testing.T) {
		dir := t.TempDir()
		_, err := e.Emit(dir, "2024-01-31", models.Summaries{})
		require.Error(t, err)
		assert.True(t, errors.IsWriteError(err))
		assert.Empty(t, listDir(t, dir), "a failed emit leaves nothing behind")
	})

	t.Run("bad date label", func(t *testing.T) {
		dir := t.TempDir()
		_, err := e.Emit(dir, "2024/01/31", createSampleSummaries())
		assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
		assert.Empty(t, listDir(t, dir))
	})
}

func TestEmit_FailureLeavesNothingBehind(t *testing.T) {
	const excelName = "reconciliation_report_2024-01-31.xlsx"
	const pdfName = "reconciliation_report_2024-01-31.pdf"

	// block makes target a non-empty directory so renaming onto it fails
	block := func(t *testing.T, target string) {
		require.NoError(t, os.MkdirAll(filepath.Join(target, "keep"), 0o755))
	}

	t.Run("pdf render fails", func(t *testing.T) {
		dir := t.TempDir()
		e := newEmitter(t, nil)
		e.renderPDF = func(w io.Writer, _ models.Summaries, _ *EmitterConfig) error {
			w.Write([]byte("%PDF-partial"))
			return fmt.Errorf("font missing")
		}

		_, err := e.Emit(dir, "2024-01-31", createSampleSummaries())
		require.Error(t, err)
		re, ok := errors.AsReconcilerError(err)
		require.True(t, ok)
		assert.Equal(t, errors.CodeWriteFailed, re.Code)
		assert.Equal(t, filepath.Join(dir, pdfName), re.Context["file_path"])
		assert.Empty(t, listDir(t, dir), "the spreadsheet temp file is removed")
	})

	t.Run("workbook render fails", func(t *testing.T) {
		dir := t.TempDir()
		e := newEmitter(t, nil)
		e.renderWorkbook = func(io.Writer, models.Summaries) error {
			return fmt.Errorf("disk quota")
		}

		_, err := e.Emit(dir, "2024-01-31", createSampleSummaries())
		assert.True(t, errors.IsWriteError(err))
		assert.Empty(t, listDir(t, dir))
	})

	t.Run("spreadsheet rename fails", func(t *testing.T) {
		dir := t.TempDir()
		block(t, filepath.Join(dir, excelName))

		_, err := newEmitter(t, nil).Emit(dir, "2024-01-31", createSampleSummaries())
		assert.True(t, errors.IsWriteError(err))
		assert.Equal(t, []string{excelName}, listDir(t, dir), "both temp files are removed")
	})

	t.Run("pdf rename fails", func(t *testing.T) {
		dir := t.TempDir()
		block(t, filepath.Join(dir, pdfName))

		_, err := newEmitter(t, nil).Emit(dir, "2024-01-31", createSampleSummaries())
		assert.True(t, errors.IsWriteError(err))
		assert.Equal(t, []string{pdfName}, listDir(t, dir), "the renamed spreadsheet is removed again")
		_, statErr := os.Stat(filepath.Join(dir, excelName))
		assert.True(t, os.IsNotExist(statErr))
	})
}

func TestValidateDateLabel(t *testing.T) {
	tests := []struct {
		label     string
		wantError bool
	}{
		{"2024-01-31", false},
		{"31012024", false},
		{"Jan 2024", false},
		{"", true},
		{"   ", true},
		{"2024/01/31", true},
		{`2024\01`, true},
		{"../escape", true},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			err := ValidateDateLabel(tt.label)
			assert.Equal(t, tt.wantError, err != nil, "ValidateDateLabel(%q) error = %v", tt.label, err)
		})
	}
}

func TestNewReportGenerator(t *testing.T) {
	tests := []struct {
		name        string
		config      *ReportConfig
		expectError bool
	}{
		{"default config", nil, false},
		{"valid config", DefaultReportConfig(), false},
		{"invalid format", &ReportConfig{Format: "invalid", PreviewRows: 20}, true},
		{"zero preview rows", &ReportConfig{Format: FormatConsole}, true},
		{"csv without delimiter", &ReportConfig{Format: FormatCSV, PreviewRows: 20}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			generator, err := NewReportGenerator(tt.config)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, generator)
		})
	}
}

func TestOutputFormatValidation(t *testing.T) {
	tests := []struct {
		format OutputFormat
		valid  bool
	}{
		{FormatConsole, true},
		{FormatJSON, true},
		{FormatCSV, true},
		{"invalid", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.format.IsValid())
		})
	}
}

func TestConsoleOutputSections(t *testing.T) {
	generator, err := NewReportGenerator(nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, generator.GenerateReport(createSampleResult(), &buf))
	output := buf.String()

	for _, section := range []string{
		"KO RECONCILIATION REPORT",
		"Date: 2024-01-31",
		"=== Withdrawal ===",
		"=== Deposit ===",
		"=== Total ===",
		"=== Total_Unmatched ===",
		"No unmatched data available",
		"=== FILES ===",
		"Excel_File: out/reconciliation_report_2024-01-31.xlsx",
	} {
		assert.Contains(t, output, section)
	}

	assert.Less(t, strings.Index(output, "=== Withdrawal ==="), strings.Index(output, "=== Deposit ==="))
	assert.Contains(t, output, "No of Withdrawals  Sum of Withdrawals")
}

func TestConsoleOutputPreviewLimit(t *testing.T) {
	generator, err := NewReportGenerator(&ReportConfig{Format: FormatConsole, PreviewRows: 2})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, generator.GenerateReport(createSampleResult(), &buf))

	assert.Contains(t, buf.String(), "Cheque")
	assert.NotContains(t, buf.String(), "99922")
}

func TestJSONOutput(t *testing.T) {
	generator, err := NewReportGenerator(&ReportConfig{Format: FormatJSON, PreviewRows: 20})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, generator.GenerateReport(createSampleResult(), &buf))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	assert.Equal(t, "out/reconciliation_report_2024-01-31.pdf", decoded["PDF_File"])
	assert.Contains(t, decoded, "Withdrawal")
	assert.Contains(t, decoded, "Total_Unmatched")
	assert.Equal(t, "2024-01-31", decoded["date"])
}

func TestCSVFormatting(t *testing.T) {
	tests := []struct {
		name      string
		delimiter rune
		headers   bool
		wantRows  int
	}{
		{"comma with headers", ',', true, 13},
		{"semicolon with headers", ';', true, 13},
		{"no headers", ',', false, 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			generator, err := NewReportGenerator(&ReportConfig{
				Format:       FormatCSV,
				PreviewRows:  20,
				CSVDelimiter: tt.delimiter,
				CSVHeaders:   tt.headers,
			})
			require.NoError(t, err)

			var buf bytes.Buffer
			require.NoError(t, generator.GenerateReport(createSampleResult(), &buf))

			reader := csv.NewReader(&buf)
			reader.Comma = tt.delimiter
			records, err := reader.ReadAll()
			require.NoError(t, err)
			require.Len(t, records, tt.wantRows)

			if tt.headers {
				assert.Equal(t, []string{"table", "source", "count", "sum"}, records[0])
				assert.Equal(t, []string{"Withdrawal", "Admin", "2", "150"}, records[1])
			}
		})
	}
}

func TestGenerateReport_NilResult(t *testing.T) {
	generator, err := NewReportGenerator(nil)
	require.NoError(t, err)
	assert.Error(t, generator.GenerateReport(nil, &bytes.Buffer{}))
}

func TestSafeReportGenerator(t *testing.T) {
	generator, err := NewSafeReportGenerator(nil, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, generator.GenerateReportSafely(createSampleResult(), &buf))
	assert.Contains(t, buf.String(), "=== Total ===")

	err = generator.GenerateReportSafely(nil, &buf)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	incomplete := createSampleResult()
	incomplete.Summaries.Total = nil
	err = generator.GenerateReportSafely(incomplete, &buf)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	_, err = NewSafeReportGenerator(&ReportConfig{Format: "xml"}, nil)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, os.ErrPermission
}

func TestSafeReportGenerator_OutputFailure(t *testing.T) {
	generator, err := NewSafeReportGenerator(&ReportConfig{Format: FormatJSON, PreviewRows: 20}, nil)
	require.NoError(t, err)

	err = generator.GenerateReportSafely(createSampleResult(), failingWriter{})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryInternal))
}

func BenchmarkGenerateConsoleReport(b *testing.B) {
	generator, _ := NewReportGenerator(nil)
	result := createSampleResult()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var buf bytes.Buffer
		generator.GenerateReport(result, &buf)
	}
}

func BenchmarkEmit(b *testing.B) {
	e, _ := NewEmitter(nil)
	summaries := createSampleSummaries()
	dir := b.TempDir()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.Emit(dir, "2024-01-31", summaries); err != nil {
			b.Fatal(err)
		}
	}
}
