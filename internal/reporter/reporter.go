// Package reporter produces the outputs of a reconciliation run.
//
// The Emitter writes the persistent report files: a spreadsheet with one
// sheet per summary and a PDF rendering of the same tables. The
// ReportGenerator renders a finished run for the terminal or for other
// programs.
//
// Supported output formats:
//   - Console: aligned table previews for terminal display
//   - JSON: the whole result keyed by table name
//   - CSV: one line per summary row
//
// Example usage:
//
//	generator, err := reporter.NewReportGenerator(&reporter.ReportConfig{
//		Format:      reporter.FormatJSON,
//		PreviewRows: models.DefaultPreviewRows,
//	})
//	err = generator.GenerateReport(result, os.Stdout)
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gocarina/gocsv"

	"ko-reconciliation-service/internal/models"
)

// OutputFormat represents the supported report output formats
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format"`

	// PreviewRows limits the rows printed per table in console output
	PreviewRows int `json:"preview_rows"`

	// CSV options
	CSVDelimiter rune `json:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers"`

	ShowFiles bool `json:"show_files"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:       FormatConsole,
		PreviewRows:  models.DefaultPreviewRows,
		CSVDelimiter: ',',
		CSVHeaders:   true,
		ShowFiles:    true,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}

	if c.PreviewRows < 1 {
		return fmt.Errorf("preview rows must be positive, got %d", c.PreviewRows)
	}

	if c.Format == FormatCSV && (c.CSVDelimiter == 0 || c.CSVDelimiter == '"' || c.CSVDelimiter == '\n') {
		return fmt.Errorf("invalid CSV delimiter: %q", c.CSVDelimiter)
	}

	return nil
}

// ReportGenerator renders reconciliation results in various formats
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}

	return &ReportGenerator{
		config: config,
	}, nil
}

// GenerateReport renders result to writer in the configured format
func (rg *ReportGenerator) GenerateReport(result *models.Result, writer io.Writer) error {
	if result == nil {
		return fmt.Errorf("reconciliation result cannot be nil")
	}

	switch rg.config.Format {
	case FormatConsole:
		return rg.generateConsoleReport(result, writer)
	case FormatJSON:
		return rg.generateJSONReport(result, writer)
	case FormatCSV:
		return rg.generateCSVReport(result, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

func (rg *ReportGenerator) generateConsoleReport(result *models.Result, writer io.Writer) error {
	var b strings.Builder

	fmt.Fprintf(&b, "KO RECONCILIATION REPORT\n")
	if result.DateLabel != "" {
		fmt.Fprintf(&b, "Date: %s\n", result.DateLabel)
	}
	if !result.ProcessedAt.IsZero() {
		fmt.Fprintf(&b, "Generated: %s\n", result.ProcessedAt.Format(time.RFC3339))
	}
	if result.Duration > 0 {
		fmt.Fprintf(&b, "Processing Duration: %v\n", result.Duration)
	}
	b.WriteString("\n")

	previews := result.Previews(rg.config.PreviewRows)
	if len(previews) == 0 {
		b.WriteString("No data available\n\n")
	}
	for _, named := range previews {
		fmt.Fprintf(&b, "=== %s ===\n", named.Name)
		writeAligned(&b, named.Table)
		b.WriteString("\n")
	}

	if rg.config.ShowFiles && (result.ExcelFile != "" || result.PDFFile != "") {
		fmt.Fprintf(&b, "=== FILES ===\n")
		fmt.Fprintf(&b, "%s: %s\n", models.KeyExcelFile, result.ExcelFile)
		fmt.Fprintf(&b, "%s: %s\n", models.KeyPDFFile, result.PDFFile)
	}

	_, err := io.WriteString(writer, b.String())
	return err
}

func (rg *ReportGenerator) generateJSONReport(result *models.Result, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// csvRecord is one summary row in CSV output
type csvRecord struct {
	Table  string `csv:"table"`
	Source string `csv:"source"`
	Count  int64  `csv:"count"`
	Sum    string `csv:"sum"`
}

func (rg *ReportGenerator) generateCSVReport(result *models.Result, writer io.Writer) error {
	var records []*csvRecord
	for _, table := range result.Summaries.Tables() {
		if table == nil {
			continue
		}
		for _, row := range table.Rows {
			records = append(records, &csvRecord{
				Table:  table.Name,
				Source: row.Source,
				Count:  row.Count,
				Sum:    models.FormatSum(row.Sum),
			})
		}
	}

	w := csv.NewWriter(writer)
	w.Comma = rg.config.CSVDelimiter
	safe := gocsv.NewSafeCSVWriter(w)

	var err error
	if rg.config.CSVHeaders {
		err = gocsv.MarshalCSV(records, safe)
	} else {
		err = gocsv.MarshalCSVWithoutHeaders(records, safe)
	}
	if err != nil {
		return fmt.Errorf("failed to write CSV report: %w", err)
	}

	safe.Flush()
	return safe.Error()
}

// writeAligned prints a table with right-aligned columns, the first column
// headed by a blank cell the way a labelled frame prints
func writeAligned(b *strings.Builder, table *models.Table) {
	header := make([]string, len(table.Columns))
	copy(header, table.Columns)
	if len(header) > 0 && header[0] == models.IndexColumn {
		header[0] = ""
	}

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, row := range table.Rows {
		for i, cell := range row {
			if n := utf8.RuneCountInString(cell.String()); i < len(widths) && n > widths[i] {
				widths[i] = n
			}
		}
	}

	line := func(values []string) {
		for i, v := range values {
			if i > 0 {
				b.WriteString("  ")
			}
			pad := widths[i] - utf8.RuneCountInString(v)
			if i == 0 {
				b.WriteString(v)
				b.WriteString(strings.Repeat(" ", pad))
				continue
			}
			b.WriteString(strings.Repeat(" ", pad))
			b.WriteString(v)
		}
		b.WriteString("\n")
	}

	line(header)
	for _, row := range table.Rows {
		values := make([]string, len(header))
		for i := range values {
			if i < len(row) {
				values[i] = row[i].String()
			}
		}
		line(values)
	}
}
