package models

import (
	"encoding/json"
	"time"
)

// Keys under which the report paths are exposed to callers
const (
	KeyExcelFile = "Excel_File"
	KeyPDFFile   = "PDF_File"
)

// Placeholder unmatched table names, kept for callers built against the
// row-matching report layout
const (
	TotalUnmatched                 = "Total_Unmatched"
	WithdrawalUnmatchedAdminCheque = "Withdrawal_Unmatched_Admin_Echeque"
	WithdrawalUnmatchedAdminYono   = "Withdrawal_Unmatched_Admin_Yono"
	WithdrawalUnmatchedAdminBranch = "Withdrawal_Unmatched_Admin_99922"
	DepositUnmatchedAdminYono      = "Deposit_Unmatched_Admin_Yono"
)

// DefaultPreviewRows is the number of rows shown per table in previews
const DefaultPreviewRows = 20

// NamedTable pairs a result key with its table
type NamedTable struct {
	Name  string `json:"name"`
	Table *Table `json:"table"`
}

// Result is everything a reconciliation run hands back to its caller
type Result struct {
	RunID       string
	DateLabel   string
	Summaries   Summaries
	Unmatched   []NamedTable
	ExcelFile   string
	PDFFile     string
	ProcessedAt time.Time
	Duration    time.Duration
}

// Tables returns every named table of the result in a stable order:
// the three summaries followed by the unmatched placeholders.
func (r *Result) Tables() []NamedTable {
	tables := make([]NamedTable, 0, 3+len(r.Unmatched))
	for _, summary := range r.Summaries.Tables() {
		if summary == nil {
			continue
		}
		tables = append(tables, NamedTable{Name: summary.Name, Table: summary.Frame()})
	}
	return append(tables, r.Unmatched...)
}

// Previews returns the non-empty tables truncated to limit rows
func (r *Result) Previews(limit int) []NamedTable {
	var previews []NamedTable
	for _, named := range r.Tables() {
		if named.Table.IsEmpty() {
			continue
		}
		previews = append(previews, NamedTable{Name: named.Name, Table: named.Table.Head(limit)})
	}
	return previews
}

// Files returns the report paths keyed by Excel_File and PDF_File
func (r *Result) Files() map[string]string {
	return map[string]string{
		KeyExcelFile: r.ExcelFile,
		KeyPDFFile:   r.PDFFile,
	}
}

// MarshalJSON flattens tables and file paths into one object keyed the way
// callers look them up
func (r *Result) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{
		"run_id":       r.RunID,
		"date":         r.DateLabel,
		"processed_at": r.ProcessedAt.Format(time.RFC3339),
		"duration":     r.Duration.String(),
		KeyExcelFile:   r.ExcelFile,
		KeyPDFFile:     r.PDFFile,
	}
	for _, summary := range r.Summaries.Tables() {
		if summary != nil {
			out[summary.Name] = summary
		}
	}
	for _, named := range r.Unmatched {
		out[named.Name] = named.Table
	}
	return json.Marshal(out)
}
