package models

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Report row labels, in output order
const (
	SourceAdmin  = "Admin"
	SourceCheque = "Cheque"
	SourceYono   = "YONO"
	SourceBranch = "99922"
)

// SourceOrder is the fixed row order of every summary table
var SourceOrder = []string{SourceAdmin, SourceCheque, SourceYono, SourceBranch}

// Summary table names and column headers
const (
	WithdrawalTable = "Withdrawal"
	DepositTable    = "Deposit"
	TotalTable      = "Total"

	WithdrawalCountColumn = "No of Withdrawals"
	WithdrawalSumColumn   = "Sum of Withdrawals"
	DepositCountColumn    = "No of Deposits"
	DepositSumColumn      = "Sum of Deposits"
	TotalCountColumn      = "Total Transactions"
	TotalSumColumn        = "Total Sum"

	// IndexColumn heads the source-name column when a summary is flattened
	IndexColumn = "index"
)

// DirectionCounts is the per-source input to the aggregator
type DirectionCounts struct {
	WithdrawalCount int64           `json:"withdrawal_count"`
	WithdrawalSum   decimal.Decimal `json:"withdrawal_sum"`
	DepositCount    int64           `json:"deposit_count"`
	DepositSum      decimal.Decimal `json:"deposit_sum"`
}

// SummaryRow is one source's count and sum for a direction
type SummaryRow struct {
	Source string          `json:"source" csv:"source"`
	Count  int64           `json:"count" csv:"count"`
	Sum    decimal.Decimal `json:"sum" csv:"sum"`
}

// SummaryTable is a four-row count/sum table indexed by source
type SummaryTable struct {
	Name        string       `json:"name"`
	CountColumn string       `json:"count_column"`
	SumColumn   string       `json:"sum_column"`
	Rows        []SummaryRow `json:"rows"`
}

// Summaries groups the three summary tables of a run
type Summaries struct {
	Withdrawal *SummaryTable `json:"withdrawal"`
	Deposit    *SummaryTable `json:"deposit"`
	Total      *SummaryTable `json:"total"`
}

// Tables returns the summaries in report order
func (s Summaries) Tables() []*SummaryTable {
	return []*SummaryTable{s.Withdrawal, s.Deposit, s.Total}
}

// NewSummaryTable creates a summary table from rows
func NewSummaryTable(name, countColumn, sumColumn string, rows []SummaryRow) *SummaryTable {
	copied := make([]SummaryRow, len(rows))
	copy(copied, rows)
	return &SummaryTable{
		Name:        name,
		CountColumn: countColumn,
		SumColumn:   sumColumn,
		Rows:        copied,
	}
}

// Columns returns the data column headers
func (s *SummaryTable) Columns() []string {
	return []string{s.CountColumn, s.SumColumn}
}

// IsEmpty reports whether the table has no rows
func (s *SummaryTable) IsEmpty() bool {
	return s == nil || len(s.Rows) == 0
}

// Row returns the row for source
func (s *SummaryTable) Row(source string) (SummaryRow, bool) {
	for _, row := range s.Rows {
		if row.Source == source {
			return row, true
		}
	}
	return SummaryRow{}, false
}

// Add returns the elementwise sum of s and other. Both tables must list the
// same sources in the same order.
func (s *SummaryTable) Add(other *SummaryTable, name, countColumn, sumColumn string) (*SummaryTable, error) {
	if len(s.Rows) != len(other.Rows) {
		return nil, fmt.Errorf("cannot add %s (%d rows) and %s (%d rows)", s.Name, len(s.Rows), other.Name, len(other.Rows))
	}

	rows := make([]SummaryRow, len(s.Rows))
	for i, row := range s.Rows {
		if other.Rows[i].Source != row.Source {
			return nil, fmt.Errorf("row %d source mismatch: %s vs %s", i, row.Source, other.Rows[i].Source)
		}
		rows[i] = SummaryRow{
			Source: row.Source,
			Count:  row.Count + other.Rows[i].Count,
			Sum:    row.Sum.Add(other.Rows[i].Sum),
		}
	}

	return NewSummaryTable(name, countColumn, sumColumn, rows), nil
}

// Frame flattens the summary into a Table whose first column holds the source
func (s *SummaryTable) Frame() *Table {
	table := NewTable(s.Name, []string{IndexColumn, s.CountColumn, s.SumColumn})
	for _, row := range s.Rows {
		table.AppendStrings(row.Source, FormatCount(row.Count), FormatSum(row.Sum))
	}
	return table
}

// MarshalJSON renders sums as strings so no precision is lost
func (r SummaryRow) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Source string `json:"source"`
		Count  int64  `json:"count"`
		Sum    string `json:"sum"`
	}{r.Source, r.Count, FormatSum(r.Sum)})
}

// FormatCount renders a count the same way in every output
func FormatCount(n int64) string {
	return strconv.FormatInt(n, 10)
}

// FormatSum renders a sum with the decimal type's default conversion; no
// rounding is applied so every output shows the same text.
func FormatSum(d decimal.Decimal) string {
	return d.String()
}
