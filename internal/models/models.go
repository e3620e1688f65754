// Package models holds the tabular data model shared by the loaders, the
// classifier, the aggregator and the report emitter.
//
// A Table is the in-memory form of one source export: an ordered list of
// column names and rows of Cells. Tables are never mutated once a loader has
// returned them; every derivation (Select, NormalizeColumns, Head) returns a
// new Table so the two Yono analyses can share one loaded table.
package models

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Cell is a single raw cell value as read from a source file
type Cell struct {
	Raw     string
	Present bool
}

// NewCell creates a present cell holding s
func NewCell(s string) Cell {
	return Cell{Raw: s, Present: true}
}

// MissingCell is the value of an absent cell (short row, blank spreadsheet cell)
var MissingCell = Cell{}

// IsMissing reports whether the cell is absent or empty
func (c Cell) IsMissing() bool {
	return !c.Present || c.Raw == ""
}

// String returns the raw value, or an empty string for missing cells
func (c Cell) String() string {
	if !c.Present {
		return ""
	}
	return c.Raw
}

// Number coerces the cell to a decimal. ok is false for missing or
// non-numeric cells, which callers must treat as missing rather than zero.
func (c Cell) Number() (value decimal.Decimal, ok bool) {
	if c.IsMissing() {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(strings.TrimSpace(c.Raw))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// MarshalJSON renders missing cells as null
func (c Cell) MarshalJSON() ([]byte, error) {
	if c.IsMissing() {
		return []byte("null"), nil
	}
	return json.Marshal(c.Raw)
}

// Table is an ordered set of rows keyed by column name
type Table struct {
	Name    string
	Columns []string
	Rows    [][]Cell
}

// NewTable creates an empty table with the given columns
func NewTable(name string, columns []string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{
		Name:    name,
		Columns: cols,
		Rows:    make([][]Cell, 0),
	}
}

// AppendRow adds a row, padding short rows with missing cells and dropping
// cells beyond the column count
func (t *Table) AppendRow(cells []Cell) {
	row := make([]Cell, len(t.Columns))
	copy(row, cells)
	t.Rows = append(t.Rows, row)
}

// AppendStrings adds a row of present cells
func (t *Table) AppendStrings(values ...string) {
	cells := make([]Cell, len(values))
	for i, v := range values {
		cells[i] = NewCell(v)
	}
	t.AppendRow(cells)
}

// Len returns the number of rows
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// IsEmpty reports whether the table has no rows or no columns
func (t *Table) IsEmpty() bool {
	return t == nil || len(t.Rows) == 0 || len(t.Columns) == 0
}

// ColumnIndex returns the index of the first column named name, or -1
func (t *Table) ColumnIndex(name string) int {
	for i, col := range t.Columns {
		if col == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the table has a column named name
func (t *Table) HasColumn(name string) bool {
	return t.ColumnIndex(name) >= 0
}

// FirstColumn returns the first of names that exists in the table
func (t *Table) FirstColumn(names ...string) (string, bool) {
	for _, name := range names {
		if t.HasColumn(name) {
			return name, true
		}
	}
	return "", false
}

// MissingColumns returns the names not present in the table, in order
func (t *Table) MissingColumns(names ...string) []string {
	var missing []string
	for _, name := range names {
		if !t.HasColumn(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// Column returns a copy of every cell in the named column
func (t *Table) Column(name string) ([]Cell, bool) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, false
	}
	cells := make([]Cell, len(t.Rows))
	for i, row := range t.Rows {
		if idx < len(row) {
			cells[i] = row[idx]
		}
	}
	return cells, true
}

// Head returns a copy holding at most n rows
func (t *Table) Head(n int) *Table {
	head := NewTable(t.Name, t.Columns)
	for i, row := range t.Rows {
		if i >= n {
			break
		}
		head.AppendRow(row)
	}
	return head
}

// Select returns a new table with only the named columns, in the given order.
// Names not present are reported in missing and left out of the result.
func (t *Table) Select(columns ...string) (selected *Table, missing []string) {
	indexes := make([]int, 0, len(columns))
	names := make([]string, 0, len(columns))
	for _, col := range columns {
		idx := t.ColumnIndex(col)
		if idx < 0 {
			missing = append(missing, col)
			continue
		}
		indexes = append(indexes, idx)
		names = append(names, col)
	}

	selected = NewTable(t.Name, names)
	for _, row := range t.Rows {
		cells := make([]Cell, len(indexes))
		for i, idx := range indexes {
			if idx < len(row) {
				cells[i] = row[idx]
			}
		}
		selected.AppendRow(cells)
	}
	return selected, missing
}

// NormalizeColumns returns a copy whose column names are trimmed and lower-cased
func (t *Table) NormalizeColumns() *Table {
	cols := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		cols[i] = NormalizeColumnName(col)
	}
	normalized := NewTable(t.Name, cols)
	for _, row := range t.Rows {
		normalized.AppendRow(row)
	}
	return normalized
}

// NormalizeColumnName trims whitespace and lower-cases a column name
func NormalizeColumnName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// MarshalJSON renders the table as {"columns": [...], "rows": [[...]]}
func (t *Table) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name    string   `json:"name,omitempty"`
		Columns []string `json:"columns"`
		Rows    [][]Cell `json:"rows"`
	}{
		Name:    t.Name,
		Columns: t.Columns,
		Rows:    t.Rows,
	})
}
