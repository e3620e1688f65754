package parsers

import (
	"fmt"
	"strings"
)

// Source names used in logs and errors
const (
	SourceAdmin   = "Admin"
	SourceEcheque = "Echeque"
	SourceYono    = "Yono"
)

// Default column layouts of the three exports
var (
	DefaultAdminColumns = []string{
		"Date of Transaction",
		"Limit Configured By",
		"KO ID",
		"Opening Limit",
		"Type of Transaction",
		"Amount",
		"Closing Limit",
	}

	DefaultEchequeColumns = []string{
		"sl no/date of transaction",
		"limit configured by",
		"ko id",
		"opening limit",
		"transaction type",
		"amount",
		"closing limit",
	}

	DefaultYonoRequiredColumns = []string{
		"description",
		"debit",
		"credit",
		"branch code",
	}
)

// AdminConfig describes where the Admin data sits inside its workbook
type AdminConfig struct {
	SheetName string   `json:"sheet_name" mapstructure:"sheet"`
	SkipRows  int      `json:"skip_rows" mapstructure:"skip-rows"`
	Columns   []string `json:"columns" mapstructure:"columns"`
}

// DefaultAdminConfig returns the layout of the BCKOLimitsConfiguration export
func DefaultAdminConfig() *AdminConfig {
	return &AdminConfig{
		SheetName: "BCKOLimitsConfiguration",
		SkipRows:  3,
		Columns:   append([]string(nil), DefaultAdminColumns...),
	}
}

// Validate checks if the Admin configuration is valid
func (c *AdminConfig) Validate() error {
	if strings.TrimSpace(c.SheetName) == "" {
		return fmt.Errorf("admin sheet name cannot be empty")
	}

	if c.SkipRows < 0 {
		return fmt.Errorf("admin skip rows cannot be negative, got %d", c.SkipRows)
	}

	return validateColumns("admin", c.Columns)
}

// EchequeConfig describes the headerless Echeque export
type EchequeConfig struct {
	// SheetName selects a sheet; empty means the first sheet.
	SheetName      string   `json:"sheet_name,omitempty" mapstructure:"sheet"`
	Columns        []string `json:"columns" mapstructure:"columns"`
	TypeColumn     string   `json:"type_column" mapstructure:"type-column"`
	KnownLabels    []string `json:"known_labels" mapstructure:"known-labels"`
	WarnOnMislabel bool     `json:"warn_on_mislabel" mapstructure:"warn-on-mislabel"`
}

// DefaultEchequeConfig returns the positional layout of the Echeque export
func DefaultEchequeConfig() *EchequeConfig {
	return &EchequeConfig{
		Columns:        append([]string(nil), DefaultEchequeColumns...),
		TypeColumn:     "transaction type",
		KnownLabels:    []string{"KO Withdrawal", "KO Deposit"},
		WarnOnMislabel: true,
	}
}

// Validate checks if the Echeque configuration is valid
func (c *EchequeConfig) Validate() error {
	if err := validateColumns("echeque", c.Columns); err != nil {
		return err
	}

	if c.WarnOnMislabel {
		found := false
		for _, col := range c.Columns {
			if col == c.TypeColumn {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("echeque type column %q is not one of the configured columns", c.TypeColumn)
		}
	}

	return nil
}

// YonoConfig describes the Yono CSV statement
type YonoConfig struct {
	HeaderRow       int      `json:"header_row" mapstructure:"header-row"`
	Delimiter       rune     `json:"delimiter" mapstructure:"delimiter"`
	RequiredColumns []string `json:"required_columns" mapstructure:"required-columns"`
}

// DefaultYonoConfig returns the layout of the Yono statement export, whose
// banner occupies the first 19 non-empty lines
func DefaultYonoConfig() *YonoConfig {
	return &YonoConfig{
		HeaderRow:       19,
		Delimiter:       ',',
		RequiredColumns: append([]string(nil), DefaultYonoRequiredColumns...),
	}
}

// Validate checks if the Yono configuration is valid
func (c *YonoConfig) Validate() error {
	if c.HeaderRow < 0 {
		return fmt.Errorf("yono header row cannot be negative, got %d", c.HeaderRow)
	}

	switch c.Delimiter {
	case 0, '\r', '\n', '"', 0xFFFD:
		return fmt.Errorf("invalid yono delimiter %q", c.Delimiter)
	}

	return nil
}

// MinRows is the number of non-empty lines a statement needs: the banner,
// the header row and at least one data row.
func (c *YonoConfig) MinRows() int {
	return c.HeaderRow + 2
}

func validateColumns(source string, columns []string) error {
	if len(columns) == 0 {
		return fmt.Errorf("%s columns cannot be empty", source)
	}

	seen := make(map[string]bool, len(columns))
	for _, col := range columns {
		name := strings.ToLower(strings.TrimSpace(col))
		if name == "" {
			return fmt.Errorf("%s column names cannot be blank", source)
		}
		if seen[name] {
			return fmt.Errorf("duplicate %s column %q", source, col)
		}
		seen[name] = true
	}

	return nil
}
