// Package classifier decides which source rows are KO withdrawals or
// deposits and totals them.
//
// Two strategies are used:
//  1. Type column: the Admin and Echeque ledgers carry an explicit label
//     ("KO Withdrawal", "KO Deposit") next to an amount.
//  2. Pattern: the Yono statement has no label, so direction is inferred
//     from the description text and the debit/credit columns. The same
//     statement is read twice, once over all rows and once over the rows
//     booked at the KO branch.
//
// Analyses never mutate their input table. Cells that cannot be read as
// numbers are treated as missing and only reported at debug level.
//
// Example usage:
//
//	c, err := classifier.New(classifier.DefaultConfig())
//	admin, err := c.AnalyzeTransactions(adminTable)
//	yono, err := c.AnalyzeYonoCombined(yonoTable)
//	branch, err := c.AnalyzeYonoBranch(yonoTable)
package classifier

import (
	"fmt"
	"strings"
)

// Config holds the column names and literals used to classify rows
type Config struct {
	// TypeColumns are tried in order; the first present one is used.
	TypeColumns     []string `json:"type_columns" mapstructure:"type-columns"`
	AmountColumn    string   `json:"amount_column" mapstructure:"amount-column"`
	WithdrawalLabel string   `json:"withdrawal_label" mapstructure:"withdrawal-label"`
	DepositLabel    string   `json:"deposit_label" mapstructure:"deposit-label"`

	DescriptionColumn string `json:"description_column" mapstructure:"description-column"`
	DebitColumn       string `json:"debit_column" mapstructure:"debit-column"`
	CreditColumn      string `json:"credit_column" mapstructure:"credit-column"`
	BranchColumn      string `json:"branch_column" mapstructure:"branch-column"`

	// WithdrawalPattern is matched case-insensitively as a plain substring.
	WithdrawalPattern string `json:"withdrawal_pattern" mapstructure:"withdrawal-pattern"`
	// DepositExcludeMarker marks credits that are not KO cash deposits.
	DepositExcludeMarker string `json:"deposit_exclude_marker" mapstructure:"deposit-exclude-marker"`
	BranchCode           string `json:"branch_code" mapstructure:"branch-code"`
}

// DefaultConfig returns the classification rules of the KO exports
func DefaultConfig() *Config {
	return &Config{
		TypeColumns:          []string{"type of transaction", "transaction type"},
		AmountColumn:         "amount",
		WithdrawalLabel:      "KO Withdrawal",
		DepositLabel:         "KO Deposit",
		DescriptionColumn:    "description",
		DebitColumn:          "debit",
		CreditColumn:         "credit",
		BranchColumn:         "branch code",
		WithdrawalPattern:    "cspcashsend",
		DepositExcludeMarker: "@",
		BranchCode:           "99922",
	}
}

// Validate checks if the classifier configuration is valid
func (c *Config) Validate() error {
	if len(c.TypeColumns) == 0 {
		return fmt.Errorf("at least one type column is required")
	}

	required := map[string]string{
		"amount column":          c.AmountColumn,
		"withdrawal label":       c.WithdrawalLabel,
		"deposit label":          c.DepositLabel,
		"description column":     c.DescriptionColumn,
		"debit column":           c.DebitColumn,
		"credit column":          c.CreditColumn,
		"branch column":          c.BranchColumn,
		"withdrawal pattern":     c.WithdrawalPattern,
		"deposit exclude marker": c.DepositExcludeMarker,
		"branch code":            c.BranchCode,
	}
	for name, value := range required {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s cannot be empty", name)
		}
	}

	for _, col := range c.TypeColumns {
		if strings.TrimSpace(col) == "" {
			return fmt.Errorf("type column names cannot be blank")
		}
	}

	if c.WithdrawalLabel == c.DepositLabel {
		return fmt.Errorf("withdrawal and deposit labels must differ: %q", c.WithdrawalLabel)
	}

	if NormalizeBranchCode(c.BranchCode) != c.BranchCode {
		return fmt.Errorf("branch code %q is not in normalized form %q", c.BranchCode, NormalizeBranchCode(c.BranchCode))
	}

	return nil
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	clone.TypeColumns = append([]string(nil), c.TypeColumns...)
	return &clone
}
