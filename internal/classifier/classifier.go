package classifier

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"ko-reconciliation-service/internal/models"
	"ko-reconciliation-service/pkg/errors"
	"ko-reconciliation-service/pkg/logger"
)

// TypeCounts is the result of the type-column strategy
type TypeCounts struct {
	NumWithdrawals   int64
	NumDeposits      int64
	SumWithdrawals   decimal.Decimal
	SumDeposits      decimal.Decimal
	CoercionFailures int
}

// Directional converts the counts to the aggregator's input shape
func (t TypeCounts) Directional() models.DirectionCounts {
	return models.DirectionCounts{
		WithdrawalCount: t.NumWithdrawals,
		WithdrawalSum:   t.SumWithdrawals,
		DepositCount:    t.NumDeposits,
		DepositSum:      t.SumDeposits,
	}
}

// CombinedCounts is the result of the pattern strategy over a whole statement
type CombinedCounts struct {
	CountCSPDebit    int64
	SumCSPDebit      decimal.Decimal
	CountNoAtCredit  int64
	SumNoAtCredit    decimal.Decimal
	CoercionFailures int
}

// Directional converts the counts to the aggregator's input shape
func (c CombinedCounts) Directional() models.DirectionCounts {
	return models.DirectionCounts{
		WithdrawalCount: c.CountCSPDebit,
		WithdrawalSum:   c.SumCSPDebit,
		DepositCount:    c.CountNoAtCredit,
		DepositSum:      c.SumNoAtCredit,
	}
}

// BranchCounts is the result of the pattern strategy restricted to one branch
type BranchCounts struct {
	DebitCount       int64
	DebitSum         decimal.Decimal
	CreditCount      int64
	CreditSum        decimal.Decimal
	CoercionFailures int
}

// Directional converts the counts to the aggregator's input shape
func (b BranchCounts) Directional() models.DirectionCounts {
	return models.DirectionCounts{
		WithdrawalCount: b.DebitCount,
		WithdrawalSum:   b.DebitSum,
		DepositCount:    b.CreditCount,
		DepositSum:      b.CreditSum,
	}
}

// Classifier applies a Config to loaded tables
type Classifier struct {
	config *Config
	logger logger.Logger
}

// New creates a classifier
func New(config *Config) (*Classifier, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid classifier configuration: %w", err)
	}

	return &Classifier{
		config: config.Clone(),
		logger: logger.GetGlobalLogger().WithComponent("classifier"),
	}, nil
}

// AnalyzeTransactions counts and totals labelled withdrawals and deposits.
// Labels match exactly. A labelled row is counted even when its amount is
// missing or unreadable; only readable amounts are summed.
func (c *Classifier) AnalyzeTransactions(table *models.Table) (TypeCounts, error) {
	var counts TypeCounts

	normalized := table.NormalizeColumns()
	typeColumn, hasType := normalized.FirstColumn(normalizeNames(c.config.TypeColumns)...)
	amountColumn := models.NormalizeColumnName(c.config.AmountColumn)

	var missing []string
	if !hasType {
		missing = append(missing, strings.Join(c.config.TypeColumns, " or "))
	}
	if !normalized.HasColumn(amountColumn) {
		missing = append(missing, c.config.AmountColumn)
	}
	if len(missing) > 0 {
		return counts, errors.SchemaError(table.Name, missing, table.Columns)
	}

	labels, _ := normalized.Column(typeColumn)
	amounts, _ := normalized.Column(amountColumn)

	for i, label := range labels {
		if label.IsMissing() {
			continue
		}

		var isWithdrawal bool
		switch label.String() {
		case c.config.WithdrawalLabel:
			isWithdrawal = true
			counts.NumWithdrawals++
		case c.config.DepositLabel:
			counts.NumDeposits++
		default:
			continue
		}

		amount, ok := number(amounts[i], &counts.CoercionFailures)
		if !ok {
			continue
		}
		if isWithdrawal {
			counts.SumWithdrawals = counts.SumWithdrawals.Add(amount)
		} else {
			counts.SumDeposits = counts.SumDeposits.Add(amount)
		}
	}

	c.logResult(table.Name, "type", counts.CoercionFailures, logger.Fields{
		"withdrawals": counts.NumWithdrawals,
		"deposits":    counts.NumDeposits,
	})
	return counts, nil
}

// AnalyzeYonoCombined infers direction over every statement row. A row is a
// withdrawal when its description contains the withdrawal pattern and its
// debit is positive. A row is a deposit when its description is absent or
// lacks the exclude marker and its credit is positive.
func (c *Classifier) AnalyzeYonoCombined(table *models.Table) (CombinedCounts, error) {
	var counts CombinedCounts

	cols, err := c.requireColumns(table, c.config.DescriptionColumn, c.config.DebitColumn, c.config.CreditColumn)
	if err != nil {
		return counts, err
	}
	descs, debits, credits := cols[0], cols[1], cols[2]

	pattern := strings.ToLower(c.config.WithdrawalPattern)
	marker := c.config.DepositExcludeMarker

	for i, desc := range descs {
		if !desc.IsMissing() && strings.Contains(strings.ToLower(desc.String()), pattern) {
			if debit, ok := positive(debits[i], &counts.CoercionFailures); ok {
				counts.CountCSPDebit++
				counts.SumCSPDebit = counts.SumCSPDebit.Add(debit)
			}
		}

		if desc.IsMissing() || !strings.Contains(desc.String(), marker) {
			if credit, ok := positive(credits[i], &counts.CoercionFailures); ok {
				counts.CountNoAtCredit++
				counts.SumNoAtCredit = counts.SumNoAtCredit.Add(credit)
			}
		}
	}

	c.logResult(table.Name, "combined", counts.CoercionFailures, logger.Fields{
		"withdrawals": counts.CountCSPDebit,
		"deposits":    counts.CountNoAtCredit,
	})
	return counts, nil
}

// AnalyzeYonoBranch counts and totals positive debits and positive credits,
// independently, over rows booked at the configured branch.
func (c *Classifier) AnalyzeYonoBranch(table *models.Table) (BranchCounts, error) {
	var counts BranchCounts

	cols, err := c.requireColumns(table, c.config.BranchColumn, c.config.DebitColumn, c.config.CreditColumn)
	if err != nil {
		return counts, err
	}
	branches, debits, credits := cols[0], cols[1], cols[2]

	matched := 0
	for i, branch := range branches {
		if branch.IsMissing() || NormalizeBranchCode(branch.String()) != c.config.BranchCode {
			continue
		}
		matched++

		if debit, ok := positive(debits[i], &counts.CoercionFailures); ok {
			counts.DebitCount++
			counts.DebitSum = counts.DebitSum.Add(debit)
		}
		if credit, ok := positive(credits[i], &counts.CoercionFailures); ok {
			counts.CreditCount++
			counts.CreditSum = counts.CreditSum.Add(credit)
		}
	}

	c.logResult(table.Name, "branch", counts.CoercionFailures, logger.Fields{
		"branch_code": c.config.BranchCode,
		"branch_rows": matched,
		"debits":      counts.DebitCount,
		"credits":     counts.CreditCount,
	})
	return counts, nil
}

// NormalizeBranchCode trims a branch code, drops everything from the first
// "." on and trims again, so spreadsheet renderings like "99922.0" and
// "99922 .0" compare equal to "99922". Applying it twice gives the same
// result as applying it once.
func NormalizeBranchCode(code string) string {
	before, _, _ := strings.Cut(strings.TrimSpace(code), ".")
	return strings.TrimSpace(before)
}

// requireColumns returns the cells of each named column, matching names
// after trimming and lower-casing
func (c *Classifier) requireColumns(table *models.Table, names ...string) ([][]models.Cell, error) {
	normalized := table.NormalizeColumns()

	var missing []string
	for _, name := range names {
		if !normalized.HasColumn(models.NormalizeColumnName(name)) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, errors.SchemaError(table.Name, missing, table.Columns)
	}

	columns := make([][]models.Cell, len(names))
	for i, name := range names {
		columns[i], _ = normalized.Column(models.NormalizeColumnName(name))
	}
	return columns, nil
}

func (c *Classifier) logResult(source, strategy string, failures int, fields logger.Fields) {
	log := c.logger.WithFields(fields).WithFields(logger.Fields{
		"source":   source,
		"strategy": strategy,
	})
	if failures > 0 {
		log.WithField("coercion_failures", failures).Debug("Non-numeric amounts treated as missing")
	}
	log.Debug("Classified rows")
}

func normalizeNames(names []string) []string {
	normalized := make([]string, len(names))
	for i, name := range names {
		normalized[i] = models.NormalizeColumnName(name)
	}
	return normalized
}

// number coerces a cell, counting present cells that are not numbers
func number(cell models.Cell, failures *int) (decimal.Decimal, bool) {
	value, ok := cell.Number()
	if !ok && !cell.IsMissing() {
		*failures++
	}
	return value, ok
}

// positive returns the cell value when it is a number greater than zero
func positive(cell models.Cell, failures *int) (decimal.Decimal, bool) {
	value, ok := number(cell, failures)
	if !ok || !value.IsPositive() {
		return decimal.Zero, false
	}
	return value, true
}
