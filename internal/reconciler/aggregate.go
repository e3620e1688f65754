package reconciler

import (
	"fmt"

	"ko-reconciliation-service/internal/models"
)

// Placeholder content of the unmatched tables
const (
	UnmatchedColumn  = "Sample"
	UnmatchedMessage = "No unmatched data available"
)

// unmatchedNames lists the placeholder tables in result order
var unmatchedNames = []string{
	models.TotalUnmatched,
	models.WithdrawalUnmatchedAdminCheque,
	models.WithdrawalUnmatchedAdminYono,
	models.WithdrawalUnmatchedAdminBranch,
	models.DepositUnmatchedAdminYono,
}

// BuildSummaries lays the per-source counts out as the Withdrawal, Deposit
// and Total tables. Rows always follow models.SourceOrder; Total is the
// elementwise sum of the other two.
func BuildSummaries(admin, cheque, yono, branch models.DirectionCounts) (models.Summaries, error) {
	bySource := []models.DirectionCounts{admin, cheque, yono, branch}

	withdrawals := make([]models.SummaryRow, len(models.SourceOrder))
	deposits := make([]models.SummaryRow, len(models.SourceOrder))
	for i, source := range models.SourceOrder {
		counts := bySource[i]
		withdrawals[i] = models.SummaryRow{Source: source, Count: counts.WithdrawalCount, Sum: counts.WithdrawalSum}
		deposits[i] = models.SummaryRow{Source: source, Count: counts.DepositCount, Sum: counts.DepositSum}
	}

	withdrawal := models.NewSummaryTable(models.WithdrawalTable,
		models.WithdrawalCountColumn, models.WithdrawalSumColumn, withdrawals)
	deposit := models.NewSummaryTable(models.DepositTable,
		models.DepositCountColumn, models.DepositSumColumn, deposits)

	total, err := withdrawal.Add(deposit, models.TotalTable, models.TotalCountColumn, models.TotalSumColumn)
	if err != nil {
		return models.Summaries{}, fmt.Errorf("build total summary: %w", err)
	}

	return models.Summaries{
		Withdrawal: withdrawal,
		Deposit:    deposit,
		Total:      total,
	}, nil
}

// UnmatchedPlaceholders returns the five unmatched tables. Row matching is
// not performed, so each holds a single sentinel row.
func UnmatchedPlaceholders() []models.NamedTable {
	tables := make([]models.NamedTable, len(unmatchedNames))
	for i, name := range unmatchedNames {
		table := models.NewTable(name, []string{UnmatchedColumn})
		table.AppendStrings(UnmatchedMessage)
		tables[i] = models.NamedTable{Name: name, Table: table}
	}
	return tables
}
