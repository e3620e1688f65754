package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ko-reconciliation-service/internal/models"
	"ko-reconciliation-service/pkg/errors"
)

func newClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := New(nil)
	require.NoError(t, err)
	return c
}

// table builds a table; "<nil>" stands for a missing cell
func table(name string, columns []string, rows ...[]string) *models.Table {
	tbl := models.NewTable(name, columns)
	for _, values := range rows {
		cells := make([]models.Cell, len(values))
		for i, v := range values {
			if v == "<nil>" {
				cells[i] = models.MissingCell
				continue
			}
			cells[i] = models.NewCell(v)
		}
		tbl.AppendRow(cells)
	}
	return tbl
}

func assertDecimal(t *testing.T, want string, got interface{ String() string }) {
	t.Helper()
	assert.Equal(t, want, got.String())
}

var yonoColumns = []string{"description", "debit", "credit", "branch code"}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantError bool
	}{
		{"default", func(c *Config) {}, false},
		{"no type columns", func(c *Config) { c.TypeColumns = nil }, true},
		{"blank type column", func(c *Config) { c.TypeColumns = []string{" "} }, true},
		{"empty pattern", func(c *Config) { c.WithdrawalPattern = "" }, true},
		{"same labels", func(c *Config) { c.DepositLabel = c.WithdrawalLabel }, true},
		{"unnormalized branch", func(c *Config) { c.BranchCode = "99922.0" }, true},
		{"custom branch", func(c *Config) { c.BranchCode = "12345" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			assert.Equal(t, tt.wantError, err != nil, "Validate() error = %v", err)
		})
	}
}

func TestAnalyzeTransactions(t *testing.T) {
	c := newClassifier(t)

	admin := table("Admin", []string{"type of transaction", "amount"},
		[]string{"KO Withdrawal", "100"},
		[]string{"KO Withdrawal", "50"},
		[]string{"KO Deposit", "30"},
		[]string{"Limit Enhancement", "999"},
	)

	counts, err := c.AnalyzeTransactions(admin)
	require.NoError(t, err)

	assert.Equal(t, int64(2), counts.NumWithdrawals)
	assert.Equal(t, int64(1), counts.NumDeposits)
	assertDecimal(t, "150", counts.SumWithdrawals)
	assertDecimal(t, "30", counts.SumDeposits)
}

func TestAnalyzeTransactions_MissingAmountCountedNotSummed(t *testing.T) {
	c := newClassifier(t)

	echeque := table("Echeque", []string{"transaction type", "amount"},
		[]string{"KO Deposit", "<nil>"},
		[]string{"KO Deposit", "40"},
		[]string{"KO Deposit", "n/a"},
	)

	counts, err := c.AnalyzeTransactions(echeque)
	require.NoError(t, err)

	assert.Equal(t, int64(3), counts.NumDeposits)
	assertDecimal(t, "40", counts.SumDeposits)
	assert.Equal(t, 1, counts.CoercionFailures)
}

func TestAnalyzeTransactions_LabelsMatchExactly(t *testing.T) {
	c := newClassifier(t)

	admin := table("Admin", []string{"type of transaction", "amount"},
		[]string{"ko withdrawal", "10"},
		[]string{"KO Withdrawal ", "10"},
		[]string{"KO Withdrawal", "10"},
	)

	counts, err := c.AnalyzeTransactions(admin)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.NumWithdrawals)
}

func TestAnalyzeTransactions_PrefersFirstTypeColumn(t *testing.T) {
	c := newClassifier(t)

	both := table("Admin", []string{"transaction type", "type of transaction", "amount"},
		[]string{"KO Deposit", "KO Withdrawal", "10"},
	)

	counts, err := c.AnalyzeTransactions(both)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.NumWithdrawals)
	assert.Equal(t, int64(0), counts.NumDeposits)
}

func TestAnalyze_MatchesColumnNamesLoosely(t *testing.T) {
	c := newClassifier(t)

	admin := table("Admin", []string{" Type Of Transaction", "AMOUNT "},
		[]string{"KO Withdrawal", "10"},
		[]string{"KO Deposit", "5"},
	)
	counts, err := c.AnalyzeTransactions(admin)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.NumWithdrawals)
	assertDecimal(t, "5", counts.SumDeposits)
	assert.Equal(t, []string{" Type Of Transaction", "AMOUNT "}, admin.Columns, "input table is not modified")

	yono := table("Yono", []string{"Description ", "DEBIT", "Credit", " Branch Code"},
		[]string{"TO CSPCASHSEND/KO1", "20", "", "99922"},
		[]string{"cash deposit", "", "30", "99922.0"},
	)
	combined, err := c.AnalyzeYonoCombined(yono)
	require.NoError(t, err)
	assert.Equal(t, int64(1), combined.CountCSPDebit)
	assert.Equal(t, int64(1), combined.CountNoAtCredit)

	branch, err := c.AnalyzeYonoBranch(yono)
	require.NoError(t, err)
	assertDecimal(t, "20", branch.DebitSum)
	assertDecimal(t, "30", branch.CreditSum)
}

func TestAnalyzeTransactions_SchemaErrors(t *testing.T) {
	c := newClassifier(t)

	_, err := c.AnalyzeTransactions(table("Admin", []string{"amount"}))
	require.Error(t, err)
	assert.True(t, errors.IsSchemaError(err))

	_, err = c.AnalyzeTransactions(table("Admin", []string{"transaction type"}))
	require.Error(t, err)
	re, ok := errors.AsReconcilerError(err)
	require.True(t, ok)
	assert.Equal(t, []string{"amount"}, re.Context["missing_columns"])
	assert.Equal(t, "Admin", re.Source)
}

func TestAnalyzeYonoCombined(t *testing.T) {
	c := newClassifier(t)

	yono := table("Yono", yonoColumns,
		[]string{"TO CSPCASHSEND/KO1", "100", "<nil>", "1"},
		[]string{"cspcashsend ko2", "20.5", "<nil>", "1"},
		[]string{"CSPCASHSEND reversal", "0", "<nil>", "1"},
		[]string{"CSP CASH SEND", "70", "<nil>", "1"},
		[]string{"UPI/ko@sbi", "<nil>", "50", "1"},
		[]string{"CASH DEPOSIT", "<nil>", "30", "1"},
		[]string{"<nil>", "<nil>", "5", "1"},
		[]string{"REFUND", "<nil>", "-5", "1"},
	)

	counts, err := c.AnalyzeYonoCombined(yono)
	require.NoError(t, err)

	assert.Equal(t, int64(2), counts.CountCSPDebit)
	assertDecimal(t, "120.5", counts.SumCSPDebit)
	assert.Equal(t, int64(2), counts.CountNoAtCredit)
	assertDecimal(t, "35", counts.SumNoAtCredit)
}

func TestAnalyzeYonoCombined_PatternCaseInsensitive(t *testing.T) {
	c := newClassifier(t)

	for _, desc := range []string{"CSPCASHSEND", "cspcashsend", "CspCashSend/KO", "xxCSPCASHSENDyy"} {
		t.Run(desc, func(t *testing.T) {
			counts, err := c.AnalyzeYonoCombined(table("Yono", yonoColumns, []string{desc, "10", "", ""}))
			require.NoError(t, err)
			assert.Equal(t, int64(1), counts.CountCSPDebit)
		})
	}

	for _, desc := range []string{"CSP CASHSEND", "csp-cash-send", "CASHSEND"} {
		t.Run(desc, func(t *testing.T) {
			counts, err := c.AnalyzeYonoCombined(table("Yono", yonoColumns, []string{desc, "10", "", ""}))
			require.NoError(t, err)
			assert.Equal(t, int64(0), counts.CountCSPDebit)
		})
	}
}

func TestAnalyzeYonoBranch(t *testing.T) {
	c := newClassifier(t)

	yono := table("Yono", yonoColumns,
		[]string{"a", "100", "<nil>", "99922"},
		[]string{"b", "<nil>", "40", "99922.0"},
		[]string{"c", "10", "15", " 99922 "},
		[]string{"d", "500", "500", "999220"},
		[]string{"e", "500", "500", "12345"},
		[]string{"f", "0", "-3", "99922"},
		[]string{"g", "oops", "<nil>", "99922"},
		[]string{"h", "1", "1", "<nil>"},
	)

	counts, err := c.AnalyzeYonoBranch(yono)
	require.NoError(t, err)

	assert.Equal(t, int64(2), counts.DebitCount)
	assertDecimal(t, "110", counts.DebitSum)
	assert.Equal(t, int64(2), counts.CreditCount)
	assertDecimal(t, "55", counts.CreditSum)
	assert.Equal(t, 1, counts.CoercionFailures)
}

func TestAnalyzeYono_DoesNotMutateInput(t *testing.T) {
	c := newClassifier(t)

	row := []string{"CSPCASHSEND", "100", "<nil>", "99922.0"}
	yono := table("Yono", yonoColumns, row)
	before := table("Yono", yonoColumns, row)

	_, err := c.AnalyzeYonoBranch(yono)
	require.NoError(t, err)
	_, err = c.AnalyzeYonoCombined(yono)
	require.NoError(t, err)

	assert.Equal(t, before, yono)
}

func TestAnalyzeYono_PassesOverlap(t *testing.T) {
	c := newClassifier(t)

	yono := table("Yono", yonoColumns,
		[]string{"CSPCASHSEND", "100", "<nil>", "99922"},
	)

	combined, err := c.AnalyzeYonoCombined(yono)
	require.NoError(t, err)
	branch, err := c.AnalyzeYonoBranch(yono)
	require.NoError(t, err)

	assert.Equal(t, int64(1), combined.CountCSPDebit)
	assert.Equal(t, int64(1), branch.DebitCount, "a branch cash send is counted by both passes")
}

func TestAnalyzeYono_SchemaErrors(t *testing.T) {
	c := newClassifier(t)

	_, err := c.AnalyzeYonoCombined(table("Yono", []string{"description", "debit"}))
	assert.True(t, errors.IsSchemaError(err))

	_, err = c.AnalyzeYonoBranch(table("Yono", []string{"description", "debit", "credit"}))
	assert.True(t, errors.IsSchemaError(err))
}

func TestNormalizeBranchCode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"99922", "99922"},
		{"99922.0", "99922"},
		{" 99922 ", "99922"},
		{"99922.5.1", "99922"},
		{"999220", "999220"},
		{"", ""},
		{".5", ""},
		{"12 .3", "12"},
		{"99922 .0", "99922"},
		{" 99922\t.00", "99922"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := NormalizeBranchCode(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, NormalizeBranchCode(got), "normalization must be idempotent")
		})
	}
}

func TestAnalyzeYonoBranch_SpaceBeforeDecimal(t *testing.T) {
	c := newClassifier(t)

	counts, err := c.AnalyzeYonoBranch(table("Yono", yonoColumns,
		[]string{"a", "10", "", "99922 .0"},
		[]string{"b", "", "5", "99922"},
		[]string{"c", "7", "", "9992 2.0"},
	))
	require.NoError(t, err)

	assert.Equal(t, int64(1), counts.DebitCount, "\"99922 .0\" is the KO branch")
	assertDecimal(t, "10", counts.DebitSum)
	assert.Equal(t, int64(1), counts.CreditCount)
}

func TestDirectional(t *testing.T) {
	c := newClassifier(t)

	counts, err := c.AnalyzeYonoBranch(table("Yono", yonoColumns,
		[]string{"a", "10", "20", "99922"},
	))
	require.NoError(t, err)

	d := counts.Directional()
	assert.Equal(t, int64(1), d.WithdrawalCount)
	assert.Equal(t, int64(1), d.DepositCount)
	assertDecimal(t, "10", d.WithdrawalSum)
	assertDecimal(t, "20", d.DepositSum)
}
