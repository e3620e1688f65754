package fixtures

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"ko-reconciliation-service/internal/models"
)

// Labels written into the type columns
const (
	WithdrawalLabel = "KO Withdrawal"
	DepositLabel    = "KO Deposit"
	OtherLabel      = "Limit Enhancement"
)

// GeneratorConfig controls a generated data set
type GeneratorConfig struct {
	AdminRows   int
	EchequeRows int
	YonoRows    int
	// MissingRatio is the share of ledger rows written without an amount.
	MissingRatio float64
	// BranchRatio is the share of statement rows booked at BranchCode.
	BranchRatio float64
	BranchCode  string
	StartDate   time.Time
	Seed        int64
}

// DefaultGeneratorConfig returns a small, realistic data set configuration
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		AdminRows:    200,
		EchequeRows:  150,
		YonoRows:     300,
		MissingRatio: 0.03,
		BranchRatio:  0.2,
		BranchCode:   "99922",
		StartDate:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Seed:         1,
	}
}

// Expected holds the direction counts a correct reconciliation must produce
// for a generated set
type Expected struct {
	Admin  models.DirectionCounts
	Cheque models.DirectionCounts
	Yono   models.DirectionCounts
	Branch models.DirectionCounts
}

// Set is a generated group of input files
type Set struct {
	AdminFile   string
	EchequeFile string
	YonoFile    string
	Expected    Expected
}

// Generate writes admin.xlsx, echeque.xlsx and yono.csv into dir
func Generate(dir string, cfg GeneratorConfig) (*Set, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	g := &generator{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}
	set := &Set{
		AdminFile:   filepath.Join(dir, "admin.xlsx"),
		EchequeFile: filepath.Join(dir, "echeque.xlsx"),
		YonoFile:    filepath.Join(dir, "yono.csv"),
	}

	adminRows, adminCounts := g.adminRows()
	if err := WriteAdmin(set.AdminFile, adminRows, AdminOptions{}); err != nil {
		return nil, fmt.Errorf("write admin fixture: %w", err)
	}

	echequeRows, chequeCounts := g.echequeRows()
	if err := WriteEcheque(set.EchequeFile, echequeRows, EchequeOptions{}); err != nil {
		return nil, fmt.Errorf("write echeque fixture: %w", err)
	}

	yonoRows, yonoCounts, branchCounts := g.yonoRows()
	if err := WriteYono(set.YonoFile, yonoRows, YonoOptions{}); err != nil {
		return nil, fmt.Errorf("write yono fixture: %w", err)
	}

	set.Expected = Expected{
		Admin:  adminCounts,
		Cheque: chequeCounts,
		Yono:   yonoCounts,
		Branch: branchCounts,
	}
	return set, nil
}

type generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// amount returns a value between 100.00 and 50000.00 in whole paise
func (g *generator) amount() decimal.Decimal {
	return decimal.New(10000+g.rng.Int63n(4990001), -2)
}

func (g *generator) date(i int) string {
	return g.cfg.StartDate.Add(time.Duration(i) * 7 * time.Minute).Format("2006-01-02 15:04:05")
}

func (g *generator) label() string {
	switch n := g.rng.Intn(10); {
	case n < 5:
		return WithdrawalLabel
	case n < 9:
		return DepositLabel
	default:
		return OtherLabel
	}
}

// ledgerEntry draws one typed ledger line and folds it into counts
func (g *generator) ledgerEntry(counts *models.DirectionCounts) (label, amount string) {
	label = g.label()
	value := g.amount()
	missing := g.rng.Float64() < g.cfg.MissingRatio
	if !missing {
		amount = value.StringFixed(2)
	}

	switch label {
	case WithdrawalLabel:
		counts.WithdrawalCount++
		if !missing {
			counts.WithdrawalSum = counts.WithdrawalSum.Add(value)
		}
	case DepositLabel:
		counts.DepositCount++
		if !missing {
			counts.DepositSum = counts.DepositSum.Add(value)
		}
	}
	return label, amount
}

func (g *generator) adminRows() ([]AdminRow, models.DirectionCounts) {
	counts := models.DirectionCounts{}
	rows := make([]AdminRow, g.cfg.AdminRows)
	for i := range rows {
		label, amount := g.ledgerEntry(&counts)
		rows[i] = AdminRow{
			Date:         g.date(i),
			ConfiguredBy: fmt.Sprintf("USER%03d", g.rng.Intn(20)),
			KOID:         fmt.Sprintf("KO%05d", g.rng.Intn(500)),
			OpeningLimit: "100000",
			Type:         label,
			Amount:       amount,
			ClosingLimit: "100000",
		}
	}
	return rows, counts
}

func (g *generator) echequeRows() ([]EchequeRow, models.DirectionCounts) {
	counts := models.DirectionCounts{}
	rows := make([]EchequeRow, g.cfg.EchequeRows)
	for i := range rows {
		label, amount := g.ledgerEntry(&counts)
		rows[i] = EchequeRow{
			Serial:       fmt.Sprintf("%d/%s", i+1, g.date(i)),
			ConfiguredBy: fmt.Sprintf("USER%03d", g.rng.Intn(20)),
			KOID:         fmt.Sprintf("KO%05d", g.rng.Intn(500)),
			OpeningLimit: "100000",
			Type:         label,
			Amount:       amount,
			ClosingLimit: "100000",
		}
	}
	return rows, counts
}

// yonoRows draws statement lines of four kinds: cash sends to KOs, cash
// deposits, UPI credits (which carry an "@" handle) and other debits.
func (g *generator) yonoRows() ([]YonoRow, models.DirectionCounts, models.DirectionCounts) {
	combined := models.DirectionCounts{}
	branch := models.DirectionCounts{}
	branchForms := []string{g.cfg.BranchCode, g.cfg.BranchCode + ".0", " " + g.cfg.BranchCode + " "}

	rows := make([]YonoRow, g.cfg.YonoRows)
	for i := range rows {
		value := g.amount()
		row := YonoRow{
			TxnDate:   g.date(i),
			ValueDate: g.date(i),
			Reference: fmt.Sprintf("REF%08d", g.rng.Intn(100000000)),
			Balance:   "1000000.00",
		}

		atBranch := g.rng.Float64() < g.cfg.BranchRatio
		if atBranch {
			row.BranchCode = branchForms[g.rng.Intn(len(branchForms))]
		} else {
			row.BranchCode = fmt.Sprintf("%05d", 10000+g.rng.Intn(80000))
		}

		var debit, credit bool
		switch n := g.rng.Intn(4); n {
		case 0:
			row.Description = fmt.Sprintf("TO TRANSFER-CspCashSend/KO%05d", g.rng.Intn(500))
			debit = true
			combined.WithdrawalCount++
			combined.WithdrawalSum = combined.WithdrawalSum.Add(value)
		case 1:
			row.Description = fmt.Sprintf("BY CASH DEPOSIT KO%05d", g.rng.Intn(500))
			credit = true
			combined.DepositCount++
			combined.DepositSum = combined.DepositSum.Add(value)
		case 2:
			row.Description = fmt.Sprintf("UPI/CR/%d/ko%d@sbi", g.rng.Intn(1000000), g.rng.Intn(500))
			credit = true
		default:
			row.Description = fmt.Sprintf("NEFT/%d/VENDOR PAYMENT", g.rng.Intn(1000000))
			debit = true
		}

		if debit {
			row.Debit = value.StringFixed(2)
		}
		if credit {
			row.Credit = value.StringFixed(2)
		}

		if atBranch {
			if debit {
				branch.WithdrawalCount++
				branch.WithdrawalSum = branch.WithdrawalSum.Add(value)
			}
			if credit {
				branch.DepositCount++
				branch.DepositSum = branch.DepositSum.Add(value)
			}
		}

		rows[i] = row
	}
	return rows, combined, branch
}
