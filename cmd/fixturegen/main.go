// Command fixturegen writes a synthetic Admin, Echeque and Yono input set
// and prints the summaries a correct reconciliation of it must produce.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"ko-reconciliation-service/internal/fixtures"
	"ko-reconciliation-service/internal/models"
	"ko-reconciliation-service/internal/reconciler"
	"ko-reconciliation-service/internal/reporter"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := fixtures.DefaultGeneratorConfig()
	var (
		outputDir string
		startDate string
		format    string
	)

	cmd := &cobra.Command{
		Use:   "fixturegen",
		Short: "Generate reconciliation input fixtures",
		Long: `Fixturegen writes admin.xlsx, echeque.xlsx and yono.csv into the output
directory and prints the expected Withdrawal, Deposit and Total summaries.

Examples:
  fixturegen --output-dir generated
  fixturegen --admin-rows 5000 --yono-rows 20000 --seed 42 --format json`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := time.Parse("2006-01-02", startDate)
			if err != nil {
				return fmt.Errorf("invalid start date, use YYYY-MM-DD: %w", err)
			}
			cfg.StartDate = start

			set, err := fixtures.Generate(outputDir, cfg)
			if err != nil {
				return err
			}

			expected := set.Expected
			summaries, err := reconciler.BuildSummaries(expected.Admin, expected.Cheque, expected.Yono, expected.Branch)
			if err != nil {
				return err
			}

			generator, err := reporter.NewReportGenerator(&reporter.ReportConfig{
				Format:       reporter.OutputFormat(format),
				PreviewRows:  models.DefaultPreviewRows,
				CSVDelimiter: ',',
				CSVHeaders:   true,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s, %s, %s\n", set.AdminFile, set.EchequeFile, set.YonoFile)

			return generator.GenerateReport(&models.Result{
				DateLabel:   startDate,
				Summaries:   summaries,
				ProcessedAt: time.Now(),
			}, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output-dir", "d", "generated", "directory for the generated files")
	cmd.Flags().IntVar(&cfg.AdminRows, "admin-rows", cfg.AdminRows, "number of Admin ledger rows")
	cmd.Flags().IntVar(&cfg.EchequeRows, "echeque-rows", cfg.EchequeRows, "number of Echeque ledger rows")
	cmd.Flags().IntVar(&cfg.YonoRows, "yono-rows", cfg.YonoRows, "number of Yono statement rows")
	cmd.Flags().Float64Var(&cfg.MissingRatio, "missing-ratio", cfg.MissingRatio, "share of ledger rows without an amount (0.0-1.0)")
	cmd.Flags().Float64Var(&cfg.BranchRatio, "branch-ratio", cfg.BranchRatio, "share of statement rows booked at the KO branch (0.0-1.0)")
	cmd.Flags().StringVar(&cfg.BranchCode, "branch-code", cfg.BranchCode, "KO branch code")
	cmd.Flags().Int64Var(&cfg.Seed, "seed", cfg.Seed, "random seed")
	cmd.Flags().StringVar(&startDate, "start-date", cfg.StartDate.Format("2006-01-02"), "first transaction date (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&format, "format", "f", "console", "summary format: console, json, csv")

	return cmd
}
