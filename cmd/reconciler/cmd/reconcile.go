package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ko-reconciliation-service/cmd/reconciler/config"
	"ko-reconciliation-service/internal/parsers"
	"ko-reconciliation-service/internal/reconciler"
	"ko-reconciliation-service/internal/reporter"
	"ko-reconciliation-service/pkg/errors"
	"ko-reconciliation-service/pkg/logger"
)

// settings is resolved in PreRunE and consumed by runReconcile
var settings *config.Settings

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Summarise KO withdrawals and deposits across the three sources",
	Long: `Reconcile loads the Admin limits export, the e-cheque ledger and the Yono
statement, classifies every row as a KO withdrawal or deposit, and writes
the Withdrawal, Deposit and Total summaries to
<output-dir>/reconciliation_report_<date>.xlsx and .pdf.

This command requires:
- The Admin export (xlsx, sheet BCKOLimitsConfiguration)
- The e-cheque ledger (xls or xlsx, no header row)
- The Yono statement (CSV, header on the 20th non-empty line)

Examples:
  # Basic reconciliation, written to ./recon_<timestamp>
  reconciler reconcile --admin-file admin.xlsx --echeque-file echeque.xlsx --yono-file yono.csv

  # Fixed date label and output directory
  reconciler reconcile -a admin.xlsx -e echeque.xls -y yono.csv \
    --date 2024-05-01 --output-dir reports

  # Machine readable summary on stdout
  reconciler reconcile -a admin.xlsx -e echeque.xls -y yono.csv --output-format json

  # Different KO branch
  reconciler reconcile -a admin.xlsx -e echeque.xls -y yono.csv --branch-code 12345`,

	PreRunE: validateReconcileFlags,
	RunE:    runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	// Input files
	reconcileCmd.Flags().StringP("admin-file", "a", "", "path to the Admin limits workbook (required)")
	reconcileCmd.Flags().StringP("echeque-file", "e", "", "path to the e-cheque workbook (required)")
	reconcileCmd.Flags().StringP("yono-file", "y", "", "path to the Yono statement CSV (required)")

	// Report files
	reconcileCmd.Flags().String("date", "", "date label used in report file names (default: today, YYYY-MM-DD)")
	reconcileCmd.Flags().StringP("output-dir", "d", "", "directory for the xlsx and pdf reports (default: recon_<timestamp>)")

	// Summary output
	reconcileCmd.Flags().StringP("output-format", "f", "console", "summary format: console, json, csv")
	reconcileCmd.Flags().StringP("output-file", "o", "", "summary output path (default: stdout)")

	// Processing
	reconcileCmd.Flags().Bool("parallel", false, "load the three sources concurrently")
	reconcileCmd.Flags().Bool("progress", false, "show progress indicators")
	reconcileCmd.Flags().String("branch-code", "", "KO branch code in the Yono statement (default 99922)")

	viper.BindPFlag(config.KeyAdminFile, reconcileCmd.Flags().Lookup("admin-file"))
	viper.BindPFlag(config.KeyEchequeFile, reconcileCmd.Flags().Lookup("echeque-file"))
	viper.BindPFlag(config.KeyYonoFile, reconcileCmd.Flags().Lookup("yono-file"))
	viper.BindPFlag(config.KeyDate, reconcileCmd.Flags().Lookup("date"))
	viper.BindPFlag(config.KeyOutputDir, reconcileCmd.Flags().Lookup("output-dir"))
	viper.BindPFlag(config.KeyOutputFormat, reconcileCmd.Flags().Lookup("output-format"))
	viper.BindPFlag(config.KeyOutputFile, reconcileCmd.Flags().Lookup("output-file"))
	viper.BindPFlag(config.KeyParallel, reconcileCmd.Flags().Lookup("parallel"))
	viper.BindPFlag(config.KeyProgress, reconcileCmd.Flags().Lookup("progress"))
	viper.BindPFlag(config.KeyBranchCode, reconcileCmd.Flags().Lookup("branch-code"))
}

func validateReconcileFlags(cmd *cobra.Command, args []string) error {
	// Values come from viper so a config file or environment can supply them
	settings = config.Load(viper.GetViper())

	if err := settings.Validate(); err != nil {
		return err
	}

	inputs := []struct {
		path   string
		source string
	}{
		{settings.AdminFile, parsers.SourceAdmin},
		{settings.EchequeFile, parsers.SourceEcheque},
		{settings.YonoFile, parsers.SourceYono},
	}

	var problems []*errors.ReconcilerError
	for _, input := range inputs {
		if err := validateFileExists(input.path, input.source); err != nil {
			problems = append(problems, err)
		}
	}
	switch len(problems) {
	case 0:
	case 1:
		return problems[0]
	default:
		return errors.NewErrorSummary(problems)
	}

	if settings.OutputFile != "" {
		dir := filepath.Dir(settings.OutputFile)
		if dir != "." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return errors.WriteError(errors.CodeDirectoryError, dir, err)
			}
		}
	}

	return nil
}

func validateFileExists(filePath, source string) *errors.ReconcilerError {
	if filePath == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, source, nil, nil)
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return errors.LoadError(errors.CodeFileNotFound, source, filePath, err)
	}
	if err != nil {
		return errors.LoadError(errors.CodeFilePermission, source, filePath, err)
	}

	if info.IsDir() {
		return errors.LoadError(errors.CodeInvalidFormat, source, filePath, nil).
			WithSuggestion("expected a file, got a directory")
	}

	file, err := os.Open(filePath)
	if err != nil {
		return errors.LoadError(errors.CodeFilePermission, source, filePath, err)
	}
	file.Close()

	return nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	loggerConfig, err := settings.CreateLoggerConfig()
	if err != nil {
		return err
	}
	log, err := logger.NewLogger(loggerConfig)
	if err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, config.KeyLogLevel, settings.LogLevel, err)
	}
	logger.SetGlobalLogger(log)

	serviceConfig, err := settings.CreateReconcilerConfig()
	if err != nil {
		return err
	}

	service, err := reconciler.NewService(serviceConfig, nil)
	if err != nil {
		return err
	}

	stderr := cmd.ErrOrStderr()
	if settings.Progress {
		service.AddProgressCallback(func(progress *reconciler.Progress) {
			fmt.Fprintf(stderr, "\r[%d/%d] %s (%.1f%% complete)",
				progress.CompletedSteps, progress.TotalSteps,
				progress.CurrentStep, progress.PercentComplete)
		})
	}

	request := settings.CreateRequest(time.Now())
	if err := ensureOutputDir(request.OutputDir); err != nil {
		return err
	}

	if settings.Verbose {
		fmt.Fprintf(stderr, "Starting reconciliation...\n")
		fmt.Fprintf(stderr, "Admin file: %s\n", request.AdminFile)
		fmt.Fprintf(stderr, "Echeque file: %s\n", request.EchequeFile)
		fmt.Fprintf(stderr, "Yono file: %s\n", request.YonoFile)
		fmt.Fprintf(stderr, "Output directory: %s\n", request.OutputDir)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := service.Run(ctx, request)
	if settings.Progress {
		fmt.Fprintln(stderr)
	}
	if err != nil {
		return err
	}

	generator, err := reporter.NewSafeReportGenerator(settings.CreateReportConfig(), log)
	if err != nil {
		return err
	}

	var output io.Writer = cmd.OutOrStdout()
	if settings.OutputFile != "" {
		file, err := os.Create(settings.OutputFile)
		if err != nil {
			return errors.WriteError(errors.CodeWriteFailed, settings.OutputFile, err)
		}
		defer file.Close()
		output = file
	}

	if err := generator.GenerateReportSafely(result, output); err != nil {
		return err
	}

	if settings.Verbose {
		fmt.Fprintf(stderr, "\nReconciliation completed successfully.\n")
		fmt.Fprintf(stderr, "Reports: %s, %s\n", result.ExcelFile, result.PDFFile)
		fmt.Fprintf(stderr, "Processing time: %v\n", result.Duration)
	}

	return nil
}

// ensureOutputDir creates the report directory when it does not exist yet.
// An existing non-directory path is left for the service to reject.
func ensureOutputDir(dir string) error {
	if _, err := os.Stat(dir); err == nil || !os.IsNotExist(err) {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.WriteError(errors.CodeDirectoryError, dir, err)
	}
	return nil
}
