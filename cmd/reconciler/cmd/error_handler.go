package cmd

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/viper"

	"ko-reconciliation-service/cmd/reconciler/config"
	"ko-reconciliation-service/pkg/errors"
	"ko-reconciliation-service/pkg/logger"
)

// CLIErrorHandler provides user-friendly error handling for CLI operations
type CLIErrorHandler struct {
	logger  logger.Logger
	out     io.Writer
	verbose bool
}

// NewCLIErrorHandler creates a new CLI error handler writing to out
func NewCLIErrorHandler(out io.Writer) *CLIErrorHandler {
	return &CLIErrorHandler{
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		out:     out,
		verbose: viper.GetBool(config.KeyVerbose),
	}
}

// HandleError prints err and returns the process exit code
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	h.logger.WithError(err).Debug("Command failed")

	var summary *errors.ErrorSummary
	if stderrors.As(err, &summary) {
		return h.handleErrorSummary(summary)
	}

	if reconcilerErr, ok := errors.AsReconcilerError(err); ok {
		return h.handleReconcilerError(reconcilerErr)
	}

	return h.handleGenericError(err)
}

// helpOrder is the order category help is printed in for an ErrorSummary
var helpOrder = []errors.ErrorCategory{
	errors.CategoryConfiguration,
	errors.CategoryValidation,
	errors.CategoryLoad,
	errors.CategorySchema,
	errors.CategoryWrite,
	errors.CategoryInternal,
}

// handleErrorSummary lists every collected error, then the help for each
// category involved
func (h *CLIErrorHandler) handleErrorSummary(summary *errors.ErrorSummary) int {
	fmt.Fprintf(h.out, "Error: %s\n\n", summary.Error())
	for i, err := range summary.Errors {
		fmt.Fprintf(h.out, "  %d. %s\n", i+1, err.Message)
	}

	for _, category := range helpOrder {
		if summary.HasCategory(category) {
			fmt.Fprintf(h.out, "\n%s\n", h.getCategoryHelp(category))
		}
	}

	return summary.GetExitCode()
}

// handleReconcilerError handles ReconcilerError with detailed context
func (h *CLIErrorHandler) handleReconcilerError(err *errors.ReconcilerError) int {
	fmt.Fprintf(h.out, "Error: %s\n", err.Message)

	if len(err.Context) > 0 {
		keys := make([]string, 0, len(err.Context))
		for key := range err.Context {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		fmt.Fprintf(h.out, "\nContext:\n")
		for _, key := range keys {
			fmt.Fprintf(h.out, "  %s: %v\n", key, err.Context[key])
		}
	}

	if err.Suggestion != "" {
		fmt.Fprintf(h.out, "\nSuggestion: %s\n", err.Suggestion)
	}

	fmt.Fprintf(h.out, "\n%s\n", h.getCategoryHelp(err.Category))

	if h.verbose && err.Cause != nil {
		fmt.Fprintf(h.out, "\nUnderlying error: %v\n", err.Cause)
	}

	return err.GetExitCode()
}

// handleGenericError handles non-ReconcilerError types
func (h *CLIErrorHandler) handleGenericError(err error) int {
	if h.isFileNotFoundError(err) {
		fmt.Fprintf(h.out, "Error: File not found\n")
		fmt.Fprintf(h.out, "Suggestion: Check if the file path is correct and the file exists\n")
		return 2
	}

	if h.isPermissionError(err) {
		fmt.Fprintf(h.out, "Error: Permission denied\n")
		fmt.Fprintf(h.out, "Suggestion: Check file permissions and ensure you have read access\n")
		return 2
	}

	if h.isDiskFullError(err) {
		fmt.Fprintf(h.out, "Error: Insufficient disk space\n")
		fmt.Fprintf(h.out, "Suggestion: Free up disk space and try again\n")
		return 5
	}

	// Cobra usage errors (unknown flag, bad argument) land here
	fmt.Fprintf(h.out, "Error: %v\n", err)
	fmt.Fprintf(h.out, "Run 'reconciler --help' for usage.\n")

	return 1
}

// getCategoryHelp returns category-specific help text
func (h *CLIErrorHandler) getCategoryHelp(category errors.ErrorCategory) string {
	switch category {
	case errors.CategoryLoad:
		return `Load error help:
• Check that each file exists, is readable and was given to the right flag
• Admin must be an .xlsx export with a BCKOLimitsConfiguration sheet
• Echeque must be an .xls or .xlsx workbook with seven columns and no header
• Yono must be the full CSV statement including its banner lines`

	case errors.CategorySchema:
		return `Schema error help:
• Compare the header row with the expected column names
• Admin needs 'Type of Transaction' and 'Amount' below a three row banner
• Yono needs 'Description', 'Debit', 'Credit' and 'Branch Code'
• Column names are matched ignoring case and surrounding spaces`

	case errors.CategoryWrite:
		return `Write error help:
• Check that the output directory exists and is writable
• Close any open copy of the report in a spreadsheet or PDF viewer
• Check available disk space`

	case errors.CategoryValidation:
		return `Validation error help:
• Check that all three input paths and the output directory are set
• The date label must not be empty or contain path separators`

	case errors.CategoryConfiguration:
		return `Configuration error help:
• Check your command-line flags and arguments
• Verify configuration file syntax if using --config
• Environment variables use the RECONCILER_ prefix, e.g. RECONCILER_ADMIN_FILE
• Use 'reconciler reconcile --help' to see all available options`

	case errors.CategoryInternal:
		return `Internal error help:
• Run again with --verbose for the underlying error
• Report the error message and the input file layout if it persists`

	default:
		return `For more help:
• Use 'reconciler --help' for general help
• Use 'reconciler reconcile --help' for command-specific help`
	}
}

// Error detection helpers

func (h *CLIErrorHandler) isFileNotFoundError(err error) bool {
	return os.IsNotExist(err) || strings.Contains(err.Error(), "no such file or directory")
}

func (h *CLIErrorHandler) isPermissionError(err error) bool {
	return os.IsPermission(err) ||
		strings.Contains(err.Error(), "permission denied") ||
		strings.Contains(err.Error(), "access denied")
}

func (h *CLIErrorHandler) isDiskFullError(err error) bool {
	if stderrors.Is(err, syscall.ENOSPC) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "no space left") ||
		strings.Contains(errStr, "disk full") ||
		strings.Contains(errStr, "device full")
}
