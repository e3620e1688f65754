// Package config turns the reconciler command's flags, config file and
// environment into validated service, report and logger configurations.
package config

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/viper"

	"ko-reconciliation-service/internal/classifier"
	"ko-reconciliation-service/internal/parsers"
	"ko-reconciliation-service/internal/reconciler"
	"ko-reconciliation-service/internal/reporter"
	"ko-reconciliation-service/pkg/errors"
	"ko-reconciliation-service/pkg/logger"
)

// EnvPrefix prefixes every environment variable the command reads, e.g.
// RECONCILER_ADMIN_FILE or RECONCILER_CLASSIFIER_BRANCH_CODE
const EnvPrefix = "RECONCILER"

// Configuration keys
const (
	KeyAdminFile    = "admin-file"
	KeyEchequeFile  = "echeque-file"
	KeyYonoFile     = "yono-file"
	KeyDate         = "date"
	KeyOutputDir    = "output-dir"
	KeyOutputFormat = "output-format"
	KeyOutputFile   = "output-file"
	KeyParallel     = "parallel"
	KeyProgress     = "progress"
	KeyVerbose      = "verbose"
	KeyLogLevel     = "log-level"
	KeyLogFormat    = "log-format"

	KeyAdminSheet    = "admin.sheet"
	KeyAdminSkipRows = "admin.skip-rows"

	KeyYonoHeaderRow = "yono.header-row"
	KeyYonoDelimiter = "yono.delimiter"

	KeyBranchCode        = "classifier.branch-code"
	KeyWithdrawalLabel   = "classifier.withdrawal-label"
	KeyDepositLabel      = "classifier.deposit-label"
	KeyWithdrawalPattern = "classifier.withdrawal-pattern"
)

// DateLayout is the default date label layout
const DateLayout = "2006-01-02"

// SetDefaults registers defaults for the keys that have no flag, and sets
// up environment lookup
func SetDefaults(v *viper.Viper) {
	admin := parsers.DefaultAdminConfig()
	yono := parsers.DefaultYonoConfig()
	c := classifier.DefaultConfig()

	v.SetDefault(KeyOutputFormat, string(reporter.FormatConsole))
	v.SetDefault(KeyLogLevel, string(logger.InfoLevel))
	v.SetDefault(KeyLogFormat, string(logger.TextFormat))

	v.SetDefault(KeyAdminSheet, admin.SheetName)
	v.SetDefault(KeyAdminSkipRows, admin.SkipRows)
	v.SetDefault(KeyYonoHeaderRow, yono.HeaderRow)
	v.SetDefault(KeyYonoDelimiter, string(yono.Delimiter))
	v.SetDefault(KeyBranchCode, c.BranchCode)
	v.SetDefault(KeyWithdrawalLabel, c.WithdrawalLabel)
	v.SetDefault(KeyDepositLabel, c.DepositLabel)
	v.SetDefault(KeyWithdrawalPattern, c.WithdrawalPattern)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
}

// Settings is the resolved command configuration
type Settings struct {
	AdminFile    string
	EchequeFile  string
	YonoFile     string
	Date         string
	OutputDir    string
	OutputFormat string
	OutputFile   string
	Parallel     bool
	Progress     bool
	Verbose      bool
	LogLevel     string
	LogFormat    string

	AdminSheet    string
	AdminSkipRows int

	YonoHeaderRow int
	YonoDelimiter string

	BranchCode        string
	WithdrawalLabel   string
	DepositLabel      string
	WithdrawalPattern string
}

// Load reads every key from v
func Load(v *viper.Viper) *Settings {
	return &Settings{
		AdminFile:    v.GetString(KeyAdminFile),
		EchequeFile:  v.GetString(KeyEchequeFile),
		YonoFile:     v.GetString(KeyYonoFile),
		Date:         v.GetString(KeyDate),
		OutputDir:    v.GetString(KeyOutputDir),
		OutputFormat: v.GetString(KeyOutputFormat),
		OutputFile:   v.GetString(KeyOutputFile),
		Parallel:     v.GetBool(KeyParallel),
		Progress:     v.GetBool(KeyProgress),
		Verbose:      v.GetBool(KeyVerbose),
		LogLevel:     v.GetString(KeyLogLevel),
		LogFormat:    v.GetString(KeyLogFormat),

		AdminSheet:    v.GetString(KeyAdminSheet),
		AdminSkipRows: v.GetInt(KeyAdminSkipRows),

		YonoHeaderRow: v.GetInt(KeyYonoHeaderRow),
		YonoDelimiter: v.GetString(KeyYonoDelimiter),

		BranchCode:        v.GetString(KeyBranchCode),
		WithdrawalLabel:   v.GetString(KeyWithdrawalLabel),
		DepositLabel:      v.GetString(KeyDepositLabel),
		WithdrawalPattern: v.GetString(KeyWithdrawalPattern),
	}
}

// Validate checks the settings that do not belong to a single component
func (s *Settings) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{KeyAdminFile, s.AdminFile},
		{KeyEchequeFile, s.EchequeFile},
		{KeyYonoFile, s.YonoFile},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return errors.ConfigurationError(errors.CodeMissingConfig, r.key, nil, nil).
				WithSuggestion(fmt.Sprintf("pass --%s or set %s", r.key, EnvName(r.key)))
		}
	}

	if !reporter.OutputFormat(s.OutputFormat).IsValid() {
		return errors.ConfigurationError(errors.CodeInvalidConfig, KeyOutputFormat, s.OutputFormat, nil).
			WithSuggestion("valid formats: console, json, csv")
	}

	if s.Date != "" {
		if err := reporter.ValidateDateLabel(s.Date); err != nil {
			return errors.ConfigurationError(errors.CodeInvalidConfig, KeyDate, s.Date, err)
		}
	}

	return nil
}

// EnvName returns the environment variable read for key
func EnvName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(key))
}

// CreateReconcilerConfig builds and validates the service configuration
func (s *Settings) CreateReconcilerConfig() (*reconciler.Config, error) {
	config := reconciler.DefaultConfig()
	config.ParallelLoad = s.Parallel

	config.Admin.SheetName = s.AdminSheet
	config.Admin.SkipRows = s.AdminSkipRows
	if err := config.Admin.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "admin", s.AdminSheet, err)
	}

	delimiter, err := parseDelimiter(s.YonoDelimiter)
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, KeyYonoDelimiter, s.YonoDelimiter, err)
	}
	config.Yono.HeaderRow = s.YonoHeaderRow
	config.Yono.Delimiter = delimiter
	if err := config.Yono.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "yono", s.YonoHeaderRow, err)
	}

	config.Classifier.BranchCode = classifier.NormalizeBranchCode(s.BranchCode)
	config.Classifier.WithdrawalLabel = s.WithdrawalLabel
	config.Classifier.DepositLabel = s.DepositLabel
	config.Classifier.WithdrawalPattern = s.WithdrawalPattern
	if err := config.Classifier.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "classifier", s.BranchCode, err)
	}

	return config, nil
}

// CreateReportConfig creates a report configuration for the output format
func (s *Settings) CreateReportConfig() *reporter.ReportConfig {
	config := reporter.DefaultReportConfig()
	config.Format = reporter.OutputFormat(s.OutputFormat)

	switch config.Format {
	case reporter.FormatJSON, reporter.FormatCSV:
		config.ShowFiles = false
	}

	return config
}

// CreateLoggerConfig creates the logger configuration. Verbose switches to
// the debug configuration and ignores the configured level.
func (s *Settings) CreateLoggerConfig() (*logger.Config, error) {
	config := logger.DefaultConfig()
	if s.Verbose {
		config = logger.DebugConfig()
	} else if s.LogLevel != "" {
		config.Level = logger.Level(strings.ToLower(s.LogLevel))
	}
	if s.LogFormat != "" {
		config.Format = logger.Format(strings.ToLower(s.LogFormat))
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, KeyLogLevel, s.LogLevel, err)
	}
	return config, nil
}

// CreateRequest builds the run request. A missing date defaults to the
// day of now and a missing output directory to DefaultOutputDir(now).
func (s *Settings) CreateRequest(now time.Time) *reconciler.Request {
	date := s.Date
	if date == "" {
		date = now.Format(DateLayout)
	}

	outputDir := s.OutputDir
	if outputDir == "" {
		outputDir = DefaultOutputDir(now)
	}

	return &reconciler.Request{
		AdminFile:   s.AdminFile,
		EchequeFile: s.EchequeFile,
		YonoFile:    s.YonoFile,
		DateLabel:   date,
		OutputDir:   outputDir,
	}
}

// DefaultOutputDir names the directory a run writes to when none is given
func DefaultOutputDir(now time.Time) string {
	return "recon_" + now.Format("20060102_150405")
}

func parseDelimiter(s string) (rune, error) {
	if s == `\t` || s == "tab" {
		return '\t', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}
