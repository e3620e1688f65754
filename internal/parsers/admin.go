package parsers

import (
	"context"
	"fmt"

	"ko-reconciliation-service/internal/models"
	"ko-reconciliation-service/pkg/errors"
	"ko-reconciliation-service/pkg/logger"
)

// AdminLoader reads the Admin limits configuration workbook
type AdminLoader struct {
	config *AdminConfig
	logger logger.Logger
}

// NewAdminLoader creates a loader for the Admin export
func NewAdminLoader(config *AdminConfig) (*AdminLoader, error) {
	if config == nil {
		config = DefaultAdminConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid admin loader configuration: %w", err)
	}

	return &AdminLoader{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("admin_loader"),
	}, nil
}

// Source returns the source name used in errors
func (l *AdminLoader) Source() string {
	return SourceAdmin
}

// Load reads the configured sheet, skips the banner rows and keeps the
// configured columns in configured order under normalized names.
func (l *AdminLoader) Load(ctx context.Context, path string) (*models.Table, error) {
	log := l.logger.WithField("file_path", path)

	if err := checkCancelled(ctx, SourceAdmin); err != nil {
		return nil, err
	}

	book, err := openSpreadsheet(SourceAdmin, path, log)
	if err != nil {
		return nil, err
	}
	defer book.Close()

	sheet, ok := findSheet(book.SheetNames(), l.config.SheetName)
	if !ok {
		log.WithField("sheet", l.config.SheetName).Error("Admin sheet not found")
		return nil, errors.LoadError(errors.CodeMissingSheet, SourceAdmin, path, nil).
			WithContext("sheet", l.config.SheetName).
			WithContext("available_sheets", book.SheetNames()).
			WithSuggestion(fmt.Sprintf("the workbook must contain a sheet named %q", l.config.SheetName))
	}

	rows, err := book.Rows(sheet)
	if err != nil {
		return nil, errors.LoadError(errors.CodeInvalidFormat, SourceAdmin, path, err)
	}

	headerRow := l.config.SkipRows
	if len(rows) <= headerRow {
		return nil, errors.FormatError(SourceAdmin, path, len(rows), headerRow+1)
	}

	header := rows[headerRow]
	available := make([]string, len(header))
	for i, cell := range header {
		available[i] = cell.String()
	}

	raw := models.NewTable(SourceAdmin, available)
	for i, row := range rows[headerRow+1:] {
		if i%cancelCheckInterval == 0 {
			if err := checkCancelled(ctx, SourceAdmin); err != nil {
				return nil, err
			}
		}
		if isEmptyRow(row) {
			continue
		}
		raw.AppendRow(row)
	}

	// Matching is on trimmed, lower-cased names; the first matching header wins
	wanted := make([]string, len(l.config.Columns))
	for i, col := range l.config.Columns {
		wanted[i] = models.NormalizeColumnName(col)
	}

	table, missing := raw.NormalizeColumns().Select(wanted...)
	if len(missing) > 0 {
		missing = configuredNames(l.config.Columns, missing)
		log.WithFields(logger.Fields{
			"missing_columns":   missing,
			"available_columns": available,
		}).Error("Admin columns are missing")
		return nil, errors.SchemaError(SourceAdmin, missing, available).
			WithContext("file_path", path)
	}

	log.WithFields(logger.Fields{
		"sheet": sheet,
		"rows":  table.Len(),
	}).Info("Loaded Admin data")

	return table, nil
}

func findSheet(names []string, want string) (string, bool) {
	for _, name := range names {
		if name == want {
			return name, true
		}
	}
	return "", false
}

// configuredNames maps normalized column names back to the spelling used
// in the configuration, for error messages
func configuredNames(configured, normalized []string) []string {
	byKey := make(map[string]string, len(configured))
	for _, col := range configured {
		byKey[models.NormalizeColumnName(col)] = col
	}

	names := make([]string, len(normalized))
	for i, key := range normalized {
		if col, ok := byKey[key]; ok {
			names[i] = col
		} else {
			names[i] = key
		}
	}
	return names
}
