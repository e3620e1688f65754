package parsers

import (
	"context"
	"fmt"

	"ko-reconciliation-service/internal/models"
	"ko-reconciliation-service/pkg/errors"
	"ko-reconciliation-service/pkg/logger"
)

// EchequeLoader reads the headerless Echeque workbook
type EchequeLoader struct {
	config *EchequeConfig
	logger logger.Logger
}

// NewEchequeLoader creates a loader for the Echeque export
func NewEchequeLoader(config *EchequeConfig) (*EchequeLoader, error) {
	if config == nil {
		config = DefaultEchequeConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid echeque loader configuration: %w", err)
	}

	return &EchequeLoader{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("echeque_loader"),
	}, nil
}

// Source returns the source name used in errors
func (l *EchequeLoader) Source() string {
	return SourceEcheque
}

// Load treats every row of the sheet as data and names the leading cells
// positionally. Cells beyond the configured columns are dropped.
func (l *EchequeLoader) Load(ctx context.Context, path string) (*models.Table, error) {
	log := l.logger.WithField("file_path", path)

	if err := checkCancelled(ctx, SourceEcheque); err != nil {
		return nil, err
	}

	book, err := openSpreadsheet(SourceEcheque, path, log)
	if err != nil {
		return nil, err
	}
	defer book.Close()

	names := book.SheetNames()
	sheet := l.config.SheetName
	if sheet == "" {
		if len(names) == 0 {
			return nil, errors.LoadError(errors.CodeMissingSheet, SourceEcheque, path, nil)
		}
		sheet = names[0]
	} else if _, ok := findSheet(names, sheet); !ok {
		return nil, errors.LoadError(errors.CodeMissingSheet, SourceEcheque, path, nil).
			WithContext("sheet", sheet).
			WithContext("available_sheets", names)
	}

	rows, err := book.Rows(sheet)
	if err != nil {
		return nil, errors.LoadError(errors.CodeInvalidFormat, SourceEcheque, path, err)
	}

	width := rowWidth(rows)
	if width < len(l.config.Columns) {
		log.WithFields(logger.Fields{
			"columns":  width,
			"required": len(l.config.Columns),
		}).Error("Echeque sheet is too narrow")
		return nil, errors.LoadError(errors.CodeInvalidFormat, SourceEcheque, path,
			fmt.Errorf("sheet %q has %d columns, expected at least %d", sheet, width, len(l.config.Columns))).
			WithContext("columns", width).
			WithContext("required_columns", len(l.config.Columns))
	}

	columns := make([]string, len(l.config.Columns))
	for i, col := range l.config.Columns {
		columns[i] = models.NormalizeColumnName(col)
	}

	table := models.NewTable(SourceEcheque, columns)
	for i, row := range rows {
		if i%cancelCheckInterval == 0 {
			if err := checkCancelled(ctx, SourceEcheque); err != nil {
				return nil, err
			}
		}
		if isEmptyRow(row) {
			continue
		}
		table.AppendRow(row)
	}

	if l.config.WarnOnMislabel {
		l.checkLabels(table, rows, log)
	}

	log.WithFields(logger.Fields{
		"sheet": sheet,
		"rows":  table.Len(),
	}).Info("Loaded Echeque data")

	return table, nil
}

// checkLabels warns when the positional type column holds no known label
// while some other column does, which usually means the export layout moved.
func (l *EchequeLoader) checkLabels(table *models.Table, rows [][]models.Cell, log logger.Logger) {
	known := make(map[string]bool, len(l.config.KnownLabels))
	for _, label := range l.config.KnownLabels {
		known[label] = true
	}

	typeColumn := models.NormalizeColumnName(l.config.TypeColumn)
	labels, ok := table.Column(typeColumn)
	if !ok {
		return
	}
	for _, label := range labels {
		if known[label.String()] {
			return
		}
	}

	typeIdx := table.ColumnIndex(typeColumn)
	for _, row := range rows {
		for c, cell := range row {
			if c != typeIdx && known[cell.String()] {
				logger.NewOperationLogger("echeque label check", log).
					WithFields(logger.Fields{
						"type_column":  l.config.TypeColumn,
						"label_column": c,
					}).
					Warning("Echeque transaction labels found outside the expected column")
				return
			}
		}
	}
}
