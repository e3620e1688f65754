package parsers

import (
	"context"
	"fmt"

	"ko-reconciliation-service/internal/models"
	"ko-reconciliation-service/pkg/errors"
	"ko-reconciliation-service/pkg/logger"
)

// YonoLoader reads the Yono CSV statement
type YonoLoader struct {
	config *YonoConfig
	logger logger.Logger
}

// NewYonoLoader creates a loader for the Yono export
func NewYonoLoader(config *YonoConfig) (*YonoLoader, error) {
	if config == nil {
		config = DefaultYonoConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid yono loader configuration: %w", err)
	}

	return &YonoLoader{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("yono_loader"),
	}, nil
}

// Source returns the source name used in errors
func (l *YonoLoader) Source() string {
	return SourceYono
}

// Load discards the statement banner, takes column names from the header
// row and returns the rows below it. Column names are trimmed and
// lower-cased; values are kept as read.
func (l *YonoLoader) Load(ctx context.Context, path string) (*models.Table, error) {
	log := l.logger.WithField("file_path", path)

	records, err := readDelimited(ctx, SourceYono, path, l.config.Delimiter, log)
	if err != nil {
		return nil, err
	}

	if len(records) < l.config.MinRows() {
		log.WithFields(logger.Fields{
			"rows":     len(records),
			"required": l.config.MinRows(),
		}).Error("Yono statement is too short")
		return nil, errors.FormatError(SourceYono, path, len(records), l.config.MinRows())
	}

	header := records[l.config.HeaderRow]
	columns := make([]string, len(header))
	for i, name := range header {
		columns[i] = models.NormalizeColumnName(name)
	}

	table := models.NewTable(SourceYono, columns)
	if missing := table.MissingColumns(l.config.RequiredColumns...); len(missing) > 0 {
		log.WithFields(logger.Fields{
			"missing_columns":   missing,
			"available_columns": columns,
		}).Error("Yono columns are missing")
		return nil, errors.SchemaError(SourceYono, missing, columns).
			WithContext("file_path", path)
	}

	for _, record := range records[l.config.HeaderRow+1:] {
		cells := make([]models.Cell, len(record))
		for i, v := range record {
			cells[i] = models.NewCell(v)
		}
		table.AppendRow(cells)
	}

	log.WithFields(logger.Fields{
		"rows":    table.Len(),
		"columns": len(columns),
	}).Info("Loaded Yono data")

	return table, nil
}
