package reporter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"ko-reconciliation-service/internal/models"
	"ko-reconciliation-service/pkg/errors"
	"ko-reconciliation-service/pkg/logger"
)

// Files holds the paths of the generated report files
type Files struct {
	ExcelFile string `json:"Excel_File"`
	PDFFile   string `json:"PDF_File"`
}

// EmitterConfig controls report file generation
type EmitterConfig struct {
	FilePrefix string `json:"file_prefix"`
	Title      string `json:"title"`
	// Compress enables PDF stream compression.
	Compress bool `json:"compress"`
}

// DefaultEmitterConfig returns the standard report file layout
func DefaultEmitterConfig() *EmitterConfig {
	return &EmitterConfig{
		FilePrefix: "reconciliation_report_",
		Title:      "KO Reconciliation Report",
		Compress:   true,
	}
}

// Validate checks if the emitter configuration is valid
func (c *EmitterConfig) Validate() error {
	if strings.TrimSpace(c.FilePrefix) == "" {
		return fmt.Errorf("file prefix cannot be empty")
	}
	if strings.ContainsAny(c.FilePrefix, `/\`) {
		return fmt.Errorf("file prefix cannot contain path separators: %q", c.FilePrefix)
	}
	return nil
}

// Emitter writes the spreadsheet and PDF reports for a run
type Emitter struct {
	config *EmitterConfig
	logger logger.Logger

	renderWorkbook func(w io.Writer, summaries models.Summaries) error
	renderPDF      func(w io.Writer, summaries models.Summaries, config *EmitterConfig) error
}

// NewEmitter creates a report emitter
func NewEmitter(config *EmitterConfig) (*Emitter, error) {
	if config == nil {
		config = DefaultEmitterConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "emitter", config.FilePrefix, err)
	}

	return &Emitter{
		config:         config,
		logger:         logger.GetGlobalLogger().WithComponent("emitter"),
		renderWorkbook: writeWorkbook,
		renderPDF:      writePDF,
	}, nil
}

// Paths returns the report paths Emit would write for dateLabel
func (e *Emitter) Paths(outputDir, dateLabel string) Files {
	base := e.config.FilePrefix + dateLabel
	return Files{
		ExcelFile: filepath.Join(outputDir, base+".xlsx"),
		PDFFile:   filepath.Join(outputDir, base+".pdf"),
	}
}

// Emit writes both reports into outputDir. Each file is written to a
// temporary name and renamed into place; if either report fails, nothing
// from this call is left behind.
func (e *Emitter) Emit(outputDir, dateLabel string, summaries models.Summaries) (Files, error) {
	if err := ValidateDateLabel(dateLabel); err != nil {
		return Files{}, err
	}

	info, err := os.Stat(outputDir)
	if err != nil {
		return Files{}, errors.WriteError(errors.CodeDirectoryError, outputDir, err)
	}
	if !info.IsDir() {
		return Files{}, errors.WriteError(errors.CodeDirectoryError, outputDir, fmt.Errorf("not a directory"))
	}

	files := e.Paths(outputDir, dateLabel)
	log := e.logger.WithFields(logger.Fields{
		"output_dir": outputDir,
		"date":       dateLabel,
	})

	excelTemp, err := writeTemp(outputDir, ".xlsx", func(w io.Writer) error {
		return e.renderWorkbook(w, summaries)
	})
	if err != nil {
		log.WithError(err).Error("Failed to write spreadsheet report")
		return Files{}, errors.WriteError(errors.CodeWriteFailed, files.ExcelFile, err)
	}

	pdfTemp, err := writeTemp(outputDir, ".pdf", func(w io.Writer) error {
		return e.renderPDF(w, summaries, e.config)
	})
	if err != nil {
		os.Remove(excelTemp)
		log.WithError(err).Error("Failed to write PDF report")
		return Files{}, errors.WriteError(errors.CodeWriteFailed, files.PDFFile, err)
	}

	if err := os.Rename(excelTemp, files.ExcelFile); err != nil {
		os.Remove(excelTemp)
		os.Remove(pdfTemp)
		return Files{}, errors.WriteError(errors.CodeWriteFailed, files.ExcelFile, err)
	}

	if err := os.Rename(pdfTemp, files.PDFFile); err != nil {
		os.Remove(pdfTemp)
		os.Remove(files.ExcelFile)
		return Files{}, errors.WriteError(errors.CodeWriteFailed, files.PDFFile, err)
	}

	log.WithFields(logger.Fields{
		"excel_file": files.ExcelFile,
		"pdf_file":   files.PDFFile,
	}).Info("Reports written")

	return files, nil
}

// writeTemp runs render against a new hidden file in dir and returns its
// path. The file is removed if render or close fails.
func writeTemp(dir, ext string, render func(io.Writer) error) (string, error) {
	f, err := os.CreateTemp(dir, ".report-*"+ext+".tmp")
	if err != nil {
		return "", err
	}

	if err := render(f); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}

	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}

	return f.Name(), nil
}

// ValidateDateLabel checks that a date label can be embedded in a file name
func ValidateDateLabel(dateLabel string) error {
	if strings.TrimSpace(dateLabel) == "" {
		return errors.ValidationError(errors.CodeMissingField, "date", dateLabel, nil)
	}
	if strings.ContainsAny(dateLabel, `/\`) || strings.ContainsRune(dateLabel, os.PathSeparator) {
		return errors.ValidationError(errors.CodeInvalidValue, "date", dateLabel,
			fmt.Errorf("date label cannot contain path separators")).
			WithSuggestion("use a label such as 2024-01-31")
	}
	return nil
}
