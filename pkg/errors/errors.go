package errors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryLoad          ErrorCategory = "load"
	CategorySchema        ErrorCategory = "schema"
	CategoryWrite         ErrorCategory = "write"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryValidation    ErrorCategory = "validation"
	CategoryInternal      ErrorCategory = "internal"
)

// ErrorCode represents specific error codes within categories
type ErrorCode string

const (
	// Load errors
	CodeFileNotFound     ErrorCode = "file_not_found"
	CodeFilePermission   ErrorCode = "file_permission"
	CodeInvalidFormat    ErrorCode = "invalid_format"
	CodeMissingSheet     ErrorCode = "missing_sheet"
	CodeInsufficientRows ErrorCode = "insufficient_rows"
	CodeEncodingError    ErrorCode = "encoding_error"

	// Schema errors
	CodeMissingColumn ErrorCode = "missing_column"

	// Write errors
	CodeWriteFailed    ErrorCode = "write_failed"
	CodeDirectoryError ErrorCode = "directory_error"

	// Configuration errors
	CodeInvalidConfig ErrorCode = "invalid_config"
	CodeMissingConfig ErrorCode = "missing_config"

	// Validation errors
	CodeMissingField ErrorCode = "missing_field"
	CodeInvalidValue ErrorCode = "invalid_value"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
	CodeCancelled       ErrorCode = "cancelled"
)

// ReconcilerError is the base error type for all application errors
type ReconcilerError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Source     string            `json:"source,omitempty"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error
type Context map[string]interface{}

// Error implements the error interface
func (e *ReconcilerError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", msg, e.Suggestion)
	}
	return msg
}

// Unwrap returns the underlying cause error
func (e *ReconcilerError) Unwrap() error {
	return e.Cause
}

// GetExitCode returns an appropriate exit code for the error
func (e *ReconcilerError) GetExitCode() int {
	switch e.Category {
	case CategoryLoad:
		return 2
	case CategorySchema, CategoryValidation:
		return 3
	case CategoryConfiguration:
		return 4
	case CategoryWrite:
		return 5
	case CategoryInternal:
		return 6
	default:
		return 1
	}
}

// WithContext adds context information to the error
func (e *ReconcilerError) WithContext(key string, value interface{}) *ReconcilerError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error
func (e *ReconcilerError) WithSuggestion(suggestion string) *ReconcilerError {
	e.Suggestion = suggestion
	return e
}

// WithSource records which input source the error belongs to
func (e *ReconcilerError) WithSource(source string) *ReconcilerError {
	e.Source = source
	return e.WithContext("source", source)
}

// New creates a new ReconcilerError
func New(category ErrorCategory, code ErrorCode, message string) *ReconcilerError {
	return &ReconcilerError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with ReconcilerError context
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *ReconcilerError {
	if err == nil {
		return nil
	}

	return &ReconcilerError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

// stackTracer interface for extracting stack traces
type stackTracer interface {
	StackTrace() errors.StackTrace
}

func build(category ErrorCategory, code ErrorCode, message string, err error) *ReconcilerError {
	if err != nil {
		return Wrap(err, category, code, message)
	}
	return New(category, code, message)
}

// LoadError creates an error for a source file that could not be read or parsed
func LoadError(code ErrorCode, source, path string, err error) *ReconcilerError {
	var message string
	var suggestion string

	switch code {
	case CodeFileNotFound:
		message = fmt.Sprintf("%s file not found: %s", source, path)
		suggestion = "check if the file path is correct and the file exists"
	case CodeFilePermission:
		message = fmt.Sprintf("permission denied reading %s file: %s", source, path)
		suggestion = "check file permissions and ensure you have read access"
	case CodeMissingSheet:
		message = fmt.Sprintf("%s workbook has no usable sheet: %s", source, path)
		suggestion = "verify the export was produced from the expected system"
	case CodeInsufficientRows:
		message = fmt.Sprintf("%s file has too few rows for the expected layout: %s", source, path)
		suggestion = "make sure the complete export was uploaded"
	case CodeEncodingError:
		message = fmt.Sprintf("%s file has an unreadable encoding: %s", source, path)
		suggestion = "save the file as UTF-8 and try again"
	case CodeInvalidFormat:
		message = fmt.Sprintf("%s file is not in the expected format: %s", source, path)
		suggestion = "check that the correct file was supplied for this source"
	default:
		message = fmt.Sprintf("failed to load %s file: %s", source, path)
		suggestion = "check the file and try again"
	}

	return build(CategoryLoad, code, message, err).
		WithSuggestion(suggestion).
		WithSource(source).
		WithContext("file_path", path)
}

// FormatError is a LoadError raised when a file does not have enough rows
// for its fixed header offset.
func FormatError(source, path string, rows, required int) *ReconcilerError {
	return LoadError(CodeInsufficientRows, source, path, nil).
		WithContext("rows", rows).
		WithContext("required_rows", required)
}

// SchemaError creates an error for columns absent after normalization
func SchemaError(source string, missing []string, available []string) *ReconcilerError {
	message := fmt.Sprintf("%s data is missing required column(s): %s", source, strings.Join(missing, ", "))

	return New(CategorySchema, CodeMissingColumn, message).
		WithSuggestion("verify the file has all required columns with correct headers").
		WithSource(source).
		WithContext("missing_columns", missing).
		WithContext("available_columns", available)
}

// WriteError creates an error for a report that could not be produced
func WriteError(code ErrorCode, path string, err error) *ReconcilerError {
	var message string
	var suggestion string

	switch code {
	case CodeDirectoryError:
		message = fmt.Sprintf("output directory is not usable: %s", path)
		suggestion = "ensure the directory exists and is writable"
	default:
		message = fmt.Sprintf("failed to write report: %s", path)
		suggestion = "check available disk space and directory permissions"
	}

	return build(CategoryWrite, code, message, err).
		WithSuggestion(suggestion).
		WithContext("file_path", path)
}

// ValidationError creates a validation-related error
func ValidationError(code ErrorCode, field string, value interface{}, err error) *ReconcilerError {
	var message string
	var suggestion string

	switch code {
	case CodeMissingField:
		message = fmt.Sprintf("required field '%s' is missing or empty", field)
		suggestion = "provide a value for this required field"
	default:
		message = fmt.Sprintf("invalid value for '%s': %v", field, value)
		suggestion = "check the field value and format"
	}

	return build(CategoryValidation, code, message, err).
		WithSuggestion(suggestion).
		WithContext("field", field).
		WithContext("value", value)
}

// ConfigurationError creates a configuration-related error
func ConfigurationError(code ErrorCode, setting string, value interface{}, err error) *ReconcilerError {
	var message string
	var suggestion string

	switch code {
	case CodeMissingConfig:
		message = fmt.Sprintf("missing required configuration: %s", setting)
		suggestion = "provide this configuration setting or use a config file"
	default:
		message = fmt.Sprintf("invalid configuration for '%s': %v", setting, value)
		suggestion = "check the configuration documentation for valid values"
	}

	return build(CategoryConfiguration, code, message, err).
		WithSuggestion(suggestion).
		WithContext("setting", setting).
		WithContext("value", value)
}

// InternalError creates an internal error
func InternalError(code ErrorCode, operation string, err error) *ReconcilerError {
	var message string
	var suggestion string

	switch code {
	case CodeCancelled:
		message = fmt.Sprintf("%s was cancelled", operation)
		suggestion = "run the reconciliation again"
	default:
		message = fmt.Sprintf("unexpected error during %s", operation)
		suggestion = "this is likely a bug - please report it with the error details"
	}

	return build(CategoryInternal, code, message, err).
		WithSuggestion(suggestion).
		WithContext("operation", operation)
}

// ErrorSummary provides a summary of multiple errors
type ErrorSummary struct {
	Total      int                   `json:"total"`
	ByCategory map[ErrorCategory]int `json:"by_category"`
	ByCode     map[ErrorCode]int     `json:"by_code"`
	Errors     []*ReconcilerError    `json:"errors"`
}

// NewErrorSummary creates a new error summary
func NewErrorSummary(errs []*ReconcilerError) *ErrorSummary {
	summary := &ErrorSummary{
		Total:      len(errs),
		ByCategory: make(map[ErrorCategory]int),
		ByCode:     make(map[ErrorCode]int),
		Errors:     errs,
	}
	for _, err := range errs {
		summary.ByCategory[err.Category]++
		summary.ByCode[err.Code]++
	}
	return summary
}

// Error returns a formatted error message for the summary
func (es *ErrorSummary) Error() string {
	switch es.Total {
	case 0:
		return "no errors"
	case 1:
		return es.Errors[0].Error()
	}

	var categories []string
	for category, count := range es.ByCategory {
		categories = append(categories, fmt.Sprintf("%s: %d", category, count))
	}

	return fmt.Sprintf("%d errors occurred (%s)", es.Total, strings.Join(categories, ", "))
}

// HasCategory checks if the summary contains errors of the given category
func (es *ErrorSummary) HasCategory(category ErrorCategory) bool {
	return es.ByCategory[category] > 0
}

// GetExitCode returns the highest priority exit code from all errors
func (es *ErrorSummary) GetExitCode() int {
	if es.Total == 0 {
		return 0
	}

	maxCode := 1
	for _, err := range es.Errors {
		if code := err.GetExitCode(); code > maxCode {
			maxCode = code
		}
	}

	return maxCode
}

// Utility functions

// AsReconcilerError extracts a ReconcilerError from an error chain
func AsReconcilerError(err error) (*ReconcilerError, bool) {
	var reconcilerErr *ReconcilerError
	if errors.As(err, &reconcilerErr) {
		return reconcilerErr, true
	}
	return nil, false
}

// IsCategory reports whether err carries a ReconcilerError of the given category
func IsCategory(err error, category ErrorCategory) bool {
	reconcilerErr, ok := AsReconcilerError(err)
	return ok && reconcilerErr.Category == category
}

// IsLoadError reports whether err is a LoadError (including FormatError)
func IsLoadError(err error) bool { return IsCategory(err, CategoryLoad) }

// IsSchemaError reports whether err is a SchemaError
func IsSchemaError(err error) bool { return IsCategory(err, CategorySchema) }

// IsWriteError reports whether err is a WriteError
func IsWriteError(err error) bool { return IsCategory(err, CategoryWrite) }

// WrapIfNeeded wraps an error if it's not already a ReconcilerError
func WrapIfNeeded(err error, category ErrorCategory, code ErrorCode, message string) *ReconcilerError {
	if err == nil {
		return nil
	}

	if reconcilerErr, ok := AsReconcilerError(err); ok {
		return reconcilerErr
	}

	return Wrap(err, category, code, message)
}
