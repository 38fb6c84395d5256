package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoDataset is returned by every read operation while no dataset is loaded.
	ErrNoDataset = errors.New("no dataset loaded")

	// ErrColumnNotFound is returned when a named column does not exist.
	ErrColumnNotFound = errors.New("column not found")

	// ErrUnsupportedFormat is returned for source or export formats the service cannot handle.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrEmptyFile is returned when a source has no header row.
	ErrEmptyFile = errors.New("empty file")

	// ErrFileTooLarge is returned when a source exceeds the configured size.
	ErrFileTooLarge = errors.New("file too large")
)

// columnNotFound wraps ErrColumnNotFound with the offending name.
func columnNotFound(name string) error {
	return fmt.Errorf("%w: %q", ErrColumnNotFound, name)
}

// FieldError describes one invalid request parameter.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned when request parameters are out of range.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "invalid request: " + strings.Join(parts, "; ")
}

// invalid builds a single-field ValidationError.
func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: fmt.Sprintf(format, args...)}}}
}

// LoadError reports why a source file could not become a dataset.
// Line is 1-based and zero when the failure is not tied to a line.
type LoadError struct {
	Source string
	Line   int
	Err    error
}

func (e *LoadError) Error() string {
	var b strings.Builder
	b.WriteString("load failed")
	if e.Source != "" {
		fmt.Fprintf(&b, " for %s", e.Source)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, " at line %d", e.Line)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *LoadError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a missing-resource error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrColumnNotFound)
}

// IsClientError reports whether err was caused by the caller's input or
// the session state rather than an internal fault.
func IsClientError(err error) bool {
	var ve *ValidationError
	var le *LoadError
	return errors.Is(err, ErrNoDataset) ||
		errors.Is(err, ErrColumnNotFound) ||
		errors.Is(err, ErrUnsupportedFormat) ||
		errors.Is(err, ErrEmptyFile) ||
		errors.Is(err, ErrFileTooLarge) ||
		errors.As(err, &ve) ||
		errors.As(err, &le)
}
