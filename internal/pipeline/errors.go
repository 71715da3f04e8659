// Package pipeline holds the error taxonomy and shared run types used by
// every batch stage.
package pipeline

import (
	"fmt"
	"strings"
)

// SchemaValidationError reports every required logical field that could not be
// resolved against the physical column headers. All failures for a run are
// collected into one error so the operator sees the full picture at once.
type SchemaValidationError struct {
	Missing   []string
	Available []string
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("schema validation failed: no column matches required field(s) [%s]; available columns: [%s]",
		strings.Join(e.Missing, ", "), strings.Join(e.Available, ", "))
}

// DateParseError reports row-level date failures. Individual bad rows are
// dropped and counted; the error is returned only when the drop rate for a run
// exceeds the configured threshold.
type DateParseError struct {
	Dropped int
	Total   int
	MaxRate float64
}

func (e *DateParseError) Error() string {
	return fmt.Sprintf("dropped %d of %d rows with unparseable dates (%.1f%%), exceeding the allowed %.1f%%",
		e.Dropped, e.Total, 100*float64(e.Dropped)/float64(e.Total), 100*e.MaxRate)
}

// InsufficientDataError reports a statistical operation that was requested
// against fewer rows than it needs.
type InsufficientDataError struct {
	Op       string
	Have     int
	Required int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s requires at least %d rows, have %d", e.Op, e.Required, e.Have)
}

// MetadataLogError wraps a failure to persist run metadata. It is never fatal:
// the primary write has already committed by the time metadata is logged.
type MetadataLogError struct {
	Path string
	Err  error
}

func (e *MetadataLogError) Error() string {
	return fmt.Sprintf("failed to log run metadata to %s: %v", e.Path, e.Err)
}

func (e *MetadataLogError) Unwrap() error { return e.Err }
