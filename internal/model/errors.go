package model

import (
	"errors"
	"fmt"
)

// Parsing and integrity errors.
// Every stage wraps one of these so callers can match with errors.Is
// regardless of which file or row failed.
var (
	// ErrFileNotFound is returned when a required input path does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrMalformedRecord is returned when a row does not match the expected
	// column layout, a numeric field fails to parse, or a keyed blob has an
	// unexpected number of entries.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrMalformedTimestamp is returned when a timestamp column does not
	// match the export's fixed format.
	ErrMalformedTimestamp = errors.New("malformed timestamp")

	// ErrInvalidTaskValue is returned when the "anything unusual" answer is
	// neither of the two recognized sentinel values.
	ErrInvalidTaskValue = errors.New("invalid task value")

	// ErrDuplicateClassification is returned when the same identity has
	// classified the same subject more than once.
	ErrDuplicateClassification = errors.New("the same user has classified the same subject twice")

	// ErrUnsupportedWorkflow is returned when a caller asks for a workflow
	// spec that has no registered task schema.
	ErrUnsupportedWorkflow = errors.New("unsupported workflow")
)

// RecordError describes a failure in one row of an input file.
// Line is 1-based and counts the header; zero means the row number is unknown.
type RecordError struct {
	// Line is the 1-based line (or CSV record) number of the offending row.
	Line int

	// Field names the column or blob that failed to parse.
	Field string

	// Err is the underlying error, normally one of the sentinels above.
	Err error
}

// Error implements the error interface.
func (e *RecordError) Error() string {
	switch {
	case e.Line > 0 && e.Field != "":
		return fmt.Sprintf("line %d: %s: %v", e.Line, e.Field, e.Err)
	case e.Line > 0:
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	case e.Field != "":
		return fmt.Sprintf("%s: %v", e.Field, e.Err)
	default:
		return e.Err.Error()
	}
}

// Unwrap returns the underlying error.
func (e *RecordError) Unwrap() error {
	return e.Err
}

// Malformed returns a RecordError wrapping ErrMalformedRecord with a detail message.
func Malformed(field, format string, args ...any) *RecordError {
	return &RecordError{
		Field: field,
		Err:   fmt.Errorf("%w: %s", ErrMalformedRecord, fmt.Sprintf(format, args...)),
	}
}

// AtLine attaches a line number to err. If err is already a RecordError
// without a line, the line is filled in; otherwise err is wrapped.
func AtLine(err error, line int) error {
	if err == nil {
		return nil
	}
	var re *RecordError
	if errors.As(err, &re) && re.Line == 0 {
		return &RecordError{Line: line, Field: re.Field, Err: re.Err}
	}
	return &RecordError{Line: line, Err: err}
}
