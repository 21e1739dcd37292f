package gamelog

import (
	"errors"
	"fmt"
)

var (
	// ErrCorruptLog indicates an unrecognized header or structurally broken record.
	ErrCorruptLog = errors.New("corrupt log")
	// ErrMalformedHeader indicates a recognized header with invalid fields.
	ErrMalformedHeader = errors.New("malformed header")
	// ErrEmptyLog indicates a complete resource that produced no snapshots.
	ErrEmptyLog = errors.New("empty log")
)

// ParseError reports a fatal parse failure with its location.
type ParseError struct {
	Line int    // 1-based line number, 0 if not line specific
	Msg  string // Human readable detail
	Err  error  // One of the sentinel errors, or a wrapped cause
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %v: %s", e.Line, e.Err, e.Msg)
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Msg)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a ParseError.
func NewParseError(line int, err error, format string, args ...any) *ParseError {
	return &ParseError{Line: line, Err: err, Msg: fmt.Sprintf(format, args...)}
}
