package core

import (
	"errors"
	"fmt"
)

// Fatal import failures. Callers match them with errors.Is.
var (
	// ErrRead means the source could not be read.
	ErrRead = errors.New("read error")

	// ErrMalformedInput means the text does not parse as the declared format.
	ErrMalformedInput = errors.New("malformed input")

	// ErrCommitFailed means the commit boundary itself failed.
	ErrCommitFailed = errors.New("commit failed")
)

// Session and lookup errors.
var (
	ErrSubmitInProgress  = errors.New("submit already in progress")
	ErrInvalidTransition = errors.New("invalid session transition")
	ErrImportCancelled   = errors.New("import cancelled")
	ErrSourceTooLarge    = errors.New("source too large")
	ErrEmptySource       = errors.New("no source provided")
	ErrUnknownFormat     = errors.New("unknown format")
	ErrUnknownEntity     = errors.New("unknown entity")
	ErrSessionNotFound   = errors.New("session not found")
	ErrNotFound          = errors.New("record not found")
	ErrValidation        = errors.New("validation failed")
	ErrQueueDisabled     = errors.New("background imports disabled")
)

// MalformedInputError carries the parser position of a syntax problem.
// Line and Column are 1-based; Offset is a byte offset into the source
// text. Zero values mean the position is unknown.
type MalformedInputError struct {
	Format Format
	Line   int
	Column int
	Offset int64
	Msg    string
	Err    error
}

func (e *MalformedInputError) Error() string {
	switch {
	case e.Line > 0 && e.Column > 0:
		return fmt.Sprintf("malformed %s input at line %d, column %d: %s", e.Format, e.Line, e.Column, e.Msg)
	case e.Line > 0:
		return fmt.Sprintf("malformed %s input at line %d: %s", e.Format, e.Line, e.Msg)
	default:
		return fmt.Sprintf("malformed %s input: %s", e.Format, e.Msg)
	}
}

// Is makes errors.Is(err, ErrMalformedInput) hold.
func (e *MalformedInputError) Is(target error) bool {
	return target == ErrMalformedInput
}

func (e *MalformedInputError) Unwrap() error {
	return e.Err
}

func readError(err error) error {
	return fmt.Errorf("%w: %w", ErrRead, err)
}

func commitError(err error) error {
	return fmt.Errorf("%w: %w", ErrCommitFailed, err)
}

// IsFatal reports whether err aborts an import attempt as opposed to
// degrading it to a partial summary.
func IsFatal(err error) bool {
	return errors.Is(err, ErrRead) || errors.Is(err, ErrMalformedInput) || errors.Is(err, ErrCommitFailed)
}
