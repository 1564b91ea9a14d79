package importing

import (
	"errors"
	"fmt"
)

var (
	ErrValidationFailed     = errors.New("validation failed")
	ErrFileTypeMismatch     = errors.New("file type mismatch")
	ErrBatchNotFound        = errors.New("import batch not found")
	ErrFileNotFound         = errors.New("import file not found")
	ErrEmptyFile            = errors.New("empty file")
	ErrNoHeaders            = errors.New("no header row")
	ErrNoDataRows           = errors.New("no data rows")
	ErrParseFailure         = errors.New("parse failure")
	ErrStateConflict        = errors.New("batch state conflict")
	ErrCommitConflict       = errors.New("commit conflict")
	ErrPartialCommitFailure = errors.New("partial commit failure")
	ErrUnexpected           = errors.New("unexpected error")
)

var errorKinds = []error{
	ErrValidationFailed,
	ErrFileTypeMismatch,
	ErrBatchNotFound,
	ErrFileNotFound,
	ErrEmptyFile,
	ErrNoHeaders,
	ErrNoDataRows,
	ErrParseFailure,
	ErrStateConflict,
	ErrCommitConflict,
	ErrPartialCommitFailure,
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type RowFailure struct {
	RowNumber int    `json:"row_number"`
	Reason    string `json:"reason"`
}

// Error is a kind-tagged pipeline error. errors.Is matches both the kind
// sentinel and the wrapped cause.
type Error struct {
	Kind    error
	Message string
	Fields  []FieldError
	Rows    []RowFailure
	Cause   error
}

func NewError(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + e.Cause.Error()
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

func (e *Error) WithFields(fields ...FieldError) *Error {
	e.Fields = append(e.Fields, fields...)
	return e
}

func (e *Error) WithRows(rows ...RowFailure) *Error {
	e.Rows = append(e.Rows, rows...)
	return e
}

// KindOf resolves the sentinel kind of err, falling back to ErrUnexpected.
// The outermost *Error decides when err carries several kinds.
func KindOf(err error) error {
	var e *Error
	if errors.As(err, &e) && e.Kind != nil {
		return e.Kind
	}
	for _, kind := range errorKinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return ErrUnexpected
}

// PublicMessage is the caller-facing text of err; the wrapped cause is never included.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	kind := KindOf(err)
	if kind == ErrUnexpected {
		return "internal server error"
	}
	return kind.Error()
}
