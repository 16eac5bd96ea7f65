package extract

import (
	"errors"
	"fmt"
)

// Kind tags the way an extraction failed.
type Kind int

const (
	ParseFailed Kind = iota + 1
	MissingField
	EmptyCollection
	InvalidValue
)

func (k Kind) String() string {
	switch k {
	case ParseFailed:
		return "parse_failed"
	case MissingField:
		return "missing_field"
	case EmptyCollection:
		return "empty_collection"
	case InvalidValue:
		return "invalid_value"
	default:
		return "unknown"
	}
}

// Error is returned by every extraction helper. Step is the zero-based index of
// the failing path step and Path its rendered form; both are unset for
// ParseFailed.
type Error struct {
	Kind Kind
	Step int
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Path != "" {
		msg = fmt.Sprintf("%s at %s (step %d)", msg, e.Path, e.Step)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the extraction kind carried by err, or 0.
func KindOf(err error) Kind {
	var extErr *Error
	if errors.As(err, &extErr) {
		return extErr.Kind
	}
	return 0
}

// Invalid builds an InvalidValue error for a value that is present but unusable.
func Invalid(path string, err error) *Error {
	return &Error{Kind: InvalidValue, Path: path, Err: err}
}
