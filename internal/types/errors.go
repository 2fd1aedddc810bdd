package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure surfaced by the core.
type ErrorKind string

const (
	ErrorKindInvalidPath     ErrorKind = "invalid_path"
	ErrorKindAccessDenied    ErrorKind = "access_denied"
	ErrorKindFileNotFound    ErrorKind = "file_not_found"
	ErrorKindNotADirectory   ErrorKind = "not_a_directory"
	ErrorKindUnreadableFile  ErrorKind = "unreadable_file"
	ErrorKindEncodingFailure ErrorKind = "encoding_failure"
	ErrorKindUnknown         ErrorKind = "unknown"
)

// Error is a typed failure carrying the offending path and an optional cause.
type Error struct {
	Kind ErrorKind
	Path string
	Err  error
}

// Error renders the kind, path, and underlying cause.
func (typedError *Error) Error() string {
	if typedError.Err != nil {
		return fmt.Sprintf("%s: %s: %v", typedError.Kind, typedError.Path, typedError.Err)
	}
	return fmt.Sprintf("%s: %s", typedError.Kind, typedError.Path)
}

// Unwrap exposes the underlying cause for errors.Is and errors.As.
func (typedError *Error) Unwrap() error {
	return typedError.Err
}

// NewError constructs a typed error for the provided kind and path.
func NewError(kind ErrorKind, path string, cause error) *Error {
	return &Error{Kind: kind, Path: path, Err: cause}
}

// KindOf returns the kind of err when it wraps a typed Error and
// ErrorKindUnknown otherwise.
func KindOf(err error) ErrorKind {
	var typedError *Error
	if errors.As(err, &typedError) {
		return typedError.Kind
	}
	return ErrorKindUnknown
}
