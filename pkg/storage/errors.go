package storage

import "errors"

// StoreError represents a domain error from backend operations.
//
// Protocol adapters translate the Code into protocol-specific replies
// (FTP reply codes, os.PathError kinds for afero, ...). Every operation
// fails with exactly one code.
type StoreError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Path is the requested path (if applicable)
	Path string

	// Err is the underlying cause, if any (e.g. a malformed image error)
	Err error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	msg := e.Message
	if e.Path != "" {
		msg += ": " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the cause to errors.Is / errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// ErrorCode represents the category of a backend error.
type ErrorCode int

const (
	// ErrNotFound indicates no entry exists at the requested path
	ErrNotFound ErrorCode = iota

	// ErrNotDirectory indicates a path segment or list target is not a directory
	ErrNotDirectory

	// ErrNotFile indicates retrieve was attempted on a directory or symlink
	ErrNotFile

	// ErrPermissionDenied indicates a mutating operation on a read-only backend
	ErrPermissionDenied

	// ErrInvalidArgument indicates malformed parameters (negative offset, ...)
	ErrInvalidArgument

	// ErrIOError indicates the backing data could not be read or decoded
	ErrIOError
)

func (c ErrorCode) String() string {
	switch c {
	case ErrNotFound:
		return "not found"
	case ErrNotDirectory:
		return "not a directory"
	case ErrNotFile:
		return "not a file"
	case ErrPermissionDenied:
		return "permission denied"
	case ErrInvalidArgument:
		return "invalid argument"
	case ErrIOError:
		return "i/o error"
	default:
		return "unknown"
	}
}

// NewError builds a StoreError.
func NewError(code ErrorCode, message, path string) *StoreError {
	return &StoreError{Code: code, Message: message, Path: path}
}

// CodeOf returns the code of the first StoreError in err's chain.
// ok is false when err carries no StoreError.
func CodeOf(err error) (code ErrorCode, ok bool) {
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeErr.Code, true
	}
	return 0, false
}

// IsCode reports whether err carries a StoreError with the given code.
func IsCode(err error, code ErrorCode) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

// IsNotFound reports whether err is an ErrNotFound StoreError.
func IsNotFound(err error) bool { return IsCode(err, ErrNotFound) }

// IsPermissionDenied reports whether err is an ErrPermissionDenied StoreError.
func IsPermissionDenied(err error) bool { return IsCode(err, ErrPermissionDenied) }
