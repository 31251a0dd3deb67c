package record

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes store failures.
type ErrorCode string

const (
	// ErrCodeStorageUnavailable indicates the backend could not be reached or
	// an IO operation failed. Fatal to the triggering operation.
	ErrCodeStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE"

	// ErrCodeNotFound indicates a rename of a project variable that does not
	// exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeSerialization indicates a stored value could not be encoded or
	// decoded.
	ErrCodeSerialization ErrorCode = "SERIALIZATION"
)

// Error is the error type returned by every Store implementation.
//
// Scope is the room or project id, Key the record key inside that scope, so
// callers can log or answer with a protocol-level error without parsing text.
type Error struct {
	Code  ErrorCode
	Op    string
	Scope string
	Key   string
	Err   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Op)
	if e.Scope != "" {
		msg += fmt.Sprintf(" (scope=%s", e.Scope)
		if e.Key != "" {
			msg += fmt.Sprintf(", key=%s", e.Key)
		}
		msg += ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// StorageError wraps a backend failure.
func StorageError(op, scope, key string, err error) *Error {
	return &Error{Code: ErrCodeStorageUnavailable, Op: op, Scope: scope, Key: key, Err: err}
}

// NotFoundError reports a missing record.
func NotFoundError(op, scope, key string) *Error {
	return &Error{Code: ErrCodeNotFound, Op: op, Scope: scope, Key: key}
}

// SerializationError reports a value that could not cross the codec.
func SerializationError(op, scope, key string, err error) *Error {
	return &Error{Code: ErrCodeSerialization, Op: op, Scope: scope, Key: key, Err: err}
}

// IsNotFound reports whether err is, or wraps, a NOT_FOUND store error.
func IsNotFound(err error) bool { return hasCode(err, ErrCodeNotFound) }

// IsStorageUnavailable reports whether err is, or wraps, a
// STORAGE_UNAVAILABLE store error.
func IsStorageUnavailable(err error) bool { return hasCode(err, ErrCodeStorageUnavailable) }

// IsSerialization reports whether err is, or wraps, a SERIALIZATION store
// error.
func IsSerialization(err error) bool { return hasCode(err, ErrCodeSerialization) }

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
