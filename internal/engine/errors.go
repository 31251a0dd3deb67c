package engine

import (
	"errors"
	"fmt"
)

// Error is returned when the engine itself rejects or fails an event.
// Store failures are passed through as *record.Error instead.
type Error struct {
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Event is the protocol name of the event being handled.
	Event string

	// CorrelationID identifies the Handle call.
	CorrelationID string

	Err error
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeInvalidEvent indicates a required field is empty.
	ErrCodeInvalidEvent ErrorCode = "INVALID_EVENT"

	// ErrCodeUnknownEvent indicates an Event type the engine does not handle.
	ErrCodeUnknownEvent ErrorCode = "UNKNOWN_EVENT"

	// ErrCodeResolveFailed indicates the registry could not resolve the
	// recipients of a private write.
	ErrCodeResolveFailed ErrorCode = "RESOLVE_FAILED"

	// ErrCodeDeliveryFailed indicates the sender rejected a replayed event.
	ErrCodeDeliveryFailed ErrorCode = "DELIVERY_FAILED"
)

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Event != "" {
		msg = fmt.Sprintf("%s (event=%s, correlation=%s)", msg, e.Event, e.CorrelationID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// IsInvalidEvent reports whether err is an INVALID_EVENT engine error.
func IsInvalidEvent(err error) bool { return hasCode(err, ErrCodeInvalidEvent) }

// IsDeliveryFailed reports whether err is a DELIVERY_FAILED engine error.
func IsDeliveryFailed(err error) bool { return hasCode(err, ErrCodeDeliveryFailed) }

// IsResolveFailed reports whether err is a RESOLVE_FAILED engine error.
func IsResolveFailed(err error) bool { return hasCode(err, ErrCodeResolveFailed) }

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

func invalidEvent(field string) *Error {
	return &Error{Code: ErrCodeInvalidEvent, Message: field + " must not be empty"}
}
