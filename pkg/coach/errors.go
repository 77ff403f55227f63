package coach

import "fmt"

// Error codes for session failures.
const (
	CodePermissionDenied = "permission_denied"
	CodeDeviceFailure    = "device_failure"
	CodeTransportOpen    = "transport_open_failed"
	CodeTransportRuntime = "transport_runtime"
	CodeDecodeFailed     = "decode_failed"
)

// Error is a session-fatal error with a stable code for display routing.
type Error struct {
	// Code is one of the Code* constants.
	Code string

	// Message is the human-readable error message.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("coach: %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("coach: %s", e.Code)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(code string, cause error) *Error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return &Error{Code: code, Message: msg, Cause: cause}
}
