package moya

import (
	"errors"
	"fmt"
	"time"
)

// Error types carried by *Error.
const (
	// ErrorTypeUnderlying wraps a transport or stub failure, including
	// timeouts and cancellation.
	ErrorTypeUnderlying = "Underlying"
	// ErrorTypeConfiguration marks a malformed endpoint. It is a programmer
	// error and is never retried.
	ErrorTypeConfiguration = "Configuration"
	// ErrorTypeUnknownOutcome is used when the transport produced neither an
	// error nor a complete response.
	ErrorTypeUnknownOutcome = "UnknownOutcome"
	// ErrorTypeStatusCode is returned by the Response status filters.
	ErrorTypeStatusCode = "StatusCode"
	// ErrorTypeJSONMapping is returned when response data is not the expected JSON.
	ErrorTypeJSONMapping = "JSONMapping"
	// ErrorTypeStringMapping is returned when response data is not a string.
	ErrorTypeStringMapping = "StringMapping"
	// ErrorTypeValidation is returned by Config.Validate.
	ErrorTypeValidation = "Validation"
)

// Sentinel errors.
var (
	// ErrCancelled is the cause of the failure delivered for a cancelled request.
	ErrCancelled = errors.New("moya: request cancelled")

	// ErrUnknownOutcome is the cause used when a transport outcome has no
	// error but is missing its response or body.
	ErrUnknownOutcome = errors.New("moya: unknown transport outcome")

	// ErrStubbingDisabled is the panic value raised when the stub engine is
	// reached with NeverStub.
	ErrStubbingDisabled = errors.New("moya: stub requested while stubbing is disabled")
)

// Error is the typed failure delivered through Result.
type Error struct {
	Type      string
	Message   string
	Cause     error
	RequestID string
	Method    string
	URL       string
	Timestamp time.Time
	// Response is set for the response-mapping error types.
	Response *Response
}

// Error implements error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is compares error types for errors.Is.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	if targetErr, ok := target.(*Error); ok {
		return e.Type == targetErr.Type
	}
	return false
}

// DebugInfo renders a multi-line string with diagnostic context.
func (e *Error) DebugInfo() string {
	if e == nil {
		return "Error: <nil>"
	}
	info := fmt.Sprintf("Error Type: %s\n", e.Type)
	info += fmt.Sprintf("Message: %s\n", e.Message)
	if e.RequestID != "" {
		info += fmt.Sprintf("Request ID: %s\n", e.RequestID)
	}
	if e.Method != "" {
		info += fmt.Sprintf("Method: %s\n", e.Method)
	}
	if e.URL != "" {
		info += fmt.Sprintf("URL: %s\n", e.URL)
	}
	if e.Response != nil {
		info += fmt.Sprintf("Status Code: %d\n", e.Response.StatusCode)
	}
	if !e.Timestamp.IsZero() {
		info += fmt.Sprintf("Timestamp: %s\n", e.Timestamp.Format(time.RFC3339))
	}
	if e.Cause != nil {
		info += fmt.Sprintf("Cause: %v\n", e.Cause)
	}
	return info
}

// IsCancelled reports whether err is the failure of a cancelled request.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Type == ErrorTypeConfiguration
}

// Underlying wraps cause as an ErrorTypeUnderlying failure. An *Error is
// returned unchanged.
func Underlying(cause error) *Error {
	if e, ok := cause.(*Error); ok {
		return e
	}
	return &Error{
		Type:      ErrorTypeUnderlying,
		Message:   "underlying request failed",
		Cause:     cause,
		Timestamp: time.Now(),
	}
}

func newConfigurationError(message string, cause error, method Method, url string) *Error {
	return &Error{
		Type:      ErrorTypeConfiguration,
		Message:   message,
		Cause:     cause,
		Method:    string(method),
		URL:       url,
		Timestamp: time.Now(),
	}
}

func newCancelledError() *Error {
	return &Error{
		Type:      ErrorTypeUnderlying,
		Message:   "request cancelled",
		Cause:     ErrCancelled,
		Timestamp: time.Now(),
	}
}

func newResponseError(errorType, message string, cause error, resp *Response) *Error {
	return &Error{
		Type:      errorType,
		Message:   message,
		Cause:     cause,
		Response:  resp,
		Timestamp: time.Now(),
	}
}
