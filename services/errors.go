package services

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes gateway failures for HTTP translation
type ErrorKind string

const (
	// ErrorKindUnknownModel means the requested model has no routing entry
	ErrorKindUnknownModel ErrorKind = "unknown_model"

	// ErrorKindInvalidRequest means the caller payload is malformed
	ErrorKindInvalidRequest ErrorKind = "invalid_request"

	// ErrorKindBackend means the backend answered with a non-2xx status;
	// its status and message are preserved verbatim
	ErrorKindBackend ErrorKind = "backend_error"

	// ErrorKindTransport means the gateway could not reach the backend
	// (connection reset, DNS failure, timeout)
	ErrorKindTransport ErrorKind = "transport_fault"

	// ErrorKindNotFound is used by the knowledge-base subsystem
	ErrorKindNotFound ErrorKind = "not_found"

	// ErrorKindForbidden means the resource exists but belongs elsewhere
	ErrorKindForbidden ErrorKind = "forbidden"

	// ErrorKindInternal covers local faults that are not transport-related
	ErrorKindInternal ErrorKind = "internal"
)

// GatewayError is a structured error carrying the failure kind and, for
// backend errors, the upstream HTTP status to pass through unchanged.
type GatewayError struct {
	Kind    ErrorKind
	Status  int // upstream status, only meaningful for ErrorKindBackend
	Message string
	Err     error
}

// Error implements the error interface
func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is by comparing kinds
func (e *GatewayError) Is(target error) bool {
	t, ok := target.(*GatewayError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewUnknownModelError reports a model with no routing entry
func NewUnknownModelError(model string) *GatewayError {
	return &GatewayError{
		Kind:    ErrorKindUnknownModel,
		Message: fmt.Sprintf("model %q is not served by this gateway", model),
	}
}

// NewInvalidRequestError reports a malformed caller payload
func NewInvalidRequestError(message string) *GatewayError {
	return &GatewayError{
		Kind:    ErrorKindInvalidRequest,
		Message: message,
	}
}

// NewBackendError preserves an upstream failure status and message verbatim
func NewBackendError(status int, message string) *GatewayError {
	return &GatewayError{
		Kind:    ErrorKindBackend,
		Status:  status,
		Message: message,
	}
}

// NewTransportError reports that the backend could not be reached
func NewTransportError(err error) *GatewayError {
	return &GatewayError{
		Kind:    ErrorKindTransport,
		Message: "failed to reach backend",
		Err:     err,
	}
}

// NewNotFoundError reports a missing knowledge-base resource
func NewNotFoundError(message string) *GatewayError {
	return &GatewayError{
		Kind:    ErrorKindNotFound,
		Message: message,
	}
}

// NewForbiddenError reports a resource/ownership mismatch
func NewForbiddenError(message string) *GatewayError {
	return &GatewayError{
		Kind:    ErrorKindForbidden,
		Message: message,
	}
}

// NewInternalError wraps a local non-transport fault
func NewInternalError(message string, err error) *GatewayError {
	return &GatewayError{
		Kind:    ErrorKindInternal,
		Message: message,
		Err:     err,
	}
}

// KindOf extracts the error kind, defaulting to internal for foreign errors
func KindOf(err error) ErrorKind {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Kind
	}
	return ErrorKindInternal
}

// IsUnknownModel checks whether an error is an unknown-model error
func IsUnknownModel(err error) bool {
	return KindOf(err) == ErrorKindUnknownModel
}

// IsInvalidRequest checks whether an error is an invalid-request error
func IsInvalidRequest(err error) bool {
	return KindOf(err) == ErrorKindInvalidRequest
}

// IsBackendError checks whether an error carries an upstream status
func IsBackendError(err error) bool {
	return KindOf(err) == ErrorKindBackend
}

// IsTransportError checks whether an error is a gateway-side transport fault
func IsTransportError(err error) bool {
	return KindOf(err) == ErrorKindTransport
}

// AsGatewayError extracts the typed error when present
func AsGatewayError(err error) (*GatewayError, bool) {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr, true
	}
	return nil, false
}
