// Package errors defines the fault taxonomy shared by the services: caller
// mistakes, missing resources, and upstream connectivity failures. The API
// layer maps these to HTTP statuses; services only wrap and return them.
package errors

import "fmt"

// ValidationError indicates caller input that fails a precondition. It is
// never retried.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError indicates a named resource that does not resolve, distinct
// from malformed input.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Key)
}

// NotFound builds a NotFoundError for a resource and lookup key.
func NotFound(resource string, key any) *NotFoundError {
	return &NotFoundError{Resource: resource, Key: fmt.Sprint(key)}
}

// GatewayError indicates a failed upstream call: either a non-2xx/non-304
// status (StatusCode set, Body carrying the upstream message) or a transport
// failure (Err set). The gateway never retries; callers may resubmit.
type GatewayError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("github request failed: %v", e.Err)
	}
	return fmt.Sprintf("github request failed: status %d: %s", e.StatusCode, e.Body)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
