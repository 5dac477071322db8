// Package errors provides the structured error type shared by every
// tallerpinturas service. Each error carries a machine-readable [Code], a
// message that is safe to log, an optional cause, and optional structured
// details.
//
// # Error Categories
//
// Codes are grouped by category prefix, and the category decides the HTTP
// status an adapter should answer with:
//
//   - VAL: invalid input or configuration (400)
//   - AUTH: the caller could not be authenticated (401)
//   - AUTHZ: the caller is authenticated but not allowed (403)
//   - NF: the resource does not exist (404)
//   - INT: unexpected internal failure (500)
//   - UNAVAIL: a dependency is temporarily unavailable (503)
//   - TIMEOUT: an operation exceeded its deadline (504)
//
// Token verification failures all live in the AUTH category, including the
// ones caused by an unreachable identity provider. Verification fails
// closed, so those still answer 401.
//
// # Usage
//
//	err := errors.New(errors.CodeAuthenticationAudience, "auth: audience mismatch")
//
//	if errors.IsAuthentication(err) {
//	    w.WriteHeader(http.StatusUnauthorized)
//	}
//
//	if e, ok := errors.AsError(err); ok {
//	    logger.Warn("request rejected", "code", e.Code, "message", e.Message)
//	}
package errors

import (
	"fmt"
	"net/http"
)

// Error is a structured error with a code, message, optional cause, and
// optional details. Errors are treated as immutable once created; the
// With* helpers return copies.
type Error struct {
	// Code is the machine-readable error code (e.g., "AUTH_008").
	Code Code

	// Message is the human-readable message. It is written for server-side
	// logs and must not contain credentials or raw tokens.
	Message string

	// Cause is the underlying error, if any.
	Cause error

	// Details holds structured context such as the offending claim value
	// or the upstream HTTP status.
	Details map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, supporting errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the HTTP status code for the error's category.
func (e *Error) HTTPStatus() int {
	switch e.Code.Category() {
	case "VAL":
		return http.StatusBadRequest
	case "AUTH":
		return http.StatusUnauthorized
	case "AUTHZ":
		return http.StatusForbidden
	case "NF":
		return http.StatusNotFound
	case "UNAVAIL":
		return http.StatusServiceUnavailable
	case "TIMEOUT":
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// WithDetail returns a copy of the error with key set to value in Details.
func (e *Error) WithDetail(key string, value any) *Error {
	return e.WithDetails(map[string]any{key: value})
}

// WithDetails returns a copy of the error with details merged into
// Details. Keys in details win over existing keys.
func (e *Error) WithDetails(details map[string]any) *Error {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Cause:   e.Cause,
		Details: merged,
	}
}

// Format implements fmt.Formatter. %+v prints the code, message, details
// and cause chain; every other verb prints Error().
func (e *Error) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			fmt.Fprintf(s, "Error{Code: %q, Message: %q", e.Code, e.Message)
			if len(e.Details) > 0 {
				fmt.Fprintf(s, ", Details: %v", e.Details)
			}
			if e.Cause != nil {
				fmt.Fprintf(s, ", Cause: %+v", e.Cause)
			}
			fmt.Fprint(s, "}")
			return
		}
		fallthrough
	case 's':
		fmt.Fprint(s, e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}
