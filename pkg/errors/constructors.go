package errors

import (
	"errors"
	"fmt"
)

// New returns an Error with the given code and message and no cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf is New with a formatted message.
//
//	err := errors.Newf(errors.CodeAuthenticationIssuer, "auth: unexpected issuer %q", iss)
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an Error with err as its Cause. Wrap(nil, ...) returns nil
// so that call sites can wrap unconditionally:
//
//	resp, err := client.Do(req)
//	if err != nil {
//	    return errors.Wrap(err, errors.CodeAuthenticationKeySourceUnavailable, "auth: fetch JWKS")
//	}
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Cause: err}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// Validation returns a CodeValidation error.
func Validation(message string) *Error {
	return New(CodeValidation, message)
}

// Validationf returns a CodeValidation error with a formatted message.
func Validationf(format string, args ...any) *Error {
	return Newf(CodeValidation, format, args...)
}

// NotFound returns a CodeNotFound error.
func NotFound(message string) *Error {
	return New(CodeNotFound, message)
}

// Unauthorized returns a general CodeAuthentication error. Token
// verification uses the more specific AUTH codes instead.
func Unauthorized(message string) *Error {
	return New(CodeAuthentication, message)
}

// Forbidden returns a CodeAuthorization error.
func Forbidden(message string) *Error {
	return New(CodeAuthorization, message)
}

// Internal returns a CodeInternal error.
func Internal(message string) *Error {
	return New(CodeInternal, message)
}

// Internalf returns a CodeInternal error with a formatted message.
func Internalf(format string, args ...any) *Error {
	return Newf(CodeInternal, format, args...)
}

// Unavailable returns a CodeUnavailable error.
func Unavailable(message string) *Error {
	return New(CodeUnavailable, message)
}

// Timeout returns a CodeTimeout error.
func Timeout(message string) *Error {
	return New(CodeTimeout, message)
}

// FromError returns err as an *Error. An *Error anywhere in the chain is
// returned as-is; anything else is wrapped as CodeInternal.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, CodeInternal, "an unexpected error occurred")
}
