package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "without cause",
			err:  New(CodeAuthenticationAudience, "auth: audience mismatch"),
			want: "AUTH_010: auth: audience mismatch",
		},
		{
			name: "with cause",
			err:  Wrap(errors.New("connection refused"), CodeAuthenticationKeySourceUnavailable, "auth: fetch JWKS"),
			want: "AUTH_013: auth: fetch JWKS: connection refused",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	err := Wrap(cause, CodeInternal, "wrapped")

	assert.Same(t, cause, err.Unwrap())
	assert.True(t, errors.Is(err, cause))
	assert.Nil(t, New(CodeInternal, "no cause").Unwrap())
}

func TestError_HTTPStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code Code
		want int
	}{
		{CodeValidation, http.StatusBadRequest},
		{CodeAuthentication, http.StatusUnauthorized},
		{CodeAuthenticationExpired, http.StatusUnauthorized},
		{CodeAuthenticationSignature, http.StatusUnauthorized},
		{CodeAuthenticationKeySourceUnavailable, http.StatusUnauthorized},
		{CodeAuthenticationKeySetMalformed, http.StatusUnauthorized},
		{CodeAuthorization, http.StatusForbidden},
		{CodeNotFound, http.StatusNotFound},
		{CodeInternal, http.StatusInternalServerError},
		{CodeUnavailableDependency, http.StatusServiceUnavailable},
		{CodeTimeoutDatabase, http.StatusGatewayTimeout},
		{Code("BOGUS"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, New(tt.code, "x").HTTPStatus())
		})
	}
}

func TestError_WithDetails_DoesNotMutateOriginal(t *testing.T) {
	t.Parallel()

	base := New(CodeAuthenticationKeySourceStatus, "auth: JWKS endpoint returned non-2xx").
		WithDetail("status", 503)
	extended := base.WithDetails(map[string]any{"url": "https://idp.example/keys", "status": 502})

	assert.Equal(t, map[string]any{"status": 503}, base.Details)
	assert.Equal(t, map[string]any{"status": 502, "url": "https://idp.example/keys"}, extended.Details)
	assert.Equal(t, base.Code, extended.Code)
}

func TestError_Format(t *testing.T) {
	t.Parallel()

	err := Wrap(errors.New("eof"), CodeAuthenticationKeySetMalformed, "auth: parse JWKS").
		WithDetail("bytes", 12)

	assert.Equal(t, err.Error(), fmt.Sprintf("%v", err))
	assert.Equal(t, err.Error(), fmt.Sprintf("%s", err))
	assert.Equal(t, fmt.Sprintf("%q", err.Error()), fmt.Sprintf("%q", err))

	verbose := fmt.Sprintf("%+v", err)
	assert.Contains(t, verbose, `Code: "AUTH_016"`)
	assert.Contains(t, verbose, "Details: map[bytes:12]")
	assert.Contains(t, verbose, "Cause: eof")
}

func TestCode_Category(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "AUTH", CodeAuthenticationCaller.Category())
	assert.Equal(t, "AUTHZ", CodeAuthorization.Category())
	assert.Equal(t, "TIMEOUT", CodeTimeoutDatabase.Category())
	assert.Equal(t, "PLAIN", Code("PLAIN").Category())
}

func TestCodes_Unique(t *testing.T) {
	t.Parallel()

	all := []Code{
		CodeValidation, CodeValidationRequired, CodeAuthentication, CodeAuthorization,
		CodeNotFound, CodeInternal, CodeInternalDatabase, CodeInternalConfiguration,
		CodeUnavailable, CodeUnavailableDependency, CodeTimeout, CodeTimeoutDatabase,
		CodeAuthenticationExpired, CodeAuthenticationInvalid, CodeAuthenticationMissing,
		CodeAuthenticationMalformed, CodeAuthenticationAlgorithm, CodeAuthenticationUnknownKey,
		CodeAuthenticationSignature, CodeAuthenticationIssuer, CodeAuthenticationAudience,
		CodeAuthenticationNotYetValid, CodeAuthenticationCaller,
		CodeAuthenticationKeySourceUnavailable, CodeAuthenticationKeySourceStatus,
		CodeAuthenticationKeySourceEmpty, CodeAuthenticationKeySetMalformed,
	}
	seen := make(map[Code]bool, len(all))
	for _, c := range all {
		require.False(t, seen[c], "duplicate code %s", c)
		seen[c] = true
	}
}
