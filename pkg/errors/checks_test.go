package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAsError(t *testing.T) {
	t.Parallel()

	platformErr := New(CodeAuthenticationSignature, "bad signature")

	got, ok := AsError(platformErr)
	assert.True(t, ok)
	assert.Same(t, platformErr, got)

	got, ok = AsError(fmt.Errorf("middleware: %w", platformErr))
	assert.True(t, ok)
	assert.Same(t, platformErr, got)

	got, ok = AsError(errors.Join(errors.New("outer"), platformErr))
	assert.True(t, ok)
	assert.Equal(t, CodeAuthenticationSignature, got.Code)

	got, ok = AsError(errors.New("plain"))
	assert.False(t, ok)
	assert.Nil(t, got)

	got, ok = AsError(nil)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestGetCode_HasCode(t *testing.T) {
	t.Parallel()

	err := Wrap(errors.New("x"), CodeAuthenticationIssuer, "issuer")
	assert.Equal(t, CodeAuthenticationIssuer, GetCode(err))
	assert.True(t, HasCode(err, CodeAuthenticationIssuer))
	assert.False(t, HasCode(err, CodeAuthentication))
	assert.Equal(t, Code(""), GetCode(errors.New("plain")))
	assert.Equal(t, Code(""), GetCode(nil))
}

func TestCategoryChecks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		check func(error) bool
		yes   Code
		no    Code
	}{
		{"validation", IsValidation, CodeValidationRequired, CodeAuthentication},
		{"authentication", IsAuthentication, CodeAuthenticationExpired, CodeAuthorization},
		{"authorization", IsAuthorization, CodeAuthorization, CodeAuthentication},
		{"not found", IsNotFound, CodeNotFound, CodeInternal},
		{"internal", IsInternal, CodeInternalConfiguration, CodeTimeout},
		{"unavailable", IsUnavailable, CodeUnavailableDependency, CodeInternal},
		{"timeout", IsTimeout, CodeTimeoutDatabase, CodeUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.True(t, tt.check(New(tt.yes, "x")))
			assert.False(t, tt.check(New(tt.no, "x")))
			assert.False(t, tt.check(errors.New("plain")))
			assert.False(t, tt.check(nil))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code Code
		want bool
	}{
		{CodeTimeout, true},
		{CodeUnavailableDependency, true},
		{CodeAuthenticationKeySourceUnavailable, true},
		{CodeAuthenticationKeySourceStatus, true},
		{CodeAuthenticationKeySourceEmpty, true},
		{CodeAuthenticationKeySetMalformed, false},
		{CodeAuthenticationSignature, false},
		{CodeAuthenticationExpired, false},
		{CodeInternal, false},
	}
	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsRetryable(New(tt.code, "x")))
		})
	}
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestIsClientError_IsServerError(t *testing.T) {
	t.Parallel()

	assert.True(t, IsClientError(New(CodeAuthenticationKeySourceUnavailable, "x")))
	assert.False(t, IsServerError(New(CodeAuthenticationKeySourceUnavailable, "x")))
	assert.True(t, IsServerError(New(CodeInternalDatabase, "x")))
	assert.False(t, IsClientError(New(CodeInternalDatabase, "x")))
	assert.False(t, IsClientError(errors.New("plain")))
	assert.False(t, IsServerError(nil))
}

func TestFromError(t *testing.T) {
	t.Parallel()

	assert.Nil(t, FromError(nil))

	platformErr := New(CodeAuthenticationMissing, "missing")
	assert.Same(t, platformErr, FromError(fmt.Errorf("wrap: %w", platformErr)))

	plain := errors.New("plain")
	converted := FromError(plain)
	assert.Equal(t, CodeInternal, converted.Code)
	assert.Same(t, plain, converted.Cause)
}

func TestWrap_NilReturnsNil(t *testing.T) {
	t.Parallel()

	assert.Nil(t, Wrap(nil, CodeInternal, "x"))
	assert.Nil(t, Wrapf(nil, CodeInternal, "x %d", 1))
	assert.Equal(t, "INT_001: n=3: boom", Wrapf(errors.New("boom"), CodeInternal, "n=%d", 3).Error())
}
