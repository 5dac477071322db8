package errors

import "strings"

// Code is a machine-readable error code of the form CATEGORY_NNN. Codes
// are stable once published: dashboards and alerts key on them.
type Code string

// General codes, one or more per category.
const (
	// CodeValidation indicates a general validation failure.
	CodeValidation Code = "VAL_001"

	// CodeValidationRequired indicates a required field is missing.
	CodeValidationRequired Code = "VAL_002"

	// CodeAuthentication indicates a general authentication failure.
	CodeAuthentication Code = "AUTH_001"

	// CodeAuthorization indicates a general authorization failure.
	CodeAuthorization Code = "AUTHZ_001"

	// CodeNotFound indicates a general not found error.
	CodeNotFound Code = "NF_001"

	// CodeInternal indicates a general internal error.
	CodeInternal Code = "INT_001"

	// CodeInternalDatabase indicates a storage operation failed.
	CodeInternalDatabase Code = "INT_002"

	// CodeInternalConfiguration indicates configuration could not be loaded.
	CodeInternalConfiguration Code = "INT_003"

	// CodeUnavailable indicates a general service unavailable error.
	CodeUnavailable Code = "UNAVAIL_001"

	// CodeUnavailableDependency indicates a dependent service is unreachable.
	CodeUnavailableDependency Code = "UNAVAIL_002"

	// CodeTimeout indicates a general timeout error.
	CodeTimeout Code = "TIMEOUT_001"

	// CodeTimeoutDatabase indicates a storage operation timed out.
	CodeTimeoutDatabase Code = "TIMEOUT_002"
)

// Bearer-token verification codes. Each rejection reason has its own code
// so that logs and metrics can tell them apart; clients only ever see 401.
const (
	// CodeAuthenticationExpired: the token's exp is missing or not in the future.
	CodeAuthenticationExpired Code = "AUTH_002"

	// CodeAuthenticationInvalid: the token was rejected for an unclassified reason.
	CodeAuthenticationInvalid Code = "AUTH_003"

	// CodeAuthenticationMissing: no "Bearer <token>" credential was presented.
	CodeAuthenticationMissing Code = "AUTH_004"

	// CodeAuthenticationMalformed: the token is not a well-formed compact JWS.
	CodeAuthenticationMalformed Code = "AUTH_005"

	// CodeAuthenticationAlgorithm: the token declares a non-permitted alg.
	CodeAuthenticationAlgorithm Code = "AUTH_006"

	// CodeAuthenticationUnknownKey: no published key matches the token's kid.
	CodeAuthenticationUnknownKey Code = "AUTH_007"

	// CodeAuthenticationSignature: the signature does not verify.
	CodeAuthenticationSignature Code = "AUTH_008"

	// CodeAuthenticationIssuer: iss differs from the configured issuer.
	CodeAuthenticationIssuer Code = "AUTH_009"

	// CodeAuthenticationAudience: aud does not contain an accepted audience.
	CodeAuthenticationAudience Code = "AUTH_010"

	// CodeAuthenticationNotYetValid: nbf lies in the future.
	CodeAuthenticationNotYetValid Code = "AUTH_011"

	// CodeAuthenticationCaller: neither azp nor appid names the required caller.
	CodeAuthenticationCaller Code = "AUTH_012"

	// CodeAuthenticationKeySourceUnavailable: the JWKS endpoint could not be reached.
	CodeAuthenticationKeySourceUnavailable Code = "AUTH_013"

	// CodeAuthenticationKeySourceStatus: the JWKS endpoint answered non-2xx.
	CodeAuthenticationKeySourceStatus Code = "AUTH_014"

	// CodeAuthenticationKeySourceEmpty: the JWKS endpoint returned no content.
	CodeAuthenticationKeySourceEmpty Code = "AUTH_015"

	// CodeAuthenticationKeySetMalformed: the JWKS document could not be parsed.
	CodeAuthenticationKeySetMalformed Code = "AUTH_016"
)

// String returns the code as a string.
func (c Code) String() string {
	return string(c)
}

// Category returns the prefix before the first underscore ("AUTH" for
// "AUTH_008"). A code without an underscore is its own category.
func (c Code) Category() string {
	s := string(c)
	if i := strings.IndexByte(s, '_'); i >= 0 {
		return s[:i]
	}
	return s
}
