package auth

import (
	sserr "github.com/tallerpinturas/tallerpinturas-core/pkg/errors"
)

// Kind names the reason a bearer token was rejected. Every error returned
// by [TokenValidationService] maps to exactly one Kind via [KindOf].
//
// Kinds are for logs, metrics and traces. Clients only ever see a generic
// 401, so a Kind must never be copied into a response body.
type Kind int

const (
	// KindUnknown is returned by KindOf for nil errors and for errors that
	// did not originate in this package.
	KindUnknown Kind = iota

	KindMissingBearerToken
	KindTokenMalformed
	KindAlgorithmNotAllowed
	KindKeyNotFound
	KindSignatureInvalid
	KindIssuerMismatch
	KindAudienceMismatch
	KindTokenExpired
	KindTokenNotYetValid
	KindCallerMismatch
	KindKeySourceUnavailable
	KindKeySourceBadStatus
	KindKeySourceEmptyBody
	KindKeySetMalformed
)

var kindInfo = [...]struct {
	name string
	code sserr.Code
}{
	KindUnknown:              {"Unknown", sserr.CodeAuthenticationInvalid},
	KindMissingBearerToken:   {"MissingBearerToken", sserr.CodeAuthenticationMissing},
	KindTokenMalformed:       {"TokenMalformed", sserr.CodeAuthenticationMalformed},
	KindAlgorithmNotAllowed:  {"AlgorithmNotAllowed", sserr.CodeAuthenticationAlgorithm},
	KindKeyNotFound:          {"KeyNotFound", sserr.CodeAuthenticationUnknownKey},
	KindSignatureInvalid:     {"SignatureInvalid", sserr.CodeAuthenticationSignature},
	KindIssuerMismatch:       {"IssuerMismatch", sserr.CodeAuthenticationIssuer},
	KindAudienceMismatch:     {"AudienceMismatch", sserr.CodeAuthenticationAudience},
	KindTokenExpired:         {"TokenExpired", sserr.CodeAuthenticationExpired},
	KindTokenNotYetValid:     {"TokenNotYetValid", sserr.CodeAuthenticationNotYetValid},
	KindCallerMismatch:       {"CallerMismatch", sserr.CodeAuthenticationCaller},
	KindKeySourceUnavailable: {"KeySourceUnavailable", sserr.CodeAuthenticationKeySourceUnavailable},
	KindKeySourceBadStatus:   {"KeySourceBadStatus", sserr.CodeAuthenticationKeySourceStatus},
	KindKeySourceEmptyBody:   {"KeySourceEmptyBody", sserr.CodeAuthenticationKeySourceEmpty},
	KindKeySetMalformed:      {"KeySetMalformed", sserr.CodeAuthenticationKeySetMalformed},
}

// String returns the kind's name, e.g. "AudienceMismatch".
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindInfo) {
		return kindInfo[KindUnknown].name
	}
	return kindInfo[k].name
}

// Code returns the error code carried by errors of this kind.
func (k Kind) Code() sserr.Code {
	if k < 0 || int(k) >= len(kindInfo) {
		return kindInfo[KindUnknown].code
	}
	return kindInfo[k].code
}

// KeySourceFailure reports whether the kind describes a failure to obtain
// key material rather than a problem with the token itself.
func (k Kind) KeySourceFailure() bool {
	switch k {
	case KindKeySourceUnavailable, KindKeySourceBadStatus, KindKeySourceEmptyBody, KindKeySetMalformed:
		return true
	}
	return false
}

// KindOf returns the Kind of err by looking at the code of the first
// *sserr.Error in its chain.
func KindOf(err error) Kind {
	code := sserr.GetCode(err)
	if code == "" {
		return KindUnknown
	}
	for k := KindMissingBearerToken; int(k) < len(kindInfo); k++ {
		if kindInfo[k].code == code {
			return k
		}
	}
	return KindUnknown
}

func newError(kind Kind, message string) *sserr.Error {
	return sserr.New(kind.Code(), message)
}

func newErrorf(kind Kind, format string, args ...any) *sserr.Error {
	return sserr.Newf(kind.Code(), format, args...)
}

func wrapError(err error, kind Kind, message string) *sserr.Error {
	return sserr.Wrap(err, kind.Code(), message)
}
