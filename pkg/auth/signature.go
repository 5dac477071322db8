package auth

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// SignatureVerifier checks a compact JWS against a [KeySet] using one
// pinned algorithm. It trusts nothing in the token before the signature
// verifies: the header is only consulted to reject foreign algorithms and
// to pick candidate keys.
type SignatureVerifier struct {
	algorithm string
	method    jwt.SigningMethod
	maxBytes  int
	parser    *jwt.Parser
}

// NewSignatureVerifier returns a verifier pinned to algorithm, which must
// be one of the asymmetric algorithms ValidationConfig accepts. Tokens
// longer than maxTokenBytes are rejected as malformed; zero means 8192.
func NewSignatureVerifier(algorithm string, maxTokenBytes int) (*SignatureVerifier, error) {
	if _, ok := allowedAlgorithms[algorithm]; !ok {
		return nil, newErrorf(KindAlgorithmNotAllowed, "auth: %q cannot be pinned as the signing algorithm", algorithm)
	}
	method := jwt.GetSigningMethod(algorithm)
	if method == nil {
		return nil, newErrorf(KindAlgorithmNotAllowed, "auth: signing method %q is not registered", algorithm)
	}
	if maxTokenBytes <= 0 {
		maxTokenBytes = defaultMaxTokenBytes
	}
	// Strict decoding rejects non-canonical base64url, so no two token
	// strings share one signature.
	return &SignatureVerifier{
		algorithm: algorithm,
		method:    method,
		maxBytes:  maxTokenBytes,
		parser:    jwt.NewParser(jwt.WithStrictDecoding()),
	}, nil
}

// Algorithm returns the pinned algorithm.
func (v *SignatureVerifier) Algorithm() string { return v.algorithm }

// Verify returns the token's claims, not yet validated, once its signature
// checks out against a candidate key in keys.
//
// The algorithm is checked before any key lookup, so an alg:none or HMAC
// token never reaches signature comparison.
func (v *SignatureVerifier) Verify(token string, keys *KeySet) (jwt.MapClaims, error) {
	if len(token) > v.maxBytes {
		return nil, newErrorf(KindTokenMalformed, "auth: token exceeds %d bytes", v.maxBytes)
	}

	parsed, parts, err := v.parser.ParseUnverified(token, jwt.MapClaims{})
	switch {
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		// Unknown or missing alg; the header itself decoded fine.
		return nil, wrapError(err, KindAlgorithmNotAllowed, "auth: token declares no usable signing algorithm")
	case err != nil:
		return nil, wrapError(err, KindTokenMalformed, "auth: token is malformed")
	}

	alg, _ := parsed.Header["alg"].(string)
	if alg != v.algorithm {
		return nil, newErrorf(KindAlgorithmNotAllowed, "auth: token algorithm %q is not allowed", alg).
			WithDetail("alg", alg)
	}

	sig, err := v.parser.DecodeSegment(parts[2])
	if err != nil {
		return nil, wrapError(err, KindTokenMalformed, "auth: token signature is not valid base64url")
	}

	kid, _ := parsed.Header["kid"].(string)
	candidates := keys.Candidates(kid, v.algorithm)
	if len(candidates) == 0 {
		return nil, newErrorf(KindKeyNotFound, "auth: no key for kid %q", kid).
			WithDetail("kid", kid)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, newError(KindTokenMalformed, "auth: token claims are not a JSON object")
	}

	signingString := strings.Join(parts[0:2], ".")
	for _, k := range candidates {
		if err := v.method.Verify(signingString, sig, k.Key); err == nil {
			return claims, nil
		}
	}
	return nil, newError(KindSignatureInvalid, "auth: token signature does not match any candidate key").
		WithDetail("kid", kid).
		WithDetail("candidates", len(candidates))
}
