// Package auth verifies the bearer tokens that protect the art workshop
// API. Tokens are JWTs issued by an external identity provider (Entra ID
// in production) and signed with keys the provider publishes as a JWKS.
//
// Verification runs in two stages behind [TokenValidationService]:
//
//   - [SignatureVerifier] checks the signature against the cached key set
//     with a single pinned asymmetric algorithm.
//   - [ClaimsValidator] checks issuer, audience, expiry, not-before and,
//     when configured, the calling client (azp or appid).
//
// Keys come from a [KeySetSource], normally an [HTTPKeySetFetcher], through
// a [KeyMaterialCache] that fetches on first use, shares one in-flight
// fetch among concurrent callers, and refetches once when a token names a
// key-id it has not seen.
//
// Every rejection is a *errors.Error from pkg/errors with its own AUTH code;
// [KindOf] recovers the reason. All of them map to 401, and the HTTP and
// gRPC adapters answer with the same generic message whatever the reason.
package auth
