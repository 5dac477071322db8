package testutil

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Signing keys
// ---------------------------------------------------------------------------

// SigningKey is a private key plus the key-id and algorithm its tokens
// carry in their header.
type SigningKey struct {
	KeyID   string
	Method  jwt.SigningMethod
	Private crypto.Signer
}

// NewRSAKey generates a 2048-bit RS256 key with a random key-id.
func NewRSAKey(t testing.TB) *SigningKey {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err, "failed to generate RSA key")
	return &SigningKey{KeyID: uuid.NewString(), Method: jwt.SigningMethodRS256, Private: priv}
}

// NewECKey generates a P-256 ES256 key with a random key-id.
func NewECKey(t testing.TB) *SigningKey {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err, "failed to generate EC key")
	return &SigningKey{KeyID: uuid.NewString(), Method: jwt.SigningMethodES256, Private: priv}
}

// PublicJWK returns the public half as a JWK with kid, alg and use=sig.
func (k *SigningKey) PublicJWK(t testing.TB) jwk.Key {
	t.Helper()
	key := k.bareJWK(t)
	require.NoError(t, key.Set(jwk.AlgorithmKey, k.Method.Alg()))
	return key
}

// AzureStyleJWK returns the public half the way Entra ID publishes it:
// kid and use=sig, but no alg.
func (k *SigningKey) AzureStyleJWK(t testing.TB) jwk.Key {
	t.Helper()
	return k.bareJWK(t)
}

func (k *SigningKey) bareJWK(t testing.TB) jwk.Key {
	t.Helper()
	key, err := jwk.FromRaw(k.Private.Public())
	require.NoError(t, err, "failed to build JWK")
	require.NoError(t, key.Set(jwk.KeyIDKey, k.KeyID))
	require.NoError(t, key.Set(jwk.KeyUsageKey, "sig"))
	return key
}

// Sign returns a compact token over claims with this key's alg and kid.
func (k *SigningKey) Sign(t testing.TB, claims jwt.MapClaims) string {
	t.Helper()
	return k.SignWithHeader(t, claims, nil)
}

// SignWithHeader is Sign with extra or overridden header fields. Setting
// "kid" to nil removes it.
func (k *SigningKey) SignWithHeader(t testing.TB, claims jwt.MapClaims, header map[string]any) string {
	t.Helper()
	token := jwt.NewWithClaims(k.Method, claims)
	token.Header["kid"] = k.KeyID
	for name, v := range header {
		if v == nil {
			delete(token.Header, name)
			continue
		}
		token.Header[name] = v
	}
	s, err := token.SignedString(k.Private)
	require.NoError(t, err, "failed to sign token")
	return s
}

// ---------------------------------------------------------------------------
// Documents and claims
// ---------------------------------------------------------------------------

// JWKSDocument serializes keys as a JWKS document.
func JWKSDocument(t testing.TB, keys ...jwk.Key) []byte {
	t.Helper()
	set := jwk.NewSet()
	for _, k := range keys {
		require.NoError(t, set.AddKey(k))
	}
	data, err := json.Marshal(set)
	require.NoError(t, err, "failed to marshal JWKS")
	return data
}

// Claims returns a claim set that passes validation for issuer and
// audience at now, expiring in one hour, with a random jti.
func Claims(issuer, audience, subject string, now time.Time) jwt.MapClaims {
	return jwt.MapClaims{
		"iss": issuer,
		"aud": audience,
		"sub": subject,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
		"jti": uuid.NewString(),
	}
}

// ---------------------------------------------------------------------------
// JWKS server
// ---------------------------------------------------------------------------

// JWKSServer is an httptest server that publishes a JWKS document and
// counts how often it was fetched. Body, status and latency can be
// changed while it runs.
type JWKSServer struct {
	*httptest.Server

	hits   atomic.Int64
	mu     sync.RWMutex
	body   []byte
	status int
	delay  time.Duration
}

// NewJWKSServer starts a server publishing body with status 200. It is
// closed when the test ends.
func NewJWKSServer(t testing.TB, body []byte) *JWKSServer {
	t.Helper()
	s := &JWKSServer{body: body, status: http.StatusOK}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func (s *JWKSServer) serve(w http.ResponseWriter, r *http.Request) {
	s.hits.Add(1)
	s.mu.RLock()
	body, status, delay := s.body, s.status, s.delay
	s.mu.RUnlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// JWKSURL returns the URL the document is published at.
func (s *JWKSServer) JWKSURL() string { return s.URL + "/discovery/v2.0/keys" }

// Hits returns the number of requests served so far.
func (s *JWKSServer) Hits() int64 { return s.hits.Load() }

// SetBody replaces the published document.
func (s *JWKSServer) SetBody(body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.body = body
}

// SetStatus replaces the response status.
func (s *JWKSServer) SetStatus(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// SetDelay makes every response wait d first.
func (s *JWKSServer) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}
