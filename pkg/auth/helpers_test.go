package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/tallerpinturas/tallerpinturas-core/internal/testutil"
	"github.com/tallerpinturas/tallerpinturas-core/internal/testutil/fixtures"
)

// testNow is the fixed clock every service in these tests runs on.
var testNow = time.Date(2026, time.March, 14, 10, 30, 0, 0, time.UTC)

func testClock() time.Time { return testNow }

// testEnv is one signing key published by one JWKS server, plus a config
// that accepts tokens from it.
type testEnv struct {
	key    *testutil.SigningKey
	server *testutil.JWKSServer
	cfg    ValidationConfig
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	key := testutil.NewRSAKey(t)
	server := testutil.NewJWKSServer(t, testutil.JWKSDocument(t, key.PublicJWK(t)))

	cfg := DefaultValidationConfig()
	cfg.Issuer = fixtures.Issuer
	cfg.Audiences = []string{fixtures.Audience}
	cfg.JWKSURL = server.JWKSURL()
	return &testEnv{key: key, server: server, cfg: cfg}
}

// service builds a validator over the env's config. Options given by the
// caller come last and win.
func (e *testEnv) service(t *testing.T, opts ...Option) *TokenValidationService {
	t.Helper()
	all := append([]Option{WithClock(testClock)}, opts...)
	svc, err := NewTokenValidationService(e.cfg, all...)
	require.NoError(t, err)
	return svc
}

// claims returns a valid claim set for the env, after applying mutate.
func (e *testEnv) claims(mutate func(jwt.MapClaims)) jwt.MapClaims {
	c := testutil.Claims(fixtures.Issuer, fixtures.Audience, fixtures.Subject, testNow)
	if mutate != nil {
		mutate(c)
	}
	return c
}

// bearer signs claims with the env's key and prefixes the scheme.
func (e *testEnv) bearer(t *testing.T, mutate func(jwt.MapClaims)) string {
	t.Helper()
	return "Bearer " + e.key.Sign(t, e.claims(mutate))
}
