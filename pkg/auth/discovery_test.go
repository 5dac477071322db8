package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallerpinturas/tallerpinturas-core/internal/testutil"
	"github.com/tallerpinturas/tallerpinturas-core/internal/testutil/fixtures"
	sserr "github.com/tallerpinturas/tallerpinturas-core/pkg/errors"
)

func discoveryServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tenant/v2.0/.well-known/openid-configuration" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDiscoverJWKSURL(t *testing.T) {
	t.Parallel()
	srv := discoveryServer(t, http.StatusOK,
		`{"issuer":"x","jwks_uri":"https://login.example/tenant/discovery/v2.0/keys"}`)

	got, err := DiscoverJWKSURL(context.Background(), srv.URL+"/tenant/v2.0/", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://login.example/tenant/discovery/v2.0/keys", got)
}

func TestDiscoverJWKSURL_Failures(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		status int
		body   string
		want   Kind
	}{
		{"bad status", http.StatusInternalServerError, "", KindKeySourceBadStatus},
		{"not json", http.StatusOK, "<html>", KindKeySetMalformed},
		{"no jwks_uri", http.StatusOK, `{"issuer":"x"}`, KindKeySetMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := discoveryServer(t, tt.status, tt.body)
			_, err := DiscoverJWKSURL(context.Background(), srv.URL+"/tenant/v2.0", nil)
			assert.Equal(t, tt.want, KindOf(err))
		})
	}
}

func TestAzureADConfig(t *testing.T) {
	t.Parallel()
	az := AzureADConfig{
		TenantID:    fixtures.TenantID,
		APIAppIDURI: fixtures.Audience,
		BFFClientID: fixtures.CallerID,
	}
	require.True(t, az.Enabled())
	assert.Equal(t, fixtures.Issuer, az.Issuer())
	assert.Equal(t, "https://login.microsoftonline.com/"+fixtures.TenantID+"/discovery/v2.0/keys", az.JWKSURL())

	base := DefaultValidationConfig()
	base.MinRefreshInterval = 0
	cfg, err := az.ValidationConfig(base)
	require.NoError(t, err)
	assert.Equal(t, fixtures.Issuer, cfg.Issuer)
	assert.Equal(t, []string{fixtures.Audience}, cfg.Audiences)
	assert.Equal(t, fixtures.CallerID, cfg.RequiredCaller)
	assert.Equal(t, az.JWKSURL(), cfg.JWKSURL)
	assert.Zero(t, cfg.MinRefreshInterval, "base settings are kept")
}

func TestAzureADConfig_SovereignAuthority(t *testing.T) {
	t.Parallel()
	az := AzureADConfig{TenantID: "t", Authority: "https://login.microsoftonline.us/"}
	assert.Equal(t, "https://login.microsoftonline.us/t/v2.0", az.Issuer())
}

func TestAzureADConfig_Incomplete(t *testing.T) {
	t.Parallel()
	_, err := AzureADConfig{}.ValidationConfig(DefaultValidationConfig())
	testutil.RequireErrorCode(t, err, sserr.CodeValidationRequired)
	assert.False(t, AzureADConfig{}.Enabled())

	_, err = AzureADConfig{TenantID: "t"}.ValidationConfig(DefaultValidationConfig())
	testutil.RequireErrorCode(t, err, sserr.CodeValidationRequired)
}
