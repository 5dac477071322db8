package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tallerpinturas/tallerpinturas-core/internal/testutil"
	"github.com/tallerpinturas/tallerpinturas-core/internal/testutil/fixtures"
	sserr "github.com/tallerpinturas/tallerpinturas-core/pkg/errors"
)

func validConfig() ValidationConfig {
	cfg := DefaultValidationConfig()
	cfg.Issuer = fixtures.Issuer
	cfg.Audiences = []string{fixtures.Audience}
	cfg.JWKSURL = "https://login.microsoftonline.com/" + fixtures.TenantID + "/discovery/v2.0/keys"
	return cfg
}

func TestDefaultValidationConfig(t *testing.T) {
	t.Parallel()
	cfg := DefaultValidationConfig()
	assert.Equal(t, "RS256", cfg.Algorithm)
	assert.Equal(t, 2*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.True(t, cfg.RefreshOnUnknownKeyID)
	assert.Equal(t, 30*time.Second, cfg.MinRefreshInterval)
	assert.Equal(t, 8192, cfg.MaxTokenBytes)
	assert.Zero(t, cfg.KeySetMaxAge)
	assert.Zero(t, cfg.ClockSkew)
}

func TestValidationConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*ValidationConfig)
		wantErr bool
	}{
		{"valid", func(*ValidationConfig) {}, false},
		{"empty algorithm uses default", func(c *ValidationConfig) { c.Algorithm = "" }, false},
		{"ES384", func(c *ValidationConfig) { c.Algorithm = "ES384" }, false},
		{"http JWKS URL", func(c *ValidationConfig) { c.JWKSURL = "http://localhost:8080/keys" }, false},
		{"blank issuer", func(c *ValidationConfig) { c.Issuer = "  " }, true},
		{"no audiences", func(c *ValidationConfig) { c.Audiences = nil }, true},
		{"only blank audiences", func(c *ValidationConfig) { c.Audiences = []string{"", " "} }, true},
		{"no JWKS URL", func(c *ValidationConfig) { c.JWKSURL = "" }, true},
		{"relative JWKS URL", func(c *ValidationConfig) { c.JWKSURL = "/keys" }, true},
		{"file JWKS URL", func(c *ValidationConfig) { c.JWKSURL = "file:///etc/keys.json" }, true},
		{"HS256", func(c *ValidationConfig) { c.Algorithm = "HS256" }, true},
		{"none", func(c *ValidationConfig) { c.Algorithm = "none" }, true},
		{"negative timeout", func(c *ValidationConfig) { c.RequestTimeout = -time.Second }, true},
		{"negative skew", func(c *ValidationConfig) { c.ClockSkew = -time.Second }, true},
		{"negative max bytes", func(c *ValidationConfig) { c.MaxTokenBytes = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			testutil.AssertErrorCode(t, err, sserr.CodeValidation)
		})
	}
}
