package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	sserr "github.com/tallerpinturas/tallerpinturas-core/pkg/errors"
)

// ---------------------------------------------------------------------------
// OIDC discovery
// ---------------------------------------------------------------------------

type oidcDiscoveryDocument struct {
	Issuer  string `json:"issuer"`
	JWKSURI string `json:"jwks_uri"`
}

// DiscoverJWKSURL reads <issuer>/.well-known/openid-configuration and
// returns its jwks_uri. It is meant for startup, when no JWKS URL is
// configured. A nil client uses a client with a 5s timeout.
//
// Failures carry the key-source kinds so that startup logs read the same
// as runtime fetch failures.
func DiscoverJWKSURL(ctx context.Context, issuer string, client HTTPClient) (string, error) {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	discoveryURL := strings.TrimRight(issuer, "/") + "/.well-known/openid-configuration"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, discoveryURL, nil)
	if err != nil {
		return "", wrapError(err, KindKeySourceUnavailable, "auth: failed to create OIDC discovery request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", wrapError(err, KindKeySourceUnavailable, "auth: OIDC discovery request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", newErrorf(KindKeySourceBadStatus,
			"auth: OIDC discovery endpoint returned status %d", resp.StatusCode).
			WithDetail("status", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxKeySetBytes))
	if err != nil {
		return "", wrapError(err, KindKeySourceUnavailable, "auth: failed to read OIDC discovery response")
	}

	var doc oidcDiscoveryDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", wrapError(err, KindKeySetMalformed, "auth: failed to parse OIDC discovery JSON")
	}
	if doc.JWKSURI == "" {
		return "", newError(KindKeySetMalformed, "auth: OIDC discovery document missing jwks_uri")
	}
	return doc.JWKSURI, nil
}

// ---------------------------------------------------------------------------
// Azure AD
// ---------------------------------------------------------------------------

// DefaultAzureAuthority is the Microsoft identity platform host.
const DefaultAzureAuthority = "https://login.microsoftonline.com"

// AzureADConfig holds the three settings the art workshop deployments use
// to describe their Entra ID (Azure AD) tenant. They are read without a
// prefix, under the names the function apps already define.
type AzureADConfig struct {
	// TenantID is the directory (tenant) ID.
	TenantID string `json:"tenant_id" yaml:"tenant_id" env:"AAD_TENANT_ID"`

	// APIAppIDURI is the application ID URI of the protected API, used as
	// the accepted audience (e.g. "api://tallerpinturas-api").
	APIAppIDURI string `json:"api_app_id_uri" yaml:"api_app_id_uri" env:"API_APP_ID_URI"`

	// BFFClientID, when set, is the only client allowed to call the API.
	BFFClientID string `json:"bff_client_id" yaml:"bff_client_id" env:"BFF_CLIENT_ID"`

	// Authority overrides the login host, e.g. for sovereign clouds.
	Authority string `json:"authority" yaml:"authority" env:"AAD_AUTHORITY" envDefault:"https://login.microsoftonline.com"`
}

// Enabled reports whether a tenant is configured.
func (a AzureADConfig) Enabled() bool {
	return strings.TrimSpace(a.TenantID) != ""
}

// Issuer returns the v2.0 token issuer for the tenant.
func (a AzureADConfig) Issuer() string {
	return a.authority() + "/" + a.TenantID + "/v2.0"
}

// JWKSURL returns the tenant's v2.0 signing-key endpoint.
func (a AzureADConfig) JWKSURL() string {
	return a.authority() + "/" + a.TenantID + "/discovery/v2.0/keys"
}

func (a AzureADConfig) authority() string {
	if a.Authority == "" {
		return DefaultAzureAuthority
	}
	return strings.TrimRight(a.Authority, "/")
}

// ValidationConfig derives a ValidationConfig for the tenant on top of
// base, which supplies timeouts and refresh policy.
func (a AzureADConfig) ValidationConfig(base ValidationConfig) (ValidationConfig, error) {
	if !a.Enabled() {
		return ValidationConfig{}, sserr.New(sserr.CodeValidationRequired, "auth: AAD_TENANT_ID is not set")
	}
	if strings.TrimSpace(a.APIAppIDURI) == "" {
		return ValidationConfig{}, sserr.New(sserr.CodeValidationRequired, "auth: API_APP_ID_URI is not set")
	}
	cfg := base
	cfg.Issuer = a.Issuer()
	cfg.JWKSURL = a.JWKSURL()
	cfg.Audiences = []string{a.APIAppIDURI}
	cfg.RequiredCaller = a.BFFClientID
	if err := cfg.Validate(); err != nil {
		return ValidationConfig{}, fmt.Errorf("auth: derived Azure AD config is invalid: %w", err)
	}
	return cfg, nil
}
