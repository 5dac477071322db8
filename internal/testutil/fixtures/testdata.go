// Package fixtures holds the identifiers shared by the auth and client
// test suites, so tests agree on what a valid token looks like.
package fixtures

// Tenant and application identifiers modelled on an Entra ID setup.
const (
	// TenantID is the test directory (tenant) ID.
	TenantID = "5f1c2d3e-0000-4000-8000-7a11e9b1c0de"

	// Issuer is the v2.0 issuer for TenantID.
	Issuer = "https://login.microsoftonline.com/" + TenantID + "/v2.0"

	// Audience is the protected API's application ID URI.
	Audience = "api://tallerpinturas-api"

	// OtherAudience belongs to some other API.
	OtherAudience = "other-api"

	// CallerID is the BFF's client ID, used for caller binding.
	CallerID = "9b0c6a57-bff0-4c1e-a11c-0b5e12ca11e2"

	// OtherCallerID is a client that is not the BFF.
	OtherCallerID = "d00dfeed-0000-4000-8000-0123456789ab"

	// Subject is the default sub claim.
	Subject = "user-abc-123"
)

// Standard values used by config loader tests.
const (
	// EnvPrefix is the environment variable prefix used in config tests.
	EnvPrefix = "BFF"

	// AuthConfigYAML is a minimal valid auth configuration file.
	AuthConfigYAML = `issuer: ` + Issuer + `
audiences:
  - ` + Audience + `
jwks_url: https://login.microsoftonline.com/` + TenantID + `/discovery/v2.0/keys
required_caller: ` + CallerID + `
`
)
