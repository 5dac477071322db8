package auth

import (
	"net/url"
	"strings"
	"time"

	sserr "github.com/tallerpinturas/tallerpinturas-core/pkg/errors"
)

// ---------------------------------------------------------------------------
// ValidationConfig
// ---------------------------------------------------------------------------

// ValidationConfig describes which tokens a [TokenValidationService]
// accepts and where it gets the keys to check them. It is loaded once at
// startup, typically through pkg/config, and must not change after the
// service is built.
type ValidationConfig struct {
	// Issuer must equal the token's iss claim exactly.
	Issuer string `json:"issuer" yaml:"issuer" env:"ISSUER" required:"true"`

	// Audiences lists the accepted aud values. A token passes when its
	// audience list contains at least one of them.
	Audiences []string `json:"audiences" yaml:"audiences" env:"AUDIENCES" required:"true"`

	// JWKSURL is the identity provider's published key set. When empty,
	// [DiscoverJWKSURL] can fill it from the issuer's discovery document.
	JWKSURL string `json:"jwks_url" yaml:"jwks_url" env:"JWKS_URL"`

	// RequiredCaller, when set, must equal the token's azp or appid claim.
	RequiredCaller string `json:"required_caller,omitempty" yaml:"required_caller" env:"REQUIRED_CALLER"`

	// Algorithm is the only signing algorithm accepted. It must be an
	// asymmetric JWS algorithm. Defaults to RS256.
	Algorithm string `json:"algorithm" yaml:"algorithm" env:"ALGORITHM" envDefault:"RS256"`

	// ConnectTimeout bounds TCP connect and TLS handshake to the JWKS
	// endpoint. Defaults to 2s.
	ConnectTimeout time.Duration `json:"connect_timeout" yaml:"connect_timeout" env:"JWKS_CONNECT_TIMEOUT" envDefault:"2s"`

	// RequestTimeout bounds the whole JWKS request including the body
	// read. Defaults to 5s.
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout" env:"JWKS_REQUEST_TIMEOUT" envDefault:"5s"`

	// RefreshOnUnknownKeyID makes the service refetch the key set once
	// when a token names a key-id the cached set does not contain, which
	// is how a key rotation at the provider shows up. Defaults to true.
	RefreshOnUnknownKeyID bool `json:"refresh_on_unknown_kid" yaml:"refresh_on_unknown_kid" env:"REFRESH_ON_UNKNOWN_KID" envDefault:"true"`

	// MinRefreshInterval is the minimum spacing between forced refreshes.
	// Tokens carrying made-up key-ids cannot make the service fetch more
	// often than this. Defaults to 30s.
	MinRefreshInterval time.Duration `json:"min_refresh_interval" yaml:"min_refresh_interval" env:"MIN_REFRESH_INTERVAL" envDefault:"30s"`

	// KeySetMaxAge, when positive, makes a cached key set stale after this
	// long. Zero keeps the first successfully fetched set for the life of
	// the process.
	KeySetMaxAge time.Duration `json:"key_set_max_age" yaml:"key_set_max_age" env:"KEY_SET_MAX_AGE" envDefault:"0s"`

	// ClockSkew is the tolerance applied to nbf. exp is never given any
	// leeway. Defaults to 0.
	ClockSkew time.Duration `json:"clock_skew" yaml:"clock_skew" env:"CLOCK_SKEW" envDefault:"0s"`

	// MaxTokenBytes caps the accepted compact token length. Defaults to 8192.
	MaxTokenBytes int `json:"max_token_bytes" yaml:"max_token_bytes" env:"MAX_TOKEN_BYTES" envDefault:"8192"`
}

// DefaultAlgorithm is the signing algorithm pinned when none is configured.
const DefaultAlgorithm = "RS256"

// defaultMaxTokenBytes is the default upper bound on a compact token.
const defaultMaxTokenBytes = 8192

// allowedAlgorithms are the asymmetric JWS algorithms a service may pin,
// mapped to the JWK key type that can verify them.
var allowedAlgorithms = map[string]string{
	"RS256": "RSA", "RS384": "RSA", "RS512": "RSA",
	"PS256": "RSA", "PS384": "RSA", "PS512": "RSA",
	"ES256": "EC", "ES384": "EC", "ES512": "EC",
	"EdDSA": "OKP",
}

// DefaultValidationConfig returns a config with every default applied and
// the deployment-specific fields (issuer, audiences, JWKS URL) empty.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		Algorithm:             DefaultAlgorithm,
		ConnectTimeout:        2 * time.Second,
		RequestTimeout:        5 * time.Second,
		RefreshOnUnknownKeyID: true,
		MinRefreshInterval:    30 * time.Second,
		MaxTokenBytes:         defaultMaxTokenBytes,
	}
}

// Validate checks the configuration and returns a *sserr.Error with
// [sserr.CodeValidation] for the first problem found.
func (c *ValidationConfig) Validate() error {
	if strings.TrimSpace(c.Issuer) == "" {
		return sserr.New(sserr.CodeValidation, "auth: issuer must not be empty")
	}
	if len(c.audiences()) == 0 {
		return sserr.New(sserr.CodeValidation, "auth: at least one audience is required")
	}
	if c.JWKSURL == "" {
		return sserr.New(sserr.CodeValidation, "auth: JWKS URL must not be empty")
	}
	u, err := url.Parse(c.JWKSURL)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return sserr.Newf(sserr.CodeValidation, "auth: JWKS URL %q must be an absolute http(s) URL", c.JWKSURL)
	}
	if _, ok := allowedAlgorithms[c.algorithm()]; !ok {
		return sserr.Newf(sserr.CodeValidation, "auth: algorithm %q is not an accepted asymmetric algorithm", c.Algorithm)
	}
	if c.ConnectTimeout < 0 || c.RequestTimeout < 0 {
		return sserr.New(sserr.CodeValidation, "auth: fetch timeouts must be non-negative")
	}
	if c.MinRefreshInterval < 0 || c.KeySetMaxAge < 0 || c.ClockSkew < 0 {
		return sserr.New(sserr.CodeValidation, "auth: refresh interval, key set max age and clock skew must be non-negative")
	}
	if c.MaxTokenBytes < 0 {
		return sserr.New(sserr.CodeValidation, "auth: max token bytes must be non-negative")
	}
	return nil
}

func (c *ValidationConfig) algorithm() string {
	if c.Algorithm == "" {
		return DefaultAlgorithm
	}
	return c.Algorithm
}

// audiences returns the configured audiences without blank entries.
func (c *ValidationConfig) audiences() []string {
	out := make([]string, 0, len(c.Audiences))
	for _, a := range c.Audiences {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

func (c *ValidationConfig) maxTokenBytes() int {
	if c.MaxTokenBytes == 0 {
		return defaultMaxTokenBytes
	}
	return c.MaxTokenBytes
}
