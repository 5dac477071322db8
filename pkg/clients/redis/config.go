// Package redis is a small traced Redis client and a shared JWKS cache
// built on it.
//
// Several BFF and function instances that cold-start together would each
// fetch the identity provider's key set. [KeySetSource] puts the raw JWKS
// document in Redis so that one of them fetches and the rest read:
//
//	client, err := redis.NewClient(ctx, cfg.Redis)
//	if err != nil { ... }
//	defer client.Close()
//
//	upstream := auth.NewHTTPKeySetFetcher(authCfg.JWKSURL, authCfg.ConnectTimeout, authCfg.RequestTimeout, nil)
//	svc, err := auth.NewTokenValidationService(authCfg,
//	    auth.WithKeySetSource(redis.NewKeySetSource(client, upstream)))
//
// The client wraps github.com/redis/go-redis/v9, creates an OpenTelemetry
// span per command and returns *sserr.Error values.
package redis

import (
	"fmt"
	"net/url"
	"time"
)

// maxStatementTruncateLen caps the db.statement span attribute.
const maxStatementTruncateLen = 100

const (
	DefaultPort          = 6379
	DefaultPoolSize      = 10
	DefaultMaxRetries    = 2
	DefaultDialTimeout   = 2 * time.Second
	DefaultReadTimeout   = time.Second
	DefaultWriteTimeout  = time.Second
	DefaultHealthTimeout = 2 * time.Second
)

// Secret hides a password from logs, fmt verbs and text encodings.
// [Secret.Value] returns the real string.
type Secret string

const redacted = "[REDACTED]"

func (s Secret) String() string   { return redacted }
func (s Secret) GoString() string { return redacted }

// Value returns the secret itself.
func (s Secret) Value() string { return string(s) }

// MarshalText keeps the secret out of JSON and YAML output.
func (s Secret) MarshalText() ([]byte, error) { return []byte(redacted), nil }

// Config is the Redis connection used by the shared key-set cache. Set
// either URL or Host; with neither, the cache is disabled and keys come
// straight from the identity provider.
//
// Env tags are relative, so nesting the struct under `env:"REDIS"` reads
// REDIS_URL, REDIS_HOST and so on.
type Config struct {
	// URL is a redis:// or rediss:// connection string. When set, Host,
	// Port, DB and Password are ignored.
	URL string `json:"url,omitempty" yaml:"url" env:"URL"`

	Host     string `json:"host,omitempty" yaml:"host" env:"HOST"`
	Port     int    `json:"port,omitempty" yaml:"port" env:"PORT" envDefault:"6379"`
	DB       int    `json:"db" yaml:"db" env:"DB"`
	Password Secret `json:"-" yaml:"password" env:"PASSWORD"`

	PoolSize     int           `json:"pool_size,omitempty" yaml:"pool_size" env:"POOL_SIZE" envDefault:"10"`
	MaxRetries   int           `json:"max_retries,omitempty" yaml:"max_retries" env:"MAX_RETRIES" envDefault:"2"`
	DialTimeout  time.Duration `json:"dial_timeout,omitempty" yaml:"dial_timeout" env:"DIAL_TIMEOUT" envDefault:"2s"`
	ReadTimeout  time.Duration `json:"read_timeout,omitempty" yaml:"read_timeout" env:"READ_TIMEOUT" envDefault:"1s"`
	WriteTimeout time.Duration `json:"write_timeout,omitempty" yaml:"write_timeout" env:"WRITE_TIMEOUT" envDefault:"1s"`

	// TLSEnabled turns on TLS for Host-based configs. rediss:// URLs
	// always use TLS.
	TLSEnabled bool `json:"tls_enabled,omitempty" yaml:"tls_enabled" env:"TLS_ENABLED"`

	// KeyPrefix namespaces the cached JWKS documents.
	KeyPrefix string `json:"key_prefix,omitempty" yaml:"key_prefix" env:"KEY_PREFIX" envDefault:"tallerpinturas:jwks"`

	// KeySetTTL is how long a cached JWKS document lives in Redis.
	KeySetTTL time.Duration `json:"key_set_ttl,omitempty" yaml:"key_set_ttl" env:"KEY_SET_TTL" envDefault:"1h"`
}

// DefaultConfig returns a Config with every default applied and no
// server configured.
func DefaultConfig() *Config {
	return &Config{
		Port:         DefaultPort,
		PoolSize:     DefaultPoolSize,
		MaxRetries:   DefaultMaxRetries,
		DialTimeout:  DefaultDialTimeout,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
		KeyPrefix:    DefaultKeyPrefix,
		KeySetTTL:    DefaultKeySetTTL,
	}
}

// Enabled reports whether a server is configured.
func (c *Config) Enabled() bool {
	return c.URL != "" || c.Host != ""
}

// Validate applies defaults to zero fields and checks the rest.
func (c *Config) Validate() error {
	c.applyDefaults()

	if c.URL != "" {
		u, err := url.Parse(c.URL)
		if err != nil {
			return fmt.Errorf("redis: config URL is invalid: %w", err)
		}
		if u.Scheme != "redis" && u.Scheme != "rediss" {
			return fmt.Errorf("redis: config URL scheme must be redis:// or rediss://, got %q", u.Scheme)
		}
		return nil
	}

	if c.Host == "" {
		return fmt.Errorf("redis: config needs a URL or a host")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("redis: config port must be between 1 and 65535, got %d", c.Port)
	}
	if c.PoolSize < 1 {
		return fmt.Errorf("redis: config pool_size must be >= 1, got %d", c.PoolSize)
	}
	if c.DialTimeout < 0 || c.ReadTimeout < 0 || c.WriteTimeout < 0 {
		return fmt.Errorf("redis: config timeouts must not be negative")
	}
	if c.KeySetTTL < 0 {
		return fmt.Errorf("redis: config key_set_ttl must not be negative, got %v", c.KeySetTTL)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.PoolSize == 0 {
		c.PoolSize = DefaultPoolSize
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = DefaultKeyPrefix
	}
	if c.KeySetTTL == 0 {
		c.KeySetTTL = DefaultKeySetTTL
	}
}

// truncateStatement shortens s to maxStatementTruncateLen runes for span
// attributes.
func truncateStatement(s string) string {
	runes := []rune(s)
	if len(runes) <= maxStatementTruncateLen {
		return s
	}
	return string(runes[:maxStatementTruncateLen]) + "..."
}
