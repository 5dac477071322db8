package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallerpinturas/tallerpinturas-core/internal/testutil"
	"github.com/tallerpinturas/tallerpinturas-core/internal/testutil/fixtures"
	"github.com/tallerpinturas/tallerpinturas-core/pkg/auth"
	"github.com/tallerpinturas/tallerpinturas-core/pkg/clients/redis"
	"github.com/tallerpinturas/tallerpinturas-core/pkg/config"
	sserr "github.com/tallerpinturas/tallerpinturas-core/pkg/errors"
)

// These tests load the library's real configuration types the way the BFF
// entrypoint does. They use t.Setenv and so cannot run in parallel.

func TestLoad_ValidationConfigFromFileAndEnv(t *testing.T) {
	path := testutil.TempFile(t, "auth.yaml", fixtures.AuthConfigYAML)
	t.Setenv(fixtures.EnvPrefix+"_AUTH_CLOCK_SKEW", "30s")
	t.Setenv(fixtures.EnvPrefix+"_AUTH_REFRESH_ON_UNKNOWN_KID", "false")

	var cfg auth.ValidationConfig
	err := config.New().
		WithEnvPrefix(fixtures.EnvPrefix + "_AUTH").
		WithFile(path).
		Load(&cfg)
	require.NoError(t, err)

	assert.Equal(t, fixtures.Issuer, cfg.Issuer)
	assert.Equal(t, []string{fixtures.Audience}, cfg.Audiences)
	assert.Equal(t, fixtures.CallerID, cfg.RequiredCaller)
	assert.Contains(t, cfg.JWKSURL, fixtures.TenantID)
	assert.Equal(t, auth.DefaultAlgorithm, cfg.Algorithm)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 30*time.Second, cfg.ClockSkew)
	assert.False(t, cfg.RefreshOnUnknownKeyID)
}

func TestLoad_ValidationConfigRunsValidate(t *testing.T) {
	path := testutil.TempFile(t, "auth.yaml", fixtures.AuthConfigYAML)
	t.Setenv(fixtures.EnvPrefix+"_AUTH_ALGORITHM", "HS256")

	var cfg auth.ValidationConfig
	err := config.New().WithEnvPrefix(fixtures.EnvPrefix + "_AUTH").WithFile(path).Load(&cfg)
	testutil.RequireErrorCode(t, err, sserr.CodeValidation)
}

func TestLoad_ValidationConfigMissingIssuer(t *testing.T) {
	t.Setenv(fixtures.EnvPrefix+"_AUTH_AUDIENCES", fixtures.Audience)

	var cfg auth.ValidationConfig
	err := config.New().WithEnvPrefix(fixtures.EnvPrefix + "_AUTH").Load(&cfg)
	testutil.RequireErrorCode(t, err, sserr.CodeValidationRequired)
}

func TestLoad_AzureADConfigWithoutPrefix(t *testing.T) {
	t.Setenv("AAD_TENANT_ID", fixtures.TenantID)
	t.Setenv("API_APP_ID_URI", fixtures.Audience)
	t.Setenv("BFF_CLIENT_ID", fixtures.CallerID)

	azure := config.MustLoad[auth.AzureADConfig](config.New())
	require.True(t, azure.Enabled())
	assert.Equal(t, auth.DefaultAzureAuthority, azure.Authority)

	cfg, err := azure.ValidationConfig(auth.DefaultValidationConfig())
	require.NoError(t, err)
	assert.Equal(t, fixtures.Issuer, cfg.Issuer)
	assert.Equal(t, fixtures.CallerID, cfg.RequiredCaller)
}

func TestLoad_NestedRedisConfig(t *testing.T) {
	type server struct {
		Addr  string       `env:"ADDR" envDefault:":8080"`
		Redis redis.Config `env:"REDIS"`
	}
	t.Setenv(fixtures.EnvPrefix+"_REDIS_HOST", "cache.internal")
	t.Setenv(fixtures.EnvPrefix+"_REDIS_PASSWORD", "hunter2")
	t.Setenv(fixtures.EnvPrefix+"_REDIS_KEY_SET_TTL", "10m")

	cfg := config.MustLoad[server](config.New().WithEnvPrefix(fixtures.EnvPrefix))

	assert.Equal(t, ":8080", cfg.Addr)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, "cache.internal", cfg.Redis.Host)
	assert.Equal(t, redis.DefaultPort, cfg.Redis.Port)
	assert.Equal(t, "hunter2", cfg.Redis.Password.Value())
	assert.Equal(t, 10*time.Minute, cfg.Redis.KeySetTTL)
	assert.Equal(t, redis.DefaultKeyPrefix, cfg.Redis.KeyPrefix)
}
