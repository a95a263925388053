package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("IDENTITY_BASE_URL", "https://identity.example.com/api/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://identity.example.com/api", cfg.Identity.BaseURL)
	assert.Equal(t, cfg.Identity.BaseURL, cfg.Identity.OTPBaseURL)
	assert.Equal(t, 15*time.Second, cfg.Identity.Timeout())
	assert.Equal(t, BackendCookie, cfg.Session.Backend)
	assert.False(t, cfg.Session.CookieSecure)
	assert.Equal(t, 5*time.Minute, cfg.Session.RefreshThreshold())
}

func TestLoad_ProductionCookiesAreSecure(t *testing.T) {
	t.Setenv("APP_ENV", "production")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Session.CookieSecure)
	assert.False(t, cfg.Logger.Development)
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	t.Setenv("CREDENTIAL_BACKEND", "localstorage")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_PostgresSourceNeedsDSN(t *testing.T) {
	t.Setenv("ONBOARDING_SOURCE", "postgres")
	t.Setenv("POSTGRES_DSN", "")

	_, err := Load()
	require.Error(t, err)
}

func TestRedisConfig_DialTimeout(t *testing.T) {
	assert.Equal(t, 5*time.Second, RedisConfig{}.DialTimeout())
	assert.Equal(t, 2*time.Second, RedisConfig{DialTimeoutSec: 2}.DialTimeout())
}
