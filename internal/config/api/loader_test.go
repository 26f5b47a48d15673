package api_config

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "s3cret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, 168*time.Hour, cfg.Auth.RefreshTTL)
	assert.Equal(t, 10, cfg.Auth.MaxLoginAttempts)
	assert.Equal(t, time.Minute, cfg.Auth.BlockDuration)
	assert.Equal(t, 10, cfg.Auth.BcryptCost)
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, "admin", cfg.Bootstrap.AdminUsername)
	assert.Equal(t, http.SameSiteStrictMode, cfg.Cookie.AsCookieConfig().SameSite)
	assert.Equal(t, "refresh_token", cfg.Cookie.RefreshName)
	assert.Equal(t, 50, cfg.Outbox.BatchSize)
	assert.Equal(t, 10*time.Minute, cfg.Janitor.Tick)
	assert.Equal(t, 168*time.Hour, cfg.Janitor.RevokedRetention)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "x")
	t.Setenv("AUTH_MAX_LOGIN_ATTEMPTS", "3")
	t.Setenv("AUTH_BLOCK_DURATION", "15m")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("COOKIE_SAMESITE", "lax")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Auth.AsThrottleConfig().MaxAttempts)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AsThrottleConfig().BlockDuration)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, http.SameSiteLaxMode, cfg.Cookie.AsCookieConfig().SameSite)
}

func TestLoad_YAMLFile(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "x")
	path := filepath.Join(t.TempDir(), "api.yaml")
	require.NoError(t, os.WriteFile(path, []byte("auth:\n  access_ttl: 5m\nserver:\n  http_addr: \":7000\"\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, ":7000", cfg.Server.HTTPAddr)
}

func TestLoad_Validation(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "")
	_, err := Load("")
	require.ErrorIs(t, err, ErrNoJWTSecret)

	t.Setenv("AUTH_JWT_SECRET", "x")
	t.Setenv("STORAGE_DRIVER", "sqlite")
	_, err = Load("")
	require.ErrorIs(t, err, ErrUnknownDriver)
}
