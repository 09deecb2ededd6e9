package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/app")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "postgres://u:p@db:5432/app", cfg.DatabaseURL)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, AttemptStoreMemory, cfg.AttemptStore)
	assert.Equal(t, 10*time.Minute, cfg.AttemptSweepInterval)
	assert.Equal(t, 15*time.Minute, cfg.OTPTTL)
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.NotEmpty(t, cfg.JWTSecret)
	assert.False(t, cfg.SMTP.Enabled())
	assert.False(t, cfg.VAPID.Enabled())

	assert.Equal(t, 5, cfg.Policies.Login.MaxAttempts)
	assert.Equal(t, 15*time.Minute, cfg.Policies.Login.Lockout)
	assert.Equal(t, 3, cfg.Policies.Resend.MaxAttempts)
	assert.Equal(t, time.Hour, cfg.Policies.Register.Lockout)
}

func TestLoad_PolicyOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("LOGIN_MAX_ATTEMPTS", "10")
	t.Setenv("LOGIN_LOCKOUT", "30m")
	t.Setenv("RESEND_MAX_ATTEMPTS", "1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Policies.Login.MaxAttempts)
	assert.Equal(t, 30*time.Minute, cfg.Policies.Login.Lockout)
	assert.Equal(t, 1, cfg.Policies.Resend.MaxAttempts)
	assert.Equal(t, time.Hour, cfg.Policies.Resend.Lockout)
	assert.Equal(t, "login", cfg.Policies.Login.Name)
}

func TestLoad_ProductionRequiresSecrets(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "short")
	t.Setenv("CRON_SECRET", "cron")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://sudastock.com")

	_, err := Load()
	assert.Error(t, err)

	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("CRON_SECRET", "")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("CRON_SECRET", "cron")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("CORS_ALLOWED_ORIGINS", " https://sudastock.com , https://admin.sudastock.com ")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://sudastock.com", "https://admin.sudastock.com"}, cfg.AllowedOrigins)
}

func TestLoad_RejectsUnknownAttemptStore(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("ATTEMPT_STORE", "memcached")

	_, err := Load()
	assert.Error(t, err)
}

func TestGetDatabaseURL_FromParts(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("POSTGRESQL_HOST", "db")
	t.Setenv("POSTGRESQL_USER", "app")
	t.Setenv("POSTGRESQL_PASSWORD", "p@ss")
	t.Setenv("POSTGRESQL_DBNAME", "sudastock")

	assert.Equal(t, "postgres://app:p%40ss@db:5432/sudastock?sslmode=disable", getDatabaseURL())
}
