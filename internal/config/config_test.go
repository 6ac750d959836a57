package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/settlement")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "0.0.0.0", cfg.HTTP.Host)
	assert.Equal(t, 3001, cfg.HTTP.Port)
	assert.Equal(t, []string{"*"}, cfg.HTTP.CORSAllowedOrigins)
	assert.Equal(t, 5*time.Second, cfg.Ledger.LockTimeout)
	assert.Equal(t, 3, cfg.Ledger.MaxRetries)
	assert.Equal(t, 50*time.Millisecond, cfg.Ledger.RetryBaseDelay)
	assert.Equal(t, 24*time.Hour, cfg.Redis.IdempotencyTTL)
	assert.True(t, cfg.DB.AutoMigrate)
	assert.False(t, cfg.DB.Seed)
	assert.Empty(t, cfg.Redis.Addr)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/settlement")
	t.Setenv("HTTP_PORT", "8080")
	t.Setenv("LEDGER_LOCK_TIMEOUT", "250ms")
	t.Setenv("LEDGER_MAX_RETRIES", "0")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.Ledger.LockTimeout)
	assert.Equal(t, 0, cfg.Ledger.MaxRetries)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HTTP.CORSAllowedOrigins)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoad_RequiresDSN(t *testing.T) {
	t.Setenv("DB_DSN", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_DSN")
}

func TestLoad_RejectsBadLedgerSettings(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/settlement")
	t.Setenv("LEDGER_LOCK_TIMEOUT", "0s")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LEDGER_LOCK_TIMEOUT")
}
