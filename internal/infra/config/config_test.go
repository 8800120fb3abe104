package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 5, cfg.MaxReconnectRetries)
	assert.Equal(t, 5, cfg.SSEMaxQRGeneration)
	assert.Equal(t, time.Duration(0), cfg.ReconnectInterval)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "Whatsapp Bot", cfg.BrowserName)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	err := os.WriteFile(path, []byte(`{"port": 8080, "reconnect_interval_ms": 1500, "database": {"driver": "pgx", "url": "postgres://x"}}`), 0o600)
	require.NoError(t, err)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 1500*time.Millisecond, cfg.ReconnectInterval)
	assert.Equal(t, "pgx", cfg.Database.Driver)
	assert.Equal(t, "postgres://x", cfg.DSN())
	assert.Equal(t, 5, cfg.MaxReconnectRetries)
}

func TestLoadFromMissingFile(t *testing.T) {
	cfg, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, Default().Port, cfg.Port)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("MAX_RECONNECT_RETRIES", "2")
	t.Setenv("RECONNECT_INTERVAL", "250")
	t.Setenv("NAME_BOT_BROWSER", "Gateway")
	t.Setenv("API_KEY", "secret")

	cfg := Load("")
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 2, cfg.MaxReconnectRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.ReconnectInterval)
	assert.Equal(t, "Gateway", cfg.BrowserName)
	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr())
}
