package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, ".auth_key", cfg.Auth.KeyFile)
	assert.Equal(t, 5, cfg.Lifecycle.MaxRetries)
	assert.Equal(t, 10*time.Second, cfg.Lifecycle.RetryDelay)
	assert.Equal(t, 120*time.Second, cfg.Lifecycle.InitTimeout)
	assert.True(t, cfg.Lifecycle.AutoInitialize)
	assert.Equal(t, 100, cfg.Security.RateLimit.Requests)
	assert.Equal(t, 15*time.Minute, cfg.Security.RateLimit.Window)
	assert.Equal(t, "sqlite", cfg.Session.Driver)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wabridge.yaml")
	content := []byte(`
lifecycle:
  max_retries: 2
  retry_delay: 3s
webhooks:
  concurrency: 4
logging:
  format: console
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	t.Setenv("PORT", "8081")
	t.Setenv("WABRIDGE_LOGGING_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Lifecycle.MaxRetries)
	assert.Equal(t, 3*time.Second, cfg.Lifecycle.RetryDelay)
	assert.Equal(t, 4, cfg.Webhooks.Concurrency)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 8081, cfg.Server.Port)
}
