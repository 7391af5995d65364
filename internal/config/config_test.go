package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, int64(300), cfg.Webhook.ToleranceSeconds)
	assert.Equal(t, int64(1048576), cfg.Webhook.MaxPayloadBytes)
	assert.Equal(t, 24*time.Hour, cfg.Webhook.IdempotencyTTL)
	assert.Equal(t, 2*time.Second, cfg.Webhook.DispatchDelay)
	assert.Equal(t, 5, cfg.Executor.MaxAttempts)
	assert.Equal(t, 4, cfg.Executor.HighWorkers)
	assert.Equal(t, 2, cfg.Executor.NormalWorkers)
	assert.Equal(t, time.Hour, cfg.Anomaly.BlockDuration)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: 9090
webhook:
  secret: file-secret
  tolerance_seconds: 600
executor:
  max_attempts: 3
logging:
  level: debug
  format: text
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "file-secret", cfg.Webhook.Secret)
	assert.Equal(t, int64(600), cfg.Webhook.ToleranceSeconds)
	assert.Equal(t, 3, cfg.Executor.MaxAttempts)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Unset keys keep their defaults.
	assert.Equal(t, int64(1048576), cfg.Webhook.MaxPayloadBytes)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		cfg.Webhook.Secret = "s3cret"
		cfg.Admin.JWTSecret = "admin-s3cret"
		return cfg
	}

	t.Run("valid config passes", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("empty secret refused", func(t *testing.T) {
		cfg := valid()
		cfg.Webhook.Secret = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("non-positive tolerance refused", func(t *testing.T) {
		cfg := valid()
		cfg.Webhook.ToleranceSeconds = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("non-positive size limit refused", func(t *testing.T) {
		cfg := valid()
		cfg.Webhook.MaxPayloadBytes = -1
		assert.Error(t, cfg.Validate())
	})

	t.Run("non-positive max attempts refused", func(t *testing.T) {
		cfg := valid()
		cfg.Executor.MaxAttempts = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("empty admin jwt secret refused", func(t *testing.T) {
		cfg := valid()
		cfg.Admin.JWTSecret = ""
		assert.Error(t, cfg.Validate())
	})
}
