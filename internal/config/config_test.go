package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  host: "0.0.0.0"

database:
  url: "postgres://localhost/digest_test"

sender:
  email: "digest@quest.test"
  name: "Quest Digest"

brevo:
  api_key: "test-api-key"
  template_id: 42
  timeout_seconds: 45

llm:
  api_key: "llm-key"
  model: "gpt-4o"

digest:
  max_retries: 5
  batch_size: 25
  unsubscribe_base_url: "https://quest.test"

webhook:
  secret: "hook-secret"
  rate_limit_per_min: 60
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "postgres://localhost/digest_test", cfg.Database.URL)
	assert.Equal(t, "digest@quest.test", cfg.Sender.Email)
	assert.Equal(t, "test-api-key", cfg.Brevo.APIKey)
	assert.Equal(t, int64(42), cfg.Brevo.TemplateID)
	assert.Equal(t, 45, cfg.Brevo.TimeoutSeconds)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, 5, cfg.Digest.MaxRetries)
	assert.Equal(t, 25, cfg.Digest.BatchSize)
	assert.Equal(t, "hook-secret", cfg.Webhook.Secret)
	assert.Equal(t, 60, cfg.Webhook.RateLimitPerMin)
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
brevo:
  api_key: "test-key"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, "https://api.brevo.com", cfg.Brevo.BaseURL)
	assert.Equal(t, 30, cfg.Brevo.TimeoutSeconds)
	assert.Equal(t, "https://api.openai.com/v1", cfg.LLM.BaseURL)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 3, cfg.Digest.MaxRetries)
	assert.Equal(t, 50, cfg.Digest.BatchSize)
	assert.Equal(t, 500, cfg.Digest.PerUserDelayMs)
	assert.Equal(t, 30, cfg.Digest.StaleAfterMinutes)
	assert.Equal(t, 120, cfg.Webhook.RateLimitPerMin)
}

func TestLoadFromEnv(t *testing.T) {
	path := writeConfig(t, `
brevo:
  api_key: "file-key"
sender:
  email: "file@quest.test"
`)

	t.Setenv("EMAIL_PROVIDER_API_KEY", "env-key")
	t.Setenv("SENDER_EMAIL", "env@quest.test")
	t.Setenv("EMAIL_TEMPLATE_ID", "7")
	t.Setenv("MAX_RETRIES", "9")
	t.Setenv("SWEEP_DRY_RUN", "true")
	t.Setenv("CRON_SECRET", "cron-secret")

	cfg, err := LoadFromEnv(path)
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.Brevo.APIKey)
	assert.Equal(t, "env@quest.test", cfg.Sender.Email)
	assert.Equal(t, int64(7), cfg.Brevo.TemplateID)
	assert.Equal(t, 9, cfg.Digest.MaxRetries)
	assert.True(t, cfg.Digest.DryRun)
	assert.Equal(t, "cron-secret", cfg.Cron.Secret)
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestBrevoTimeout(t *testing.T) {
	cfg := BrevoConfig{TimeoutSeconds: 45}
	assert.Equal(t, 45*1000000000, int(cfg.Timeout().Nanoseconds()))
}
