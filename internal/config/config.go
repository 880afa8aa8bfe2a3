package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the digest service.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Sender   SenderConfig   `yaml:"sender"`
	Brevo    BrevoConfig    `yaml:"brevo"`
	SES      SESConfig      `yaml:"ses"`
	LLM      LLMConfig      `yaml:"llm"`
	Digest   DigestConfig   `yaml:"digest"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Cron     CronConfig     `yaml:"cron"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with container detection.
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds the Postgres connection settings.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig holds the optional Redis connection used for sweep locking and
// webhook rate limiting. An empty Addr disables both.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// SenderConfig holds the From identity stamped on every digest.
type SenderConfig struct {
	Email string `yaml:"email"`
	Name  string `yaml:"name"`
}

// BrevoConfig holds the primary email provider settings.
type BrevoConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	TemplateID     int64  `yaml:"template_id"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration.
func (c BrevoConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SESConfig holds the secondary provider credentials. Sends fall back to SES
// only when Brevo fails transiently and these are set.
type SESConfig struct {
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Enabled   bool   `yaml:"enabled"`
}

// LLMConfig holds the OpenAI-compatible summarization settings. An empty
// APIKey switches the enricher to deterministic fallback summaries.
type LLMConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// DigestConfig holds orchestrator knobs.
type DigestConfig struct {
	MaxRetries          int    `yaml:"max_retries"`
	BatchSize           int    `yaml:"batch_size"`
	DryRun              bool   `yaml:"dry_run"`
	InterBatchDelaySecs int    `yaml:"inter_batch_delay_seconds"`
	PerUserDelayMs      int    `yaml:"per_user_delay_ms"`
	StaleAfterMinutes   int    `yaml:"stale_after_minutes"`
	UnsubscribeBaseURL  string `yaml:"unsubscribe_base_url"`
	AppBaseURL          string `yaml:"app_base_url"`
}

// InterBatchDelay returns the pacing delay between sweep batches.
func (c DigestConfig) InterBatchDelay() time.Duration {
	return time.Duration(c.InterBatchDelaySecs) * time.Second
}

// PerUserDelay returns the stagger between task launches within a batch.
func (c DigestConfig) PerUserDelay() time.Duration {
	return time.Duration(c.PerUserDelayMs) * time.Millisecond
}

// StaleAfter returns how long an in-flight digest record may sit untouched
// before a sweep reclaims it as failed.
func (c DigestConfig) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterMinutes) * time.Minute
}

// WebhookConfig holds provider callback verification and throttling.
type WebhookConfig struct {
	Secret          string `yaml:"secret"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
}

// CronConfig guards the sweep trigger endpoint.
type CronConfig struct {
	Secret string `yaml:"secret"`
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Brevo.BaseURL == "" {
		cfg.Brevo.BaseURL = "https://api.brevo.com"
	}
	if cfg.Brevo.TimeoutSeconds == 0 {
		cfg.Brevo.TimeoutSeconds = 30
	}
	if cfg.SES.Region == "" {
		cfg.SES.Region = "us-west-2"
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.Digest.MaxRetries == 0 {
		cfg.Digest.MaxRetries = 3
	}
	if cfg.Digest.BatchSize == 0 {
		cfg.Digest.BatchSize = 50
	}
	if cfg.Digest.InterBatchDelaySecs == 0 {
		cfg.Digest.InterBatchDelaySecs = 2
	}
	if cfg.Digest.PerUserDelayMs == 0 {
		cfg.Digest.PerUserDelayMs = 500
	}
	if cfg.Digest.StaleAfterMinutes == 0 {
		cfg.Digest.StaleAfterMinutes = 30
	}
	if cfg.Webhook.RateLimitPerMin == 0 {
		cfg.Webhook.RateLimitPerMin = 120
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in deployment.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SENDER_EMAIL"); v != "" {
		cfg.Sender.Email = v
	}
	if v := os.Getenv("SENDER_NAME"); v != "" {
		cfg.Sender.Name = v
	}
	if v := os.Getenv("EMAIL_PROVIDER_API_KEY"); v != "" {
		cfg.Brevo.APIKey = v
	}
	if v := os.Getenv("BREVO_API_KEY"); v != "" {
		cfg.Brevo.APIKey = v
	}
	if v := os.Getenv("BREVO_BASE_URL"); v != "" {
		cfg.Brevo.BaseURL = v
	}
	if v := os.Getenv("EMAIL_TEMPLATE_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Brevo.TemplateID = id
		}
	}
	if v := os.Getenv("AWS_SES_ACCESS_KEY"); v != "" {
		cfg.SES.AccessKey = v
		cfg.SES.Enabled = true
	}
	if v := os.Getenv("AWS_SES_SECRET_KEY"); v != "" {
		cfg.SES.SecretKey = v
	}
	if v := os.Getenv("AWS_SES_REGION"); v != "" {
		cfg.SES.Region = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("UNSUBSCRIBE_BASE_URL"); v != "" {
		cfg.Digest.UnsubscribeBaseURL = v
	}
	if v := os.Getenv("APP_BASE_URL"); v != "" {
		cfg.Digest.AppBaseURL = v
	}
	if v := os.Getenv("MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Digest.MaxRetries = n
		}
	}
	if v := os.Getenv("BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Digest.BatchSize = n
		}
	}
	if v := os.Getenv("SWEEP_DRY_RUN"); v != "" {
		cfg.Digest.DryRun = v == "true" || v == "1"
	}
	if v := os.Getenv("WEBHOOK_SECRET"); v != "" {
		cfg.Webhook.Secret = v
	}
	if v := os.Getenv("CRON_SECRET"); v != "" {
		cfg.Cron.Secret = v
	}

	return cfg, nil
}
