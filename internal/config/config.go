package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"PARROT_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"PARROT_DB_MAX_CONNS" default:"8"`

	DefaultQuotaLimit   int    `envconfig:"DEFAULT_QUOTA_LIMIT" default:"3"`
	SessionTTLHours     int    `envconfig:"SESSION_TTL_HOURS" default:"168"`
	SessionCookieName   string `envconfig:"SESSION_COOKIE_NAME" default:"parrot_session"`
	SessionCookieSecure bool   `envconfig:"SESSION_COOKIE_SECURE" default:"false"`
	CORSAllowedOrigins  string `envconfig:"CORS_ALLOWED_ORIGINS" default:""`

	AudioDir   string `envconfig:"AUDIO_DIR" default:"static/audio"`
	ReceiptDir string `envconfig:"RECEIPT_DIR" default:"static/receipts"`

	SpeechAPIKey string  `envconfig:"SPEECH_API_KEY" default:""`
	SpeechModel  string  `envconfig:"SPEECH_MODEL" default:"tts-1"`
	SpeechVoice  string  `envconfig:"SPEECH_VOICE" default:"alloy"`
	SpeechSpeed  float64 `envconfig:"SPEECH_SPEED" default:"1.0"`

	ProviderTimeoutSeconds int `envconfig:"PROVIDER_TIMEOUT_SECONDS" default:"60"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("PARROT_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("PARROT_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("PARROT_DB_MIN_CONNS (%d) cannot exceed PARROT_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.DefaultQuotaLimit < 0 {
		return fmt.Errorf("DEFAULT_QUOTA_LIMIT must be >= 0")
	}
	if c.SessionTTLHours < 1 {
		return fmt.Errorf("SESSION_TTL_HOURS must be >= 1")
	}
	if strings.TrimSpace(c.SessionCookieName) == "" {
		return fmt.Errorf("SESSION_COOKIE_NAME is required")
	}
	if strings.TrimSpace(c.AudioDir) == "" {
		return fmt.Errorf("AUDIO_DIR is required")
	}
	if strings.TrimSpace(c.ReceiptDir) == "" {
		return fmt.Errorf("RECEIPT_DIR is required")
	}
	if c.ProviderTimeoutSeconds < 1 {
		return fmt.Errorf("PROVIDER_TIMEOUT_SECONDS must be >= 1")
	}
	return nil
}

func (c *Config) CORSAllowedOriginsList() []string {
	if c == nil {
		return nil
	}

	parts := strings.Split(c.CORSAllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		if _, exists := seen[origin]; exists {
			continue
		}
		seen[origin] = struct{}{}
		origins = append(origins, origin)
	}
	return origins
}
