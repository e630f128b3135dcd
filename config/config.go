// Package config loads process configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/mashiike/imageai/model"
	"github.com/mashiike/imageai/model/bedrock"
	"github.com/mashiike/imageai/model/gemini"
)

// Asset backends selectable with ASSET_BACKEND.
const (
	AssetBackendWebflow = "webflow"
	AssetBackendS3      = "s3"
)

type Config struct {
	// AI provider
	Provider     string `env:"AI" envDefault:"openai"`
	ModelID      string `env:"AI_MODEL"` // provider default when empty
	OpenAIAPIKey string `env:"OPENAI_API_KEY"`
	GeminiAPIKey string `env:"GEMINI_API_KEY"`

	// Provider specific image models, provider defaults when empty
	OpenAIImageModel  string `env:"OPENAI_IMAGE_MODEL"`
	OpenAIEditModel   string `env:"OPENAI_EDIT_MODEL"`
	OpenAIVisionModel string `env:"OPENAI_VISION_MODEL"`
	GeminiImageModel  string `env:"GEMINI_IMAGE_MODEL"`
	BedrockImageModel string `env:"BEDROCK_IMAGE_MODEL"`

	// Auth
	JWTSecret   string `env:"JWT_SECRET"`
	JWTAudience string `env:"JWT_AUDIENCE"`

	// Server
	Addr         string `env:"ADDR" envDefault:":8080"`
	MaxBodyBytes int64  `env:"MAX_BODY_BYTES" envDefault:"20971520"`
	MetricsPath  string `env:"METRICS_PATH" envDefault:"/metrics"`

	// Per-client limit on image-ai requests, disabled when zero
	RateLimit float64 `env:"RATE_LIMIT" envDefault:"0"`
	RateBurst int     `env:"RATE_BURST" envDefault:"5"`
	// Proxies appending to X-Forwarded-For, zero keys on the peer address
	TrustedProxies int `env:"RATE_TRUSTED_PROXIES" envDefault:"0"`

	// Assets
	AssetBackend   string        `env:"ASSET_BACKEND" envDefault:"webflow"`
	WebflowAPIURL  string        `env:"WEBFLOW_API_URL" envDefault:"https://api.webflow.com/v2"`
	AssetBucket    string        `env:"ASSET_BUCKET"`
	AssetPrefix    string        `env:"ASSET_PREFIX"`
	AssetPublicURL string        `env:"ASSET_PUBLIC_URL"`
	AssetURLTTL    time.Duration `env:"ASSET_URL_TTL" envDefault:"15m"`

	// Notifications
	NotifyQueueURL string `env:"NOTIFY_QUEUE_URL"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that are invalid for every command.
func (c *Config) Validate() error {
	switch c.AssetBackend {
	case AssetBackendWebflow:
	case AssetBackendS3:
		if c.AssetBucket == "" {
			return errors.New("ASSET_BUCKET is required when ASSET_BACKEND=s3")
		}
	default:
		return fmt.Errorf("unknown ASSET_BACKEND %q: must be %s or %s", c.AssetBackend, AssetBackendWebflow, AssetBackendS3)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("invalid RATE_LIMIT %v: must not be negative", c.RateLimit)
	}
	if c.TrustedProxies < 0 {
		return fmt.Errorf("invalid RATE_TRUSTED_PROXIES %d: must not be negative", c.TrustedProxies)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown LOG_FORMAT %q: must be text or json", c.LogFormat)
	}
	return nil
}

// ValidateServe checks the settings the HTTP server needs.
func (c *Config) ValidateServe() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required to serve")
	}
	return nil
}

// APIKey returns the API key of the configured provider. Bedrock
// authenticates with AWS credentials and has none.
func (c *Config) APIKey() string {
	switch c.Provider {
	case gemini.ProviderName:
		return c.GeminiAPIKey
	case bedrock.ProviderName:
		return ""
	default:
		return c.OpenAIAPIKey
	}
}

// ModelConfig returns the model settings of the configured provider.
func (c *Config) ModelConfig() model.Config {
	cfg := model.Config{
		ModelID: c.ModelID,
		APIKey:  c.APIKey(),
	}
	switch c.Provider {
	case gemini.ProviderName:
		cfg.ImageModelID = c.GeminiImageModel
	case bedrock.ProviderName:
		cfg.ImageModelID = c.BedrockImageModel
	default:
		// unknown providers fall back to openai
		cfg.ImageModelID = c.OpenAIImageModel
		cfg.VisionModelID = c.OpenAIVisionModel
		cfg.EditModelID = c.OpenAIEditModel
	}
	return cfg
}

// SlogLevel parses LOG_LEVEL.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// NewLogger builds the process logger selected by LOG_FORMAT and LOG_LEVEL.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := c.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
