// Package config loads service configuration from an optional YAML file
// plus environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults for policy constants. These are deliberately configuration,
// not behavior: the loop cap and timeouts bound external calls but any
// value in a sane range is correct.
const (
	DefaultExpiryMargin    = 60 * time.Second
	DefaultMaxIterations   = 8
	DefaultModelTimeout    = 90 * time.Second
	DefaultToolTimeout     = 30 * time.Second
	DefaultExchangeTimeout = 15 * time.Second
)

// Config holds all runtime settings for the service.
type Config struct {
	Host         string `yaml:"host"`
	Port         string `yaml:"port"`
	DatabasePath string `yaml:"database_path"`

	FrontendURL string `yaml:"frontend_url"`
	BackendURL  string `yaml:"backend_url"`

	// SecretKey signs session cookies and, when EncryptionKey is unset,
	// seeds the token cipher key derivation.
	SecretKey string `yaml:"secret_key"`
	// EncryptionKey is an optional base64-encoded 32-byte AES key.
	EncryptionKey string `yaml:"encryption_key"`

	OpenAIAPIKey string `yaml:"openai_api_key"`
	OpenAIModel  string `yaml:"openai_model"`

	GoogleClientID     string `yaml:"google_client_id"`
	GoogleClientSecret string `yaml:"google_client_secret"`
	NotionClientID     string `yaml:"notion_client_id"`
	NotionClientSecret string `yaml:"notion_client_secret"`

	ExpiryMargin    time.Duration `yaml:"expiry_margin"`
	MaxIterations   int           `yaml:"max_iterations"`
	ModelTimeout    time.Duration `yaml:"model_timeout"`
	ToolTimeout     time.Duration `yaml:"tool_timeout"`
	ExchangeTimeout time.Duration `yaml:"exchange_timeout"`
}

// Load builds a Config from twind.yaml (if present) and environment
// variables. Environment always wins over the file.
func Load() (*Config, error) {
	cfg := &Config{
		Host:            "127.0.0.1",
		Port:            "8000",
		DatabasePath:    "twind.db",
		FrontendURL:     "http://localhost:5173",
		BackendURL:      "http://localhost:8000",
		SecretKey:       "dev-secret-key-change-in-production",
		OpenAIModel:     "gpt-4o-mini",
		ExpiryMargin:    DefaultExpiryMargin,
		MaxIterations:   DefaultMaxIterations,
		ModelTimeout:    DefaultModelTimeout,
		ToolTimeout:     DefaultToolTimeout,
		ExchangeTimeout: DefaultExchangeTimeout,
	}

	path := os.Getenv("TWIND_CONFIG")
	if path == "" {
		path = "twind.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.ExpiryMargin <= 0 {
		cfg.ExpiryMargin = DefaultExpiryMargin
	}
	if cfg.ModelTimeout <= 0 {
		cfg.ModelTimeout = DefaultModelTimeout
	}
	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = DefaultToolTimeout
	}
	if cfg.ExchangeTimeout <= 0 {
		cfg.ExchangeTimeout = DefaultExchangeTimeout
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Host, "HOST")
	setString(&c.Port, "PORT")
	setString(&c.DatabasePath, "TWIND_DB_PATH")
	setString(&c.FrontendURL, "FRONTEND_URL")
	setString(&c.BackendURL, "BACKEND_URL")
	setString(&c.SecretKey, "SECRET_KEY")
	setString(&c.EncryptionKey, "ENCRYPTION_KEY")
	setString(&c.OpenAIAPIKey, "OPENAI_API_KEY")
	setString(&c.OpenAIModel, "OPENAI_MODEL")
	setString(&c.GoogleClientID, "GOOGLE_CLIENT_ID")
	setString(&c.GoogleClientSecret, "GOOGLE_CLIENT_SECRET")
	setString(&c.NotionClientID, "NOTION_CLIENT_ID")
	setString(&c.NotionClientSecret, "NOTION_CLIENT_SECRET")
	setInt(&c.MaxIterations, "TWIND_MAX_ITERATIONS")
	setDuration(&c.ExpiryMargin, "TWIND_EXPIRY_MARGIN")
	setDuration(&c.ModelTimeout, "TWIND_MODEL_TIMEOUT")
	setDuration(&c.ToolTimeout, "TWIND_TOOL_TIMEOUT")
	setDuration(&c.ExchangeTimeout, "TWIND_EXCHANGE_TIMEOUT")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
