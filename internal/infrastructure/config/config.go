package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all configuration for the Stability MCP service
type Config struct {
	// HTTP Server - using STABILITY_MCP_ prefix to avoid collisions
	HTTPPort  string `env:"STABILITY_MCP_HTTP_PORT" envDefault:"8094"`
	LogLevel  string `env:"STABILITY_MCP_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"STABILITY_MCP_LOG_FORMAT" envDefault:"json"` // json or console

	// Stability API
	StabilityAPIKey  string        `env:"STABILITY_API_KEY"`
	StabilityBaseURL string        `env:"STABILITY_API_BASE_URL" envDefault:"https://api.stability.ai"`
	RequestTimeout   time.Duration `env:"STABILITY_MCP_REQUEST_TIMEOUT" envDefault:"300s"`

	// Artifact storage
	ImageStoragePath   string `env:"IMAGE_STORAGE_PATH"`
	CreateStorageDir   bool   `env:"STABILITY_MCP_CREATE_STORAGE_DIR" envDefault:"true"`
	InlineImageResults bool   `env:"STABILITY_MCP_INLINE_IMAGE_RESULTS" envDefault:"true"`

	// Optional YAML file adjusting model descriptions/tiers at startup
	ModelsConfigPath string `env:"STABILITY_MCP_MODELS_CONFIG_PATH"`

	// Authentication
	AuthEnabled bool   `env:"AUTH_ENABLED" envDefault:"false"`
	AuthIssuer  string `env:"AUTH_ISSUER"`
	AuthJWKSURL string `env:"AUTH_JWKS_URL"`
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(os.Getenv("STABILITY_MCP_LOG_LEVEL")) == "" {
		if global := strings.TrimSpace(os.Getenv("LOG_LEVEL")); global != "" {
			cfg.LogLevel = global
		}
	}
	if strings.TrimSpace(os.Getenv("STABILITY_MCP_LOG_FORMAT")) == "" {
		if global := strings.TrimSpace(os.Getenv("LOG_FORMAT")); global != "" {
			cfg.LogFormat = global
		}
	}

	if strings.TrimSpace(cfg.StabilityAPIKey) == "" {
		return nil, fmt.Errorf("STABILITY_API_KEY is required")
	}
	if cfg.AuthEnabled {
		if strings.TrimSpace(cfg.AuthIssuer) == "" {
			return nil, fmt.Errorf("AUTH_ISSUER is required when AUTH_ENABLED is true")
		}
		if strings.TrimSpace(cfg.AuthJWKSURL) == "" {
			return nil, fmt.Errorf("AUTH_JWKS_URL is required when AUTH_ENABLED is true")
		}
	}
	return cfg, nil
}
