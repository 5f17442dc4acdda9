// Package config loads MedAnnot settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvProduction represents the production environment.
	EnvProduction = "production"
	// EnvDevelopment is the default environment.
	EnvDevelopment = "development"

	CSPStrict  = "strict"
	CSPRelaxed = "relaxed"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Env            string   `envconfig:"ENV" default:"development"`
	Port           string   `envconfig:"PORT" default:"8080"`
	TrustedProxies []string `envconfig:"TRUSTED_PROXIES" default:"10.0.0.0/8,172.16.0.0/12"`
	StaticDir      string   `envconfig:"STATIC_DIR"`

	// Security settings
	HSTSMaxAge int    `envconfig:"HSTS_MAX_AGE" default:"31536000"`
	CSPMode    string `envconfig:"CSP_MODE" default:"relaxed"`

	// Logging settings
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Storage settings. An empty Home selects $HOME/Documents/MedAnnot.
	Home           string        `envconfig:"MEDANNOT_HOME"`
	MaxUploadBytes int64         `envconfig:"MAX_UPLOAD_BYTES" default:"26214400"`
	SessionTTL     time.Duration `envconfig:"SESSION_TTL" default:"12h"`

	// Generation settings
	ExampleCount int `envconfig:"EXAMPLE_COUNT" default:"3"`

	// Provider keys. When empty the CLI falls back to the system keychain.
	OpenAIAPIKey    string `envconfig:"OPENAI_API_KEY"`
	AnthropicAPIKey string `envconfig:"ANTHROPIC_API_KEY"`
}

// LoadConfig reads an optional .env file from the working directory, then
// the environment, and validates the result.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("error loading .env file", "error", err)
	}

	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate reports every setting that is out of range.
func (c *Config) Validate() error {
	var errs []error

	switch c.Env {
	case EnvDevelopment, EnvProduction:
	default:
		errs = append(errs, fmt.Errorf("ENV must be %s or %s, got %q", EnvDevelopment, EnvProduction, c.Env))
	}
	switch c.CSPMode {
	case CSPStrict, CSPRelaxed:
	default:
		errs = append(errs, fmt.Errorf("CSP_MODE must be %s or %s, got %q", CSPStrict, CSPRelaxed, c.CSPMode))
	}
	if c.ExampleCount < 0 {
		errs = append(errs, fmt.Errorf("EXAMPLE_COUNT must not be negative, got %d", c.ExampleCount))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL))
	}

	return errors.Join(errs...)
}

// IsProduction reports whether Env is production.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// BuildCSP constructs Content Security Policy based on mode.
func BuildCSP(mode string) string {
	if mode == CSPStrict {
		return "default-src 'self'; " +
			"style-src 'self' 'unsafe-inline'; " +
			"script-src 'self'; " +
			"img-src 'self' data:; " +
			"media-src 'self' blob:; " +
			"object-src 'none'; " +
			"base-uri 'self'; " +
			"form-action 'self'"
	}

	return "default-src 'self'; " +
		"style-src 'self' 'unsafe-inline'; " +
		"script-src 'self' 'unsafe-inline'; " +
		"img-src 'self' data:; " +
		"media-src 'self' blob:"
}
