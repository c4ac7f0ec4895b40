package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port        string
	Environment string // development, staging, production

	// Slack connection
	SlackToken     string
	SlackAPIURL    string
	CommandRate    float64 // commands per second, 0 means unlimited
	CommandBurst   int
	ReplyTimeout   time.Duration
	EventQueueSize int

	// Optional backends, disabled when empty
	DatabaseURL string
	RabbitMQURL string

	// HTTP rate limit per client IP
	HTTPRate  float64
	HTTPBurst int

	// Validate API requests against the embedded OpenAPI document.
	// Responses are validated as well outside production.
	OpenAPIValidation bool

	LogLevel  string
	LogFormat string
}

// Load loads configuration from the environment, reading .env first when
// present, and validates it
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		SlackToken:  getEnv("SLACK_TOKEN", ""),
		SlackAPIURL: getEnv("SLACK_API_URL", "https://slack.com/api"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RabbitMQURL: getEnv("RABBITMQ_URL", ""),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),
	}

	var err error
	if cfg.CommandRate, err = getEnvFloat("COMMAND_RATE", 1); err != nil {
		return nil, err
	}
	if cfg.CommandBurst, err = getEnvInt("COMMAND_BURST", 5); err != nil {
		return nil, err
	}
	if cfg.ReplyTimeout, err = getEnvDuration("REPLY_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.EventQueueSize, err = getEnvInt("EVENT_QUEUE_SIZE", 256); err != nil {
		return nil, err
	}
	if cfg.HTTPRate, err = getEnvFloat("HTTP_RATE", 10); err != nil {
		return nil, err
	}
	if cfg.HTTPBurst, err = getEnvInt("HTTP_BURST", 20); err != nil {
		return nil, err
	}

	if cfg.OpenAPIValidation, err = getEnvBool("OPENAPI_VALIDATION", true); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration for correctness
func (c *Config) Validate() error {
	if c.SlackAPIURL == "" {
		return fmt.Errorf("SLACK_API_URL must not be empty")
	}

	if c.SlackToken == "" {
		if c.IsProduction() {
			return fmt.Errorf("SLACK_TOKEN must be set in production")
		}
		slog.Warn("SLACK_TOKEN is not set, commands are sent unauthenticated")
	}

	if c.CommandRate < 0 {
		return fmt.Errorf("COMMAND_RATE must not be negative (got %v)", c.CommandRate)
	}
	if c.CommandBurst < 1 {
		return fmt.Errorf("COMMAND_BURST must be at least 1 (got %d)", c.CommandBurst)
	}
	if c.ReplyTimeout <= 0 {
		return fmt.Errorf("REPLY_TIMEOUT must be positive (got %s)", c.ReplyTimeout)
	}
	if c.HTTPRate <= 0 || c.HTTPBurst < 1 {
		return fmt.Errorf("HTTP_RATE and HTTP_BURST must be positive")
	}

	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text (got %q)", c.LogFormat)
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev" || c.Environment == ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return f, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return d, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return b, nil
}
