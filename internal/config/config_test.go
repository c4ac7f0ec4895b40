package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Port:         "8080",
		Environment:  "development",
		SlackAPIURL:  "https://slack.com/api",
		CommandRate:  1,
		CommandBurst: 5,
		ReplyTimeout: 30 * time.Second,
		HTTPRate:     10,
		HTTPBurst:    20,
		LogLevel:     "info",
		LogFormat:    "json",
	}
}

func TestConfig_IsProduction(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		expected    bool
	}{
		{"production", "production", true},
		{"prod", "prod", true},
		{"development", "development", false},
		{"dev", "dev", false},
		{"staging", "staging", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Environment: tt.environment}
			if got := cfg.IsProduction(); got != tt.expected {
				t.Errorf("IsProduction() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		expected    bool
	}{
		{"development", "development", true},
		{"dev", "dev", true},
		{"empty", "", true},
		{"production", "production", false},
		{"staging", "staging", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Environment: tt.environment}
			if got := cfg.IsDevelopment(); got != tt.expected {
				t.Errorf("IsDevelopment() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name          string
		modify        func(*Config)
		wantError     bool
		errorContains string
	}{
		{
			name:   "valid_development_without_token",
			modify: func(c *Config) {},
		},
		{
			name: "production_requires_token",
			modify: func(c *Config) {
				c.Environment = "production"
			},
			wantError:     true,
			errorContains: "SLACK_TOKEN must be set",
		},
		{
			name: "production_with_token",
			modify: func(c *Config) {
				c.Environment = "production"
				c.SlackToken = "xoxb-123"
			},
		},
		{
			name:          "empty_api_url",
			modify:        func(c *Config) { c.SlackAPIURL = "" },
			wantError:     true,
			errorContains: "SLACK_API_URL",
		},
		{
			name:          "negative_command_rate",
			modify:        func(c *Config) { c.CommandRate = -1 },
			wantError:     true,
			errorContains: "COMMAND_RATE",
		},
		{
			name:   "zero_command_rate_means_unlimited",
			modify: func(c *Config) { c.CommandRate = 0 },
		},
		{
			name:          "zero_burst",
			modify:        func(c *Config) { c.CommandBurst = 0 },
			wantError:     true,
			errorContains: "COMMAND_BURST",
		},
		{
			name:          "zero_reply_timeout",
			modify:        func(c *Config) { c.ReplyTimeout = 0 },
			wantError:     true,
			errorContains: "REPLY_TIMEOUT",
		},
		{
			name:          "zero_http_rate",
			modify:        func(c *Config) { c.HTTPRate = 0 },
			wantError:     true,
			errorContains: "HTTP_RATE",
		},
		{
			name:          "unknown_log_format",
			modify:        func(c *Config) { c.LogFormat = "xml" },
			wantError:     true,
			errorContains: "LOG_FORMAT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)

			err := cfg.Validate()

			if tt.wantError {
				if err == nil {
					t.Fatal("Expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.errorContains) {
					t.Errorf("Expected error containing %q, got %q", tt.errorContains, err.Error())
				}
			} else if err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv("ENVIRONMENT", "development")
		t.Setenv("SLACK_TOKEN", "")
		t.Setenv("COMMAND_RATE", "")
		t.Setenv("REPLY_TIMEOUT", "")
		t.Setenv("OPENAPI_VALIDATION", "")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		if cfg.SlackAPIURL != "https://slack.com/api" {
			t.Errorf("SlackAPIURL = %q", cfg.SlackAPIURL)
		}
		if cfg.ReplyTimeout != 30*time.Second {
			t.Errorf("ReplyTimeout = %s", cfg.ReplyTimeout)
		}
		if cfg.CommandRate != 1 {
			t.Errorf("CommandRate = %v", cfg.CommandRate)
		}
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("SLACK_TOKEN", "xoxb-abc")
		t.Setenv("COMMAND_RATE", "2.5")
		t.Setenv("COMMAND_BURST", "3")
		t.Setenv("REPLY_TIMEOUT", "5s")
		t.Setenv("DATABASE_URL", "postgres://localhost/history")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		if cfg.SlackToken != "xoxb-abc" || cfg.CommandRate != 2.5 || cfg.CommandBurst != 3 {
			t.Errorf("unexpected slack settings: %+v", cfg)
		}
		if cfg.ReplyTimeout != 5*time.Second {
			t.Errorf("ReplyTimeout = %s", cfg.ReplyTimeout)
		}
		if cfg.DatabaseURL != "postgres://localhost/history" {
			t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
		}
	})

	t.Run("invalid_number", func(t *testing.T) {
		t.Setenv("COMMAND_BURST", "many")

		_, err := Load()
		if err == nil || !strings.Contains(err.Error(), "COMMAND_BURST") {
			t.Errorf("expected COMMAND_BURST error, got %v", err)
		}
	})

	t.Run("openapi_validation_toggle", func(t *testing.T) {
		t.Setenv("OPENAPI_VALIDATION", "false")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.OpenAPIValidation {
			t.Error("OpenAPIValidation should be disabled")
		}

		t.Setenv("OPENAPI_VALIDATION", "sometimes")
		if _, err := Load(); err == nil || !strings.Contains(err.Error(), "OPENAPI_VALIDATION") {
			t.Errorf("expected OPENAPI_VALIDATION error, got %v", err)
		}
	})

	t.Run("invalid_duration", func(t *testing.T) {
		t.Setenv("REPLY_TIMEOUT", "soon")

		_, err := Load()
		if err == nil || !strings.Contains(err.Error(), "REPLY_TIMEOUT") {
			t.Errorf("expected REPLY_TIMEOUT error, got %v", err)
		}
	})
}

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		expected     string
	}{
		{"env_set", "TEST_KEY", "default", "custom", "custom"},
		{"env_not_set", "TEST_KEY_NOT_SET", "default", "", "default"},
		{"empty_default", "TEST_KEY_EMPTY", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(tt.key, tt.envValue)
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.expected {
				t.Errorf("getEnv() = %v, want %v", got, tt.expected)
			}
		})
	}
}
