package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration. Values come from an
// optional YAML file with environment variable overrides on top.
type Config struct {
	// Server connection
	ServerURL string `yaml:"server_url"`
	AuthToken string `yaml:"auth_token"`

	// Environment
	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"log_level"`

	// Local state
	SettingsPath string `yaml:"settings_path"`

	// Debug listener (metrics, health)
	DebugAddress string `yaml:"debug_address"`

	// Optimistic-state tuning, hot-reloadable
	Tunables Tunables `yaml:"tunables"`
}

// Tunables are the knobs safe to change at runtime
type Tunables struct {
	AddGraceMS         int `yaml:"add_grace_ms"`
	RemoveGraceMS      int `yaml:"remove_grace_ms"`
	ReconnectBackoffMS int `yaml:"reconnect_backoff_ms"`
	CommandRateBurst   int `yaml:"command_rate_burst"`
}

// AddGrace returns the optimistic-add grace period
func (t Tunables) AddGrace() time.Duration {
	return time.Duration(t.AddGraceMS) * time.Millisecond
}

// RemoveGrace returns the optimistic-remove grace period
func (t Tunables) RemoveGrace() time.Duration {
	return time.Duration(t.RemoveGraceMS) * time.Millisecond
}

// Load reads configuration from the given YAML file (if present) and
// applies environment variable overrides
func Load(path string) (*Config, error) {
	cfg := &Config{
		Environment:  "development",
		LogLevel:     "info",
		SettingsPath: "starmap-settings",
		DebugAddress: ":9182",
		Tunables: Tunables{
			AddGraceMS:         5000,
			RemoveGraceMS:      10000,
			ReconnectBackoffMS: 1000,
			CommandRateBurst:   20,
		},
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(raw, cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	cfg.ServerURL = getEnv("STARMAP_SERVER_URL", cfg.ServerURL)
	cfg.AuthToken = getEnv("STARMAP_AUTH_TOKEN", cfg.AuthToken)
	cfg.Environment = getEnv("STARMAP_ENVIRONMENT", cfg.Environment)
	cfg.LogLevel = getEnv("STARMAP_LOG_LEVEL", cfg.LogLevel)
	cfg.SettingsPath = getEnv("STARMAP_SETTINGS_PATH", cfg.SettingsPath)
	cfg.DebugAddress = getEnv("STARMAP_DEBUG_ADDRESS", cfg.DebugAddress)
	cfg.Tunables.AddGraceMS = getEnvInt("STARMAP_ADD_GRACE_MS", cfg.Tunables.AddGraceMS)
	cfg.Tunables.RemoveGraceMS = getEnvInt("STARMAP_REMOVE_GRACE_MS", cfg.Tunables.RemoveGraceMS)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server_url is required")
	}
	if c.Environment == "production" && c.AuthToken == "" {
		return fmt.Errorf("auth_token is required in production")
	}
	if c.Tunables.AddGraceMS < 0 || c.Tunables.RemoveGraceMS < 0 {
		return fmt.Errorf("grace periods cannot be negative")
	}
	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
